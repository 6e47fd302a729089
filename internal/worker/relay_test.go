package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/prompt-gateway/internal/backoff"
)

type step struct {
	published bool
	err       error
}

type scriptedProcessor struct {
	mu     sync.Mutex
	steps  []step
	calls  int
	cancel context.CancelFunc
}

func (p *scriptedProcessor) ProcessOnce(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls > len(p.steps) {
		p.cancel()
		return false, nil
	}
	s := p.steps[p.calls-1]
	return s.published, s.err
}

func TestOutboxRelay_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &scriptedProcessor{
		steps: []step{
			{published: true},
			{published: true},
			{err: errors.New("broker down")},
			{err: errors.New("broker down")},
			{published: false},
			{published: true},
		},
		cancel: cancel,
	}

	relay := NewOutboxRelay(&RelayConfig{
		Logger:       discardLogger(),
		Processor:    proc,
		IdleDelay:    time.Millisecond,
		ErrorBackoff: backoff.Config{Initial: time.Millisecond, Max: 2 * time.Millisecond},
	})

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop")
	}
	assert.Equal(t, len(proc.steps)+1, proc.calls)
}

func TestOutboxRelay_StopsWhileSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	proc := &scriptedProcessor{steps: []step{{published: false}}, cancel: func() {}}

	relay := NewOutboxRelay(&RelayConfig{
		Logger:    discardLogger(),
		Processor: proc,
		IdleDelay: time.Hour,
	})

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop")
	}
	assert.Equal(t, 1, proc.calls)
}

func TestNewOutboxRelay_Defaults(t *testing.T) {
	relay := NewOutboxRelay(&RelayConfig{Processor: &scriptedProcessor{}})
	assert.Equal(t, time.Second, relay.idleDelay)
	assert.Equal(t, 2*time.Second, relay.errorBackoff.Initial)
	assert.Equal(t, time.Minute, relay.errorBackoff.Max)
}

func TestOutboxRelay_RateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &scriptedProcessor{
		steps:  []step{{published: true}, {published: true}, {published: true}},
		cancel: cancel,
	}

	relay := NewOutboxRelay(&RelayConfig{
		Logger:    discardLogger(),
		Processor: proc,
		RateLimit: 50,
	})
	require.NotNil(t, relay.limiter)
	assert.Equal(t, 1, relay.limiter.Burst())

	start := time.Now()
	require.NoError(t, relay.Run(ctx))

	// four calls at 50/s with burst 1 need at least three 20ms waits
	assert.Equal(t, 4, proc.calls)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
