package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponential(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		cfg     *Config
		want    time.Duration
	}{
		{name: "defaults first attempt", attempt: 1, want: 100 * time.Millisecond},
		{name: "defaults third attempt", attempt: 3, want: 400 * time.Millisecond},
		{name: "defaults capped", attempt: 10, want: 5 * time.Second},
		{name: "zero attempt returns initial", attempt: 0, want: 100 * time.Millisecond},
		{
			name:    "custom config",
			attempt: 3,
			cfg:     &Config{Initial: time.Second, Max: 30 * time.Second},
			want:    4 * time.Second,
		},
		{
			name:    "custom multiplier capped",
			attempt: 4,
			cfg:     &Config{Initial: time.Second, Max: 20 * time.Second, Multiplier: 3},
			want:    20 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Exponential(tt.attempt, tt.cfg))
		})
	}
}

func TestSleep(t *testing.T) {
	assert.True(t, Sleep(context.Background(), time.Millisecond))
	assert.True(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Sleep(ctx, time.Hour))
}
