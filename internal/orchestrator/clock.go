package orchestrator

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator produces ids of the form "{prefix}-{32 hex chars}"
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(prefix string) string {
	return prefix + "-" + compactUUID()
}

func (UUIDGenerator) NewTraceID() string {
	return compactUUID()
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
