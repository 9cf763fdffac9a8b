package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order selects how a run sequences its nodes.
type Order string

const (
	// OrderSubmission activates nodes in the order they were submitted and
	// ignores edges. This is what the editor has always done.
	OrderSubmission Order = "submission"
	// OrderTopological follows edges (Kahn's algorithm, ties broken by
	// submission order) and rejects cyclic graphs.
	OrderTopological Order = "topological"
)

// ParseOrder accepts "submission", "topological", or "" (submission).
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderSubmission:
		return OrderSubmission, nil
	case OrderTopological:
		return OrderTopological, nil
	}
	return "", fmt.Errorf("unknown execution order %q", s)
}

// TimestampLayout formats execution-log timestamps.
const TimestampLayout = "3:04:05 PM"

// Options tunes an Engine. Zero values fall back to the defaults noted per field.
type Options struct {
	StepDelay         time.Duration // simulated per-node work; zero means none
	Order             Order         // default OrderSubmission
	MaxConcurrentRuns int           // default 8
	MaxQueuedRuns     int           // admitted runs waiting for a slot
	RunTimeout        time.Duration // counted from when the run gets a slot; zero disables it

	Now   func() time.Time // default time.Now
	NewID func() string    // default UUIDv7
}

// DefaultOptions returns the reference settings: 4.5s per node, submission
// order, 8 concurrent runs with 32 more queued, 10 minute deadline.
func DefaultOptions() Options {
	return Options{
		StepDelay:         4500 * time.Millisecond,
		Order:             OrderSubmission,
		MaxConcurrentRuns: 8,
		MaxQueuedRuns:     32,
		RunTimeout:        10 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	if o.Order == "" {
		o.Order = OrderSubmission
	}
	if o.MaxConcurrentRuns <= 0 {
		o.MaxConcurrentRuns = 8
	}
	if o.MaxQueuedRuns < 0 {
		o.MaxQueuedRuns = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	return o
}
