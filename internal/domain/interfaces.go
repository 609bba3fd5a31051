package domain

import "context"

// Recorder persists finished jobs
type Recorder interface {
	// Record stores the result of a finished job
	Record(ctx context.Context, result Result) error
}

// Dispatcher re-dispatches callbacks onto the goroutine that owns caller state
type Dispatcher interface {
	// Dispatch schedules fn; calls are run in the order they were dispatched
	Dispatch(fn func())
}
