// Package stream turns runner callbacks into a channel of StreamEvents for
// callers that prefer to range over a job's progress.
package stream

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spherical/ghostview/internal/display"
	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/job"
	"github.com/spherical/ghostview/internal/observability"
)

// StartFunc launches one runner job with the given callbacks.
type StartFunc func(job.Callbacks) (string, error)

// Service runs jobs and reports them as events.
type Service struct {
	runner *job.Runner
	logger *observability.Logger
}

// NewService creates a new streaming service.
func NewService(runner *job.Runner, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{runner: runner, logger: logger.WithOperation("stream")}
}

// Process runs start to completion. Progress, output and page events are
// dropped when eventCh is full; the final complete or error event is always
// delivered unless ctx ends first. eventCh is not closed.
func (s *Service) Process(ctx context.Context, input string, start StartFunc, eventCh chan<- domain.StreamEvent) (domain.Result, error) {
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Payload:   fmt.Sprintf("Starting %s", input),
		Timestamp: time.Now(),
	})

	var jobID atomic.Value
	id := func() string {
		v, _ := jobID.Load().(string)
		return v
	}
	cb := job.Callbacks{
		OnProgress: func(p domain.Progress) {
			s.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventProgress,
				JobID:      p.JobID,
				PageNumber: p.Page,
				Percent:    p.Percent,
				Timestamp:  time.Now(),
			})
		},
		OnOutput: func(text string, stderr bool) {
			s.emitEvent(eventCh, domain.StreamEvent{
				Type:      domain.EventOutput,
				JobID:     id(),
				Payload:   Output{Text: text, Stderr: stderr},
				Timestamp: time.Now(),
			})
		},
		OnPage: func(f display.Frame) {
			s.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventPage,
				JobID:      id(),
				PageNumber: f.Page,
				Payload:    f,
				Timestamp:  time.Now(),
			})
		},
	}

	res, err := s.runner.Await(ctx, cb, func(cb job.Callbacks) (string, error) {
		started, err := start(cb)
		jobID.Store(started)
		return started, err
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", res.JobID).Msg("Streamed job failed")
		s.deliver(ctx, eventCh, domain.StreamEvent{
			Type:      domain.EventError,
			JobID:     res.JobID,
			Payload:   err.Error(),
			Timestamp: time.Now(),
		})
		return res, err
	}

	s.deliver(ctx, eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		JobID:     res.JobID,
		Percent:   100,
		Payload:   res,
		Timestamp: time.Now(),
	})
	return res, nil
}

// Output is the payload of an output event.
type Output struct {
	Text   string
	Stderr bool
}

// emitEvent sends without blocking the engine goroutine.
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh == nil {
		return
	}
	select {
	case eventCh <- event:
	default:
		s.logger.Debug().Str("type", string(event.Type)).Msg("Event channel full, dropping event")
	}
}

func (s *Service) deliver(ctx context.Context, eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh == nil {
		return
	}
	select {
	case eventCh <- event:
	case <-ctx.Done():
	}
}
