package domain

import (
	"time"
)

// Task identifies the kind of work a job performs
type Task string

const (
	TaskDistill          Task = "distill"
	TaskCreateOutput     Task = "create_output"
	TaskPageCount        Task = "page_count"
	TaskRenderThumbnails Task = "render_thumbnails"
	TaskRenderPages      Task = "render_pages"
	TaskGeneric          Task = "generic"
)

// Status is the final outcome of a job
type Status string

const (
	StatusOK        Status = "ok"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// RunnerState is the state of the job runner
type RunnerState string

const (
	StateReady RunnerState = "ready"
	StateBusy  RunnerState = "busy"
	StateError RunnerState = "error"
)

// Params holds everything a job needs and everything it reports back.
// A Params value is created per action and owned by the runner until the
// completion callback fires.
type Params struct {
	ID         string
	Task       Task
	InputFile  string
	OutputFile string
	Args       []string

	FirstPage int
	LastPage  int
	CurrPage  int
	NumPages  int

	Zoom      float64
	Antialias bool

	// Export settings used by TaskCreateOutput
	Device       string
	Resolution   int
	WidthPoints  float64
	HeightPoints float64
	FitPage      bool

	ReturnCode int
	Status     Status
}

// Result is delivered once per job through the completion callback
type Result struct {
	JobID      string        `json:"job_id"`
	Task       Task          `json:"task"`
	Status     Status        `json:"status"`
	ErrorType  ErrorType     `json:"error_type,omitempty"`
	Err        error         `json:"-"`
	ReturnCode int           `json:"return_code"`
	InputFile  string        `json:"input_file"`
	OutputFile string        `json:"output_file,omitempty"`
	NumPages   int           `json:"num_pages,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// OK reports whether the job succeeded
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Progress is a percent-complete report for an in-flight job
type Progress struct {
	JobID   string
	Task    Task
	Percent int
	Page    int
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventOutput   EventType = "output"
	EventPage     EventType = "page"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	JobID      string      `json:"job_id,omitempty"`
	PageNumber int         `json:"page_number,omitempty"`
	Percent    int         `json:"percent,omitempty"`
	Payload    interface{} `json:"payload,omitempty"` // output text, frame or result
	Timestamp  time.Time   `json:"timestamp"`
}

// PageSize is the layout size of one page in points
type PageSize struct {
	Page   int
	Width  float64
	Height float64
}
