package ui

import (
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// StageBars shows one percent bar per stage of a multi-job command. Bars are
// added the first time a stage reports.
type StageBars struct {
	progress *mpb.Progress

	mu    sync.Mutex
	bars  map[string]*mpb.Bar
	order []string
}

// NewStageBars creates an empty set of bars writing to w.
func NewStageBars(w io.Writer) *StageBars {
	return &StageBars{
		progress: mpb.New(mpb.WithOutput(w), mpb.WithWidth(48)),
		bars:     map[string]*mpb.Bar{},
	}
}

// Set moves stage to percent.
func (s *StageBars) Set(stage string, percent int) {
	s.mu.Lock()
	bar, ok := s.bars[stage]
	if !ok {
		bar = s.progress.AddBar(100,
			mpb.PrependDecorators(
				decor.Name(stage, decor.WC{W: len(stage) + 1, C: decor.DSyncSpaceR}),
			),
			mpb.AppendDecorators(
				decor.OnComplete(decor.Percentage(decor.WC{W: 5}), " done"),
			),
		)
		s.bars[stage] = bar
		s.order = append(s.order, stage)
	}
	s.mu.Unlock()
	bar.SetCurrent(int64(percent))
}

// Wait completes every bar and waits for the output to flush.
func (s *StageBars) Wait() {
	s.mu.Lock()
	for _, stage := range s.order {
		if bar := s.bars[stage]; !bar.Completed() {
			bar.SetTotal(-1, true)
		}
	}
	s.mu.Unlock()
	s.progress.Wait()
}
