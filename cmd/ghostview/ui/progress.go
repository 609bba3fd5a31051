// Package ui provides terminal output for the ghostview CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
)

// plainStep is how far a plain progress line must move before it is printed.
const plainStep = 25

// ProgressBar shows percent-complete progress of one job. When stderr is not
// a terminal it prints one line per quarter instead of redrawing a bar.
type ProgressBar struct {
	bar *progressbar.ProgressBar

	w     io.Writer
	label string
	last  int
}

// NewProgressBar creates a 0-100 progress bar.
func NewProgressBar(description string) *ProgressBar {
	if !IsTerminal(os.Stderr) {
		return newPlainProgress(os.Stderr, description)
	}
	bar := progressbar.NewOptions(
		100,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressBar{bar: bar}
}

func newPlainProgress(w io.Writer, label string) *ProgressBar {
	return &ProgressBar{w: w, label: label, last: -1}
}

// Set moves the bar to percent.
func (p *ProgressBar) Set(percent int) {
	if p.bar != nil {
		_ = p.bar.Set(percent)
		return
	}
	if p.last >= 0 && percent < p.last+plainStep && percent != 100 {
		return
	}
	if percent == p.last {
		return
	}
	p.last = percent
	fmt.Fprintf(p.w, "%s: %d%%\n", p.label, percent)
}

// Describe changes the label.
func (p *ProgressBar) Describe(description string) {
	if p.bar != nil {
		p.bar.Describe(description)
		return
	}
	p.label = description
	p.last = -1
}

// Finish completes the bar.
func (p *ProgressBar) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		return
	}
	p.Set(100)
}

// Spinner shows indeterminate progress. It stays silent when stderr is not a
// terminal.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a new spinner with the given message.
func NewSpinner(message string) *Spinner {
	if !IsTerminal(os.Stderr) {
		return &Spinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	if s.spinner != nil {
		s.spinner.Start()
	}
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	if s.spinner != nil {
		s.spinner.Stop()
	}
}
