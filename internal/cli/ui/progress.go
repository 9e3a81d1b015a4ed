package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Spinner represents a simple text-based spinner for requests without
// measurable progress
type Spinner struct {
	writer   io.Writer
	message  string
	frames   []string
	interval time.Duration
	noColor  bool

	mu     sync.Mutex // Protects message, active and done
	active bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// SpinnerOptions configures spinner behavior
type SpinnerOptions struct {
	Message  string
	NoColor  bool
	Interval time.Duration // Default: 100ms
}

var defaultFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner creates a new spinner
func NewSpinner(w io.Writer, opts SpinnerOptions) *Spinner {
	interval := opts.Interval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}

	return &Spinner{
		writer:   w,
		message:  opts.Message,
		frames:   defaultFrames,
		interval: interval,
		noColor:  opts.NoColor,
	}
}

// Start begins the spinner animation. Starting a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.animate(s.done)
}

// Stop stops the spinner and clears the line
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	fmt.Fprint(s.writer, "\r\033[K")
}

// Success stops the spinner and shows a success message
func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintln(s.writer, FormatSuccess(message, s.noColor))
}

// Error stops the spinner and shows an error message
func (s *Spinner) Error(message string) {
	s.Stop()
	red := color.New(color.FgRed, color.Bold)
	if s.noColor {
		red.DisableColor()
	}
	red.Fprintf(s.writer, "❌ %s\n", message)
}

// UpdateMessage changes the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

func (s *Spinner) animate(done <-chan struct{}) {
	defer s.wg.Done()

	frameIndex := 0
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	cyan := color.New(color.FgCyan)
	if s.noColor {
		cyan.DisableColor()
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			cyan.Fprintf(s.writer, "\r%s %s", s.frames[frameIndex], msg)
			frameIndex = (frameIndex + 1) % len(s.frames)
		}
	}
}

// ProgressBar renders a percentage, the unit collection fetches report in
type ProgressBar struct {
	writer  io.Writer
	percent int
	width   int
	message string
	noColor bool
	failed  bool
}

// ProgressBarOptions configures progress bar behavior
type ProgressBarOptions struct {
	Width   int // Default: 40
	Message string
	NoColor bool
}

// NewProgressBar creates a new progress bar at 0%
func NewProgressBar(w io.Writer, opts ProgressBarOptions) *ProgressBar {
	width := opts.Width
	if width == 0 {
		width = 40
	}

	return &ProgressBar{
		writer:  w,
		width:   width,
		message: opts.Message,
		noColor: opts.NoColor,
	}
}

// Report sets the progress to percent, clamped to [0, 100]. Its signature
// matches the progress callback of resource.Collection.Fetch. A report of
// 0 after some progress marks the bar as failed.
func (p *ProgressBar) Report(percent int) {
	percent = max(0, min(percent, 100))
	if percent == 0 && p.percent > 0 {
		p.failed = true
	}
	p.percent = percent
	p.render()
}

// Percent returns the last reported value
func (p *ProgressBar) Percent() int {
	return p.percent
}

// Failed reports whether the bar was reset by a failure
func (p *ProgressBar) Failed() bool {
	return p.failed
}

// Finish completes the progress bar with a success message
func (p *ProgressBar) Finish(message string) {
	p.percent = 100
	p.render()
	fmt.Fprintln(p.writer)
	if message != "" {
		fmt.Fprintln(p.writer, FormatSuccess(message, p.noColor))
	}
}

func (p *ProgressBar) render() {
	filledWidth := p.width * p.percent / 100

	fill := color.New(color.FgCyan)
	if p.failed {
		fill = color.New(color.FgRed)
	}
	gray := color.New(color.FgHiBlack)
	if p.noColor {
		fill.DisableColor()
		gray.DisableColor()
	}

	var bar strings.Builder
	bar.WriteString("[")
	fill.Fprint(&bar, strings.Repeat("█", filledWidth))
	gray.Fprint(&bar, strings.Repeat("░", p.width-filledWidth))
	bar.WriteString("]")

	message := ""
	if p.message != "" {
		message = " " + p.message
	}

	fmt.Fprintf(p.writer, "\r%s %3d%%%s", bar.String(), p.percent, message)
}

// WithSpinner runs a function with a spinner indicator
func WithSpinner(w io.Writer, message string, noColor bool, fn func() error) error {
	spinner := NewSpinner(w, SpinnerOptions{
		Message: message,
		NoColor: noColor,
	})
	spinner.Start()

	if err := fn(); err != nil {
		spinner.Error(fmt.Sprintf("%s failed", message))
		return err
	}

	spinner.Success(message)
	return nil
}

// WithProgress runs fn with a progress bar fed by its report callback
func WithProgress(w io.Writer, message string, noColor bool, fn func(report func(int)) error) error {
	bar := NewProgressBar(w, ProgressBarOptions{
		Message: message,
		NoColor: noColor,
	})

	if err := fn(bar.Report); err != nil {
		fmt.Fprintln(w)
		return err
	}

	bar.Finish(message)
	return nil
}
