// Package progress reports indexing progress either as a terminal progress
// bar or as plain log lines when output is not interactive.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter receives progress events from long-running operations.
type Reporter interface {
	Start(total int, description string)
	Update(current int, message string)
	Finish(message string)
}

// New picks a reporter for w. A bar is drawn only when w is an interactive
// terminal and no CI environment is detected; otherwise one line is written
// per update.
func New(w io.Writer) Reporter {
	if isCI() || !isTerminal(w) {
		return &LineReporter{w: w}
	}
	return &TerminalReporter{w: w}
}

func isCI() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != ""
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TerminalReporter draws a progress bar.
type TerminalReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int, description string) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar == nil {
		return
	}
	if message != "" {
		r.bar.Describe(message)
	}
	_ = r.bar.Set(current)
}

func (r *TerminalReporter) Finish(message string) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	if message != "" {
		fmt.Fprintln(r.w, message)
	}
}

// LineReporter writes one line per event, suitable for CI logs and pipes.
type LineReporter struct {
	w     io.Writer
	total int
}

// NewLineReporter returns a LineReporter writing to w.
func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w}
}

func (r *LineReporter) Start(total int, description string) {
	r.total = total
	fmt.Fprintf(r.w, "%s (%d)\n", description, total)
}

func (r *LineReporter) Update(current int, message string) {
	fmt.Fprintf(r.w, "[%d/%d] %s\n", current, r.total, message)
}

func (r *LineReporter) Finish(message string) {
	if message != "" {
		fmt.Fprintln(r.w, message)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Start(int, string)  {}
func (Nop) Update(int, string) {}
func (Nop) Finish(string)      {}
