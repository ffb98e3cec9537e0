// Package progress draws trace-session and reconcile progress on stderr.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar counting finished units of work.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
	done  atomic.Int64
}

// NewSpinner creates a spinner for work with an unknown total, such as
// reconciling the levels of one fuzz target.
func NewSpinner(label string) *Tracker {
	return newSpinner(label, os.Stderr)
}

func newSpinner(label string, w io.Writer) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// NewTracker creates a bar over total debugger sessions.
func NewTracker(label string, total int) *Tracker {
	return NewWriterTracker(label, total, os.Stderr)
}

// NewWriterTracker is NewTracker drawing on w.
func NewWriterTracker(label string, total int, w io.Writer) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// Tick records one finished unit. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.done.Add(1)
	_ = t.bar.Add(1)
}

// Done returns the number of ticks so far.
func (t *Tracker) Done() int {
	return int(t.done.Load())
}

// Describe replaces the label, e.g. with the build being traced.
func (t *Tracker) Describe(label string) {
	t.label = label
	t.bar.Describe(label)
}

// FinishSuccess clears the bar.
func (t *Tracker) FinishSuccess() {
	t.finish()
}

// FinishSkipped clears the bar and reports why the work was skipped.
func (t *Tracker) FinishSkipped(reason string) {
	t.finish()
	fmt.Fprintf(t.out, "  %s skipped (%s)\n", t.label, reason)
}

// FinishError clears the bar and reports err.
func (t *Tracker) FinishError(err error) {
	t.finish()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}

func (t *Tracker) finish() {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}
