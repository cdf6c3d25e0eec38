package engine

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

// Progress tracks completed invocations against the precomputed total.
// It is driven only by the coordinator goroutine.
type Progress interface {
	Start(total int)
	Add(n int)
	Finish()
}

// Noop discards progress.
type Noop struct{}

func (Noop) Start(int) {}
func (Noop) Add(int)   {}
func (Noop) Finish()   {}

// Bar draws a single-line progress bar.
type Bar struct {
	w     io.Writer
	model progress.Model
	every time.Duration

	total, done int
	last        time.Time
	drawn       bool
}

// NewBar returns a Bar writing to w when w is a terminal, and Noop otherwise.
func NewBar(w io.Writer) Progress {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return Noop{}
	}
	return newBar(w)
}

func newBar(w io.Writer) *Bar {
	return &Bar{
		w:     w,
		model: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		every: 100 * time.Millisecond,
	}
}

// Start implements Progress.
func (b *Bar) Start(total int) {
	b.total = total
	b.done = 0
	b.render()
}

// Add implements Progress. Redraws are throttled unless the bar was erased.
func (b *Bar) Add(n int) {
	b.done += n
	if b.drawn && time.Since(b.last) < b.every && b.done < b.total {
		return
	}
	b.render()
}

// Finish implements Progress.
func (b *Bar) Finish() {
	b.render()
	fmt.Fprintln(b.w)
	b.drawn = false
}

func (b *Bar) render() {
	b.last = time.Now()
	b.drawn = true
	pct := 1.0
	if b.total > 0 {
		pct = float64(b.done) / float64(b.total)
	}
	fmt.Fprintf(b.w, "\r%s %d/%d", b.model.ViewAs(pct), b.done, b.total)
}

// eraseLine returns the cursor to column 0 and clears the line.
const eraseLine = "\r\x1b[K"

// Clearing wraps w, which shares the terminal with the bar, so that output
// written to it never starts on the bar's line. The bar is redrawn on the
// next Add. Like the bar itself it must only be used from the coordinator.
func (b *Bar) Clearing(w io.Writer) io.Writer {
	return &clearingWriter{bar: b, w: w}
}

type clearingWriter struct {
	bar *Bar
	w   io.Writer
}

func (c *clearingWriter) Write(p []byte) (int, error) {
	if c.bar.drawn {
		if _, err := io.WriteString(c.bar.w, eraseLine); err != nil {
			return 0, err
		}
		c.bar.drawn = false
	}
	return c.w.Write(p)
}
