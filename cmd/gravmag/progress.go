package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const progressWidth = 40

// progressBar draws a single updating line. Update is safe for concurrent
// use.
type progressBar struct {
	mu        sync.Mutex
	w         io.Writer
	label     string
	startTime time.Time
	last      int
}

// newProgressBar returns nil unless w is a terminal.
func newProgressBar(w io.Writer, label string) *progressBar {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return nil
	}
	return &progressBar{w: w, label: label, startTime: time.Now(), last: -1}
}

// Update redraws the bar. Updates arriving out of order are dropped.
func (p *progressBar) Update(completed, total int) {
	if total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if completed <= p.last {
		return
	}
	p.last = completed

	line := renderProgress(p.label, completed, total, time.Since(p.startTime))
	fmt.Fprint(p.w, "\r"+line)
	if completed >= total {
		fmt.Fprintln(p.w)
	}
}

// renderProgress formats one progress line with elapsed and remaining time.
func renderProgress(label string, completed, total int, elapsed time.Duration) string {
	if completed > total {
		completed = total
	}
	percentage := float64(completed) / float64(total) * 100
	numBars := int(percentage / 100 * progressWidth)

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < progressWidth; i++ {
		switch {
		case i < numBars:
			bar.WriteString("█")
		case i == numBars:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	bar.WriteString("]")

	timing := ""
	if completed > 0 {
		timing = fmt.Sprintf(" %.1fs", elapsed.Seconds())
		if completed < total {
			perUnit := elapsed.Seconds() / float64(completed)
			timing += fmt.Sprintf(", %.1fs left", perUnit*float64(total-completed))
		}
	}
	return fmt.Sprintf("%-10s %s %5.1f%% (%d/%d)%s", label, bar.String(), percentage, completed, total, timing)
}
