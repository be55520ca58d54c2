package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"

	"media-toolbox/internal/progress"
)

const (
	defaultBarWidth = 30
	statusWidth     = 28
)

// reporter renders tracker updates: a redrawn bar on a terminal, one line per
// status change otherwise.
type reporter struct {
	w     io.Writer
	tty   bool
	width int
}

func newReporter(w io.Writer) *reporter {
	r := &reporter{w: w, width: defaultBarWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.tty = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			// Room for brackets, percentage and status
			r.width = max(10, min(defaultBarWidth, cols-statusWidth-10))
		}
	}
	return r
}

// watch renders t until it is closed. The returned function waits for the
// last update to be drawn.
func (r *reporter) watch(t *progress.Tracker) func() {
	updates, unsubscribe := t.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		var last string
		drawn := false
		for snap := range updates {
			if r.tty {
				fmt.Fprintf(r.w, "\r%s %3.0f%% %-*s", renderBar(r.width, snap.Percent), snap.Percent, statusWidth, truncate(snap.Status, statusWidth))
				drawn = true
				continue
			}
			if snap.Status != "" && snap.Status != last {
				fmt.Fprintf(r.w, "[%3.0f%%] %s\n", snap.Percent, snap.Status)
				last = snap.Status
			}
		}
		if drawn {
			fmt.Fprintln(r.w)
		}
	}()

	return func() {
		<-done
		unsubscribe()
	}
}

// renderBar draws percent as a bar of width cells.
func renderBar(width int, percent float64) string {
	if width <= 0 {
		return "[]"
	}
	filled := int(math.Round(percent / 100 * float64(width)))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
