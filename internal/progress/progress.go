// Package progress draws a terminal spinner while a fixed delay elapses.
package progress

import (
	"context"
	"fmt"
	"io"
	"time"
)

var frames = []string{"|", "/", "-", `\`}

// Spinner redraws a single status line on every tick.
type Spinner struct {
	Out      io.Writer
	Interval time.Duration
}

// Wait blocks for d, redrawing label with the remaining seconds. It
// returns ctx.Err() if ctx is cancelled first. The line is cleared on return.
func (s Spinner) Wait(ctx context.Context, d time.Duration, label string) error {
	if d <= 0 {
		return nil
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	out := s.Out
	if out == nil {
		out = io.Discard
	}

	deadline := time.Now().Add(d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	draw := func(i int) {
		left := time.Until(deadline).Round(time.Second)
		if left < 0 {
			left = 0
		}
		fmt.Fprintf(out, "\r%s %s (%s) ", frames[i%len(frames)], label, left)
	}
	defer fmt.Fprint(out, "\r\033[K")

	draw(0)
	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-ticker.C:
			draw(i)
		}
	}
}

// Wait runs a default Spinner on w.
func Wait(ctx context.Context, w io.Writer, d time.Duration, label string) error {
	return Spinner{Out: w}.Wait(ctx, d, label)
}
