// Package spinner renders a terminal activity indicator for the discovery
// phase. Nix evaluation can take minutes on a cold store, so once a run
// stops being instant the spinner appends an elapsed-time counter.
package spinner

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	interval = 100 * time.Millisecond

	// showElapsedAfter is how long a run must last before the elapsed
	// counter appears. Warm-store evaluations finish well under this.
	showElapsedAfter = 2 * time.Second
)

var frames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Spinner animates a single status line on a terminal writer.
type Spinner struct {
	w       io.Writer
	message string

	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start begins animating message on w and returns the running spinner.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.loop()
	return s
}

// Stop halts the animation and clears the status line. Safe to call more
// than once; it returns after the line has been cleared.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.cleared
}

func (s *Spinner) loop() {
	started := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.done:
			fmt.Fprint(s.w, "\r\x1b[K") //nolint:errcheck
			close(s.cleared)
			return
		case <-ticker.C:
			line := fmt.Sprintf("%c %s", frames[i%len(frames)], s.message)
			if elapsed := time.Since(started); elapsed >= showElapsedAfter {
				line += fmt.Sprintf(" (%ds)", int(elapsed.Seconds()))
			}
			fmt.Fprintf(s.w, "\r\x1b[K%s", line) //nolint:errcheck
		}
	}
}
