// Package console displays the progress of an acquisition for a human operator:
// a spinner while the products are classified, a countdown while waiting for the archive
// and one line per round and per download batch.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// Reporter implements acquisition.Reporter on a terminal
type Reporter struct {
	w        io.Writer
	interval time.Duration
	now      func() time.Time

	// mu serializes the reports, wmu the writes
	mu   sync.Mutex
	wmu  sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
	// frame of the current animation, nil if none
	frame func(i int) string
}

// Option of the Reporter
type Option func(r *Reporter)

// WithRefreshInterval sets the refresh interval of the animations
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Reporter) { r.interval = d }
}

// New creates a Reporter writing to w
func New(w io.Writer, options ...Option) *Reporter {
	r := &Reporter{w: w, interval: 200 * time.Millisecond, now: time.Now}
	for _, o := range options {
		o(r)
	}
	return r
}

// Report implements acquisition.Reporter
func (r *Reporter) Report(ctx context.Context, e common.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case common.EventQueried:
		r.println("%d product(s) found", len(e.Products))
	case common.EventClassifying:
		n := len(e.Products)
		r.animate(func(i int) string {
			return fmt.Sprintf("%s checking the availability of %d product(s)", spinnerFrames[i%len(spinnerFrames)], n)
		})
	case common.EventClassified:
		r.println("%d product(s) online, %d product(s) offline", e.Online, e.Offline)
	case common.EventRoundStarted:
		r.println("round %d: requesting %d offline product(s)", e.Round, e.Offline)
	case common.EventRoundFinished:
		r.println("round %d: %d product(s) accepted, %d declined", e.Round, e.Accepted, e.Declined)
	case common.EventWaiting:
		deadline := r.now().Add(time.Duration(e.Wait))
		r.animate(func(int) string {
			remaining := deadline.Sub(r.now()).Round(time.Second)
			if remaining < 0 {
				remaining = 0
			}
			return fmt.Sprintf("waiting for the archive: %v", remaining)
		})
	// The downloads run in background: their lines are printed above the current animation
	case common.EventDownloadStarted:
		r.printAbove("downloading %d product(s)", len(e.Products))
	case common.EventDownloadFinished:
		r.printAbove("%d product(s) downloaded", len(e.Products))
	case common.EventDownloadFailed:
		r.printAbove("download failed for %d product(s): %s", len(e.Products), e.Error)
	case common.EventStale:
		r.println("%d product(s) offline for too long, not requested anymore", len(e.Products))
	case common.EventDone:
		if e.Status != nil && *e.Status == common.StatusStillOffline {
			r.println("done, %d product(s) still offline: %s", len(e.Products), joinIDs(e.Products))
		} else {
			r.println("done")
		}
	case common.EventAborted:
		r.println("aborted during %s: %s", e.Phase, e.Error)
	}
}

// Close stops the animation
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopAnimation()
	r.frame = nil
}

// println ends the animation and writes a line. r.mu must be held.
func (r *Reporter) println(format string, args ...interface{}) {
	r.stopAnimation()
	r.frame = nil
	r.write(fmt.Sprintf(format+"\n", args...))
}

// printAbove writes a line and resumes the current animation below it. r.mu must be held.
func (r *Reporter) printAbove(format string, args ...interface{}) {
	frame := r.frame
	r.stopAnimation()
	r.write(fmt.Sprintf(format+"\n", args...))
	if frame != nil {
		r.animate(frame)
	}
}

// animate replaces the current animation by a new one, refreshed every interval. r.mu must be held.
func (r *Reporter) animate(frame func(i int) string) {
	r.stopAnimation()
	r.frame = frame
	stop := make(chan struct{})
	r.stop = stop
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		width := 0
		for i := 0; ; i++ {
			line := frame(i)
			if len(line) < width {
				line += strings.Repeat(" ", width-len(line))
			}
			width = len(line)
			r.write("\r" + line)
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// stopAnimation stops the running animation and clears its line. r.mu must be held.
func (r *Reporter) stopAnimation() {
	if r.stop == nil {
		return
	}
	close(r.stop)
	r.stop = nil
	r.wg.Wait()
	r.write("\r\033[K")
}

func (r *Reporter) write(s string) {
	r.wmu.Lock()
	defer r.wmu.Unlock()
	io.WriteString(r.w, s)
}

func joinIDs(ids []common.ProductID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ", ")
}
