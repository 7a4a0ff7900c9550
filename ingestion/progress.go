package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress prints a running tally of an ingestion or reembed run. Object
// progress gets one line per finished object; entry progress redraws a
// single line every interval entries.
type Progress struct {
	mu       sync.Mutex
	w        io.Writer
	unit     string
	total    int
	interval int
	done     int
	reported int
	stats    Stats
	start    time.Time
	now      func() time.Time
}

// NewObjectProgress reports after every ingested object.
func NewObjectProgress(w io.Writer, objects int) *Progress {
	return newProgress(w, "objects", objects, 1)
}

// NewEntryProgress reports every interval re-embedded entries.
func NewEntryProgress(w io.Writer, entries, interval int) *Progress {
	return newProgress(w, "entries", entries, max(interval, 1))
}

func newProgress(w io.Writer, unit string, total, interval int) *Progress {
	p := &Progress{
		w:        w,
		unit:     unit,
		total:    total,
		interval: interval,
		now:      time.Now,
	}
	p.start = p.now()
	return p
}

// ObjectDone records a finished object and the stats of its stream.
func (p *Progress) ObjectDone(name string, s Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.stats.add(s)
	fmt.Fprintf(p.w, "[%d/%d] %s: %d records (%d skipped), %d chunks, %d flushes\n",
		p.done, p.total, name, s.Records, s.SkippedRecords, s.Chunks, s.Flushes)
}

// EntriesDone records n re-embedded entries written back as one batch.
func (p *Progress) EntriesDone(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = min(p.done+n, p.total)
	p.stats.Chunks += n
	p.stats.Flushes++
	if p.done-p.reported >= p.interval {
		p.redraw()
		p.reported = p.done
	}
}

// Finish prints the closing line and returns the accumulated totals.
func (p *Progress) Finish() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unit == "entries" {
		p.redraw()
		fmt.Fprintln(p.w)
		return p.stats
	}

	s := p.stats
	fmt.Fprintf(p.w, "Ingested %d/%d objects: %d records (%d skipped), %d chunks in %d flushes (%v)\n",
		p.done, p.total, s.Records, s.SkippedRecords, s.Chunks, s.Flushes, p.elapsed().Round(time.Millisecond))
	return s
}

// Elapsed returns the time since the tracker was created.
func (p *Progress) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elapsed()
}

func (p *Progress) elapsed() time.Duration {
	return p.now().Sub(p.start)
}

// redraw must be called with the lock held.
func (p *Progress) redraw() {
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.done) / float64(p.total) * 100.0
	}
	rate := 0.0
	if elapsed := p.elapsed().Seconds(); elapsed > 0 {
		rate = float64(p.done) / elapsed
	}
	fmt.Fprintf(p.w, "\rProgress: %d/%d %s (%.1f%%) - %.1f %s/s",
		p.done, p.total, p.unit, percentage, rate, p.unit)
}
