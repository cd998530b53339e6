// Package progress tracks transfer throughput and estimated time remaining
// over a sliding time window.
package progress

import (
	"sync"
	"time"

	tdigest "github.com/caio/go-tdigest"
)

const (
	// window is how far back speed samples are kept.
	window = 3 * time.Second

	// coalesceThreshold drops samples spaced closer together than this;
	// a burst of tiny reads should not flood the sample slice.
	coalesceThreshold = 100 * time.Millisecond
)

type sample struct {
	at    time.Time
	bytes int64
}

// Tracker computes speed and ETA for a transfer from a rolling window of
// (timestamp, bytes-transferred) samples.
type Tracker struct {
	mu sync.Mutex

	total       int64
	transferred int64
	start       time.Time
	samples     []sample
	now         func() time.Time
	digest      *tdigest.TDigest
	digestN     int
}

// NewTracker returns a Tracker for a transfer of the given total size.
func NewTracker(total int64) *Tracker {
	now := time.Now()
	digest, _ := tdigest.New(tdigest.Compression(100))
	t := &Tracker{
		total:  total,
		start:  now,
		now:    time.Now,
		digest: digest,
	}
	t.samples = append(t.samples, sample{at: now, bytes: 0})
	return t
}

// Add records n additional bytes transferred and returns a snapshot.
func (t *Tracker) Add(n int64) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transferred += n
	now := t.now()

	if last := t.samples[len(t.samples)-1]; n > 0 {
		if dt := now.Sub(last.at).Seconds(); dt > 0 {
			if err := t.digest.Add(float64(n) / dt); err == nil {
				t.digestN++
			}
		}
	}

	if len(t.samples) > 1 && now.Sub(t.samples[len(t.samples)-1].at) < coalesceThreshold {
		t.samples[len(t.samples)-1] = sample{at: now, bytes: t.transferred}
	} else {
		t.samples = append(t.samples, sample{at: now, bytes: t.transferred})
	}
	t.evictOld(now)

	return t.snapshotLocked(now)
}

// Snapshot returns the current progress without recording new bytes.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.evictOld(now)
	return t.snapshotLocked(now)
}

func (t *Tracker) evictOld(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(t.samples)-1 && t.samples[i].at.Before(cutoff) {
		i++
	}
	t.samples = t.samples[i:]
}

func (t *Tracker) snapshotLocked(now time.Time) Snapshot {
	oldest := t.samples[0]
	dt := now.Sub(oldest.at).Seconds()
	dbytes := t.transferred - oldest.bytes

	var speed float64
	if dt > 0 {
		speed = float64(dbytes) / dt
	}

	var eta time.Duration
	remaining := t.total - t.transferred
	if speed > 0 && remaining > 0 {
		eta = time.Duration(float64(remaining) / speed * float64(time.Second))
	}

	var medianSpeed float64
	if t.digestN > 0 {
		medianSpeed = t.digest.Quantile(0.5)
	}

	return Snapshot{
		Total:       t.total,
		Transferred: t.transferred,
		Speed:       speed,
		MedianSpeed: medianSpeed,
		ETA:         eta,
		Elapsed:     now.Sub(t.start),
	}
}

// Snapshot is a point-in-time progress reading.
type Snapshot struct {
	Total       int64
	Transferred int64
	Speed       float64 // bytes per second, windowed average
	MedianSpeed float64 // bytes per second, p50 of all chunk-write rates seen so far
	ETA         time.Duration
	Elapsed     time.Duration
}

// Percent returns the completion fraction in [0, 100].
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	pct := float64(s.Transferred) / float64(s.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
