package lock

import (
	"sort"
	"sync"
	"time"
)

// DefaultIdleWindow is how long a range may go untouched before the evictor
// force-releases it.
const DefaultIdleWindow = 5 * time.Second

// DefaultSweepInterval is how often the evictor scans for idle ranges.
const DefaultSweepInterval = 5 * time.Second

// ownedRange is a stored interval plus its last-touch timestamp.
type ownedRange struct {
	Range
	lastTouch time.Time
}

// docLocks holds the interval set of one document. The slice is kept sorted
// by Start, coalesced per owner, and globally non-overlapping across owners.
type docLocks struct {
	mu     sync.Mutex
	ranges []ownedRange
}

// Table is the line-range lock table for all documents.
type Table struct {
	mu         sync.RWMutex
	docs       map[string]*docLocks
	idleWindow time.Duration
	now        func() time.Time
}

// Option configures a Table.
type Option func(*Table)

// WithIdleWindow sets the idle window after which untouched ranges are
// evicted. Zero or negative values are ignored.
func WithIdleWindow(d time.Duration) Option {
	return func(t *Table) {
		if d > 0 {
			t.idleWindow = d
		}
	}
}

// withClock overrides the time source. Used by tests to drive eviction
// deterministically.
func withClock(now func() time.Time) Option {
	return func(t *Table) {
		t.now = now
	}
}

// NewTable creates an empty lock table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		docs:       make(map[string]*docLocks),
		idleWindow: DefaultIdleWindow,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// locksFor returns the interval set for doc, creating it if needed.
func (t *Table) locksFor(doc string) *docLocks {
	t.mu.RLock()
	dl, ok := t.docs[doc]
	t.mu.RUnlock()
	if ok {
		return dl
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if dl, ok = t.docs[doc]; ok {
		return dl
	}
	dl = &docLocks{}
	t.docs[doc] = dl
	return dl
}

// Acquire attempts to lock the closed line range [start, end] of doc for
// owner. It returns ErrConflict if any line of the range is held by a
// different owner. A successful acquisition that changes table state returns
// a Grant describing the resulting coalesced interval; re-acquiring a range
// already covered by the owner succeeds with a nil Grant and only refreshes
// the last-touch timestamp.
//
// The overlap check and the insertion are a single critical section per
// document.
func (t *Table) Acquire(doc string, start, end int, owner string) (*Grant, error) {
	r := NewRange(start, end, owner)
	if !r.Valid() || owner == "" {
		return nil, ErrInvalidRange
	}

	dl := t.locksFor(doc)
	dl.mu.Lock()
	defer dl.mu.Unlock()

	for i := range dl.ranges {
		if dl.ranges[i].Owner != owner && dl.ranges[i].Overlaps(r) {
			return nil, ErrConflict
		}
	}

	now := t.now()

	// Idempotent re-acquire: already fully covered by an owned interval.
	for i := range dl.ranges {
		if dl.ranges[i].Owner == owner && dl.ranges[i].Covers(r) {
			dl.ranges[i].lastTouch = now
			return nil, nil
		}
	}

	// Coalesce with adjacent or overlapping owned intervals.
	merged := r
	kept := make([]ownedRange, 0, len(dl.ranges)+1)
	for _, o := range dl.ranges {
		if o.mergeable(merged) {
			if o.Start < merged.Start {
				merged.Start = o.Start
			}
			if o.End > merged.End {
				merged.End = o.End
			}
			continue
		}
		kept = append(kept, o)
	}
	kept = append(kept, ownedRange{Range: merged, lastTouch: now})
	sortRanges(kept)
	dl.ranges = kept

	return &Grant{Doc: doc, Range: merged}, nil
}

// Release removes owner's claim on [start, end] of doc. Releasing a
// sub-range of a larger owned interval splits the remainder. It returns the
// sub-ranges actually released, coalesced into minimal contiguous intervals;
// an empty result means owner held nothing in the range.
func (t *Table) Release(doc string, start, end int, owner string) []Range {
	r := NewRange(start, end, owner)
	if !r.Valid() {
		return nil
	}

	dl := t.locksFor(doc)
	dl.mu.Lock()
	defer dl.mu.Unlock()

	var released []Range
	kept := make([]ownedRange, 0, len(dl.ranges))
	for _, o := range dl.ranges {
		if o.Owner != owner || !o.Overlaps(r) {
			kept = append(kept, o)
			continue
		}

		cut := Range{Start: max(o.Start, r.Start), End: min(o.End, r.End), Owner: owner}
		released = append(released, cut)

		if o.Start < cut.Start {
			kept = append(kept, ownedRange{
				Range:     Range{Start: o.Start, End: cut.Start - 1, Owner: owner},
				lastTouch: o.lastTouch,
			})
		}
		if o.End > cut.End {
			kept = append(kept, ownedRange{
				Range:     Range{Start: cut.End + 1, End: o.End, Owner: owner},
				lastTouch: o.lastTouch,
			})
		}
	}
	sortRanges(kept)
	dl.ranges = kept

	return Coalesce(released)
}

// ReleaseAllOf removes every range owner holds in doc and returns them
// coalesced into minimal contiguous intervals. Used on document switch,
// logout, and disconnect.
func (t *Table) ReleaseAllOf(doc, owner string) []Range {
	dl := t.locksFor(doc)
	dl.mu.Lock()
	defer dl.mu.Unlock()

	var released []Range
	kept := make([]ownedRange, 0, len(dl.ranges))
	for _, o := range dl.ranges {
		if o.Owner == owner {
			released = append(released, o.Range)
			continue
		}
		kept = append(kept, o)
	}
	dl.ranges = kept

	return Coalesce(released)
}

// CurrentLocks returns a sorted copy of doc's interval set. Used to seed a
// newly-joining participant's view.
func (t *Table) CurrentLocks(doc string) []Range {
	dl := t.locksFor(doc)
	dl.mu.Lock()
	defer dl.mu.Unlock()

	out := make([]Range, len(dl.ranges))
	for i, o := range dl.ranges {
		out[i] = o.Range
	}
	return out
}

// Touch refreshes the last-touch timestamp on every range owner holds in
// doc, deferring idle eviction. Called on edit activity.
func (t *Table) Touch(doc, owner string) {
	dl := t.locksFor(doc)
	dl.mu.Lock()
	defer dl.mu.Unlock()

	now := t.now()
	for i := range dl.ranges {
		if dl.ranges[i].Owner == owner {
			dl.ranges[i].lastTouch = now
		}
	}
}

// DropDocument discards the entire interval set of doc. Used when the
// document is deleted; no per-range notifications are produced.
func (t *Table) DropDocument(doc string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.docs, doc)
}

// Sweep performs one eviction pass: every range untouched for at least the
// idle window is removed. It returns the evicted ranges per document,
// coalesced, so the caller can produce exactly one release notification per
// contiguous group.
func (t *Table) Sweep() map[string][]Range {
	t.mu.RLock()
	docs := make(map[string]*docLocks, len(t.docs))
	for name, dl := range t.docs {
		docs[name] = dl
	}
	t.mu.RUnlock()

	now := t.now()
	evicted := make(map[string][]Range)

	for name, dl := range docs {
		dl.mu.Lock()
		var gone []Range
		kept := dl.ranges[:0]
		for _, o := range dl.ranges {
			if now.Sub(o.lastTouch) >= t.idleWindow {
				gone = append(gone, o.Range)
				continue
			}
			kept = append(kept, o)
		}
		dl.ranges = kept
		dl.mu.Unlock()

		if len(gone) > 0 {
			evicted[name] = Coalesce(gone)
		}
	}
	return evicted
}

// StartEvictor runs periodic Sweep passes at the given interval, invoking
// onEvict once per document that had evictions. It returns a stop function
// that halts the evictor and waits for the goroutine to exit.
func (t *Table) StartEvictor(interval time.Duration, onEvict func(doc string, evicted []Range)) (stop func()) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for doc, ranges := range t.Sweep() {
					onEvict(doc, ranges)
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// Coalesce merges overlapping or adjacent same-owner ranges into minimal
// contiguous intervals. The input is not modified.
func Coalesce(ranges []Range) []Range {
	if len(ranges) <= 1 {
		return ranges
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].Owner < sorted[j].Owner
	})

	out := sorted[:1]
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if last.mergeable(r) {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortRanges(ranges []ownedRange) {
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Start < ranges[j].Start
	})
}
