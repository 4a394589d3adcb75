package lock

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by table operations.
var (
	// ErrConflict is returned when a range overlaps an interval held by
	// another owner.
	ErrConflict = errors.New("range overlaps a foreign lock")

	// ErrInvalidRange is returned for a malformed line range.
	ErrInvalidRange = errors.New("invalid line range")
)

// Range is an exclusive claim on a closed line interval [Start, End] of one
// document, held by exactly one owner.
type Range struct {
	Start int
	End   int
	Owner string
}

// NewRange builds a Range, swapping the endpoints if they arrive reversed.
func NewRange(start, end int, owner string) Range {
	if start > end {
		start, end = end, start
	}
	return Range{Start: start, End: end, Owner: owner}
}

// Valid reports whether the range has a sane line interval.
func (r Range) Valid() bool {
	return r.Start >= 0 && r.End >= r.Start
}

// Overlaps reports whether two closed intervals share any line.
func (r Range) Overlaps(o Range) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// Contains reports whether line falls inside the interval.
func (r Range) Contains(line int) bool {
	return r.Start <= line && line <= r.End
}

// Covers reports whether r fully contains o's interval.
func (r Range) Covers(o Range) bool {
	return r.Start <= o.Start && o.End <= r.End
}

// mergeable reports whether o can be coalesced into r: same owner and
// overlapping or directly adjacent intervals.
func (r Range) mergeable(o Range) bool {
	return r.Owner == o.Owner && r.Start <= o.End+1 && o.Start <= r.End+1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]@%s", r.Start, r.End, r.Owner)
}

// Grant describes a successful, state-changing acquisition. An idempotent
// re-acquire of an already-covered range produces no Grant.
type Grant struct {
	Doc   string
	Range Range
}
