// Package lock implements the per-document line-range lock table.
//
// The table maintains, for each document, a set of owned, non-overlapping,
// coalesced line intervals. Acquisition is first-come-first-served and never
// blocks: a range that overlaps a foreign interval is rejected immediately.
// Same-owner intervals are merged on insert and split on partial release, so
// the table holds one entry per contiguous owned run rather than one per
// line.
//
// A background evictor force-releases intervals that have not been touched
// within the idle window. Eviction is a liveness mechanism for locks
// abandoned by disconnected or inattentive clients; correctness relies only
// on the overlap check in Acquire.
//
// All operations on one document are serialized by a per-document mutex, so
// concurrent acquires for the same range cannot both succeed, while
// unrelated documents never contend.
package lock
