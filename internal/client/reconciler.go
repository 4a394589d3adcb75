package client

import (
	"sync"
	"time"

	"github.com/coedit/coedit/internal/lock"
	"github.com/coedit/coedit/internal/protocol"
)

// Sender delivers a message to the server. *ws.Conn satisfies it.
type Sender interface {
	Send(msg protocol.Message) error
}

// Reconciler is the per-client lock state machine. It tracks one owned
// range, the set of foreign-locked ranges, and at most one outstanding
// lock request, and keeps that local view consistent with server
// acknowledgements and notifications.
type Reconciler struct {
	user       string
	sender     Sender
	cb         Callback
	idleWindow time.Duration

	mu      sync.Mutex
	doc     string
	foreign []lock.Range
	owned   *lock.Range

	// pendingSeq is the sequence number of the last outstanding request,
	// 0 when none is in flight. The server echoes it in the ACK; any other
	// value marks the ACK as stale.
	pendingSeq int
	nextSeq    int

	idleTimer *time.Timer
}

// NewReconciler creates a Reconciler for the given user identity. The
// idle window should match the server's eviction window; the local timer
// narrows the race between client-perceived and server-perceived idleness,
// the server sweep remains the backstop.
func NewReconciler(user string, sender Sender, cb Callback, idleWindow time.Duration) *Reconciler {
	if cb == nil {
		cb = NopCallback{}
	}
	if idleWindow <= 0 {
		idleWindow = lock.DefaultIdleWindow
	}
	return &Reconciler{
		user:       user,
		sender:     sender,
		cb:         cb,
		idleWindow: idleWindow,
	}
}

// Reset clears all lock state and binds the machine to a new document.
// Server-side cleanup of the previous document's locks happens through
// the switch itself; nothing is sent here.
func (r *Reconciler) Reset(doc string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc = doc
	r.foreign = nil
	r.owned = nil
	r.pendingSeq = 0
	r.stopTimerLocked()
}

// Stop halts the idle timer. The Reconciler is unusable afterwards.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked()
}

// SelectionChanged maps a caret/selection movement to the locking
// protocol. Ranges already known to be foreign-locked are refused locally
// without a round trip.
func (r *Reconciler) SelectionChanged(start, end int) {
	if end < start {
		start, end = end, start
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == "" {
		return
	}

	candidate := lock.NewRange(start, end, r.user)

	if owner := r.foreignOwnerLocked(candidate); owner != "" {
		r.cb.SelectionBlocked(start, end, owner)
		return
	}

	if r.owned != nil && r.owned.Start == start && r.owned.End == end {
		return
	}

	// Release the previous range fire-and-forget; no ACK comes back for a
	// release, the empty-owner NOTIFY is the confirmation.
	if r.owned != nil {
		r.sendLocked(protocol.NewLockLineRelease(r.doc, r.owned.Start, r.owned.End))
		r.owned = nil
	}

	r.nextSeq++
	r.pendingSeq = r.nextSeq
	r.sendLocked(protocol.NewLockLineReq(r.doc, start, end, r.pendingSeq))
}

// HandleAck applies a LOCK_LINE_ACK. A stale positive ACK is answered
// with a proactive release so the orphaned grant does not linger until
// eviction.
func (r *Reconciler) HandleAck(m protocol.Message) {
	doc := m.Fields.String(protocol.FieldDoc)
	start := m.Fields.Int(protocol.FieldStartLine)
	end := m.Fields.Int(protocol.FieldEndLine)
	ok := m.Fields.Bool(protocol.FieldOK)
	seq := m.Fields.Int(protocol.FieldSeq)

	r.mu.Lock()
	defer r.mu.Unlock()
	if doc != r.doc {
		return
	}

	if r.pendingSeq == 0 || seq != r.pendingSeq {
		// Duplicate of an ACK already applied: the grant is the one we
		// hold, nothing to clean up.
		if r.owned != nil && r.owned.Start == start && r.owned.End == end {
			return
		}
		if ok {
			r.sendLocked(protocol.NewLockLineRelease(doc, start, end))
		}
		return
	}

	r.pendingSeq = 0
	if !ok {
		r.cb.LockDenied(start, end)
		return
	}

	granted := lock.NewRange(start, end, r.user)
	r.owned = &granted
	r.resetTimerLocked()
	r.cb.LockGranted(start, end)
}

// HandleNotify applies a LOCK_LINE_NOTIFY. An empty owner clears lock
// presentation on the range, the local identity is a no-op (already
// applied via the ACK), anything else marks the range foreign.
func (r *Reconciler) HandleNotify(m protocol.Message) {
	doc := m.Fields.String(protocol.FieldDoc)
	start := m.Fields.Int(protocol.FieldStartLine)
	end := m.Fields.Int(protocol.FieldEndLine)
	owner := m.Fields.String(protocol.FieldOwner)

	r.mu.Lock()
	defer r.mu.Unlock()
	if doc != r.doc {
		return
	}

	released := lock.NewRange(start, end, owner)

	switch owner {
	case "":
		r.removeForeignLocked(released)
		// An empty-owner notification covering our own range means the
		// server evicted it while we still believed we held it.
		if r.owned != nil && r.owned.Overlaps(released) {
			r.owned = nil
			r.stopTimerLocked()
		}
		r.cb.LockCleared(start, end)

	case r.user:
		// Already applied when the ACK arrived.

	default:
		r.foreign = lock.Coalesce(append(r.foreign, released))
		r.cb.ForeignLock(start, end, owner)
	}
}

// CanEdit reports whether the lines [start, end] lie inside the locally
// owned range. Edit events must pass this gate before being sent.
func (r *Reconciler) CanEdit(start, end int) bool {
	if end < start {
		start, end = end, start
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owned != nil && r.owned.Covers(lock.NewRange(start, end, r.user))
}

// Touch restarts the idle timer. Called on every local edit so an active
// writer is never evicted out from under their own caret.
func (r *Reconciler) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owned != nil {
		r.resetTimerLocked()
	}
}

// Owned returns the currently owned range, if any.
func (r *Reconciler) Owned() (start, end int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owned == nil {
		return 0, 0, false
	}
	return r.owned.Start, r.owned.End, true
}

// ForeignLocks returns the cached foreign-owned ranges.
func (r *Reconciler) ForeignLocks() []lock.Range {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]lock.Range(nil), r.foreign...)
}

// foreignOwnerLocked returns the owner of the first cached foreign range
// overlapping candidate, or "".
func (r *Reconciler) foreignOwnerLocked(candidate lock.Range) string {
	for _, f := range r.foreign {
		if f.Overlaps(candidate) {
			return f.Owner
		}
	}
	return ""
}

// removeForeignLocked subtracts the released range from the foreign
// cache, splitting partially covered entries.
func (r *Reconciler) removeForeignLocked(released lock.Range) {
	var kept []lock.Range
	for _, f := range r.foreign {
		if !f.Overlaps(released) {
			kept = append(kept, f)
			continue
		}
		if f.Start < released.Start {
			kept = append(kept, lock.NewRange(f.Start, released.Start-1, f.Owner))
		}
		if f.End > released.End {
			kept = append(kept, lock.NewRange(released.End+1, f.End, f.Owner))
		}
	}
	r.foreign = kept
}

func (r *Reconciler) resetTimerLocked() {
	r.stopTimerLocked()
	r.idleTimer = time.AfterFunc(r.idleWindow, r.idleExpired)
}

func (r *Reconciler) stopTimerLocked() {
	if r.idleTimer != nil {
		r.idleTimer.Stop()
		r.idleTimer = nil
	}
}

// idleExpired proactively releases an owned range the user has stopped
// touching, ahead of the server's own eviction sweep.
func (r *Reconciler) idleExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owned == nil {
		return
	}
	start, end := r.owned.Start, r.owned.End
	r.sendLocked(protocol.NewLockLineRelease(r.doc, start, end))
	r.owned = nil
	r.idleTimer = nil
	r.cb.LockCleared(start, end)
}

func (r *Reconciler) sendLocked(m protocol.Message) {
	// Send failures surface through the transport's own teardown; the
	// state machine stays optimistic and is corrected by later NOTIFYs.
	_ = r.sender.Send(m)
}
