package client

import "github.com/coedit/coedit/internal/protocol"

// Callback is the one-way notification surface toward the front end. The
// core calls these methods from the transport's reader goroutine; a UI
// implementation is expected to hand them off to its own event loop.
type Callback interface {
	// LoginAccepted fires once the server admits the session.
	LoginAccepted()

	// LoginRejected fires when the server refuses the session, e.g. the
	// user name is already in use.
	LoginRejected(reason string)

	// ContentReplaced delivers the full new text of the open document,
	// either on open or after another participant's edit.
	ContentReplaced(doc, content string)

	// DocumentClosed reports that a document was deleted. If it is the
	// open document the core has already reset to the no-document state.
	DocumentClosed(doc string)

	// DocumentList delivers the refreshed document list.
	DocumentList(docs []protocol.DocumentInfo)

	// ParticipantList delivers the refreshed participant set of a document.
	ParticipantList(doc string, users []string)

	// OnlineList delivers the refreshed global online-user list.
	OnlineList(users []string)

	// LockGranted reports that the range requested via SelectionChanged is
	// now owned locally.
	LockGranted(start, end int)

	// LockDenied reports that the server refused the requested range.
	LockDenied(start, end int)

	// SelectionBlocked reports that a selection change was refused locally
	// because the range is already foreign-locked; no request was sent.
	SelectionBlocked(start, end int, owner string)

	// ForeignLock marks a range as owned by another participant; edits
	// touching it must be presented read-only.
	ForeignLock(start, end int, owner string)

	// LockCleared removes lock presentation from a range, either foreign
	// or an own lock lost to idle eviction.
	LockCleared(start, end int)

	// OperationRejected reports a structured server rejection (create,
	// select, edit, save, delete).
	OperationRejected(event protocol.EventType, name, reason string)
}

// NopCallback discards every notification. Useful for tests and for
// embedding when only part of the surface matters.
type NopCallback struct{}

func (NopCallback) LoginAccepted() {}

func (NopCallback) LoginRejected(string) {}

func (NopCallback) ContentReplaced(string, string) {}

func (NopCallback) DocumentClosed(string) {}

func (NopCallback) DocumentList([]protocol.DocumentInfo) {}

func (NopCallback) ParticipantList(string, []string) {}

func (NopCallback) OnlineList([]string) {}

func (NopCallback) LockGranted(int, int) {}

func (NopCallback) LockDenied(int, int) {}

func (NopCallback) SelectionBlocked(int, int, string) {}

func (NopCallback) ForeignLock(int, int, string) {}

func (NopCallback) LockCleared(int, int) {}

func (NopCallback) OperationRejected(protocol.EventType, string, string) {}
