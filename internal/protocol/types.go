package protocol

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of application event.
type EventType string

// Document lifecycle events.
const (
	// EventCreateDoc requests creation of a new named document.
	EventCreateDoc EventType = "CREATE_DOC"

	// EventSelectDoc requests opening (switching to) a named document.
	EventSelectDoc EventType = "SELECT_DOC"

	// EventEditDoc carries a whole-content replacement of the sender's
	// open document.
	EventEditDoc EventType = "EDIT_DOC"

	// EventSaveDoc requests persisting the sender's open document.
	EventSaveDoc EventType = "SAVE_DOC"

	// EventDeleteDoc requests deletion of a named document.
	EventDeleteDoc EventType = "DELETE_DOC"

	// EventListDocs requests the current document list.
	EventListDocs EventType = "LIST_DOCS"

	// EventDocContent pushes the full content of a document to a client.
	EventDocContent EventType = "DOC_CONTENT"

	// EventDocClosed notifies a client that a document was deleted.
	EventDocClosed EventType = "DOC_CLOSED"

	// EventListReply carries the document list as a JSON array.
	EventListReply EventType = "LIST_REPLY"
)

// Presence events.
const (
	// EventUserList carries the participant list of one document.
	EventUserList EventType = "USER_LIST"

	// EventOnlineList carries the global online-user list.
	EventOnlineList EventType = "ONLINE_LIST"

	// EventLoginAccepted acknowledges a successful login.
	EventLoginAccepted EventType = "LOGIN_ACCEPTED"

	// EventLoginRejectedDuplicate rejects a second login under an in-use identity.
	EventLoginRejectedDuplicate EventType = "LOGIN_REJECTED_DUPLICATE"
)

// Line-locking protocol events.
const (
	// EventLockLineReq requests an exclusive lock on a line range.
	EventLockLineReq EventType = "LOCK_LINE_REQ"

	// EventLockLineAck answers a lock request with an ok flag.
	EventLockLineAck EventType = "LOCK_LINE_ACK"

	// EventLockLineRelease releases a previously acquired range.
	EventLockLineRelease EventType = "LOCK_LINE_RELEASE"

	// EventLockLineNotify broadcasts a lock state change. An empty owner
	// field means the range was released.
	EventLockLineNotify EventType = "LOCK_LINE_NOTIFY"
)

// Rejection events. Each carries a "reason" field.
const (
	// EventCreateRejected reports a failed CREATE_DOC (capacity, collision).
	EventCreateRejected EventType = "CREATE_REJECTED"

	// EventSelectRejected reports a failed SELECT_DOC.
	EventSelectRejected EventType = "SELECT_REJECTED"

	// EventEditRejected reports an edit touching foreign-locked lines.
	EventEditRejected EventType = "EDIT_REJECTED"

	// EventSaveFailed reports a persistence failure on save.
	EventSaveFailed EventType = "SAVE_FAILED"

	// EventDeleteFailed reports a failed DELETE_DOC.
	EventDeleteFailed EventType = "DELETE_FAILED"
)

// Well-known field names.
const (
	FieldName      = "name"
	FieldDoc       = "doc"
	FieldContent   = "content"
	FieldStartLine = "startLine"
	FieldEndLine   = "endLine"
	FieldOwner     = "owner"
	FieldOK        = "ok"
	FieldSeq       = "seq"
	FieldUsers     = "users"
	FieldDocs      = "docs"
	FieldReason    = "reason"
)

// Broadcast is the special "to" value for messages intended for every
// connected peer. The core never relies on native multicast; a broadcast is
// expanded into one send per recipient by the caller.
const Broadcast = "broadcast"

// Fields is the flat field set of a message. All values are strings;
// integer fields are encoded in decimal.
type Fields map[string]string

// String returns the named field, or "" if absent.
func (f Fields) String(key string) string {
	return f[key]
}

// Int returns the named field parsed as an integer, or 0 if absent or
// malformed.
func (f Fields) Int(key string) int {
	n, err := strconv.Atoi(f[key])
	if err != nil {
		return 0
	}
	return n
}

// Bool returns true if the named field is "1".
func (f Fields) Bool(key string) bool {
	return f[key] == "1"
}

// SetInt stores an integer field in decimal.
func (f Fields) SetInt(key string, v int) {
	f[key] = strconv.Itoa(v)
}

// SetBool stores a boolean field as "1" or "0".
func (f Fields) SetBool(key string, v bool) {
	if v {
		f[key] = "1"
	} else {
		f[key] = "0"
	}
}

// Message is the wire envelope for one application event.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      EventType `json:"type"`
	Fields    Fields    `json:"fields,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a Message of the given type with a fresh ID and
// timestamp. From and To are filled in by the transport or the caller.
func NewMessage(t EventType, fields Fields) Message {
	if fields == nil {
		fields = Fields{}
	}
	return Message{
		ID:        uuid.NewString(),
		Type:      t,
		Fields:    fields,
		Timestamp: time.Now(),
	}
}

// IsBroadcast returns true if the message is addressed to all peers.
func (m Message) IsBroadcast() bool {
	return m.To == Broadcast
}

// validEventTypes is the closed set of known events.
var validEventTypes = map[EventType]bool{
	EventCreateDoc:              true,
	EventSelectDoc:              true,
	EventEditDoc:                true,
	EventSaveDoc:                true,
	EventDeleteDoc:              true,
	EventListDocs:               true,
	EventDocContent:             true,
	EventDocClosed:              true,
	EventListReply:              true,
	EventUserList:               true,
	EventOnlineList:             true,
	EventLoginAccepted:          true,
	EventLoginRejectedDuplicate: true,
	EventLockLineReq:            true,
	EventLockLineAck:            true,
	EventLockLineRelease:        true,
	EventLockLineNotify:         true,
	EventCreateRejected:         true,
	EventSelectRejected:         true,
	EventEditRejected:           true,
	EventSaveFailed:             true,
	EventDeleteFailed:           true,
}

// ValidEventType returns true if t is a known event type.
func ValidEventType(t EventType) bool {
	return validEventTypes[t]
}
