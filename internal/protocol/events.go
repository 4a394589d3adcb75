package protocol

import (
	"encoding/json"
	"strings"
	"time"
)

// DocumentInfo is one entry of a LIST_REPLY payload.
type DocumentInfo struct {
	Name           string    `json:"name"`
	CreatorID      string    `json:"creatorId"`
	LastEditorID   string    `json:"lastEditorId"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
	ActiveUsers    []string  `json:"activeUsers"`
}

// NewCreateDoc builds a CREATE_DOC request for the named document.
func NewCreateDoc(name string) Message {
	return NewMessage(EventCreateDoc, Fields{FieldName: name})
}

// NewSelectDoc builds a SELECT_DOC request for the named document.
func NewSelectDoc(name string) Message {
	return NewMessage(EventSelectDoc, Fields{FieldName: name})
}

// NewEditDoc builds an EDIT_DOC request carrying the full replacement content.
func NewEditDoc(content string) Message {
	return NewMessage(EventEditDoc, Fields{FieldContent: content})
}

// NewSaveDoc builds a SAVE_DOC request for the sender's open document.
func NewSaveDoc() Message {
	return NewMessage(EventSaveDoc, nil)
}

// NewDeleteDoc builds a DELETE_DOC request for the named document.
func NewDeleteDoc(name string) Message {
	return NewMessage(EventDeleteDoc, Fields{FieldName: name})
}

// NewListDocs builds a LIST_DOCS request.
func NewListDocs() Message {
	return NewMessage(EventListDocs, nil)
}

// NewDocContent builds a DOC_CONTENT push with the document's full text.
func NewDocContent(name, content string) Message {
	return NewMessage(EventDocContent, Fields{
		FieldName:    name,
		FieldContent: content,
	})
}

// NewDocClosed builds a DOC_CLOSED notice for a deleted document.
func NewDocClosed(name string) Message {
	return NewMessage(EventDocClosed, Fields{FieldName: name})
}

// NewListReply builds a LIST_REPLY carrying the document list as JSON.
func NewListReply(docs []DocumentInfo) Message {
	data, err := json.Marshal(docs)
	if err != nil {
		// []DocumentInfo cannot fail to marshal; keep the event well-formed
		// regardless.
		data = []byte("[]")
	}
	return NewMessage(EventListReply, Fields{FieldDocs: string(data)})
}

// ParseListReply decodes the document list from a LIST_REPLY message.
func ParseListReply(m Message) ([]DocumentInfo, error) {
	var docs []DocumentInfo
	if err := json.Unmarshal([]byte(m.Fields.String(FieldDocs)), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// NewUserList builds a USER_LIST event for one document's participants.
func NewUserList(doc string, users []string) Message {
	return NewMessage(EventUserList, Fields{
		FieldDoc:   doc,
		FieldUsers: JoinUsers(users),
	})
}

// NewOnlineList builds an ONLINE_LIST event with the global online set.
func NewOnlineList(users []string) Message {
	return NewMessage(EventOnlineList, Fields{FieldUsers: JoinUsers(users)})
}

// NewLoginAccepted builds a LOGIN_ACCEPTED acknowledgement.
func NewLoginAccepted() Message {
	return NewMessage(EventLoginAccepted, nil)
}

// NewLoginRejectedDuplicate builds a duplicate-login rejection.
func NewLoginRejectedDuplicate() Message {
	return NewMessage(EventLoginRejectedDuplicate, nil)
}

// NewLockLineReq builds a lock request for the closed line range
// [start, end] of doc. seq is the requester's monotonically increasing
// request sequence number; the server echoes it in the ACK.
func NewLockLineReq(doc string, start, end, seq int) Message {
	f := Fields{FieldDoc: doc}
	f.SetInt(FieldStartLine, start)
	f.SetInt(FieldEndLine, end)
	f.SetInt(FieldSeq, seq)
	return NewMessage(EventLockLineReq, f)
}

// NewLockLineAck builds the answer to a lock request.
func NewLockLineAck(doc string, start, end int, ok bool, seq int) Message {
	f := Fields{FieldDoc: doc}
	f.SetInt(FieldStartLine, start)
	f.SetInt(FieldEndLine, end)
	f.SetBool(FieldOK, ok)
	f.SetInt(FieldSeq, seq)
	return NewMessage(EventLockLineAck, f)
}

// NewLockLineRelease builds a release request for an owned range.
func NewLockLineRelease(doc string, start, end int) Message {
	f := Fields{FieldDoc: doc}
	f.SetInt(FieldStartLine, start)
	f.SetInt(FieldEndLine, end)
	return NewMessage(EventLockLineRelease, f)
}

// NewLockLineNotify builds a lock state broadcast. An empty owner means the
// range was released.
func NewLockLineNotify(doc string, start, end int, owner string) Message {
	f := Fields{FieldDoc: doc, FieldOwner: owner}
	f.SetInt(FieldStartLine, start)
	f.SetInt(FieldEndLine, end)
	return NewMessage(EventLockLineNotify, f)
}

// NewRejection builds one of the rejection events with a reason field.
func NewRejection(t EventType, name, reason string) Message {
	return NewMessage(t, Fields{FieldName: name, FieldReason: reason})
}

// JoinUsers encodes a user list into the comma-separated wire form.
func JoinUsers(users []string) string {
	return strings.Join(users, ",")
}

// SplitUsers decodes the comma-separated wire form of a user list.
// An empty field decodes to an empty list, not [""].
func SplitUsers(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
