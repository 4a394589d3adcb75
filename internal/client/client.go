package client

import (
	"sync"
	"time"

	"github.com/coedit/coedit/internal/errors"
	"github.com/coedit/coedit/internal/logging"
	"github.com/coedit/coedit/internal/protocol"
)

// Client is the editor-side application core: it issues document and lock
// requests, folds server events into its local caches, and reports
// everything outward through the Callback.
type Client struct {
	user   string
	sender Sender
	cb     Callback
	logger *logging.Logger
	locks  *Reconciler

	mu         sync.Mutex
	doc        string
	pendingDoc string
	content    string
	docs       []protocol.DocumentInfo
}

// Option configures a Client.
type Option func(*Client)

// WithIdleWindow overrides the local idle-release window. It should match
// the server's eviction window.
func WithIdleWindow(d time.Duration) Option {
	return func(c *Client) {
		c.locks.idleWindow = d
	}
}

// New creates a Client for the given user identity.
func New(user string, sender Sender, cb Callback, logger *logging.Logger, opts ...Option) *Client {
	if cb == nil {
		cb = NopCallback{}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	c := &Client{
		user:   user,
		sender: sender,
		cb:     cb,
		logger: logger.WithComponent("client").WithUser(user),
	}
	c.locks = NewReconciler(user, sender, cb, 0)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops the idle timer.
func (c *Client) Close() {
	c.locks.Stop()
}

// Create asks the server for a new document and optimistically marks it
// as the pending open document.
func (c *Client) Create(name string) error {
	c.mu.Lock()
	c.pendingDoc = name
	c.mu.Unlock()
	return c.sender.Send(protocol.NewCreateDoc(name))
}

// Select asks the server to open an existing document.
func (c *Client) Select(name string) error {
	c.mu.Lock()
	c.pendingDoc = name
	c.mu.Unlock()
	return c.sender.Send(protocol.NewSelectDoc(name))
}

// Edit replaces the open document's content. The changed lines must lie
// inside the locally owned lock range; otherwise the edit is refused
// without contacting the server.
func (c *Client) Edit(newContent string, startLine, endLine int) error {
	c.mu.Lock()
	if c.doc == "" {
		c.mu.Unlock()
		return errors.ErrNoOpenDocument
	}
	if !c.locks.CanEdit(startLine, endLine) {
		c.mu.Unlock()
		return errors.Wrapf(errors.ErrNotOwner, "lines %d-%d", startLine, endLine)
	}
	c.content = newContent
	c.mu.Unlock()

	c.locks.Touch()
	return c.sender.Send(protocol.NewEditDoc(newContent))
}

// Save asks the server to persist the open document.
func (c *Client) Save() error {
	c.mu.Lock()
	open := c.doc != ""
	c.mu.Unlock()
	if !open {
		return errors.ErrNoOpenDocument
	}
	return c.sender.Send(protocol.NewSaveDoc())
}

// Delete asks the server to remove a document.
func (c *Client) Delete(name string) error {
	return c.sender.Send(protocol.NewDeleteDoc(name))
}

// RefreshList asks the server for the current document list.
func (c *Client) RefreshList() error {
	return c.sender.Send(protocol.NewListDocs())
}

// SelectionChanged forwards a caret/selection movement to the lock state
// machine.
func (c *Client) SelectionChanged(start, end int) {
	c.locks.SelectionChanged(start, end)
}

// CanEdit reports whether the given lines are editable right now.
func (c *Client) CanEdit(start, end int) bool {
	return c.locks.CanEdit(start, end)
}

// CurrentDoc returns the open document's name, or "".
func (c *Client) CurrentDoc() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// Content returns the local copy of the open document's text.
func (c *Client) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// Documents returns the cached document list.
func (c *Client) Documents() []protocol.DocumentInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.DocumentInfo(nil), c.docs...)
}

// HandleMessage folds one server event into local state. Wire it as the
// transport's inbound handler.
func (c *Client) HandleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.EventLoginAccepted:
		c.cb.LoginAccepted()

	case protocol.EventLoginRejectedDuplicate:
		c.cb.LoginRejected("user name already in use")

	case protocol.EventDocContent:
		c.handleContent(msg)

	case protocol.EventDocClosed:
		c.handleClosed(msg)

	case protocol.EventListReply:
		docs, err := protocol.ParseListReply(msg)
		if err != nil {
			c.logger.Warn("malformed document list", "error", err.Error())
			return
		}
		c.mu.Lock()
		c.docs = docs
		c.mu.Unlock()
		c.cb.DocumentList(docs)

	case protocol.EventUserList:
		c.cb.ParticipantList(
			msg.Fields.String(protocol.FieldDoc),
			protocol.SplitUsers(msg.Fields.String(protocol.FieldUsers)))

	case protocol.EventOnlineList:
		c.cb.OnlineList(protocol.SplitUsers(msg.Fields.String(protocol.FieldUsers)))

	case protocol.EventLockLineAck:
		c.locks.HandleAck(msg)

	case protocol.EventLockLineNotify:
		c.locks.HandleNotify(msg)

	case protocol.EventCreateRejected, protocol.EventSelectRejected:
		name := msg.Fields.String(protocol.FieldName)
		c.mu.Lock()
		if c.pendingDoc == name {
			c.pendingDoc = ""
		}
		c.mu.Unlock()
		c.cb.OperationRejected(msg.Type, name, msg.Fields.String(protocol.FieldReason))

	case protocol.EventEditRejected, protocol.EventSaveFailed, protocol.EventDeleteFailed:
		c.cb.OperationRejected(msg.Type,
			msg.Fields.String(protocol.FieldName),
			msg.Fields.String(protocol.FieldReason))

	default:
		c.logger.Warn("unhandled event", "type", string(msg.Type))
	}
}

// handleContent applies a DOC_CONTENT push: either the answer to a
// pending open (bind to the document, reset lock state) or a relay of
// another participant's edit.
func (c *Client) handleContent(msg protocol.Message) {
	name := msg.Fields.String(protocol.FieldName)
	content := msg.Fields.String(protocol.FieldContent)

	c.mu.Lock()
	switch name {
	case c.doc:
		c.content = content
	case c.pendingDoc:
		c.doc = name
		c.pendingDoc = ""
		c.content = content
		c.locks.Reset(name)
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.cb.ContentReplaced(name, content)
}

// handleClosed applies a DOC_CLOSED notice. For the open document the
// client resets to the neutral no-document state; for any other document
// the notice is informational only.
func (c *Client) handleClosed(msg protocol.Message) {
	name := msg.Fields.String(protocol.FieldName)

	c.mu.Lock()
	if c.doc == name {
		c.doc = ""
		c.content = ""
		c.locks.Reset("")
	}
	c.mu.Unlock()

	c.cb.DocumentClosed(name)
}
