package client

import (
	"sync"
	"testing"

	"github.com/coedit/coedit/internal/errors"
	"github.com/coedit/coedit/internal/protocol"
)

// appCallback extends captureCallback with the document-level surface.
type appCallback struct {
	captureCallback
	mu       sync.Mutex
	content  []string
	closed   []string
	docLists int
}

func (c *appCallback) ContentReplaced(doc, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = append(c.content, content)
}

func (c *appCallback) DocumentClosed(doc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, doc)
}

func (c *appCallback) DocumentList(docs []protocol.DocumentInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docLists++
}

func newTestClient(t *testing.T) (*Client, *captureSender, *appCallback) {
	t.Helper()
	sender := &captureSender{}
	cb := &appCallback{}
	c := New("alice", sender, cb, nil)
	t.Cleanup(c.Close)
	return c, sender, cb
}

// open drives the client through a full create round trip.
func open(t *testing.T, c *Client, sender *captureSender, name string) {
	t.Helper()
	if err := c.Create(name); err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	c.HandleMessage(protocol.NewDocContent(name, ""))
	sender.clear()
}

// grant acquires [start,end] for the client.
func grant(t *testing.T, c *Client, sender *captureSender, start, end int) {
	t.Helper()
	c.SelectionChanged(start, end)
	reqs := sender.ofType(protocol.EventLockLineReq)
	if len(reqs) == 0 {
		t.Fatal("no lock request sent")
	}
	c.HandleMessage(ackFor(reqs[len(reqs)-1], true))
	sender.clear()
}

func TestCreateBindsDocumentOnContentPush(t *testing.T) {
	c, sender, cb := newTestClient(t)

	if err := c.Create("notes"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := sender.ofType(protocol.EventCreateDoc); len(got) != 1 {
		t.Fatalf("CREATE_DOC sent = %d, want 1", len(got))
	}
	if c.CurrentDoc() != "" {
		t.Error("document bound before server confirmed")
	}

	c.HandleMessage(protocol.NewDocContent("notes", ""))

	if c.CurrentDoc() != "notes" {
		t.Errorf("CurrentDoc() = %q, want notes", c.CurrentDoc())
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if len(cb.content) != 1 {
		t.Errorf("ContentReplaced calls = %d, want 1", len(cb.content))
	}
}

func TestContentPushForUnknownDocumentIgnored(t *testing.T) {
	c, sender, cb := newTestClient(t)
	open(t, c, sender, "notes")

	c.HandleMessage(protocol.NewDocContent("other", "text"))

	if c.Content() != "" {
		t.Errorf("Content() = %q, want untouched", c.Content())
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if len(cb.content) != 1 {
		t.Errorf("ContentReplaced calls = %d, want only the open round trip", len(cb.content))
	}
}

func TestRelayedEditReplacesLocalContent(t *testing.T) {
	c, sender, _ := newTestClient(t)
	open(t, c, sender, "notes")

	c.HandleMessage(protocol.NewDocContent("notes", "bob's edit"))

	if c.Content() != "bob's edit" {
		t.Errorf("Content() = %q, want relayed text", c.Content())
	}
}

func TestEditGatedOnOwnedRange(t *testing.T) {
	c, sender, _ := newTestClient(t)
	open(t, c, sender, "notes")

	err := c.Edit("new text", 1, 1)
	if !errors.Is(err, errors.ErrNotOwner) {
		t.Fatalf("ungated Edit() error = %v, want ErrNotOwner", err)
	}
	if got := sender.ofType(protocol.EventEditDoc); len(got) != 0 {
		t.Errorf("EDIT_DOC sent without ownership = %d, want 0", len(got))
	}

	grant(t, c, sender, 1, 2)

	if err := c.Edit("new text", 1, 1); err != nil {
		t.Fatalf("owned Edit() error = %v", err)
	}
	edits := sender.ofType(protocol.EventEditDoc)
	if len(edits) != 1 {
		t.Fatalf("EDIT_DOC sent = %d, want 1", len(edits))
	}
	if got := edits[0].Fields.String(protocol.FieldContent); got != "new text" {
		t.Errorf("edit content = %q, want full replacement", got)
	}
	if c.Content() != "new text" {
		t.Errorf("Content() = %q, want local cache updated", c.Content())
	}

	// Lines outside the owned range stay gated.
	if err := c.Edit("more", 3, 3); !errors.Is(err, errors.ErrNotOwner) {
		t.Errorf("out-of-range Edit() error = %v, want ErrNotOwner", err)
	}
}

func TestEditRequiresOpenDocument(t *testing.T) {
	c, _, _ := newTestClient(t)

	if err := c.Edit("text", 1, 1); !errors.Is(err, errors.ErrNoOpenDocument) {
		t.Errorf("Edit() error = %v, want ErrNoOpenDocument", err)
	}
	if err := c.Save(); !errors.Is(err, errors.ErrNoOpenDocument) {
		t.Errorf("Save() error = %v, want ErrNoOpenDocument", err)
	}
}

func TestDocClosedResetsOpenDocument(t *testing.T) {
	c, sender, cb := newTestClient(t)
	open(t, c, sender, "notes")
	grant(t, c, sender, 1, 2)

	c.HandleMessage(protocol.NewDocClosed("notes"))

	if c.CurrentDoc() != "" {
		t.Errorf("CurrentDoc() = %q, want neutral state", c.CurrentDoc())
	}
	if c.Content() != "" {
		t.Errorf("Content() = %q, want cleared", c.Content())
	}
	if c.CanEdit(1, 2) {
		t.Error("CanEdit = true after document closed")
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if len(cb.closed) != 1 || cb.closed[0] != "notes" {
		t.Errorf("DocumentClosed calls = %v, want [notes]", cb.closed)
	}
}

func TestDocClosedForOtherDocumentIsInformational(t *testing.T) {
	c, sender, cb := newTestClient(t)
	open(t, c, sender, "notes")

	c.HandleMessage(protocol.NewDocClosed("other"))

	if c.CurrentDoc() != "notes" {
		t.Errorf("CurrentDoc() = %q, want notes untouched", c.CurrentDoc())
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if len(cb.closed) != 1 || cb.closed[0] != "other" {
		t.Errorf("DocumentClosed calls = %v, want [other]", cb.closed)
	}
}

func TestSwitchResetsLockState(t *testing.T) {
	c, sender, _ := newTestClient(t)
	open(t, c, sender, "first")
	c.HandleMessage(protocol.NewLockLineNotify("first", 5, 9, "bob"))
	grant(t, c, sender, 1, 2)

	if err := c.Select("second"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	c.HandleMessage(protocol.NewDocContent("second", "other text"))

	if c.CurrentDoc() != "second" {
		t.Errorf("CurrentDoc() = %q, want second", c.CurrentDoc())
	}
	if c.CanEdit(1, 2) {
		t.Error("ownership from the previous document survived the switch")
	}
	c.SelectionChanged(5, 9)
	if got := sender.ofType(protocol.EventLockLineReq); len(got) == 0 {
		t.Error("foreign cache from the previous document blocked a request")
	}
}

func TestListReplyCached(t *testing.T) {
	c, _, cb := newTestClient(t)

	docs := []protocol.DocumentInfo{{Name: "a"}, {Name: "b"}}
	c.HandleMessage(protocol.NewListReply(docs))

	got := c.Documents()
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("Documents() = %v, want cached list", got)
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.docLists != 1 {
		t.Errorf("DocumentList calls = %d, want 1", cb.docLists)
	}
}

func TestRejectionClearsPendingOpen(t *testing.T) {
	c, _, cb := newTestClient(t)

	if err := c.Create("taken"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	c.HandleMessage(protocol.NewRejection(protocol.EventCreateRejected, "taken", "document 'taken' already exists"))

	// A later content push for the rejected name must not bind it.
	c.HandleMessage(protocol.NewDocContent("taken", "someone else's text"))
	if c.CurrentDoc() != "" {
		t.Errorf("CurrentDoc() = %q, want none after rejection", c.CurrentDoc())
	}

	cb.captureCallback.mu.Lock()
	defer cb.captureCallback.mu.Unlock()
	if len(cb.rejected) != 1 || cb.rejected[0] != protocol.EventCreateRejected {
		t.Errorf("OperationRejected calls = %v, want [CREATE_REJECTED]", cb.rejected)
	}
}

func TestLockTrafficRoutedToReconciler(t *testing.T) {
	c, sender, cb := newTestClient(t)
	open(t, c, sender, "notes")

	c.HandleMessage(protocol.NewLockLineNotify("notes", 5, 9, "bob"))

	c.SelectionChanged(6, 6)
	_, _, blocked, _, foreign := cb.counts()
	if foreign != 1 || blocked != 1 {
		t.Errorf("foreign=%d blocked=%d, want 1 and 1", foreign, blocked)
	}
}
