package protocol

import (
	"testing"
	"time"
)

func TestLockEventConstructors(t *testing.T) {
	req := NewLockLineReq("notes", 2, 4, 3)
	if req.Type != EventLockLineReq {
		t.Errorf("req type = %q", req.Type)
	}
	if req.Fields.String(FieldDoc) != "notes" ||
		req.Fields.Int(FieldStartLine) != 2 ||
		req.Fields.Int(FieldEndLine) != 4 ||
		req.Fields.Int(FieldSeq) != 3 {
		t.Errorf("req fields = %+v", req.Fields)
	}

	ack := NewLockLineAck("notes", 2, 4, false, 3)
	if ack.Fields.Bool(FieldOK) {
		t.Error("ack ok should be false")
	}
	if ack.Fields.Int(FieldSeq) != 3 {
		t.Errorf("ack seq = %d, want 3", ack.Fields.Int(FieldSeq))
	}

	rel := NewLockLineNotify("notes", 2, 4, "")
	if rel.Fields.String(FieldOwner) != "" {
		t.Error("release notify should carry empty owner")
	}
}

func TestListReplyRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	docs := []DocumentInfo{
		{
			Name:           "notes",
			CreatorID:      "alice",
			LastEditorID:   "bob",
			CreatedAt:      now,
			LastModifiedAt: now,
			ActiveUsers:    []string{"alice", "bob"},
		},
		{Name: "empty", CreatorID: "carol", LastEditorID: "carol"},
	}

	m := NewListReply(docs)
	got, err := ParseListReply(m)
	if err != nil {
		t.Fatalf("ParseListReply: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Name != "notes" || got[0].CreatorID != "alice" {
		t.Errorf("first entry = %+v", got[0])
	}
	if len(got[0].ActiveUsers) != 2 {
		t.Errorf("active users = %v", got[0].ActiveUsers)
	}
}

func TestParseListReplyMalformed(t *testing.T) {
	m := NewMessage(EventListReply, Fields{FieldDocs: "{not json"})
	if _, err := ParseListReply(m); err == nil {
		t.Error("malformed docs field should return an error")
	}
}

func TestJoinSplitUsers(t *testing.T) {
	tests := []struct {
		users []string
		wire  string
	}{
		{nil, ""},
		{[]string{"alice"}, "alice"},
		{[]string{"alice", "bob"}, "alice,bob"},
	}

	for _, tt := range tests {
		if got := JoinUsers(tt.users); got != tt.wire {
			t.Errorf("JoinUsers(%v) = %q, want %q", tt.users, got, tt.wire)
		}
		back := SplitUsers(tt.wire)
		if len(back) != len(tt.users) {
			t.Errorf("SplitUsers(%q) = %v, want %v", tt.wire, back, tt.users)
		}
	}

	if got := SplitUsers(""); got != nil {
		t.Errorf("SplitUsers(\"\") = %v, want nil", got)
	}
}

func TestNewRejection(t *testing.T) {
	m := NewRejection(EventCreateRejected, "notes", "document capacity exceeded")
	if m.Type != EventCreateRejected {
		t.Errorf("type = %q", m.Type)
	}
	if m.Fields.String(FieldReason) != "document capacity exceeded" {
		t.Errorf("reason = %q", m.Fields.String(FieldReason))
	}
}
