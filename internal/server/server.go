package server

import (
	"time"

	"github.com/coedit/coedit/internal/errors"
	"github.com/coedit/coedit/internal/lock"
	"github.com/coedit/coedit/internal/logging"
	"github.com/coedit/coedit/internal/presence"
	"github.com/coedit/coedit/internal/protocol"
	"github.com/coedit/coedit/internal/registry"
	"github.com/coedit/coedit/internal/transport"
)

// Server wires presence, registry and lock table to the transport. It
// implements transport.Handler.
type Server struct {
	sender   transport.Sender
	presence *presence.Tracker
	registry *registry.Registry
	locks    *lock.Table
	logger   *logging.Logger

	sweepInterval time.Duration
	stopEvictor   func()
}

// Option configures a Server.
type Option func(*Server)

// WithSweepInterval overrides the lock-eviction sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// New creates a Server. Call Start to begin the eviction sweep.
func New(sender transport.Sender, reg *registry.Registry, locks *lock.Table, tracker *presence.Tracker, logger *logging.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Server{
		sender:        sender,
		presence:      tracker,
		registry:      reg,
		locks:         locks,
		logger:        logger.WithComponent("server"),
		sweepInterval: lock.DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the idle-lock eviction sweep. Evicted groups are
// announced to the document's participants as empty-owner notifications.
func (s *Server) Start() {
	s.stopEvictor = s.locks.StartEvictor(s.sweepInterval, func(doc string, evicted []lock.Range) {
		participants := s.registry.Participants(doc)
		for _, r := range evicted {
			s.logger.Info("idle lock evicted", "doc", doc, "range", r.String())
			s.sendTo(participants, protocol.NewLockLineNotify(doc, r.Start, r.End, ""))
		}
	})
}

// Stop halts the eviction sweep.
func (s *Server) Stop() {
	if s.stopEvictor != nil {
		s.stopEvictor()
		s.stopEvictor = nil
	}
}

// PeerJoined handles a new transport session: the peer is logged in and
// receives the current online and document lists.
func (s *Server) PeerJoined(peer string) {
	if err := s.presence.Login(peer); err != nil {
		// The transport already refuses duplicate names at connect time;
		// this guard stays for callers driving the server directly.
		s.send(peer, protocol.NewLoginRejectedDuplicate())
		return
	}

	s.send(peer, protocol.NewLoginAccepted())
	s.sendDocumentList(peer)
	s.broadcastOnlineList()
}

// PeerLeft treats a dropped transport session as an implicit logout:
// locks released, participant sets updated, presence refreshed.
func (s *Server) PeerLeft(peer string) {
	if left := s.registry.Leave(peer); left != nil {
		s.announceLeave(left)
	}
	if s.presence.Logout(peer) {
		s.broadcastOnlineList()
	}
}

// HandleMessage dispatches one inbound protocol event.
func (s *Server) HandleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.EventCreateDoc:
		s.handleCreate(msg)
	case protocol.EventSelectDoc:
		s.handleSelect(msg)
	case protocol.EventEditDoc:
		s.handleEdit(msg)
	case protocol.EventSaveDoc:
		s.handleSave(msg)
	case protocol.EventDeleteDoc:
		s.handleDelete(msg)
	case protocol.EventListDocs:
		s.sendDocumentList(msg.From)
	case protocol.EventLockLineReq:
		s.handleLockRequest(msg)
	case protocol.EventLockLineRelease:
		s.handleLockRelease(msg)
	default:
		s.logger.Warn("unhandled event", "type", string(msg.Type), "from", msg.From)
	}
}

func (s *Server) handleCreate(msg protocol.Message) {
	name := msg.Fields.String(protocol.FieldName)
	res, err := s.registry.Create(name, msg.From)
	if err != nil {
		s.logger.Warn("create rejected", "doc", name, "user", msg.From, "error", err.Error())
		s.send(msg.From, protocol.NewRejection(protocol.EventCreateRejected, name, reason(err)))
		return
	}

	s.announceSwitch(res, msg.From)
	s.broadcastDocumentList()
}

func (s *Server) handleSelect(msg protocol.Message) {
	name := msg.Fields.String(protocol.FieldName)
	res, err := s.registry.Select(name, msg.From)
	if err != nil {
		s.logger.Warn("select rejected", "doc", name, "user", msg.From, "error", err.Error())
		s.send(msg.From, protocol.NewRejection(protocol.EventSelectRejected, name, reason(err)))
		return
	}

	s.announceSwitch(res, msg.From)
	s.broadcastDocumentList()
}

// announceSwitch delivers the effects of a successful Create or Select:
// cleanup broadcasts for the document the requester left, content plus the
// current lock view for the one they joined, and participant-list
// refreshes for both.
func (s *Server) announceSwitch(res *registry.OpenResult, requester string) {
	if res.Left != nil {
		s.announceLeave(res.Left)
	}

	s.send(requester, protocol.NewDocContent(res.Doc, res.Content))
	for _, r := range res.Locks {
		s.send(requester, protocol.NewLockLineNotify(res.Doc, r.Start, r.End, r.Owner))
	}
	s.sendTo(res.Participants, protocol.NewUserList(res.Doc, res.Participants))
}

// announceLeave broadcasts the cleanup that followed a user leaving a
// document: one empty-owner notification per released lock group and the
// shrunken participant list.
func (s *Server) announceLeave(left *registry.LeaveResult) {
	for _, r := range left.Released {
		s.sendTo(left.Participants, protocol.NewLockLineNotify(left.Doc, r.Start, r.End, ""))
	}
	s.sendTo(left.Participants, protocol.NewUserList(left.Doc, left.Participants))
}

func (s *Server) handleEdit(msg protocol.Message) {
	content := msg.Fields.String(protocol.FieldContent)
	res, err := s.registry.Edit(msg.From, content)
	if err != nil {
		s.logger.Warn("edit rejected", "user", msg.From, "error", err.Error())
		s.send(msg.From, protocol.NewRejection(protocol.EventEditRejected, "", reason(err)))
		return
	}

	// Verbatim relay to everyone else; the sender is not echoed.
	s.sendTo(res.Recipients, protocol.NewDocContent(res.Doc, res.Content))
}

func (s *Server) handleSave(msg protocol.Message) {
	res, err := s.registry.Save(msg.From)
	if err != nil {
		s.logger.Error("save failed", "user", msg.From, "error", err.Error())
		s.send(msg.From, protocol.NewRejection(protocol.EventSaveFailed, "", reason(err)))
		return
	}
	if !res.Changed {
		return
	}

	s.broadcastDocumentList()
	participants := s.registry.Participants(res.Doc)
	s.sendTo(participants, protocol.NewUserList(res.Doc, participants))
}

func (s *Server) handleDelete(msg protocol.Message) {
	name := msg.Fields.String(protocol.FieldName)
	res, err := s.registry.Delete(name, msg.From)
	if err != nil {
		s.logger.Warn("delete failed", "doc", name, "user", msg.From, "error", err.Error())
		s.send(msg.From, protocol.NewRejection(protocol.EventDeleteFailed, name, reason(err)))
		return
	}

	// Every evicted participant, the requester included, hears about the
	// closure before any follow-up state lands.
	s.sendTo(res.Participants, protocol.NewDocClosed(res.Doc))
	s.broadcastDocumentList()
}

func (s *Server) handleLockRequest(msg protocol.Message) {
	doc := msg.Fields.String(protocol.FieldDoc)
	start := msg.Fields.Int(protocol.FieldStartLine)
	end := msg.Fields.Int(protocol.FieldEndLine)
	seq := msg.Fields.Int(protocol.FieldSeq)

	// Locks live only on the requester's open document. Anything else
	// would let a client park ranges on arbitrary names.
	if current, ok := s.registry.CurrentDoc(msg.From); !ok || current != doc {
		s.send(msg.From, protocol.NewLockLineAck(doc, start, end, false, seq))
		return
	}

	grant, err := s.locks.Acquire(doc, start, end, msg.From)
	if err != nil {
		s.send(msg.From, protocol.NewLockLineAck(doc, start, end, false, seq))
		return
	}

	s.send(msg.From, protocol.NewLockLineAck(doc, start, end, true, seq))

	if grant == nil {
		// Identical range already owned: idempotent, no broadcast.
		return
	}
	s.sendTo(s.registry.Participants(doc),
		protocol.NewLockLineNotify(doc, grant.Range.Start, grant.Range.End, msg.From))
}

func (s *Server) handleLockRelease(msg protocol.Message) {
	doc := msg.Fields.String(protocol.FieldDoc)
	start := msg.Fields.Int(protocol.FieldStartLine)
	end := msg.Fields.Int(protocol.FieldEndLine)

	if current, ok := s.registry.CurrentDoc(msg.From); !ok || current != doc {
		return
	}

	released := s.locks.Release(doc, start, end, msg.From)
	participants := s.registry.Participants(doc)
	for _, r := range released {
		s.sendTo(participants, protocol.NewLockLineNotify(doc, r.Start, r.End, ""))
	}
}

func (s *Server) sendDocumentList(peer string) {
	infos, err := s.registry.List()
	if err != nil {
		s.logger.Error("listing documents failed", "error", err.Error())
		return
	}
	s.send(peer, protocol.NewListReply(infos))
}

func (s *Server) broadcastDocumentList() {
	infos, err := s.registry.List()
	if err != nil {
		s.logger.Error("listing documents failed", "error", err.Error())
		return
	}
	s.sendTo(s.presence.Online(), protocol.NewListReply(infos))
}

func (s *Server) broadcastOnlineList() {
	online := s.presence.Online()
	s.sendTo(online, protocol.NewOnlineList(online))
}

// send delivers one message to one peer, logging delivery failures. A
// failed send never fails the operation that produced it.
func (s *Server) send(peer string, msg protocol.Message) {
	if err := s.sender.Send(peer, msg); err != nil {
		s.logger.Warn("send failed", "peer", peer, "type", string(msg.Type), "error", err.Error())
	}
}

func (s *Server) sendTo(peers []string, msg protocol.Message) {
	for _, p := range peers {
		s.send(p, msg)
	}
}

// reason maps an internal error to the reason string carried by rejection
// events. Internal failures are not leaked to clients.
func reason(err error) string {
	if errors.IsUserFacing(err) {
		return err.Error()
	}
	return "internal error"
}
