package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coedit/coedit/internal/errors"
	"github.com/coedit/coedit/internal/logging"
	"github.com/coedit/coedit/internal/protocol"
	"github.com/coedit/coedit/internal/transport"
)

const (
	// writeWait is the deadline for a single outbound write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may go silent before it is
	// considered dead.
	pongWait = 60 * time.Second

	// pingInterval must be shorter than pongWait.
	pingInterval = 54 * time.Second

	// sendBuffer is the per-peer outbound queue size. A peer whose queue
	// fills up is disconnected rather than allowed to stall the sender.
	sendBuffer = 64
)

// Server accepts WebSocket connections and bridges them to a
// transport.Handler. It implements transport.Sender.
type Server struct {
	handler  transport.Handler
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	peers map[string]*peer
}

// peer is one connected client.
type peer struct {
	name string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewServer creates a Server that reports traffic to handler.
func NewServer(handler transport.Handler, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Server{
		handler: handler,
		logger:  logger.WithComponent("transport"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The reference deployment serves clients from arbitrary
			// origins; access control lives at the presence layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: make(map[string]*peer),
	}
}

// ValidPeerName checks a user name before it enters the peer map. The
// character set mirrors document-name validation; in particular a comma
// would corrupt the wire encoding of user lists.
func ValidPeerName(name string) error {
	if name == "" {
		return errors.NewValidationError("user name is empty").WithField("user")
	}
	if len(name) > 64 {
		return errors.NewValidationError("user name too long").
			WithField("user").WithValue(len(name))
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return errors.NewValidationError("user name contains invalid character").
				WithField("user").WithValue(string(r))
		}
	}
	return nil
}

// ServeHTTP upgrades the request and runs the peer session until the
// connection drops.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("user")
	if err := ValidPeerName(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err.Error())
		return
	}

	p := &peer{name: name, conn: conn, send: make(chan []byte, sendBuffer)}

	if !s.register(p) {
		// Name already connected: refuse the session the way the presence
		// protocol specifies, then drop the new connection. The existing
		// session is untouched.
		s.logger.Warn("duplicate peer refused", "user", name)
		reject := protocol.NewLoginRejectedDuplicate()
		reject.To = name
		if data, err := json.Marshal(reject); err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
		conn.Close()
		return
	}

	s.logger.Info("peer connected", "user", name)
	s.handler.PeerJoined(name)

	go p.writePump()
	s.readPump(p)
}

// register adds p to the peer map. Returns false if the name is taken.
func (s *Server) register(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.peers[p.name]; exists {
		return false
	}
	s.peers[p.name] = p
	return true
}

// unregister removes p and reports the departure. Safe to call more than
// once per peer.
func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	current, ok := s.peers[p.name]
	if ok && current == p {
		delete(s.peers, p.name)
	} else {
		ok = false
	}
	s.mu.Unlock()

	p.close()

	if ok {
		s.logger.Info("peer disconnected", "user", p.name)
		s.handler.PeerLeft(p.name)
	}
}

// Send queues msg for delivery to the named peer.
func (s *Server) Send(name string, msg protocol.Message) error {
	s.mu.RLock()
	p, ok := s.peers[name]
	s.mu.RUnlock()
	if !ok {
		return ErrPeerUnknown
	}

	msg.To = name
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case p.send <- data:
		return nil
	default:
		// Queue full: the connection is dead or hopelessly slow.
		s.logger.Warn("peer send queue full, dropping connection", "user", name)
		go s.unregister(p)
		return ErrPeerGone
	}
}

// Peers returns the names of all connected peers.
func (s *Server) Peers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.peers))
	for name := range s.peers {
		names = append(names, name)
	}
	return names
}

// Close disconnects every peer.
func (s *Server) Close() {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.peers = make(map[string]*peer)
	s.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
}

// readPump reads messages from the connection and forwards them to the
// handler. It runs on the ServeHTTP goroutine and returns when the
// connection drops.
func (s *Server) readPump(p *peer) {
	defer s.unregister(p)

	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("read error", "user", p.name, "error", err.Error())
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("malformed message", "user", p.name, "error", err.Error())
			continue
		}
		if !protocol.ValidEventType(msg.Type) {
			s.logger.Warn("unknown event type", "user", p.name, "type", string(msg.Type))
			continue
		}

		// The transport, not the client, asserts the sender identity.
		msg.From = p.name
		s.handler.HandleMessage(msg)
	}
}

// writePump drains the outbound queue and keeps the connection alive with
// pings. It exits when the queue closes or a write fails.
func (p *peer) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case data, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close shuts the outbound queue exactly once.
func (p *peer) close() {
	p.once.Do(func() {
		close(p.send)
	})
}
