// Package transport defines the delivery contract between the coedit core
// and whatever wire carries its events.
//
// The core addresses peers by stable user name and only ever asks for
// point-to-point delivery; a "broadcast" is the caller iterating a recipient
// set and sending once per peer. Session lifecycle (peer joined, peer left)
// is surfaced separately from application messages.
//
// The ws subpackage provides the reference WebSocket implementation.
package transport

import "github.com/coedit/coedit/internal/protocol"

// Sender delivers application messages to named peers. Implementations must
// guarantee that a message sent to one peer is delivered to that peer only;
// no ordering guarantee is assumed across different sender/receiver pairs.
type Sender interface {
	// Send queues msg for delivery to the named peer. It returns an error
	// if the peer is unknown or its connection is gone.
	Send(peer string, msg protocol.Message) error
}

// SenderFunc adapts a function to the Sender interface. Useful when the
// concrete transport is constructed after the component that sends
// through it.
type SenderFunc func(peer string, msg protocol.Message) error

// Send calls f.
func (f SenderFunc) Send(peer string, msg protocol.Message) error {
	return f(peer, msg)
}

// Handler consumes inbound traffic from a transport. The server core
// implements this interface.
type Handler interface {
	// HandleMessage processes one application message. msg.From carries the
	// authenticated peer name.
	HandleMessage(msg protocol.Message)

	// PeerJoined reports a new named peer session.
	PeerJoined(peer string)

	// PeerLeft reports that a peer session ended, whether by explicit
	// logout or detected disconnect.
	PeerLeft(peer string)
}
