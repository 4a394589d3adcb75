package ws

import "errors"

// Sentinel errors returned by Send.
var (
	// ErrPeerUnknown is returned when sending to a name with no live session.
	ErrPeerUnknown = errors.New("peer is not connected")

	// ErrPeerGone is returned when a peer's outbound queue overflowed and
	// the connection was dropped.
	ErrPeerGone = errors.New("peer connection dropped")
)
