// Package ws is the WebSocket transport for coedit.
//
// The server side upgrades HTTP requests on a single endpoint; the peer
// identifies itself with a "user" query parameter and is addressable under
// that name for the lifetime of the connection. Each peer gets a buffered
// outbound queue drained by a dedicated write pump, so one slow client
// cannot stall delivery to others. A second connection under an in-use name
// is refused at accept time with a LOGIN_REJECTED_DUPLICATE message.
//
// The client side dials the same endpoint and surfaces inbound messages
// through a handler callback.
package ws
