// Package server is the core orchestrator. It receives protocol events
// from the transport, drives the presence tracker, document registry and
// lock table, and sends acknowledgements back to requesters and
// notifications to document participants.
//
// Every broadcast is an explicit loop over a participant or online set
// with one send per recipient; the transport provides no multicast.
package server
