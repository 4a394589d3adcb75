// Package protocol defines the event vocabulary and wire envelope shared by
// the coedit server and client cores.
//
// Every application event is a [Message]: a typed, named envelope carrying a
// flat set of string fields. Integer-valued fields (line numbers, sequence
// numbers) are encoded as decimal strings, matching the field model of the
// transport the protocol was designed for. Accessors on [Fields] perform the
// conversions.
//
// The package is deliberately transport-agnostic: it knows nothing about
// sockets. See the transport package for delivery.
package protocol
