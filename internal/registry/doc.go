// Package registry holds the authoritative state of all open documents:
// content, metadata, per-document participant sets, and the mapping from
// each user to the document they currently have open.
//
// The registry mutates state and reports the resulting effects (who left,
// which locks were released, who should be notified) as plain result
// values. It never talks to the transport; the server layer translates
// results into protocol events.
package registry
