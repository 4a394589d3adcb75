// Package client is the editor-side core: a thin request API over the
// transport plus the lock-reconciliation state machine that turns
// selection changes into lock requests and folds server acknowledgements
// and notifications back into local permission state.
//
// The package never references UI types. Everything the front end needs
// to render arrives through the Callback interface.
package client
