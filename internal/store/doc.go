// Package store persists documents as plain-text files on disk.
//
// Each document maps to exactly one file inside the store's root
// directory. Writes are atomic (temp file plus rename) so a crash mid-save
// never leaves a half-written document behind. Document names are
// restricted to a safe character set so a name can never escape the root
// directory.
package store
