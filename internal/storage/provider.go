// Package storage is the file-system abstraction over the feed source
// directory.
package storage

import "time"

// Meta describes one source document on disk.
type Meta struct {
	// Path is slash-separated and relative to the source root.
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for source document operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to root).
	List(dir string) ([]Meta, error)
	// Read returns the raw bytes of the document at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the document at path.
	Delete(path string) error
}
