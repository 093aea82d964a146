// Package storage defines the project file-system abstraction used by the
// local persistence backend.
package storage

import "io"

// Provider is the interface for project file operations. Paths may be
// absolute (and must then lie under the provider root) or relative to it.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// WriteFrom atomically writes everything read from r to path.
	WriteFrom(path string, r io.Reader) (int64, error)
	// Exists reports whether anything exists at path.
	Exists(path string) (bool, error)
	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error
	// Remove deletes the file at path.
	Remove(path string) error
	// CopyTree copies the directory src to dst, which must not exist.
	CopyTree(src, dst string) error
	// Zip archives the directory dir into the file target.
	Zip(dir, target string) error
	// Resolve returns the absolute form of path, rejecting escapes from the root.
	Resolve(path string) (string, error)
}
