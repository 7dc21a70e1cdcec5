// Package storage reads and writes Markdown files under a directory root.
package storage

import "time"

// FileMeta describes one Markdown file found under the root.
type FileMeta struct {
	// Path is relative to the root, using the OS separator.
	Path     string
	Checksum string
	Size     int64
	ModTime  time.Time
}

// Provider is the file-system surface used by import and export.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to root),
	// sorted by path. Hidden files and directories are skipped.
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
}
