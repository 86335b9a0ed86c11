// Package storage is the durable location run artifacts are copied to.
package storage

import (
	"context"
	"io"
)

// Store holds run artifacts under fixed names, overwriting earlier runs.
type Store interface {
	// Put writes the content of r under name, replacing any previous object atomically.
	Put(ctx context.Context, name string, r io.Reader) (*Object, error)

	// Get returns the content stored under name.
	// Returns ErrNotFound if nothing is stored there.
	Get(ctx context.Context, name string) ([]byte, error)

	// Exists reports whether name is stored.
	Exists(ctx context.Context, name string) (bool, error)

	// List returns stored names in lexical order.
	List(ctx context.Context) ([]string, error)

	// Location is a human readable description of where objects live.
	Location() string
}

// Object describes a stored artifact.
type Object struct {
	Name   string
	Path   string
	Size   int64
	SHA256 string
}

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Name string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Name
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
