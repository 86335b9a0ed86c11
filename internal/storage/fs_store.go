package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FSStore keeps artifacts as plain files directly under a root directory:
//
//	<root>/
//	  dbt_docs.html
//	  manifest.json
//	  run_results.json
//	  run-summary.json
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates the root directory (and parents) if needed.
func NewFSStore(basePath string) (*FSStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage root is empty")
	}
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", basePath, err)
	}
	return &FSStore{basePath: basePath}, nil
}

// Root returns the directory objects are written to.
func (fs *FSStore) Root() string { return fs.basePath }

// Location implements Store.
func (fs *FSStore) Location() string { return fs.basePath }

// Put writes to a temp file in the root and renames it over name, so readers never see a
// half written artifact.
func (fs *FSStore) Put(ctx context.Context, name string, r io.Reader) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := fs.objectPath(name)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(fs.basePath, "."+name+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return nil, fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return nil, fmt.Errorf("rename into place: %w", err)
	}

	return &Object{
		Name:   name,
		Path:   target,
		Size:   size,
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// PutFile copies the file at src into the store under name.
func (fs *FSStore) PutFile(ctx context.Context, name, src string) (*Object, error) {
	// #nosec G304 - src is a build output path chosen by the caller
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()
	return fs.Put(ctx, name, f)
}

// Get reads the artifact stored under name.
func (fs *FSStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := fs.objectPath(name)
	if err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// #nosec G304 - p is validated to stay inside the store root
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Name: name}
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// Exists reports whether name is stored.
func (fs *FSStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := fs.objectPath(name)
	if err != nil {
		return false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// List returns the regular files in the root, skipping in-flight temp files.
func (fs *FSStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// objectPath maps a flat artifact name to its path under the root.
func (fs *FSStore) objectPath(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(fs.basePath, name), nil
}

// ValidateName rejects names that are empty, hidden, or not a single path element.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid object name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("object name %q must not contain path separators", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("object name %q must not be hidden", name)
	}
	return nil
}
