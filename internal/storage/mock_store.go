package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"sync"
)

// MockStore is an in-memory implementation of Store for testing.
type MockStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	calls   MockCalls

	// PutErr, when set, is returned by every Put.
	PutErr error
}

// MockCalls tracks method invocations for test verification.
type MockCalls struct {
	Put    int
	Get    int
	Exists int
	List   int
}

// NewMockStore creates a new in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{objects: make(map[string][]byte)}
}

func (m *MockStore) Put(_ context.Context, name string, r io.Reader) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	if m.PutErr != nil {
		return nil, m.PutErr
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.objects[name] = data
	sum := sha256.Sum256(data)
	return &Object{Name: name, Path: "mem://" + name, Size: int64(len(data)), SHA256: hex.EncodeToString(sum[:])}, nil
}

func (m *MockStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.calls.Get++

	data, ok := m.objects[name]
	if !ok {
		return nil, ErrNotFound{Name: name}
	}
	return bytes.Clone(data), nil
}

func (m *MockStore) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.calls.Exists++

	_, ok := m.objects[name]
	return ok, nil
}

func (m *MockStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.calls.List++

	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockStore) Location() string { return "mem://" }

// Calls returns a snapshot of call counts.
func (m *MockStore) Calls() MockCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

var (
	_ Store = (*FSStore)(nil)
	_ Store = (*MockStore)(nil)
)
