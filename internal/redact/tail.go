package redact

import "sync"

// Tail is an io.Writer keeping only the last Limit bytes written. Captured subprocess
// output goes through a Tail so diagnostics stay bounded; the Redactor masks secret
// fragments the cut may leave at the start.
type Tail struct {
	mu        sync.Mutex
	limit     int
	buf       []byte
	truncated bool
}

// NewTail returns a Tail with the given limit. A limit <= 0 keeps everything.
func NewTail(limit int) *Tail {
	return &Tail{limit: limit}
}

func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if t.limit > 0 && len(t.buf) > t.limit {
		t.buf = append(t.buf[:0], t.buf[len(t.buf)-t.limit:]...)
		t.truncated = true
	}
	return len(p), nil
}

// String returns the retained bytes.
func (t *Tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Truncated reports whether earlier output was dropped.
func (t *Tail) Truncated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.truncated
}
