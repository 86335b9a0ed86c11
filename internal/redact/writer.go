package redact

import (
	"bytes"
	"io"
	"sync"
)

// LineWriter redacts output line by line before forwarding it. Partial lines are held
// until a newline arrives or Flush is called, so a secret split across writes is still
// masked.
type LineWriter struct {
	mu  sync.Mutex
	dst io.Writer
	r   *Redactor
	buf []byte
}

func NewLineWriter(dst io.Writer, r *Redactor) *LineWriter {
	return &LineWriter{dst: dst, r: r}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if _, err := w.dst.Write(w.r.Bytes(w.buf[:i+1])); err != nil {
			return len(p), err
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush forwards any held partial line.
func (w *LineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) == 0 {
		return nil
	}
	_, err := w.dst.Write(w.r.Bytes(w.buf))
	w.buf = nil
	return err
}
