package worker

import (
	"bytes"
	"strings"
)

const maxLineBytes = 64 << 10

// lineWriter splits a subprocess stream into lines and hands each
// non-blank line to emit. exec runs one copy goroutine per stream, so a
// lineWriter is only ever written from a single goroutine.
type lineWriter struct {
	buf  []byte
	emit func(string)
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.send(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxLineBytes {
		w.send(w.buf)
		w.buf = nil
	}
	return len(p), nil
}

// Flush emits a trailing line that had no newline. Call after the process
// has been waited on.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.send(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) send(b []byte) {
	line := strings.TrimRight(string(b), "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	w.emit(line)
}
