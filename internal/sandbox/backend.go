package sandbox

import (
	"context"
	"time"
)

// Execution is what a backend observed while running the harness.
type Execution struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Backend launches the child harness inside dir and waits for it, for at
// most timeout. Backends must kill everything they started before
// returning, whether the child finished, crashed or timed out. An error
// means the child could not be started at all.
type Backend interface {
	Name() string
	Exec(ctx context.Context, dir string, timeout time.Duration) (*Execution, error)
}

// maxCapture bounds how much of each output stream is kept.
const maxCapture = 4 << 20

// cappedBuffer keeps the last limit bytes written so a chatty test suite
// cannot exhaust the parent's memory. The summary line is written last, so
// it survives the trim. The buffer grows to twice the limit before it is
// trimmed, which keeps the copying amortized.
type cappedBuffer struct {
	limit int
	buf   []byte
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > b.limit {
		p = p[len(p)-b.limit:]
	}
	b.buf = append(b.buf, p...)
	if len(b.buf) > 2*b.limit {
		b.trim()
	}
	return n, nil
}

func (b *cappedBuffer) trim() {
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
}

// Bytes returns at most the last limit bytes written.
func (b *cappedBuffer) Bytes() []byte {
	b.trim()
	return b.buf
}

func tail(s []byte, n int) string {
	if len(s) <= n {
		return string(s)
	}
	return "..." + string(s[len(s)-n:])
}
