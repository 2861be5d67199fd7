package invoker

import "bytes"

// cappedBuffer keeps at most max bytes and silently drops the rest so a noisy
// child cannot grow memory without bound.
type cappedBuffer struct {
	max       int
	buf       bytes.Buffer
	truncated bool
}

func newCappedBuffer(max int) *cappedBuffer {
	if max <= 0 {
		max = 1 << 20
	}
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.truncated {
		return len(p), nil
	}
	remain := b.max - b.buf.Len()
	if remain <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remain {
		_, _ = b.buf.Write(p[:remain])
		b.truncated = true
		return len(p), nil
	}
	_, err := b.buf.Write(p)
	return len(p), err
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
