package runner

import (
	"fmt"
	"strings"
	"sync"
)

// headTailBuffer keeps the first and last limit bytes written to it and
// counts what was dropped in between. Memory stays bounded regardless of
// how much a script prints.
type headTailBuffer struct {
	mu      sync.Mutex
	limit   int
	head    []byte
	tail    []byte // ring buffer once full
	tailPos int
	total   int64
}

func newHeadTailBuffer(limit int) *headTailBuffer {
	if limit < 1 {
		limit = 1
	}
	return &headTailBuffer{limit: limit}
}

func (b *headTailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	b.total += int64(n)

	if room := b.limit - len(b.head); room > 0 {
		if room > len(p) {
			room = len(p)
		}
		b.head = append(b.head, p[:room]...)
		p = p[room:]
	}

	for len(p) > 0 {
		if len(b.tail) < b.limit {
			room := b.limit - len(b.tail)
			if room > len(p) {
				room = len(p)
			}
			b.tail = append(b.tail, p[:room]...)
			p = p[room:]
			continue
		}
		copied := copy(b.tail[b.tailPos:], p)
		b.tailPos = (b.tailPos + copied) % b.limit
		p = p[copied:]
	}

	return n, nil
}

// Truncated reports whether bytes were dropped.
func (b *headTailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total > int64(len(b.head)+len(b.tail))
}

// String returns head + marker + tail, or the whole output when nothing was
// dropped.
func (b *headTailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	tail := make([]byte, 0, len(b.tail))
	tail = append(tail, b.tail[b.tailPos:]...)
	tail = append(tail, b.tail[:b.tailPos]...)

	kept := int64(len(b.head) + len(tail))
	if b.total <= kept {
		return strings.ToValidUTF8(string(b.head)+string(tail), "�")
	}

	dropped := b.total - kept
	return strings.ToValidUTF8(string(b.head), "�") +
		fmt.Sprintf("\n\n...[TRUNCATED %d bytes]...\n\n", dropped) +
		strings.ToValidUTF8(string(tail), "�")
}
