// ABOUTME: Fixed-capacity packet buffer with a separately tracked logical length
// ABOUTME: Encoders write into Space() and then set the encoded size
package audio

import "fmt"

// Buffer holds one encoded packet. Its capacity never changes.
type Buffer struct {
	data []byte
	n    int
}

// NewBuffer allocates a buffer with the given capacity and zero length
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the fixed capacity
func (b *Buffer) Cap() int { return len(b.data) }

// Len returns the logical length
func (b *Buffer) Len() int { return b.n }

// Bytes returns the valid packet bytes
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// Space returns the whole capacity region for a writer to fill
func (b *Buffer) Space() []byte { return b.data }

// SetLen sets the logical length after a writer filled Space()
func (b *Buffer) SetLen(n int) error {
	if n < 0 || n > len(b.data) {
		return fmt.Errorf("length %d outside buffer capacity %d", n, len(b.data))
	}
	b.n = n
	return nil
}

// Reset sets the logical length to zero
func (b *Buffer) Reset() { b.n = 0 }
