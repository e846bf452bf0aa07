// Package comments keeps the most recent chat events for one operator.
package comments

import "github.com/weiawesome/tt-live-music-player/internal/domain"

const DefaultCapacity = 100

// Buffer is a fixed-capacity ring that evicts the oldest comment first.
// It is not safe for concurrent use.
type Buffer struct {
	items []domain.Comment
	head  int // index of the next write
	size  int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{items: make([]domain.Comment, capacity)}
}

func (b *Buffer) Push(c domain.Comment) {
	b.items[b.head] = c
	b.head = (b.head + 1) % len(b.items)
	if b.size < len(b.items) {
		b.size++
	}
}

// Items returns a copy ordered newest first.
func (b *Buffer) Items() []domain.Comment {
	out := make([]domain.Comment, 0, b.size)
	for i := 1; i <= b.size; i++ {
		idx := (b.head - i + len(b.items)) % len(b.items)
		out = append(out, b.items[idx])
	}
	return out
}

func (b *Buffer) Len() int {
	return b.size
}

func (b *Buffer) Capacity() int {
	return len(b.items)
}

// RemoveSource drops every comment that came from account and returns how many were removed.
func (b *Buffer) RemoveSource(account string) int {
	kept := b.Items()
	b.Clear()

	removed := 0
	for i := len(kept) - 1; i >= 0; i-- {
		if kept[i].SourceAccount == account {
			removed++
			continue
		}
		b.Push(kept[i])
	}
	return removed
}

func (b *Buffer) Clear() {
	for i := range b.items {
		b.items[i] = domain.Comment{}
	}
	b.head = 0
	b.size = 0
}
