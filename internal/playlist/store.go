// Package playlist holds one operator's ordered play queue and its cursor.
package playlist

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/weiawesome/tt-live-music-player/internal/domain"
)

var ErrIndexOutOfRange = errors.New("playlist index out of range")

// nextID is shared by every store so entry ids are unique for the process lifetime.
var nextID atomic.Int64

// Store is not safe for concurrent use; the owning session serializes access.
type Store struct {
	entries []domain.PlaylistEntry
	cursor  int
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Add appends entry, assigning its id and timestamp, and returns the stored copy.
func (s *Store) Add(entry domain.PlaylistEntry) domain.PlaylistEntry {
	entry.ID = nextID.Add(1)
	if entry.AddedAt.IsZero() {
		entry.AddedAt = s.now()
	}
	s.entries = append(s.entries, entry)
	return entry
}

// Remove deletes the entry at index and keeps the cursor on the same song where possible.
func (s *Store) Remove(index int) (domain.PlaylistEntry, error) {
	if index < 0 || index >= len(s.entries) {
		return domain.PlaylistEntry{}, ErrIndexOutOfRange
	}

	removed := s.entries[index]
	s.entries = append(s.entries[:index], s.entries[index+1:]...)

	switch {
	case len(s.entries) == 0:
		s.cursor = 0
	case index < s.cursor:
		s.cursor--
	case s.cursor >= len(s.entries):
		s.cursor = len(s.entries) - 1
	}
	return removed, nil
}

// Advance moves the cursor to the next entry, wrapping to the start.
func (s *Store) Advance() (domain.PlaylistEntry, bool) {
	if len(s.entries) == 0 {
		return domain.PlaylistEntry{}, false
	}
	s.cursor = (s.cursor + 1) % len(s.entries)
	return s.entries[s.cursor], true
}

func (s *Store) Select(index int) (domain.PlaylistEntry, error) {
	if index < 0 || index >= len(s.entries) {
		return domain.PlaylistEntry{}, ErrIndexOutOfRange
	}
	s.cursor = index
	return s.entries[index], nil
}

func (s *Store) Clear() {
	s.entries = nil
	s.cursor = 0
}

func (s *Store) Current() (domain.PlaylistEntry, bool) {
	if len(s.entries) == 0 {
		return domain.PlaylistEntry{}, false
	}
	return s.entries[s.cursor], true
}

func (s *Store) Cursor() int {
	return s.cursor
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Snapshot returns a copy that is safe to hand to other goroutines.
func (s *Store) Snapshot() domain.PlaylistSnapshot {
	songs := make([]domain.PlaylistEntry, len(s.entries))
	copy(songs, s.entries)

	snap := domain.PlaylistSnapshot{
		Songs:        songs,
		CurrentIndex: s.cursor,
		TotalSongs:   len(songs),
	}
	if len(songs) > 0 {
		current := songs[s.cursor]
		snap.CurrentSong = &current
	}
	return snap
}
