// Package stats aggregates process-wide chat and request counters.
package stats

import (
	"strings"
	"sync"
	"time"
)

type UserCount struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

type SongCount struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

type ArtistCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Statistics is the broadcast view of the aggregator.
type Statistics struct {
	TopCommenter        *UserCount   `json:"topCommenter"`
	TopRequester        *UserCount   `json:"topRequester"`
	TotalSongsPlayed    int          `json:"totalSongsPlayed"`
	TotalComments       int          `json:"totalComments"`
	UniqueUsers         int          `json:"uniqueUsers"`
	MostRequestedSong   *SongCount   `json:"mostRequestedSong"`
	MostRequestedArtist *ArtistCount `json:"mostRequestedArtist"`
	SessionDuration     int64        `json:"sessionDuration"`
	CurrentStreak       int          `json:"currentStreak"`
	TotalRequests       int          `json:"totalRequests"`
}

// counter tracks counts and the order keys were first seen, so ties go to
// whoever reached the count first.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() counter {
	return counter{counts: make(map[string]int)}
}

func (c *counter) inc(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) top() (string, int, bool) {
	var (
		best  string
		count int
	)
	for _, k := range c.order {
		if c.counts[k] > count {
			best, count = k, c.counts[k]
		}
	}
	return best, count, count > 0
}

// Aggregator is safe for concurrent use. onChange, when set, is called after
// every mutation outside the lock.
type Aggregator struct {
	mu            sync.Mutex
	startedAt     time.Time
	comments      counter
	requests      counter
	songs         counter
	artists       counter
	totalComments int
	totalRequests int
	songsPlayed   int
	currentStreak int
	now           func() time.Time
	onChange      func()
}

func NewAggregator() *Aggregator {
	a := &Aggregator{now: time.Now}
	a.resetLocked()
	return a
}

// OnChange registers fn to run after each mutation. It must not block.
func (a *Aggregator) OnChange(fn func()) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// AddComment counts a comment from user; messages containing "!music" also count as a request.
func (a *Aggregator) AddComment(user, text string) {
	a.mu.Lock()
	a.totalComments++
	a.comments.inc(user)
	if strings.Contains(strings.ToLower(text), "!music") {
		a.totalRequests++
		a.requests.inc(user)
	}
	fn := a.onChange
	a.mu.Unlock()

	notify(fn)
}

// AddSong records a song added to any playlist. Titles of the form "song - artist"
// also count towards the artist.
func (a *Aggregator) AddSong(title string) {
	a.mu.Lock()
	a.songsPlayed++
	a.currentStreak++
	if title != "" {
		a.songs.inc(title)
		if _, artist, ok := strings.Cut(title, " - "); ok {
			if artist, _, _ = strings.Cut(artist, " - "); artist != "" {
				a.artists.inc(artist)
			}
		}
	}
	fn := a.onChange
	a.mu.Unlock()

	notify(fn)
}

func (a *Aggregator) ResetStreak() {
	a.mu.Lock()
	a.currentStreak = 0
	fn := a.onChange
	a.mu.Unlock()

	notify(fn)
}

func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.resetLocked()
	fn := a.onChange
	a.mu.Unlock()

	notify(fn)
}

func (a *Aggregator) resetLocked() {
	a.startedAt = a.now()
	a.comments = newCounter()
	a.requests = newCounter()
	a.songs = newCounter()
	a.artists = newCounter()
	a.totalComments = 0
	a.totalRequests = 0
	a.songsPlayed = 0
	a.currentStreak = 0
}

func (a *Aggregator) Snapshot() Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Statistics{
		TotalSongsPlayed: a.songsPlayed,
		TotalComments:    a.totalComments,
		UniqueUsers:      len(a.comments.counts),
		SessionDuration:  int64(a.now().Sub(a.startedAt) / time.Second),
		CurrentStreak:    a.currentStreak,
		TotalRequests:    a.totalRequests,
	}
	if user, n, ok := a.comments.top(); ok {
		s.TopCommenter = &UserCount{Username: user, Count: n}
	}
	if user, n, ok := a.requests.top(); ok {
		s.TopRequester = &UserCount{Username: user, Count: n}
	}
	if title, n, ok := a.songs.top(); ok {
		s.MostRequestedSong = &SongCount{Title: title, Count: n}
	}
	if name, n, ok := a.artists.top(); ok {
		s.MostRequestedArtist = &ArtistCount{Name: name, Count: n}
	}
	return s
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}
