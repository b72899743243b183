package music

import (
	"strconv"
	"sync"

	"melodyforge-bot/internal/client/lastfm"
)

// ListTag identifies where the active candidate list came from.
type ListTag int

const (
	TagSearchResults ListTag = iota
	TagSimilarTracks
	TagGenreMix
)

// Session holds the per-chat conversational state: at most one active list
// of candidate tracks that a numeric reply can select from. Setting a new
// list replaces the previous one outright, so only the most recent list is
// ever resolvable.
type Session struct {
	mu     sync.Mutex
	tag    ListTag
	tracks []lastfm.Track
}

// SetActive replaces the active candidate list.
func (s *Session) SetActive(tag ListTag, tracks []lastfm.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tag = tag
	s.tracks = tracks
}

// Resolve maps a user reply onto the active list, treating the text as a
// 1-based index. Anything that is not an all-digit string, or that points
// outside the list, is not a selection and falls through to normal handling.
func (s *Session) Resolve(text string) (lastfm.Track, bool) {
	if !isDigits(text) {
		return lastfm.Track{}, false
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return lastfm.Track{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := n - 1
	if idx < 0 || idx >= len(s.tracks) {
		return lastfm.Track{}, false
	}
	return s.tracks[idx], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Sessions hands out one Session per chat, created lazily.
type Sessions struct {
	mu     sync.Mutex
	byChat map[int64]*Session
}

// NewSessions builds an empty session registry.
func NewSessions() *Sessions {
	return &Sessions{byChat: make(map[int64]*Session)}
}

// Get returns the session for chatID, creating it on first use.
func (s *Sessions) Get(chatID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byChat[chatID]
	if !ok {
		sess = &Session{}
		s.byChat[chatID] = sess
	}
	return sess
}
