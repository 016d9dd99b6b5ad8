package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"readit/pkg/domain"
)

// MemoryStore keeps sessions and bookmarks in-process. It backs tests and
// local development without Postgres.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]domain.ReadingSession
	bookmarks map[string]domain.Bookmark
	order     []string // bookmark insertion order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]domain.ReadingSession),
		bookmarks: make(map[string]domain.Bookmark),
	}
}

// CreateSession stores a new reading session.
func (m *MemoryStore) CreateSession(s domain.ReadingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

// GetSession retrieves a session and refreshes its last_accessed timestamp.
func (m *MemoryStore) GetSession(id string) (domain.ReadingSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.ReadingSession{}, false, nil
	}
	s.LastAccessed = time.Now().UTC()
	m.sessions[id] = s
	return cloneSession(s), true, nil
}

// UpdateSession applies column updates to one session.
func (m *MemoryStore) UpdateSession(id string, updates map[string]any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	for column, value := range updates {
		if err := applySessionUpdate(&s, column, value); err != nil {
			return false, err
		}
	}
	m.sessions[id] = s
	return true, nil
}

func applySessionUpdate(s *domain.ReadingSession, column string, value any) error {
	switch column {
	case "current_segment":
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("current_segment: expected int, got %T", value)
		}
		s.CurrentSegment = v
	case "current_position":
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("current_position: expected int, got %T", value)
		}
		s.CurrentPosition = v
	case "voice_id":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("voice_id: expected string, got %T", value)
		}
		s.VoiceID = v
	case "reading_speed":
		v, ok := value.(float64)
		if !ok {
			return fmt.Errorf("reading_speed: expected float64, got %T", value)
		}
		s.ReadingSpeed = v
	case "font_size":
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("font_size: expected int, got %T", value)
		}
		s.FontSize = v
	case "dark_mode":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("dark_mode: expected bool, got %T", value)
		}
		s.DarkMode = v
	case "offline_mode":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("offline_mode: expected bool, got %T", value)
		}
		s.OfflineMode = v
	case "cached_audio":
		v, ok := value.(map[int]string)
		if !ok {
			return fmt.Errorf("cached_audio: expected map[int]string, got %T", value)
		}
		s.CachedAudio = v
	case "last_accessed":
		v, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("last_accessed: expected time.Time, got %T", value)
		}
		s.LastAccessed = v
	default:
		return fmt.Errorf("unknown session column %q", column)
	}
	return nil
}

// PurgeSessionsBefore deletes sessions last accessed strictly before cutoff.
func (m *MemoryStore) PurgeSessionsBefore(cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, s := range m.sessions {
		if s.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// SaveBookmark stores a bookmark and tracks insertion order.
func (m *MemoryStore) SaveBookmark(b domain.Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bookmarks[b.ID]; !exists {
		m.order = append(m.order, b.ID)
	}
	m.bookmarks[b.ID] = b
	return nil
}

// ListBookmarks returns a session's bookmarks in insertion order.
func (m *MemoryStore) ListBookmarks(sessionID string) ([]domain.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Bookmark, 0)
	for _, id := range m.order {
		if b, ok := m.bookmarks[id]; ok && b.SessionID == sessionID {
			res = append(res, b)
		}
	}
	return res, nil
}

// DeleteBookmark removes a bookmark. Deleting an unknown id is a no-op.
func (m *MemoryStore) DeleteBookmark(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookmarks[id]; !ok {
		return nil
	}
	delete(m.bookmarks, id)
	for i, other := range m.order {
		if other == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// SessionIDs returns all stored session ids sorted; test helper.
func (m *MemoryStore) SessionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneSession(s domain.ReadingSession) domain.ReadingSession {
	out := s
	out.Segments = append([]string(nil), s.Segments...)
	if s.CachedAudio != nil {
		out.CachedAudio = make(map[int]string, len(s.CachedAudio))
		for k, v := range s.CachedAudio {
			out.CachedAudio[k] = v
		}
	}
	return out
}
