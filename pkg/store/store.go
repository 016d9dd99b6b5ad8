package store

import (
	"time"

	"readit/pkg/domain"
)

// Store defines persistence operations for reading sessions and bookmarks.
// UpdateSession keys are column names; unknown field names must never reach
// the store (the application layer filters them against its allow-list).
type Store interface {
	// sessions
	CreateSession(domain.ReadingSession) error
	GetSession(id string) (domain.ReadingSession, bool, error)
	UpdateSession(id string, updates map[string]any) (bool, error)
	PurgeSessionsBefore(cutoff time.Time) (int64, error)

	// bookmarks
	SaveBookmark(domain.Bookmark) error
	ListBookmarks(sessionID string) ([]domain.Bookmark, error)
	DeleteBookmark(id string) error
}
