package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"readit/pkg/domain"
)

// GORM models used for persistence.
type SessionModel struct {
	ID              string `gorm:"primaryKey"`
	DocumentName    string `gorm:"not null"`
	StorageKey      string
	Segments        datatypes.JSON `gorm:"not null"`
	CurrentSegment  int            `gorm:"not null"`
	CurrentPosition int            `gorm:"not null"`
	VoiceID         string         `gorm:"not null"`
	ReadingSpeed    float64        `gorm:"not null"`
	FontSize        int            `gorm:"not null"`
	DarkMode        bool           `gorm:"not null"`
	OfflineMode     bool           `gorm:"not null"`
	CachedAudio     datatypes.JSON
	CreatedAt       time.Time `gorm:"not null"`
	LastAccessed    time.Time `gorm:"not null;index"`
}

// BookmarkModel has no foreign key to sessions; a bookmark may outlive its
// session. Seq is a database serial: created_at alone can tie within one
// timestamp tick, so listing orders by it to keep insertion order exact.
type BookmarkModel struct {
	ID           string `gorm:"primaryKey"`
	Seq          int64  `gorm:"autoIncrement;uniqueIndex"`
	SessionID    string `gorm:"not null;index"`
	SegmentIndex int    `gorm:"not null"`
	Position     int    `gorm:"not null"`
	Note         string
	CreatedAt    time.Time `gorm:"not null;index"`
}

func sessionToModel(s domain.ReadingSession) (SessionModel, error) {
	segments, err := json.Marshal(s.Segments)
	if err != nil {
		return SessionModel{}, err
	}
	cached, err := json.Marshal(s.CachedAudio)
	if err != nil {
		return SessionModel{}, err
	}
	return SessionModel{
		ID:              s.ID,
		DocumentName:    s.DocumentName,
		StorageKey:      s.StorageKey,
		Segments:        datatypes.JSON(segments),
		CurrentSegment:  s.CurrentSegment,
		CurrentPosition: s.CurrentPosition,
		VoiceID:         s.VoiceID,
		ReadingSpeed:    s.ReadingSpeed,
		FontSize:        s.FontSize,
		DarkMode:        s.DarkMode,
		OfflineMode:     s.OfflineMode,
		CachedAudio:     datatypes.JSON(cached),
		CreatedAt:       s.CreatedAt,
		LastAccessed:    s.LastAccessed,
	}, nil
}

func sessionFromModel(m SessionModel) (domain.ReadingSession, error) {
	var segments []string
	if len(m.Segments) > 0 {
		if err := json.Unmarshal(m.Segments, &segments); err != nil {
			return domain.ReadingSession{}, err
		}
	}
	cached := map[int]string{}
	if len(m.CachedAudio) > 0 {
		if err := json.Unmarshal(m.CachedAudio, &cached); err != nil {
			return domain.ReadingSession{}, err
		}
	}
	return domain.ReadingSession{
		ID:              m.ID,
		DocumentName:    m.DocumentName,
		StorageKey:      m.StorageKey,
		Segments:        segments,
		CurrentSegment:  m.CurrentSegment,
		CurrentPosition: m.CurrentPosition,
		VoiceID:         m.VoiceID,
		ReadingSpeed:    m.ReadingSpeed,
		FontSize:        m.FontSize,
		DarkMode:        m.DarkMode,
		OfflineMode:     m.OfflineMode,
		CachedAudio:     cached,
		CreatedAt:       m.CreatedAt,
		LastAccessed:    m.LastAccessed,
	}, nil
}

func bookmarkToModel(b domain.Bookmark) BookmarkModel {
	return BookmarkModel{
		ID:           b.ID,
		SessionID:    b.SessionID,
		SegmentIndex: b.SegmentIndex,
		Position:     b.Position,
		Note:         b.Note,
		CreatedAt:    b.CreatedAt,
	}
}

func bookmarkFromModel(m BookmarkModel) domain.Bookmark {
	return domain.Bookmark{
		ID:           m.ID,
		SessionID:    m.SessionID,
		SegmentIndex: m.SegmentIndex,
		Position:     m.Position,
		Note:         m.Note,
		CreatedAt:    m.CreatedAt,
	}
}
