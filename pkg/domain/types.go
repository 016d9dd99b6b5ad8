package domain

import "time"

// ReadingSession tracks one user's progress through one uploaded document.
type ReadingSession struct {
	ID              string         `json:"id"`
	DocumentName    string         `json:"document_name"`
	StorageKey      string         `json:"-"`
	Segments        []string       `json:"-"`
	CurrentSegment  int            `json:"current_segment"`
	CurrentPosition int            `json:"current_position"`
	VoiceID         string         `json:"voice_id"`
	ReadingSpeed    float64        `json:"reading_speed"`
	FontSize        int            `json:"font_size"`
	DarkMode        bool           `json:"dark_mode"`
	OfflineMode     bool           `json:"offline_mode"`
	CachedAudio     map[int]string `json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	LastAccessed    time.Time      `json:"last_accessed"`
}

// Summary is the client-facing view of a session. Segment text is large, so
// only the active segment travels with it.
func (s ReadingSession) Summary() SessionSummary {
	var active string
	if s.CurrentSegment >= 0 && s.CurrentSegment < len(s.Segments) {
		active = s.Segments[s.CurrentSegment]
	}
	return SessionSummary{
		ID:              s.ID,
		DocumentName:    s.DocumentName,
		CurrentSegment:  s.CurrentSegment,
		CurrentPosition: s.CurrentPosition,
		VoiceID:         s.VoiceID,
		ReadingSpeed:    s.ReadingSpeed,
		FontSize:        s.FontSize,
		DarkMode:        s.DarkMode,
		OfflineMode:     s.OfflineMode,
		TotalSegments:   len(s.Segments),
		SegmentText:     active,
		CreatedAt:       s.CreatedAt,
		LastAccessed:    s.LastAccessed,
	}
}

type SessionSummary struct {
	ID              string    `json:"id"`
	DocumentName    string    `json:"document_name"`
	CurrentSegment  int       `json:"current_segment"`
	CurrentPosition int       `json:"current_position"`
	VoiceID         string    `json:"voice_id"`
	ReadingSpeed    float64   `json:"reading_speed"`
	FontSize        int       `json:"font_size"`
	DarkMode        bool      `json:"dark_mode"`
	OfflineMode     bool      `json:"offline_mode"`
	TotalSegments   int       `json:"total_segments"`
	SegmentText     string    `json:"segment_text"`
	CreatedAt       time.Time `json:"created_at"`
	LastAccessed    time.Time `json:"last_accessed"`
}

// Bookmark is a saved position inside a session. It carries no foreign key;
// a bookmark may outlive its session.
type Bookmark struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	SegmentIndex int       `json:"segment_index"`
	Position     int       `json:"position"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DocumentMetadata describes an upload after extraction and segmentation.
type DocumentMetadata struct {
	Filename      string `json:"filename"`
	Format        string `json:"format"`
	WordCount     int    `json:"word_count"`
	TotalSegments int    `json:"total_segments"`
}
