package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"readit/internal/extract"
	"readit/internal/segment"
	"readit/internal/util"
	"readit/pkg/ai"
	"readit/pkg/domain"
	"readit/pkg/storage"
	"readit/pkg/store"
	"readit/pkg/tts"
)

const fallbackAnswer = "Sorry, I encountered an error. Please try again."

const (
	defaultReadingSpeed = 1.0
	defaultFontSize     = 16
)

// Config holds runtime configuration for the core application.
type Config struct {
	Store           store.Store
	Objects         storage.ObjectStore
	Speech          *tts.Gateway
	Generator       ai.TextGenerator
	WordsPerSegment int
	AskTimeout      time.Duration
	PresignExpiry   time.Duration
}

// App wires the document pipeline, session state, and provider gateways.
type App struct {
	store           store.Store
	objects         storage.ObjectStore
	speech          *tts.Gateway
	generator       ai.TextGenerator
	wordsPerSegment int
	askTimeout      time.Duration
	presignExpiry   time.Duration
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Speech == nil {
		return nil, fmt.Errorf("speech gateway required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("text generator required")
	}
	wordsPerSegment := cfg.WordsPerSegment
	if wordsPerSegment <= 0 {
		wordsPerSegment = segment.DefaultWordsPerSegment
	}
	askTimeout := cfg.AskTimeout
	if askTimeout <= 0 {
		askTimeout = 30 * time.Second
	}
	presignExpiry := cfg.PresignExpiry
	if presignExpiry <= 0 {
		presignExpiry = 15 * time.Minute
	}
	return &App{
		store:           cfg.Store,
		objects:         cfg.Objects,
		speech:          cfg.Speech,
		generator:       cfg.Generator,
		wordsPerSegment: wordsPerSegment,
		askTimeout:      askTimeout,
		presignExpiry:   presignExpiry,
	}, nil
}

// UploadResult is the response payload for a successful upload.
type UploadResult struct {
	SessionID    string                  `json:"session_id"`
	Metadata     domain.DocumentMetadata `json:"metadata"`
	FirstSegment string                  `json:"first_segment"`
}

// UploadDocument extracts and segments the uploaded file, then creates a
// reading session positioned at segment zero. Extraction and segmentation
// errors abort the whole operation; no partial session is created. The
// original file is retained in object storage when one is configured.
func (a *App) UploadDocument(ctx context.Context, filename string, r io.Reader, size int64) (UploadResult, error) {
	if strings.TrimSpace(filename) == "" {
		return UploadResult{}, fmt.Errorf("%w: filename required", ErrValidation)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return UploadResult{}, fmt.Errorf("read upload: %w", err)
	}
	text, err := extract.Extract(data, filename)
	if err != nil {
		return UploadResult{}, err
	}
	segments := segment.Split(text, a.wordsPerSegment)
	if len(segments) == 0 {
		return UploadResult{}, fmt.Errorf("%w: document contains no text", ErrValidation)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	storageKey := ""
	if a.objects != nil {
		storageKey = buildStorageKey(id, filename)
		contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := a.objects.Put(ctx, storageKey, bytes.NewReader(data), size, contentType); err != nil {
			return UploadResult{}, fmt.Errorf("save original: %w", err)
		}
	}

	session := domain.ReadingSession{
		ID:              id,
		DocumentName:    filepath.Base(filename),
		StorageKey:      storageKey,
		Segments:        segments,
		CurrentSegment:  0,
		CurrentPosition: 0,
		VoiceID:         tts.DefaultVoice,
		ReadingSpeed:    defaultReadingSpeed,
		FontSize:        defaultFontSize,
		CachedAudio:     map[int]string{},
		CreatedAt:       now,
		LastAccessed:    now,
	}
	if err := a.store.CreateSession(session); err != nil {
		if a.objects != nil && storageKey != "" {
			_ = a.objects.Delete(ctx, storageKey)
		}
		return UploadResult{}, fmt.Errorf("create session: %w", err)
	}
	util.LoggerFromContext(ctx).Info("session created", "session_id", id, "document", session.DocumentName, "segments", len(segments))

	format, _ := extract.Format(filename)
	return UploadResult{
		SessionID: id,
		Metadata: domain.DocumentMetadata{
			Filename:      session.DocumentName,
			Format:        format,
			WordCount:     segment.WordCount(segments),
			TotalSegments: len(segments),
		},
		FirstSegment: segments[0],
	}, nil
}

// GetSession returns one session; reading refreshes its last_accessed stamp.
func (a *App) GetSession(id string) (domain.ReadingSession, error) {
	s, ok, err := a.store.GetSession(id)
	if err != nil {
		return domain.ReadingSession{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return domain.ReadingSession{}, ErrSessionNotFound
	}
	return s, nil
}

// UpdateSession applies a partial update. Only recognized mutable fields are
// touched; unknown field names are silently ignored. last_accessed is always
// refreshed.
func (a *App) UpdateSession(id string, fields map[string]any) (domain.ReadingSession, error) {
	current, err := a.GetSession(id)
	if err != nil {
		return domain.ReadingSession{}, err
	}
	updates, err := buildSessionUpdates(current, fields)
	if err != nil {
		return domain.ReadingSession{}, err
	}
	updates["last_accessed"] = time.Now().UTC()
	found, err := a.store.UpdateSession(id, updates)
	if err != nil {
		return domain.ReadingSession{}, fmt.Errorf("update session: %w", err)
	}
	if !found {
		return domain.ReadingSession{}, ErrSessionNotFound
	}
	return a.GetSession(id)
}

// buildSessionUpdates maps request field names onto typed column updates via
// an explicit allow-list. Unrecognized names are skipped, not rejected.
func buildSessionUpdates(current domain.ReadingSession, fields map[string]any) (map[string]any, error) {
	updates := make(map[string]any, len(fields)+1)
	for name, raw := range fields {
		switch name {
		case "current_segment":
			v, ok := asInt(raw)
			if !ok || v < 0 || v >= len(current.Segments) {
				return nil, fmt.Errorf("%w: current_segment out of range", ErrValidation)
			}
			updates[name] = v
		case "current_position":
			v, ok := asInt(raw)
			if !ok || v < 0 {
				return nil, fmt.Errorf("%w: current_position must be non-negative", ErrValidation)
			}
			updates[name] = v
		case "voice_id":
			v, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: voice_id must be a string", ErrValidation)
			}
			updates[name] = v
		case "reading_speed":
			v, ok := asFloat(raw)
			if !ok || v <= 0 {
				return nil, fmt.Errorf("%w: reading_speed must be positive", ErrValidation)
			}
			updates[name] = v
		case "font_size":
			v, ok := asInt(raw)
			if !ok || v <= 0 {
				return nil, fmt.Errorf("%w: font_size must be positive", ErrValidation)
			}
			updates[name] = v
		case "dark_mode":
			v, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: dark_mode must be a boolean", ErrValidation)
			}
			updates[name] = v
		case "offline_mode":
			v, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: offline_mode must be a boolean", ErrValidation)
			}
			updates[name] = v
		default:
			// Unknown field names are ignored by contract.
		}
	}
	return updates, nil
}

func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// BookmarkInput carries a bookmark creation request. Pointers distinguish
// absent fields from zero values.
type BookmarkInput struct {
	SegmentIndex *int   `json:"segment_index"`
	Position     *int   `json:"position"`
	Note         string `json:"note"`
}

// AddBookmark saves a position inside a session. segment_index and position
// are required and must be non-negative; referential integrity to a live
// session is deliberately not enforced.
func (a *App) AddBookmark(sessionID string, in BookmarkInput) (domain.Bookmark, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Bookmark{}, fmt.Errorf("%w: session id required", ErrValidation)
	}
	if in.SegmentIndex == nil || in.Position == nil {
		return domain.Bookmark{}, fmt.Errorf("%w: segment_index and position are required", ErrValidation)
	}
	if *in.SegmentIndex < 0 || *in.Position < 0 {
		return domain.Bookmark{}, fmt.Errorf("%w: segment_index and position must be non-negative", ErrValidation)
	}
	bookmark := domain.Bookmark{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		SegmentIndex: *in.SegmentIndex,
		Position:     *in.Position,
		Note:         in.Note,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveBookmark(bookmark); err != nil {
		return domain.Bookmark{}, fmt.Errorf("save bookmark: %w", err)
	}
	return bookmark, nil
}

// ListBookmarks returns a session's bookmarks in insertion order. A session
// with no bookmarks yields an empty list, not an error.
func (a *App) ListBookmarks(sessionID string) ([]domain.Bookmark, error) {
	bookmarks, err := a.store.ListBookmarks(sessionID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return bookmarks, nil
}

// DeleteBookmark removes a bookmark; deleting an unknown id succeeds.
func (a *App) DeleteBookmark(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: bookmark id required", ErrValidation)
	}
	if err := a.store.DeleteBookmark(id); err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return nil
}

// SynthesizeSpeech returns the cached or freshly synthesized audio path for
// the given text and voice. An empty voice falls back to the default.
func (a *App) SynthesizeSpeech(ctx context.Context, text, voiceID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text required", ErrValidation)
	}
	if voiceID == "" {
		voiceID = tts.DefaultVoice
	}
	return a.speech.Synthesize(ctx, text, voiceID)
}

// PrepareOffline caches audio for every segment of a session and records the
// mapping on the session. Any single-segment failure aborts the batch and
// leaves the session unchanged.
func (a *App) PrepareOffline(ctx context.Context, sessionID string) (int, error) {
	session, err := a.GetSession(sessionID)
	if err != nil {
		return 0, err
	}
	paths, err := a.speech.PrepareOffline(ctx, session.Segments, session.VoiceID)
	if err != nil {
		return 0, err
	}
	found, err := a.store.UpdateSession(sessionID, map[string]any{
		"cached_audio":  paths,
		"offline_mode":  true,
		"last_accessed": time.Now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("record cached audio: %w", err)
	}
	if !found {
		return 0, ErrSessionNotFound
	}
	return len(paths), nil
}

// Ask forwards a question with its context to the language-model provider.
// Provider failures are absorbed: the caller always gets an answer string,
// falling back to a fixed message when the provider misbehaves.
func (a *App) Ask(ctx context.Context, question, contextText string) string {
	systemPrompt := "You are a helpful assistant that answers questions about text documents."
	userPrompt := fmt.Sprintf(
		"Context: %s\n\nQuestion: %s\n\nPlease provide a clear and concise answer based on the context above.",
		contextText, question,
	)
	ctx, cancel := context.WithTimeout(ctx, a.askTimeout)
	defer cancel()
	answer, err := a.generator.GenerateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		util.LoggerFromContext(ctx).Error("question answering failed", "err", err)
		return fallbackAnswer
	}
	return answer
}

// DocumentURL returns a pre-signed URL for the session's original upload.
func (a *App) DocumentURL(ctx context.Context, sessionID string) (string, string, error) {
	session, err := a.GetSession(sessionID)
	if err != nil {
		return "", "", err
	}
	if a.objects == nil || strings.TrimSpace(session.StorageKey) == "" {
		return "", "", fmt.Errorf("%w: original document not retained", ErrValidation)
	}
	url, err := a.objects.PresignGet(ctx, session.StorageKey, a.presignExpiry)
	if err != nil {
		return "", "", fmt.Errorf("presign document: %w", err)
	}
	return url, session.DocumentName, nil
}

// PurgeInactiveSessions removes sessions whose last_accessed is older than
// the retention window. Intended for the periodic maintenance sweep.
func (a *App) PurgeInactiveSessions(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	removed, err := a.store.PurgeSessionsBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	if removed > 0 {
		slog.Info("purged inactive sessions", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// EvictStaleAudio removes cached audio artifacts older than maxAge.
func (a *App) EvictStaleAudio(maxAge time.Duration) (int, error) {
	return a.speech.EvictOlderThan(maxAge)
}

func buildStorageKey(sessionID, filename string) string {
	name := sanitizeFilename(filepath.Base(filename))
	if name == "" {
		name = "document"
	}
	return path.Join("documents", sessionID, name)
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if r <= 0x7f {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
				b.WriteRune(r)
				lastUnderscore = false
				continue
			}
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
