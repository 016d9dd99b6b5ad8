package tts

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidVoice indicates a voice outside the supported catalog.
	ErrInvalidVoice = errors.New("invalid voice")
	// ErrSynthesis indicates a provider failure or a missing artifact after
	// a reported success.
	ErrSynthesis = errors.New("speech synthesis failed")
)

const audioExt = ".wav"

// Gateway maps (text, voice) pairs to cached audio artifacts on disk,
// delegating actual synthesis to an external provider. The cache is
// content-addressed: the same pair always lands on the same path, across
// restarts, so each distinct pair is synthesized at most once for the
// lifetime of the cache directory.
type Gateway struct {
	dir   string
	synth Synthesizer
	group singleflight.Group
}

// NewGateway creates the cache directory if missing.
func NewGateway(dir string, synth Synthesizer) (*Gateway, error) {
	if dir == "" {
		return nil, fmt.Errorf("audio cache dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio cache dir: %w", err)
	}
	return &Gateway{dir: dir, synth: synth}, nil
}

// Fingerprint returns the cache key for a (text, voice) pair: a 128-bit
// digest over the UTF-8 text concatenated with the voice id.
func Fingerprint(text, voiceID string) string {
	sum := md5.Sum([]byte(text + voiceID))
	return hex.EncodeToString(sum[:])
}

// Synthesize returns the path of the cached audio for (text, voiceID),
// invoking the provider only on a cache miss. Concurrent identical requests
// share one provider call.
func (g *Gateway) Synthesize(ctx context.Context, text, voiceID string) (string, error) {
	if !IsSupportedVoice(voiceID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVoice, voiceID)
	}
	fingerprint := Fingerprint(text, voiceID)
	path := filepath.Join(g.dir, fingerprint+audioExt)
	if _, err := os.Stat(path); err == nil {
		slog.Debug("audio cache hit", "fingerprint", fingerprint)
		return path, nil
	}

	_, err, _ := g.group.Do(fingerprint, func() (any, error) {
		// Re-check inside the flight: a concurrent caller may have just
		// written the artifact.
		if _, err := os.Stat(path); err == nil {
			return nil, nil
		}
		if err := g.synth.Synthesize(ctx, text, voiceID, path); err != nil {
			// A failed provider call may have left a partial write at the
			// cache path. Remove it so the next request misses and retries
			// instead of serving truncated audio as a hit.
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				slog.Warn("audio cache: partial artifact cleanup failed", "path", path, "err", rmErr)
			}
			return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: artifact missing after synthesis: %s", ErrSynthesis, path)
		}
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	slog.Info("audio synthesized", "fingerprint", fingerprint, "voice", voiceID)
	return path, nil
}

// PrepareOffline synthesizes (or reuses from cache) every segment in order
// and returns a segment-index to artifact-path mapping. The first failure
// aborts the whole batch.
func (g *Gateway) PrepareOffline(ctx context.Context, segments []string, voiceID string) (map[int]string, error) {
	paths := make(map[int]string, len(segments))
	for i, segmentText := range segments {
		path, err := g.Synthesize(ctx, segmentText, voiceID)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		paths[i] = path
	}
	return paths, nil
}

// EvictOlderThan removes cache files older than maxAge. Per-file failures
// are logged and skipped; the sweep itself never fails on a single item.
func (g *Gateway) EvictOlderThan(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		return 0, fmt.Errorf("read audio cache dir: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Warn("audio cache sweep: stat failed", "file", entry.Name(), "err", err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(g.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("audio cache sweep: remove failed", "file", entry.Name(), "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}
