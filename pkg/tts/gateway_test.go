package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSynthesizer struct {
	calls        int
	fail         bool
	skipOutput   bool
	partialWrite bool
	failText     string
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, text, _, outPath string) error {
	f.calls++
	if f.partialWrite {
		// Simulates a stream dying mid-copy: bytes on disk, then an error.
		_ = os.WriteFile(outPath, []byte("RIF"), 0o644)
		return errors.New("connection reset mid-stream")
	}
	if f.fail || (f.failText != "" && text == f.failText) {
		return errors.New("provider exploded")
	}
	if f.skipOutput {
		return nil
	}
	return os.WriteFile(outPath, []byte("RIFF"+text), 0o644)
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("hello world", "en-US-JennyNeural")
	b := Fingerprint("hello world", "en-US-JennyNeural")
	if a != b {
		t.Fatalf("same inputs gave %q and %q", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("fingerprint length = %d, want 32 hex chars", len(a))
	}
	if Fingerprint("hello world!", "en-US-JennyNeural") == a {
		t.Fatal("one-character text change kept the same fingerprint")
	}
	if Fingerprint("hello world", "en-US-GuyNeural") == a {
		t.Fatal("voice change kept the same fingerprint")
	}
}

func TestSynthesizeCachesSecondCall(t *testing.T) {
	synth := &fakeSynthesizer{}
	g, err := NewGateway(t.TempDir(), synth)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	first, err := g.Synthesize(context.Background(), "read me", DefaultVoice)
	if err != nil {
		t.Fatalf("first synthesize: %v", err)
	}
	second, err := g.Synthesize(context.Background(), "read me", DefaultVoice)
	if err != nil {
		t.Fatalf("second synthesize: %v", err)
	}
	if first != second {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}
	if synth.calls != 1 {
		t.Fatalf("provider invoked %d times, want 1", synth.calls)
	}
}

func TestSynthesizeInvalidVoice(t *testing.T) {
	g, err := NewGateway(t.TempDir(), &fakeSynthesizer{})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	_, err = g.Synthesize(context.Background(), "text", "klingon-basso")
	if !errors.Is(err, ErrInvalidVoice) {
		t.Fatalf("err = %v, want ErrInvalidVoice", err)
	}
}

func TestSynthesizeProviderFailure(t *testing.T) {
	g, err := NewGateway(t.TempDir(), &fakeSynthesizer{fail: true})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	_, err = g.Synthesize(context.Background(), "text", DefaultVoice)
	if !errors.Is(err, ErrSynthesis) {
		t.Fatalf("err = %v, want ErrSynthesis", err)
	}
}

func TestSynthesizePartialArtifactNotCached(t *testing.T) {
	synth := &fakeSynthesizer{partialWrite: true}
	g, err := NewGateway(t.TempDir(), synth)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	_, err = g.Synthesize(context.Background(), "read me", DefaultVoice)
	if !errors.Is(err, ErrSynthesis) {
		t.Fatalf("err = %v, want ErrSynthesis", err)
	}
	leftover := filepath.Join(g.dir, Fingerprint("read me", DefaultVoice)+audioExt)
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Fatalf("partial artifact left at cache path: %v", err)
	}

	// The provider recovers; the same request must retry instead of hitting
	// a poisoned cache entry.
	synth.partialWrite = false
	path, err := g.Synthesize(context.Background(), "read me", DefaultVoice)
	if err != nil {
		t.Fatalf("synthesize after recovery: %v", err)
	}
	if synth.calls != 2 {
		t.Fatalf("provider invoked %d times, want 2", synth.calls)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "RIFFread me" {
		t.Fatalf("artifact = %q, want the full waveform", data)
	}
}

func TestSynthesizeMissingArtifactAfterSuccess(t *testing.T) {
	g, err := NewGateway(t.TempDir(), &fakeSynthesizer{skipOutput: true})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	_, err = g.Synthesize(context.Background(), "text", DefaultVoice)
	if !errors.Is(err, ErrSynthesis) {
		t.Fatalf("err = %v, want ErrSynthesis", err)
	}
}

func TestPrepareOfflineAbortsBatchOnFirstFailure(t *testing.T) {
	synth := &fakeSynthesizer{failText: "segment two"}
	g, err := NewGateway(t.TempDir(), synth)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	segments := []string{"segment one", "segment two", "segment three"}
	_, err = g.PrepareOffline(context.Background(), segments, DefaultVoice)
	if !errors.Is(err, ErrSynthesis) {
		t.Fatalf("err = %v, want ErrSynthesis", err)
	}
	// The failing segment aborted the batch before segment three.
	if synth.calls != 2 {
		t.Fatalf("provider invoked %d times, want 2", synth.calls)
	}
}

func TestPrepareOfflineMapsEverySegment(t *testing.T) {
	g, err := NewGateway(t.TempDir(), &fakeSynthesizer{})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	segments := []string{"a", "b", "c"}
	paths, err := g.PrepareOffline(context.Background(), segments, DefaultVoice)
	if err != nil {
		t.Fatalf("prepare offline: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("len(paths) = %d, want 3", len(paths))
	}
	for i := range segments {
		if _, err := os.Stat(paths[i]); err != nil {
			t.Fatalf("segment %d artifact missing: %v", i, err)
		}
	}
}

func TestEvictOlderThan(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGateway(dir, &fakeSynthesizer{})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	old := filepath.Join(dir, Fingerprint("old", DefaultVoice)+audioExt)
	fresh := filepath.Join(dir, Fingerprint("fresh", DefaultVoice)+audioExt)
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("RIFF"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := g.EvictOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("old artifact still present: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh artifact removed: %v", err)
	}
}

func TestGatewayCacheSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	first := &fakeSynthesizer{}
	g1, err := NewGateway(dir, first)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if _, err := g1.Synthesize(context.Background(), "persist me", DefaultVoice); err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	second := &fakeSynthesizer{}
	g2, err := NewGateway(dir, second)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if _, err := g2.Synthesize(context.Background(), "persist me", DefaultVoice); err != nil {
		t.Fatalf("synthesize after restart: %v", err)
	}
	if second.calls != 0 {
		t.Fatalf("provider invoked %d times after restart, want 0 (disk cache)", second.calls)
	}
}
