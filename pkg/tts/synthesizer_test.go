package tts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAzureSynthesizeWritesWaveform(t *testing.T) {
	var gotBody, gotKey, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		gotFormat = r.Header.Get("X-Microsoft-OutputFormat")
		_, _ = w.Write([]byte("RIFF-audio-bytes"))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "out.wav")
	s := NewAzureSynthesizer(srv.URL, "secret-key", 5*time.Second)
	if err := s.Synthesize(context.Background(), "read <this> & that", "en-US-JennyNeural", out); err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "RIFF-audio-bytes" {
		t.Fatalf("output = %q", data)
	}
	if gotKey != "secret-key" {
		t.Fatalf("subscription key = %q", gotKey)
	}
	if gotFormat == "" {
		t.Fatal("output format header missing")
	}
	if !strings.Contains(gotBody, "name='en-US-JennyNeural'") {
		t.Fatalf("ssml missing voice: %q", gotBody)
	}
	if !strings.Contains(gotBody, "read &lt;this&gt; &amp; that") {
		t.Fatalf("ssml not escaped: %q", gotBody)
	}
}

func TestAzureSynthesizeTruncatedStreamLeavesNoArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Promise more bytes than sent so the client-side copy fails.
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte("RIF"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "out.wav")
	s := NewAzureSynthesizer(srv.URL, "k", 5*time.Second)
	err := s.Synthesize(context.Background(), "text", "en-US-JennyNeural", out)
	if err == nil {
		t.Fatal("expected error on truncated stream")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("truncated artifact left behind: %v", statErr)
	}
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatalf("read dir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestAzureSynthesizeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "out.wav")
	s := NewAzureSynthesizer(srv.URL, "k", 5*time.Second)
	err := s.Synthesize(context.Background(), "text", "en-US-JennyNeural", out)
	if err == nil {
		t.Fatal("expected error on 400 response")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("no artifact should exist on failure: %v", statErr)
	}
}
