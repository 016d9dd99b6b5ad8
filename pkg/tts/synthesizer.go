package tts

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Synthesizer renders text to an audio waveform written to outPath.
// The cache gateway treats it as an external collaborator and never retries.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, outPath string) error
}

const defaultSynthesisTimeout = 60 * time.Second

// AzureSynthesizer calls the Azure Cognitive Services speech REST endpoint.
type AzureSynthesizer struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewAzureSynthesizer builds a Synthesizer for one region endpoint, e.g.
// "https://eastus.tts.speech.microsoft.com/cognitiveservices/v1".
func NewAzureSynthesizer(endpoint, apiKey string, timeout time.Duration) *AzureSynthesizer {
	if timeout <= 0 {
		timeout = defaultSynthesisTimeout
	}
	return &AzureSynthesizer{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize posts SSML for the given voice and writes the returned waveform
// to outPath.
func (a *AzureSynthesizer) Synthesize(ctx context.Context, text, voiceID, outPath string) error {
	if a.endpoint == "" {
		return fmt.Errorf("speech endpoint required")
	}
	body := buildSSML(text, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "riff-16khz-16bit-mono-pcm")
	if a.apiKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("speech api error: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	// Write to a temp file and rename, so a stream that dies mid-copy never
	// leaves a partial waveform at outPath.
	tmp, err := os.CreateTemp(filepath.Dir(outPath), filepath.Base(outPath)+".tmp*")
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close audio file: %w", err)
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("place audio file: %w", err)
	}
	return nil
}

func buildSSML(text, voiceID string) string {
	var escaped strings.Builder
	_ = xml.EscapeText(&escaped, []byte(text))
	return fmt.Sprintf(
		"<speak version='1.0' xml:lang='en-US'><voice name='%s'>%s</voice></speak>",
		voiceID, escaped.String(),
	)
}
