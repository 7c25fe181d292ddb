// Package whisper implements transcription.Provider against an
// OpenAI-Whisper-compatible external transcription service.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kbukum/scribeflow/httpclient"
	"github.com/kbukum/scribeflow/provider"
	"github.com/kbukum/scribeflow/transcription"
)

const (
	// ProviderName is the registered name for the Whisper provider.
	ProviderName = "whisper"

	// MaxPayloadBytes is the external service's hard cap on upload size.
	MaxPayloadBytes = 25 * 1024 * 1024

	defaultWhisperURL     = "http://localhost:8387"
	defaultWhisperModel   = "whisper-1"
	defaultWhisperTimeout = 10 * time.Minute
)

// Config holds configuration for the Whisper transcription provider.
type Config struct {
	URL     string        `json:"url" yaml:"url"`
	Model   string        `json:"model" yaml:"model"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Provider implements transcription.Provider against the external
// verbose_json transcription contract.
type Provider struct {
	cfg    Config
	client *httpclient.Adapter
}

// NewProvider creates a new Whisper transcription provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.URL == "" {
		cfg.URL = defaultWhisperURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultWhisperTimeout
	}
	c, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.URL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build whisper http client: %w", err)
	}
	return &Provider{cfg: cfg, client: c}, nil
}

// Factory returns a provider.Factory that creates Whisper Provider
// instances from a generic config map.
func Factory() provider.Factory[transcription.Provider] {
	return func(cfg map[string]any) (transcription.Provider, error) {
		wc := Config{}
		if v, ok := cfg["url"].(string); ok {
			wc.URL = v
		}
		if v, ok := cfg["model"].(string); ok {
			wc.Model = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			wc.Timeout = v
		}
		return NewProvider(wc)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the external transcription service is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	resp, err := p.client.Do(ctx, httpclient.Request{Method: "GET", Path: "/health"})
	return err == nil && resp != nil && resp.IsSuccess()
}

// Transcribe submits a chunk file to the external service using the
// multipart contract in spec §6.3: field "file" carries the audio bytes,
// "model" the fixed identifier, "response_format" is always
// "verbose_json", and "timestamp_granularities[]" is always "segment".
// The returned error is an *httpclient.Error when the failure originated
// from the HTTP layer; callers use httpclient.IsRetryable to decide
// whether to retry the attempt.
func (p *Provider) Transcribe(ctx context.Context, req transcription.TranscriptionRequest) (*transcription.TranscriptionResponse, error) {
	info, err := os.Stat(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("stat audio file: %w", err)
	}
	if info.Size() == 0 {
		return nil, httpclient.NewValidationError("audio chunk is empty")
	}
	if info.Size() > MaxPayloadBytes {
		return nil, httpclient.NewValidationError(fmt.Sprintf("audio chunk of %d bytes exceeds the %d byte service limit", info.Size(), MaxPayloadBytes))
	}

	data, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}

	body := &httpclient.MultipartBody{
		Fields: map[string]string{
			"model":                     model,
			"response_format":           "verbose_json",
			"timestamp_granularities[]": "segment",
		},
		Files: []httpclient.FileField{
			{
				FieldName: "file",
				FileName:  filepath.Base(req.AudioPath),
				Data:      data,
			},
		},
	}

	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: "POST",
		Path:   "/transcribe",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	var result verboseJSONResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}

	return toTranscriptionResponse(&result), nil
}

// --- external verbose_json contract (spec §6.3) ---

type verboseJSONResponse struct {
	Task     string             `json:"task"`
	Language string             `json:"language"`
	Duration float64            `json:"duration"`
	Text     string             `json:"text"`
	Segments []verboseJSONSegment `json:"segments"`
}

type verboseJSONSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func toTranscriptionResponse(resp *verboseJSONResponse) *transcription.TranscriptionResponse {
	segments := make([]transcription.Segment, len(resp.Segments))
	for i, seg := range resp.Segments {
		segments[i] = transcription.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		}
	}
	return &transcription.TranscriptionResponse{
		Text:     resp.Text,
		Segments: segments,
		Duration: resp.Duration,
		Language: resp.Language,
	}
}
