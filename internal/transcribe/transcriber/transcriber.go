// Package transcriber drives a single audio chunk through the external
// transcription service, with an on-disk result cache, retry policy, and
// silent-failure/hallucination detection.
package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/kbukum/scribeflow/httpclient"
	"github.com/kbukum/scribeflow/internal/transcribe/model"
	"github.com/kbukum/scribeflow/logger"
	"github.com/kbukum/scribeflow/resilience"
	"github.com/kbukum/scribeflow/transcription"
)

const (
	// MaxPayloadBytes mirrors the external service's hard cap (spec §6.3/§4.3).
	MaxPayloadBytes = 25 * 1024 * 1024
	// SmallFileWarningBytes is the threshold below which a chunk is
	// suspiciously small but still attempted.
	SmallFileWarningBytes = 1024

	cacheDurationTolerance = 0.05

	hallucinationRunLength = 3
	hallucinationMinLength = 5

	silentFailureMinTextLength  = 10
	silentFailureDurationFactor = 0.10
)

// ErrSilentFailure marks a response that passed HTTP transport but failed
// local content validation (empty, degenerate, or hallucinated).
var ErrSilentFailure = errors.New("transcription response failed silent-failure validation")

// Config configures per-chunk retry policy.
type Config struct {
	// MaxRetries is R from spec §4.3; attempts = R+1.
	MaxRetries int
	// InitialBackoff is D0, the first retry delay.
	InitialBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 1 * time.Second
	}
	return c
}

// Transcriber drives one chunk through the provider, cache, and retry policy.
type Transcriber struct {
	provider transcription.Provider
	cfg      Config
	log      *logger.Logger
}

// New creates a Transcriber around the given provider.
func New(provider transcription.Provider, cfg Config, log *logger.Logger) *Transcriber {
	return &Transcriber{provider: provider, cfg: cfg.withDefaults(), log: log}
}

// Transcribe resolves one chunk to a ChunkResult: a cache hit if a valid
// cached response exists, otherwise a submit-and-retry sequence against the
// external service.
func (t *Transcriber) Transcribe(ctx context.Context, chunk model.AudioChunk, cacheDir string) model.ChunkResult {
	cachePath := filepath.Join(cacheDir, fmt.Sprintf("chunk-%04d.json", chunk.Index))

	if cached, ok := t.readCache(cachePath, chunk); ok {
		return toChunkResult(chunk, cached, 0)
	}

	if err := preflight(chunk); err != nil {
		return model.ChunkResult{
			ChunkIndex:   chunk.Index,
			Chunk:        chunk,
			Success:      false,
			Error:        err.Error(),
			NonRetryable: true,
		}
	}

	retries := 0
	retryCfg := resilience.RetryConfig{
		MaxAttempts:    t.cfg.MaxRetries + 1,
		InitialBackoff: t.cfg.InitialBackoff,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         1.0, // ±100%: each delay is uniform in [0, 2×step), then capped at MaxBackoff
		RetryIf:        isRetryableAttemptError,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			retries = attempt
			if t.log != nil {
				t.log.Warn("transcription attempt failed, retrying", map[string]interface{}{
					"chunk": chunk.Index, "attempt": attempt, "error": err.Error(), "backoff": backoff.String(),
				})
			}
		},
	}

	resp, err := resilience.Retry(ctx, retryCfg, func() (*transcription.TranscriptionResponse, error) {
		r, tErr := t.provider.Transcribe(ctx, transcription.TranscriptionRequest{AudioPath: chunk.SourcePath})
		if tErr != nil {
			return nil, tErr
		}
		if vErr := validateResponse(r, chunk); vErr != nil {
			return nil, vErr
		}
		return r, nil
	})

	if err != nil {
		return model.ChunkResult{
			ChunkIndex:   chunk.Index,
			Chunk:        chunk,
			Success:      false,
			Error:        err.Error(),
			RetryCount:   retries,
			NonRetryable: !isRetryableAttemptError(err),
		}
	}

	if err := t.writeCache(cachePath, resp); err != nil && t.log != nil {
		t.log.Warn("failed to write transcription cache", map[string]interface{}{"chunk": chunk.Index, "error": err.Error()})
	}

	return toChunkResult(chunk, resp, retries)
}

// isRetryableAttemptError decides whether a failed attempt should be
// retried: non-retryable HTTP statuses (400/413, surfaced as validation
// errors) fail immediately; everything else — network errors, timeouts,
// 5xx, and locally-detected silent failures — is retried.
func isRetryableAttemptError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *httpclient.Error
	if errors.As(err, &httpErr) {
		return httpErr.Retryable
	}
	if errors.Is(err, ErrSilentFailure) {
		return true
	}
	return true // unclassified errors (connection-level) are retried by default
}

func preflight(chunk model.AudioChunk) error {
	info, err := os.Stat(chunk.SourcePath)
	if err != nil {
		return fmt.Errorf("stat chunk file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("chunk %d is empty", chunk.Index)
	}
	if info.Size() > MaxPayloadBytes {
		return fmt.Errorf("chunk %d is %d bytes, over the %d byte service limit", chunk.Index, info.Size(), MaxPayloadBytes)
	}
	return nil
}

// validateResponse implements the three-part silent-failure detection in
// spec §4.3.
func validateResponse(resp *transcription.TranscriptionResponse, chunk model.AudioChunk) error {
	if len(resp.Segments) == 0 {
		return fmt.Errorf("%w: empty segment list", ErrSilentFailure)
	}
	if len(strings.TrimSpace(resp.Text)) < silentFailureMinTextLength && resp.Duration < silentFailureDurationFactor*chunk.Duration {
		return fmt.Errorf("%w: text too short relative to reported duration", ErrSilentFailure)
	}
	if run, text := findHallucinationRun(resp.Segments); run {
		return fmt.Errorf("%w: hallucination detected, repeated text %q", ErrSilentFailure, text)
	}
	return nil
}

// findHallucinationRun scans for K consecutive segments whose normalized
// text is identical and at least hallucinationMinLength characters.
func findHallucinationRun(segments []transcription.Segment) (bool, string) {
	run := 1
	for i := 1; i < len(segments); i++ {
		prev := normalizeForComparison(segments[i-1].Text)
		cur := normalizeForComparison(segments[i].Text)
		if cur != "" && cur == prev && len(cur) >= hallucinationMinLength {
			run++
			if run >= hallucinationRunLength {
				return true, segments[i].Text
			}
		} else {
			run = 1
		}
	}
	return false, ""
}

// normalizeForComparison applies NFKD decomposition, strips non-alphanumeric
// runes, lowercases, and collapses whitespace, per spec §4.3's hallucination
// guard definition.
func normalizeForComparison(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue // drop combining marks left by decomposition
		}
		b.WriteRune(r)
	}
	lowered := strings.ToLower(b.String())
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, lowered)
	return strings.Join(strings.Fields(stripped), " ")
}

// --- cache ---

type cachedResponse struct {
	Text     string                    `json:"text"`
	Segments []transcription.Segment   `json:"segments"`
	Duration float64                   `json:"duration"`
	Language string                    `json:"language"`
}

func (t *Transcriber) readCache(path string, chunk model.AudioChunk) (*transcription.TranscriptionResponse, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		_ = os.Remove(path)
		return nil, false
	}
	if chunk.Duration > 0 && math.Abs(cached.Duration-chunk.Duration)/chunk.Duration > cacheDurationTolerance {
		_ = os.Remove(path)
		return nil, false
	}
	return &transcription.TranscriptionResponse{
		Text:     cached.Text,
		Segments: cached.Segments,
		Duration: cached.Duration,
		Language: cached.Language,
	}, true
}

// writeCache writes the response atomically: write to a temp path in the
// same directory, then rename, so concurrent readers never see a partial
// file and a crash mid-write never corrupts the cache.
func (t *Transcriber) writeCache(path string, resp *transcription.TranscriptionResponse) error {
	data, err := json.Marshal(cachedResponse{
		Text:     resp.Text,
		Segments: resp.Segments,
		Duration: resp.Duration,
		Language: resp.Language,
	})
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func toChunkResult(chunk model.AudioChunk, resp *transcription.TranscriptionResponse, retries int) model.ChunkResult {
	segments := make([]model.ServiceSegment, len(resp.Segments))
	for i, s := range resp.Segments {
		segments[i] = model.ServiceSegment{Start: s.Start, End: s.End, Text: s.Text}
	}
	return model.ChunkResult{
		ChunkIndex:            chunk.Index,
		Chunk:                 chunk,
		Success:               true,
		Segments:              segments,
		RetryCount:            retries,
		ReportedAudioDuration: resp.Duration,
	}
}
