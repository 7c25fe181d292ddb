// Package batch fans a job's chunks out to the transcriber under a bounded
// worker pool, then drives a global retry loop over whatever chunks are
// still failing once the pool drains.
package batch

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/kbukum/scribeflow/internal/transcribe/model"
	"github.com/kbukum/scribeflow/internal/transcribe/transcriber"
	"github.com/kbukum/scribeflow/observability"
	"github.com/kbukum/scribeflow/pipeline"
	"github.com/kbukum/scribeflow/resilience"
)

// Config tunes the batch coordinator's concurrency and global retry budget.
type Config struct {
	// Concurrency is P, the number of chunks transcribed in parallel.
	Concurrency int
	// GlobalRetries is G, the number of whole-batch retry passes over
	// chunks still failing after the pool drains.
	GlobalRetries int
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.GlobalRetries <= 0 {
		c.GlobalRetries = 3
	}
	return c
}

// Coordinator fans chunks out to a Transcriber, sharing one circuit breaker
// across every chunk so repeated failures against the external service trip
// it for the whole batch, not per chunk.
type Coordinator struct {
	t       *transcriber.Transcriber
	cfg     Config
	cb      *resilience.CircuitBreaker
	metrics *observability.Metrics // nil disables chunk-level instrumentation
}

// New creates a Coordinator. metrics may be nil to skip instrumentation.
func New(t *transcriber.Transcriber, cfg Config, cb *resilience.CircuitBreaker, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{t: t, cfg: cfg.withDefaults(), cb: cb, metrics: metrics}
}

// TranscribeAll runs every chunk through the transcriber under P-way
// concurrency, then retries only the failed subset up to G times with a
// 3×attempt second wait between passes. Results are returned sorted by
// chunk index regardless of how many passes were needed.
func (c *Coordinator) TranscribeAll(ctx context.Context, chunks []model.AudioChunk, cacheDir string) ([]model.ChunkResult, error) {
	results := make(map[int]model.ChunkResult, len(chunks))

	pending := chunks
	for attempt := 0; ; attempt++ {
		if len(pending) == 0 {
			break
		}

		passResults := c.runPass(ctx, pending, cacheDir)
		for _, r := range passResults {
			results[r.ChunkIndex] = r
		}

		var failed []model.AudioChunk
		for _, r := range passResults {
			if !r.Success && !r.NonRetryable {
				failed = append(failed, r.Chunk)
			}
		}
		pending = failed

		if len(pending) == 0 || attempt >= c.cfg.GlobalRetries {
			break
		}

		select {
		case <-ctx.Done():
			return sortedResults(results), ctx.Err()
		case <-time.After(time.Duration(3*(attempt+1)) * time.Second):
		}
	}

	return sortedResults(results), nil
}

// runPass transcribes the given chunks concurrently with up to Concurrency
// workers. Individual chunk failures never abort the pass — they are
// folded into the ChunkResult returned for that chunk.
func (c *Coordinator) runPass(ctx context.Context, chunks []model.AudioChunk, cacheDir string) []model.ChunkResult {
	p := pipeline.FromSlice(chunks)
	out := pipeline.Parallel(p, c.cfg.Concurrency, func(ctx context.Context, chunk model.AudioChunk) (model.ChunkResult, error) {
		return c.transcribeThroughBreaker(ctx, chunk, cacheDir), nil
	})
	results, err := pipeline.Collect(ctx, out)
	if err != nil {
		// The worker never returns an error, so Collect fails only when
		// ctx ends; the results gathered up to that point are returned.
		return results
	}
	return results
}

// transcribeThroughBreaker wraps a single chunk's full attempt sequence (all
// of the transcriber's own retries) in the batch's shared circuit breaker,
// so a string of exhausted chunks trips the breaker for the rest of the job.
func (c *Coordinator) transcribeThroughBreaker(ctx context.Context, chunk model.AudioChunk, cacheDir string) model.ChunkResult {
	started := time.Now()
	result := c.doTranscribe(ctx, chunk, cacheDir)
	c.recordChunkMetric(ctx, result, time.Since(started))
	return result
}

func (c *Coordinator) doTranscribe(ctx context.Context, chunk model.AudioChunk, cacheDir string) model.ChunkResult {
	if c.cb == nil {
		return c.t.Transcribe(ctx, chunk, cacheDir)
	}

	var result model.ChunkResult
	cbErr := c.cb.Execute(func() error {
		result = c.t.Transcribe(ctx, chunk, cacheDir)
		if !result.Success {
			return errors.New(result.Error)
		}
		return nil
	})
	if cbErr != nil && result.ChunkIndex == 0 {
		// Circuit was already open; synthesize a failed result without
		// having attempted the call at all.
		result = model.ChunkResult{ChunkIndex: chunk.Index, Chunk: chunk, Success: false, Error: cbErr.Error()}
	}
	return result
}

func (c *Coordinator) recordChunkMetric(ctx context.Context, result model.ChunkResult, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if !result.Success {
		status = "failed"
		c.metrics.RecordError(ctx, "chunk_transcribe_failed", "batch")
	}
	c.metrics.RecordOperation(ctx, "transcription", "chunk_transcribe", status, elapsed)
}

func sortedResults(results map[int]model.ChunkResult) []model.ChunkResult {
	out := make([]model.ChunkResult, 0, len(results))
	for _, r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out
}
