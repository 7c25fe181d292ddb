// Package orchestrator drives a single transcription job through every
// pipeline phase: media transform, chunking, batch transcription, timeline
// stitching, optional speaker enrichment, and artifact emission.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/kbukum/scribeflow/diarization"
	goerrors "github.com/kbukum/scribeflow/errors"
	"github.com/kbukum/scribeflow/internal/transcribe/batch"
	"github.com/kbukum/scribeflow/internal/transcribe/chunker"
	"github.com/kbukum/scribeflow/internal/transcribe/mediatransform"
	"github.com/kbukum/scribeflow/internal/transcribe/model"
	"github.com/kbukum/scribeflow/internal/transcribe/stitcher"
	"github.com/kbukum/scribeflow/logger"
	"github.com/kbukum/scribeflow/observability"
	"github.com/kbukum/scribeflow/storage"
)

var tracer = otel.Tracer("github.com/kbukum/scribeflow/internal/transcribe/orchestrator")

// cleanupDelay is how long a job's temp directory survives past terminal
// status, so callers can still fetch referenced artifacts before it's swept.
const cleanupDelay = 5 * time.Minute

// Request describes one transcription job.
type Request struct {
	JobID       string
	RequestID   string
	SourcePath  string // uploaded source audio, already on local disk
	SpeedFactor float64
	Format      model.OutputFormat
	TempDir     string // job-exclusive scratch directory, already created
	OutputDir   string // storage-relative directory for this job's artifacts
}

// Orchestrator drives phases 1-7 of the transcription pipeline for one job.
// It holds no per-job state itself; Run builds and returns the job record.
type Orchestrator struct {
	transform *mediatransform.Transformer
	chunk     *chunker.Chunker
	batch     *batch.Coordinator
	diarize   diarization.Provider // nil disables speaker enrichment
	store     storage.Storage
	log       *logger.Logger
	metrics   *observability.Metrics // nil disables job-level instrumentation
}

// New creates an Orchestrator. diarize may be nil to disable enrichment;
// metrics may be nil to skip instrumentation.
func New(transform *mediatransform.Transformer, chunk *chunker.Chunker, batchCoordinator *batch.Coordinator, diarize diarization.Provider, store storage.Storage, log *logger.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{transform: transform, chunk: chunk, batch: batchCoordinator, diarize: diarize, store: store, log: log, metrics: metrics}
}

// Run drives the full pipeline for req and returns the finished transcript,
// or an error for any phase that fails hard (media transform, chunk
// planning, batch abort, or zero segments produced overall).
func (o *Orchestrator) Run(ctx context.Context, req Request) (result *model.TranscriptionResult, err error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Run", oteltrace.WithAttributes(
		attribute.String("job.id", req.JobID),
		attribute.Float64("job.speed_factor", req.SpeedFactor),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	job := model.Job{
		ID:          req.JobID,
		RequestID:   req.RequestID,
		SpeedFactor: req.SpeedFactor,
		Format:      req.Format,
		Status:      model.StatusProcessing,
		StartedAt:   time.Now(),
		TempDir:     req.TempDir,
		OutputDir:   req.OutputDir,
	}

	defer o.scheduleCleanup(&job)
	defer o.recordJobMetric(ctx, &job)

	// Phase 1: MediaTransform
	transformed, err := o.transform.ProcessAudio(ctx, req.SourcePath, req.SpeedFactor, req.TempDir)
	if err != nil {
		job.Status = model.StatusFailed
		job.FinishedAt = time.Now()
		return nil, err
	}
	job.SourceDuration = transformed.OriginalDuration
	job.AcceleratedDuration = transformed.AcceleratedDuration
	warnings := append([]string{}, transformed.Warnings...)

	// Phase 2: Chunker
	chunks, chunkWarnings, err := o.chunk.PlanChunks(ctx, transformed.AcceleratedPath, transformed.AcceleratedDuration, transformed.OriginalDuration, transformed.OriginalBytes, req.SpeedFactor, req.TempDir)
	if err != nil {
		job.Status = model.StatusFailed
		job.FinishedAt = time.Now()
		return nil, err
	}
	job.ChunksPlanned = len(chunks)
	warnings = append(warnings, chunkWarnings...)

	// Phase 3: BatchCoordinator
	cacheDir := filepath.Join(req.TempDir, "cache")
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		job.Status = model.StatusFailed
		job.FinishedAt = time.Now()
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	chunkResults, err := o.batch.TranscribeAll(ctx, chunks, cacheDir)
	if err != nil || len(chunkResults) != len(chunks) {
		job.Status = model.StatusFailed
		job.FinishedAt = time.Now()
		if err == nil {
			err = fmt.Errorf("batch coordinator returned %d results for %d chunks", len(chunkResults), len(chunks))
		}
		return nil, err
	}

	totalRawSegments := 0
	for _, r := range chunkResults {
		job.ChunksProcessed++
		job.TotalRetries += r.RetryCount
		if !r.Success {
			job.ChunksFailed++
			continue
		}
		totalRawSegments += len(r.Segments)
	}

	// Phase 4: Validate
	if totalRawSegments == 0 {
		job.Status = model.StatusFailed
		job.FinishedAt = time.Now()
		return nil, goerrors.NoSegmentsProduced()
	}

	// Phase 5: TimelineStitcher
	stitched := stitcher.Stitch(chunkResults, req.SpeedFactor)
	warnings = append(warnings, stitched.Warnings...)

	segments := stitched.Segments
	if o.diarize != nil {
		segments = o.annotateSpeakers(ctx, req.SourcePath, segments)
	}

	fullText := buildFullText(segments)

	result := &model.TranscriptionResult{
		Job:      job,
		Segments: segments,
		FullText: fullText,
		Warnings: warnings,
	}

	// Phase 6: Emit artifacts
	if err := o.emitArtifact(ctx, &job, result); err != nil && o.log != nil {
		o.log.Warn("failed to persist transcript artifact", map[string]interface{}{"job": job.ID, "error": err.Error()})
	}

	// Phase 7: Determine final status
	hasQualityAlert := false
	for _, w := range warnings {
		if strings.HasPrefix(w, "QUALITY_ALERT") {
			hasQualityAlert = true
			break
		}
	}
	switch {
	case job.ChunksFailed == 0 && !hasQualityAlert:
		job.Status = model.StatusCompleted
	case len(segments) > 0:
		job.Status = model.StatusCompletedWithWarns
	default:
		job.Status = model.StatusFailed
	}
	job.FinishedAt = time.Now()
	result.Job = job

	return result, nil
}

// annotateSpeakers runs diarization against the original source audio and
// assigns each stitched segment the speaker label of whichever diarized
// interval overlaps it most. Diarization failures are logged and otherwise
// ignored — this enrichment is optional and never fails the job.
func (o *Orchestrator) annotateSpeakers(ctx context.Context, sourcePath string, segments []model.Segment) []model.Segment {
	resp, err := o.diarize.Diarize(ctx, diarization.DiarizationRequest{AudioPath: sourcePath})
	if err != nil {
		if o.log != nil {
			o.log.Warn("diarization enrichment failed, continuing without speaker labels", map[string]interface{}{"error": err.Error()})
		}
		return segments
	}

	for i := range segments {
		segments[i].Speaker = bestOverlapSpeaker(segments[i], resp.Segments)
	}
	return segments
}

func bestOverlapSpeaker(seg model.Segment, diarized []diarization.Segment) string {
	best := ""
	bestOverlap := 0.0
	for _, d := range diarized {
		overlap := overlapDuration(seg.Start, seg.End, d.Start, d.End)
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = d.Speaker
		}
	}
	return best
}

func overlapDuration(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end <= start {
		return 0
	}
	return end - start
}

func buildFullText(segments []model.Segment) string {
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	return strings.Join(texts, " ")
}

// emitArtifact writes the artifact matching the job's requested format and
// records its storage path on the result.
func (o *Orchestrator) emitArtifact(ctx context.Context, job *model.Job, result *model.TranscriptionResult) error {
	switch job.Format {
	case model.FormatSubtitle:
		path := filepath.Join(job.OutputDir, "transcript.srt")
		if err := o.store.Upload(ctx, path, strings.NewReader(buildSRT(result.Segments))); err != nil {
			return err
		}
		result.SubtitlePath = path
	case model.FormatPlainText:
		path := filepath.Join(job.OutputDir, "transcript.txt")
		if err := o.store.Upload(ctx, path, strings.NewReader(result.FullText)); err != nil {
			return err
		}
		result.PlainTextPath = path
	default:
		path := filepath.Join(job.OutputDir, "transcript.json")
		data, err := json.Marshal(structuredPayload{Segments: result.Segments, FullText: result.FullText})
		if err != nil {
			return err
		}
		if err := o.store.Upload(ctx, path, strings.NewReader(string(data))); err != nil {
			return err
		}
		result.StructuredPath = path
	}
	return nil
}

type structuredPayload struct {
	Segments []model.Segment `json:"segments"`
	FullText string          `json:"fullText"`
}

// buildSRT renders segments as a standard SubRip subtitle file: numbered
// blocks separated by a blank line, each with an index, a timecode line,
// and one text line.
func buildSRT(segments []model.Segment) string {
	var b strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(s.Start), srtTimestamp(s.End), s.Text)
	}
	return b.String()
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := time.Duration(seconds * float64(time.Second))
	h := total / time.Hour
	total -= h * time.Hour
	m := total / time.Minute
	total -= m * time.Minute
	s := total / time.Second
	total -= s * time.Second
	ms := total / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// recordJobMetric emits the job-level operation counter and, for failed
// jobs, an error counter. Deferred, so it always sees the job's final
// status and timestamps regardless of which phase returned.
func (o *Orchestrator) recordJobMetric(ctx context.Context, job *model.Job) {
	if o.metrics == nil {
		return
	}
	elapsed := job.FinishedAt.Sub(job.StartedAt)
	o.metrics.RecordOperation(ctx, "transcription", "job", string(job.Status), elapsed)
	if job.Status == model.StatusFailed {
		o.metrics.RecordError(ctx, "job_failed", "orchestrator")
	}
}

// scheduleCleanup removes the job's temp directory cleanupDelay after it
// reaches a terminal status, detached from the request context so it still
// runs after the HTTP response has been sent.
func (o *Orchestrator) scheduleCleanup(job *model.Job) {
	tempDir := job.TempDir
	if tempDir == "" {
		return
	}
	go func() {
		time.Sleep(cleanupDelay)
		if err := os.RemoveAll(tempDir); err != nil && o.log != nil {
			o.log.Warn("failed to clean up job temp directory", map[string]interface{}{"job": job.ID, "dir": tempDir, "error": err.Error()})
		}
	}()
}
