package httpapi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	goerrors "github.com/kbukum/scribeflow/errors"
	"github.com/kbukum/scribeflow/internal/transcribe/model"
	"github.com/kbukum/scribeflow/internal/transcribe/orchestrator"
	"github.com/kbukum/scribeflow/resilience"
	"github.com/kbukum/scribeflow/server"
	"github.com/kbukum/scribeflow/validation"
)

var allowedFormats = []string{"json", "srt", "txt"}

var allowedAudioExt = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true, ".flac": true, ".aac": true,
}

const (
	minSpeedFactor = 1.0
	maxSpeedFactor = 3.0
)

type jobSnapshot struct {
	ID                  string  `json:"id"`
	Status              string  `json:"status"`
	ChunksPlanned       int     `json:"chunksPlanned"`
	ChunksProcessed     int     `json:"chunksProcessed"`
	ChunksFailed        int     `json:"chunksFailed"`
	TotalRetries        int     `json:"totalRetries"`
	SourceDuration      float64 `json:"sourceDuration"`
	AcceleratedDuration float64 `json:"acceleratedDuration"`
	WallTimeSeconds     float64 `json:"wallTimeSeconds"`
}

type transcriptBody struct {
	Segments []model.Segment `json:"segments"`
	FullText string           `json:"fullText"`
	Formats  *formatPaths     `json:"formats,omitempty"`
}

type formatPaths struct {
	SRTPath string `json:"srtPath,omitempty"`
	TXTPath string `json:"txtPath,omitempty"`
}

type transcribeResponse struct {
	Job        jobSnapshot `json:"job"`
	Transcript transcriptBody `json:"transcript"`
	Warnings   []string    `json:"warnings,omitempty"`
}

func snapshotOf(j model.Job) jobSnapshot {
	return jobSnapshot{
		ID:                  j.ID,
		Status:              string(j.Status),
		ChunksPlanned:       j.ChunksPlanned,
		ChunksProcessed:     j.ChunksProcessed,
		ChunksFailed:        j.ChunksFailed,
		TotalRetries:        j.TotalRetries,
		SourceDuration:      j.SourceDuration,
		AcceleratedDuration: j.AcceleratedDuration,
		WallTimeSeconds:     j.WallTime().Seconds(),
	}
}

// Transcribe handles POST /transcribe: an "audio" multipart field, optional
// "speed" and "format" fields, and runs the full transcription pipeline
// synchronously, returning the transcript in the requested format.
func (h *Handler) Transcribe(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		server.RespondWithError(c, goerrors.MissingField("audio"))
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedAudioExt[ext] {
		server.RespondWithError(c, goerrors.InvalidFormat("audio", "one of mp3, wav, m4a, ogg, flac, aac"))
		return
	}
	if h.dirs.MaxUploadBytes > 0 && fileHeader.Size > h.dirs.MaxUploadBytes {
		server.RespondWithError(c, goerrors.Validation(fmt.Sprintf("audio exceeds maximum upload size of %d bytes", h.dirs.MaxUploadBytes)))
		return
	}

	speed, format, err := parseTranscribeParams(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	jobID := uuid.New().String()
	requestID, _ := c.Get("request_id")

	var result *model.TranscriptionResult
	admissionErr := h.admission.Execute(c.Request.Context(), func() error {
		tempDir := filepath.Join(h.dirs.TempDir, "job_"+jobID)
		if err := os.MkdirAll(tempDir, 0o750); err != nil {
			return fmt.Errorf("create job temp directory: %w", err)
		}

		sourcePath := filepath.Join(tempDir, "source"+ext)
		if err := c.SaveUploadedFile(fileHeader, sourcePath); err != nil {
			return fmt.Errorf("save uploaded audio: %w", err)
		}

		var runErr error
		result, runErr = h.orchestrator.Run(c.Request.Context(), orchestrator.Request{
			JobID:       jobID,
			RequestID:   fmt.Sprint(requestID),
			SourcePath:  sourcePath,
			SpeedFactor: speed,
			Format:      format,
			TempDir:     tempDir,
			OutputDir:   filepath.Join(h.dirs.OutputPrefix, jobID),
		})
		return runErr
	})

	if admissionErr != nil {
		if errors.Is(admissionErr, resilience.ErrBulkheadFull) || errors.Is(admissionErr, resilience.ErrBulkheadTimeout) {
			// Rejected before the job ever started: no temp directory was
			// created, so no job log should appear either.
			server.RespondWithError(c, goerrors.ServiceUnavailable("transcription pipeline at capacity, retry later"))
			return
		}
		h.writeJobLog(jobID, admissionErr)
		server.RespondWithError(c, admissionErr)
		return
	}
	h.writeJobLog(jobID, nil)

	h.respondTranscript(c, result)
}

func parseTranscribeParams(c *gin.Context) (float64, model.OutputFormat, error) {
	speed := minSpeedFactor * 2 // 2.0 default
	if v := c.PostForm("speed"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, "", goerrors.InvalidFormat("speed", "a number")
		}
		speed = parsed
	}
	if speed < minSpeedFactor {
		speed = minSpeedFactor
	}
	if speed > maxSpeedFactor {
		speed = maxSpeedFactor
	}

	format := model.FormatStructured
	if v := c.PostForm("format"); v != "" {
		if err := validation.New().OneOf("format", v, allowedFormats).Validate(); err != nil {
			return 0, "", err
		}
		switch v {
		case "json":
			format = model.FormatStructured
		case "srt":
			format = model.FormatSubtitle
		case "txt":
			format = model.FormatPlainText
		}
	}
	return speed, format, nil
}

// respondTranscript writes the transcript in the job's requested format:
// srt/txt stream the persisted artifact bytes back verbatim, json returns
// the structured envelope spec §6.2 describes.
func (h *Handler) respondTranscript(c *gin.Context, result *model.TranscriptionResult) {
	switch result.Job.Format {
	case model.FormatSubtitle:
		h.streamArtifact(c, result.SubtitlePath, "application/x-subrip")
	case model.FormatPlainText:
		h.streamArtifact(c, result.PlainTextPath, "text/plain; charset=utf-8")
	default:
		server.RespondOK(c, transcribeResponse{
			Job: snapshotOf(result.Job),
			Transcript: transcriptBody{
				Segments: result.Segments,
				FullText: result.FullText,
			},
			Warnings: result.Warnings,
		})
	}
}

func (h *Handler) streamArtifact(c *gin.Context, path, contentType string) {
	if path == "" {
		server.RespondWithError(c, goerrors.Internal(fmt.Errorf("requested artifact was not persisted")))
		return
	}
	reader, err := h.store.Download(c.Request.Context(), path)
	if err != nil {
		server.RespondWithError(c, goerrors.Internal(err))
		return
	}
	defer reader.Close()

	c.Status(200)
	c.Header("Content-Type", contentType)
	if _, err := io.Copy(c.Writer, reader); err != nil && h.log != nil {
		h.log.Warn("failed to stream artifact to client", map[string]interface{}{"path": path, "error": err.Error()})
	}
}

// writeJobLog drops a small marker file once a job reaches a terminal
// state (success or failure), so GET /status/{jobId} can report
// "completed" after the job's temp directory is swept per spec §6.1.
func (h *Handler) writeJobLog(jobID string, runErr error) {
	if err := os.MkdirAll(h.dirs.JobLogDir, 0o750); err != nil {
		if h.log != nil {
			h.log.Warn("failed to create job log directory", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	status := "ok"
	if runErr != nil {
		status = "error: " + runErr.Error()
	}
	path := filepath.Join(h.dirs.JobLogDir, jobID+".log")
	if err := os.WriteFile(path, []byte(status), 0o640); err != nil && h.log != nil {
		h.log.Warn("failed to write job log", map[string]interface{}{"job": jobID, "error": err.Error()})
	}
}
