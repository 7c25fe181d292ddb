// Package httpapi wires the transcription, image synthesis, and video
// post-processing pipelines onto Gin routes: request parsing, admission
// control, and response formatting, with all pipeline logic delegated to
// internal/transcribe, internal/imagegen, and internal/videopost.
package httpapi

import (
	"github.com/kbukum/scribeflow/internal/imagegen"
	"github.com/kbukum/scribeflow/internal/transcribe/orchestrator"
	"github.com/kbukum/scribeflow/internal/videopost"
	"github.com/kbukum/scribeflow/logger"
	"github.com/kbukum/scribeflow/resilience"
	"github.com/kbukum/scribeflow/storage"
)

// Dirs holds the local-filesystem and storage-relative paths the handlers
// need for job scratch space, artifact persistence, and status tracking.
type Dirs struct {
	TempDir      string // local scratch root; jobs live at TempDir/job_{id}
	JobLogDir    string // local marker-file root for GET /status/{jobId}
	OutputPrefix string // storage-relative root; artifacts live at OutputPrefix/{id}
	MaxUploadBytes int64
}

// Handler holds every dependency the HTTP surface needs.
type Handler struct {
	orchestrator *orchestrator.Orchestrator
	imagegen     *imagegen.Pipeline
	videopost    *videopost.Processor
	store        storage.Storage
	admission    *resilience.Bulkhead
	dirs         Dirs
	log          *logger.Logger
}

// New creates a Handler. imagegen and videopost may be nil if those
// boundary pipelines are not configured; their routes then respond 503.
func New(orch *orchestrator.Orchestrator, imageGen *imagegen.Pipeline, videoPost *videopost.Processor, store storage.Storage, admission *resilience.Bulkhead, dirs Dirs, log *logger.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		imagegen:     imageGen,
		videopost:    videoPost,
		store:        store,
		admission:    admission,
		dirs:         dirs,
		log:          log.WithComponent("httpapi"),
	}
}
