// Package videopost implements the video post-processing boundary
// pipeline: subtitle burn-in and image-to-video zoom, both thin wrappers
// around an external media codec invocation followed by artifact storage.
package videopost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kbukum/scribeflow/process"
	"github.com/kbukum/scribeflow/storage"
)

// Config configures the external media tool used for post-processing.
type Config struct {
	FFmpegBinary string
}

func (c Config) ffmpeg() string {
	if c.FFmpegBinary == "" {
		return "ffmpeg"
	}
	return c.FFmpegBinary
}

// Processor burns subtitles into video and renders image-to-video zoom clips.
type Processor struct {
	cfg   Config
	store storage.Storage
}

// New creates a Processor.
func New(cfg Config, store storage.Storage) *Processor {
	return &Processor{cfg: cfg, store: store}
}

// BurnSubtitleRequest describes a subtitle burn-in job.
type BurnSubtitleRequest struct {
	VideoPath    string // local path to the source video
	SubtitlePath string // local path to the .srt file to burn in
}

// BurnSubtitles hardcodes subtitlePath onto videoPath using ffmpeg's subtitle
// filter, then persists the result to storage at outputPath.
func (p *Processor) BurnSubtitles(ctx context.Context, workDir, outputPath string, req BurnSubtitleRequest) error {
	rendered := filepath.Join(workDir, "burned.mp4")
	res, err := process.Run(ctx, process.Command{
		Binary: p.cfg.ffmpeg(),
		Args: []string{
			"-y",
			"-i", req.VideoPath,
			"-vf", fmt.Sprintf("subtitles=%s", req.SubtitlePath),
			"-c:a", "copy",
			rendered,
		},
	})
	if err != nil {
		if res != nil {
			return fmt.Errorf("ffmpeg subtitle burn-in failed: %w (stderr: %s)", err, string(res.Stderr))
		}
		return fmt.Errorf("ffmpeg subtitle burn-in failed: %w", err)
	}
	return p.persist(ctx, rendered, outputPath)
}

// ZoomRequest describes an image-to-video zoom job (the classic Ken Burns pan/zoom).
type ZoomRequest struct {
	ImagePath      string
	DurationSeconds float64
	ZoomFactor     float64 // e.g. 1.3 for a 30% zoom over the clip
}

// Zoom renders a slow pan/zoom video clip from a single still image, using
// ffmpeg's zoompan filter, and persists the result to storage at outputPath.
func (p *Processor) Zoom(ctx context.Context, workDir, outputPath string, req ZoomRequest) error {
	if req.DurationSeconds <= 0 {
		req.DurationSeconds = 5
	}
	if req.ZoomFactor <= 1.0 {
		req.ZoomFactor = 1.3
	}
	const frameRate = 25
	frames := int(req.DurationSeconds * frameRate)
	zoomStep := (req.ZoomFactor - 1.0) / float64(frames)

	rendered := filepath.Join(workDir, "zoom.mp4")
	res, err := process.Run(ctx, process.Command{
		Binary: p.cfg.ffmpeg(),
		Args: []string{
			"-y",
			"-loop", "1",
			"-i", req.ImagePath,
			"-vf", fmt.Sprintf("zoompan=z='min(zoom+%f,%f)':d=%d:s=1920x1080", zoomStep, req.ZoomFactor, frames),
			"-t", fmt.Sprintf("%.2f", req.DurationSeconds),
			"-r", fmt.Sprintf("%d", frameRate),
			"-pix_fmt", "yuv420p",
			rendered,
		},
	})
	if err != nil {
		if res != nil {
			return fmt.Errorf("ffmpeg zoom render failed: %w (stderr: %s)", err, string(res.Stderr))
		}
		return fmt.Errorf("ffmpeg zoom render failed: %w", err)
	}
	return p.persist(ctx, rendered, outputPath)
}

func (p *Processor) persist(ctx context.Context, localPath, outputPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open rendered video: %w", err)
	}
	defer f.Close()
	return p.store.Upload(ctx, outputPath, f)
}
