// Package chunker plans and cuts the accelerated working file into audio
// chunks small enough for the external transcription service, preferring
// to cut at silence so words aren't split across chunk boundaries.
package chunker

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/kbukum/scribeflow/internal/transcribe/model"
	"github.com/kbukum/scribeflow/process"
)

const (
	maxChunkBytes    = 18 * 1024 * 1024
	maxChunkDuration = 1200.0 // seconds, accelerated timeline
	minCutDuration   = 0.1    // seconds
)

// SilenceConfig tunes the snap-to-silence cutting strategy.
type SilenceConfig struct {
	ThresholdDB    float64 // e.g. -40
	MinDuration    float64 // minimum silence length to detect, seconds
	Window         float64 // max distance a boundary may snap, seconds
	MinChunkSeconds float64 // never emit a chunk shorter than this via snapping
}

func (c SilenceConfig) withDefaults() SilenceConfig {
	if c.ThresholdDB == 0 {
		c.ThresholdDB = -40
	}
	if c.MinDuration == 0 {
		c.MinDuration = 0.5
	}
	if c.Window == 0 {
		c.Window = 5
	}
	if c.MinChunkSeconds == 0 {
		c.MinChunkSeconds = 30
	}
	return c
}

// Config configures the Chunker.
type Config struct {
	FFmpegBinary string
	Silence      SilenceConfig
}

func (c Config) ffmpeg() string {
	if c.FFmpegBinary == "" {
		return "ffmpeg"
	}
	return c.FFmpegBinary
}

// processRunner abstracts subprocess execution so tests can substitute a
// fake ffmpeg without shelling out.
type processRunner interface {
	Run(ctx context.Context, cmd process.Command) (*process.Result, error)
}

type execProcessRunner struct{}

func (execProcessRunner) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	return process.Run(ctx, cmd)
}

// Chunker plans and cuts audio chunks from an accelerated working file.
type Chunker struct {
	cfg    Config
	runner processRunner
}

// New creates a Chunker.
func New(cfg Config) *Chunker {
	cfg.Silence = cfg.Silence.withDefaults()
	return &Chunker{cfg: cfg, runner: execProcessRunner{}}
}

// NewForTests constructs a Chunker with an injectable process runner.
func NewForTests(cfg Config, runner processRunner) *Chunker {
	cfg.Silence = cfg.Silence.withDefaults()
	return &Chunker{cfg: cfg, runner: runner}
}

// PlanChunks cuts acceleratedPath into an ordered set of AudioChunks, each
// satisfying the 18 MiB / 20 minute caps on the accelerated timeline.
// Returned chunks record original-timeline spans. workDir receives the cut
// chunk files.
func (c *Chunker) PlanChunks(ctx context.Context, acceleratedPath string, acceleratedDuration, originalDuration float64, originalBytes int64, speedFactor float64, workDir string) ([]model.AudioChunk, []string, error) {
	n := targetChunkCount(originalBytes, acceleratedDuration)
	idealOriginalDuration := originalDuration / float64(n)
	idealAcceleratedDuration := idealOriginalDuration / speedFactor

	boundaries := c.planBoundaries(ctx, acceleratedPath, acceleratedDuration, idealAcceleratedDuration, n)

	var chunks []model.AudioChunk
	var warnings []string

	start := 0.0
	for i, end := range boundaries {
		if end > acceleratedDuration {
			end = acceleratedDuration
		}
		if end-start < minCutDuration {
			start = end
			continue
		}

		outPath := filepath.Join(workDir, fmt.Sprintf("chunk-%04d.mp3", i+1))
		actualEnd, warns, err := c.cutWithSizeEnforcement(ctx, acceleratedPath, outPath, start, end, i+1)
		if err != nil {
			return nil, nil, fmt.Errorf("cut chunk %d: %w", i+1, err)
		}
		warnings = append(warnings, warns...)

		chunks = append(chunks, model.AudioChunk{
			Index:      i + 1,
			SourcePath: outPath,
			Duration:   (actualEnd - start) * speedFactor,
			StartTime:  start * speedFactor,
		})

		start = actualEnd
	}

	return chunks, warnings, nil
}

// targetChunkCount implements the N = max(minChunksBySize, minChunksByDuration) plan.
func targetChunkCount(originalBytes int64, acceleratedDuration float64) int {
	minBySize := int(math.Ceil(float64(originalBytes) / float64(maxChunkBytes)))
	minByDuration := int(math.Ceil(acceleratedDuration / maxChunkDuration))
	n := minBySize
	if minByDuration > n {
		n = minByDuration
	}
	if n < 1 {
		n = 1
	}
	return n
}

// planBoundaries returns the accelerated-timeline end-of-chunk boundaries.
// It attempts snap-to-silence first; any failure to detect silences falls
// back to a uniform cut.
func (c *Chunker) planBoundaries(ctx context.Context, acceleratedPath string, acceleratedDuration, idealAcceleratedDuration float64, n int) []float64 {
	targets := make([]float64, 0, n)
	for k := 1; k < n; k++ {
		targets = append(targets, float64(k)*idealAcceleratedDuration)
	}
	targets = append(targets, acceleratedDuration)

	silences, err := c.detectSilences(ctx, acceleratedPath)
	if err != nil || len(silences) == 0 {
		return targets // uniform cut fallback
	}

	boundaries := make([]float64, len(targets))
	prev := 0.0
	for i, target := range targets {
		if i == len(targets)-1 {
			boundaries[i] = target // never move the final boundary past total duration
			continue
		}
		snapped, ok := nearestSilenceCenter(silences, target, c.cfg.Silence.Window)
		if ok && snapped-prev >= c.cfg.Silence.MinChunkSeconds {
			boundaries[i] = snapped
		} else {
			boundaries[i] = target // fall back to exact cut for this boundary
		}
		prev = boundaries[i]
	}
	return boundaries
}

func nearestSilenceCenter(silences []model.Silence, target, window float64) (float64, bool) {
	best := math.Inf(1)
	bestCenter := 0.0
	found := false
	for _, s := range silences {
		center := (s.Start + s.End) / 2
		dist := math.Abs(center - target)
		if dist <= window && dist < best {
			best = dist
			bestCenter = center
			found = true
		}
	}
	return bestCenter, found
}

// cutWithSizeEnforcement cuts [start, end) from src into dst, halving the
// target end when the encoded output exceeds the size cap, per spec §4.2's
// post-cut size enforcement. Returns the actual end used.
func (c *Chunker) cutWithSizeEnforcement(ctx context.Context, src, dst string, start, end float64, index int) (float64, []string, error) {
	target := end
	for {
		if err := c.cut(ctx, src, dst, start, target); err != nil {
			return 0, nil, err
		}
		info, err := os.Stat(dst)
		if err != nil {
			return 0, nil, fmt.Errorf("stat cut chunk: %w", err)
		}
		if info.Size() <= maxChunkBytes {
			return target, nil, nil
		}
		newTarget := start + (target-start)/2
		if target-start <= 1.0 {
			return target, []string{fmt.Sprintf("chunk %d is %d bytes, over the 18 MiB target after halving to the minimum; emitting oversized", index, info.Size())}, nil
		}
		target = newTarget
	}
}

func (c *Chunker) cut(ctx context.Context, src, dst string, start, end float64) error {
	res, err := c.runner.Run(ctx, process.Command{
		Binary: c.cfg.ffmpeg(),
		Args: []string{
			"-y",
			"-i", src,
			"-ss", strconv.FormatFloat(start, 'f', 3, 64),
			"-to", strconv.FormatFloat(end, 'f', 3, 64),
			"-c:a", "libmp3lame",
			"-b:a", "64k",
			dst,
		},
	})
	if err != nil {
		if res != nil {
			return fmt.Errorf("ffmpeg cut failed: %w (stderr: %s)", err, string(res.Stderr))
		}
		return fmt.Errorf("ffmpeg cut failed: %w", err)
	}
	return nil
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*([0-9.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*([0-9.]+)\s*\|\s*silence_duration:\s*([0-9.]+)`)
)

// detectSilences runs ffmpeg's silencedetect filter and parses its stderr
// output into a list of silence intervals on the accelerated timeline.
func (c *Chunker) detectSilences(ctx context.Context, path string) ([]model.Silence, error) {
	sc := c.cfg.Silence
	res, err := c.runner.Run(ctx, process.Command{
		Binary: c.cfg.ffmpeg(),
		Args: []string{
			"-i", path,
			"-af", fmt.Sprintf("silencedetect=noise=%gdB:d=%g", sc.ThresholdDB, sc.MinDuration),
			"-f", "null", "-",
		},
	})
	// silencedetect writes to stderr regardless of exit status; ffmpeg's
	// non-zero exit on some builds when writing to /dev/null is expected.
	if res == nil {
		return nil, err
	}

	var silences []model.Silence
	var pendingStart float64
	haveStart := false

	for _, line := range splitLines(string(res.Stderr)) {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			pendingStart, _ = strconv.ParseFloat(m[1], 64)
			haveStart = true
			continue
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && haveStart {
			end, _ := strconv.ParseFloat(m[1], 64)
			dur, _ := strconv.ParseFloat(m[2], 64)
			silences = append(silences, model.Silence{Start: pendingStart, End: end, Duration: dur})
			haveStart = false
		}
	}
	return silences, nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
