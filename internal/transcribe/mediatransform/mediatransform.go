// Package mediatransform implements the first stage of the transcription
// pipeline: converting a source audio file into an uncompressed, tempo-
// shifted working file the chunker can cut sample-accurately.
package mediatransform

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	goerrors "github.com/kbukum/scribeflow/errors"
	"github.com/kbukum/scribeflow/process"
)

const (
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"

	durationAccuracyTolerance = 0.05
	duplicationMultiplier     = 1.9
	corruptionMultiplier      = 0.5

	longSourceWarningSeconds = 2 * 60 * 60
	loopPatternPeriodSeconds = 1800
	loopPatternWindowSeconds = 60
)

// Config configures the external media tools used to transform audio.
type Config struct {
	FFmpegBinary  string
	FFprobeBinary string
}

func (c Config) ffmpeg() string {
	if c.FFmpegBinary == "" {
		return defaultFFmpegBinary
	}
	return c.FFmpegBinary
}

func (c Config) ffprobe() string {
	if c.FFprobeBinary == "" {
		return defaultFFprobeBinary
	}
	return c.FFprobeBinary
}

// Result is the outcome of processAudio.
type Result struct {
	AcceleratedPath     string
	AcceleratedDuration float64
	OriginalDuration    float64
	OriginalBytes       int64
	Warnings            []string
}

// processRunner abstracts subprocess execution so tests can substitute a
// fake ffmpeg/ffprobe without shelling out.
type processRunner interface {
	Run(ctx context.Context, cmd process.Command) (*process.Result, error)
}

type execProcessRunner struct{}

func (execProcessRunner) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	return process.Run(ctx, cmd)
}

// Transformer applies a tempo shift to source audio and validates the result.
type Transformer struct {
	cfg    Config
	runner processRunner
}

// New creates a Transformer.
func New(cfg Config) *Transformer {
	return &Transformer{cfg: cfg, runner: execProcessRunner{}}
}

// NewForTests constructs a Transformer with an injectable process runner.
func NewForTests(cfg Config, runner processRunner) *Transformer {
	return &Transformer{cfg: cfg, runner: runner}
}

// ProcessAudio applies a tempo filter of factor speedFactor (1.0, 3.0] to
// inputPath, writing an uncompressed PCM working file into workDir, then
// validates the result's duration against the source per spec.
func (t *Transformer) ProcessAudio(ctx context.Context, inputPath string, speedFactor float64, workDir string) (*Result, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("stat source audio: %w", err)
	}
	originalBytes := info.Size()

	originalDuration, err := t.probeDuration(ctx, inputPath)
	if err != nil {
		return nil, goerrors.MediaCorrupted("could not read source duration").WithCause(err)
	}
	if originalDuration <= 0 {
		return nil, goerrors.MediaCorrupted("source duration is zero")
	}

	acceleratedPath := filepath.Join(workDir, "accelerated.wav")
	if err := t.applyTempo(ctx, inputPath, acceleratedPath, speedFactor); err != nil {
		return nil, fmt.Errorf("apply tempo filter: %w", err)
	}

	acceleratedDuration, err := t.probeDuration(ctx, acceleratedPath)
	if err != nil {
		return nil, goerrors.MediaCorrupted("could not read accelerated duration").WithCause(err)
	}

	accInfo, err := os.Stat(acceleratedPath)
	if err != nil {
		return nil, fmt.Errorf("stat accelerated audio: %w", err)
	}

	expected := originalDuration / speedFactor

	switch {
	case accInfo.Size() == 0 || acceleratedDuration < corruptionMultiplier*expected:
		return nil, goerrors.MediaCorrupted("accelerated output is truncated or empty")
	case math.Abs(acceleratedDuration-expected)/expected > durationAccuracyTolerance:
		return nil, goerrors.MediaDurationMismatch(expected, acceleratedDuration)
	case acceleratedDuration > duplicationMultiplier*expected:
		return nil, goerrors.MediaDuplication(expected, acceleratedDuration)
	}

	res := &Result{
		AcceleratedPath:     acceleratedPath,
		AcceleratedDuration: acceleratedDuration,
		OriginalDuration:    originalDuration,
		OriginalBytes:       originalBytes,
	}

	if originalDuration > longSourceWarningSeconds {
		res.Warnings = append(res.Warnings, fmt.Sprintf("source duration %.0fs exceeds 2h; processing may be slow", originalDuration))
	}
	if math.Mod(originalDuration, loopPatternPeriodSeconds) < loopPatternWindowSeconds {
		res.Warnings = append(res.Warnings, "source duration is close to a 30-minute multiple; verify the source isn't a looped recording")
	}

	return res, nil
}

// applyTempo shells out to ffmpeg with a chain of atempo filters, since a
// single atempo stage only supports the [0.5, 2.0] range.
func (t *Transformer) applyTempo(ctx context.Context, inputPath, outputPath string, speedFactor float64) error {
	filter := atempoChain(speedFactor)
	res, err := t.runner.Run(ctx, process.Command{
		Binary: t.cfg.ffmpeg(),
		Args: []string{
			"-y",
			"-i", inputPath,
			"-filter:a", filter,
			"-ac", "1",
			"-ar", "16000",
			outputPath,
		},
	})
	if err != nil {
		if res != nil {
			return fmt.Errorf("ffmpeg failed: %w (stderr: %s)", err, string(res.Stderr))
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// atempoChain expands a speed factor outside atempo's native [0.5, 2.0]
// range into a chain of stages, each within that range, whose product
// equals speedFactor.
func atempoChain(speedFactor float64) string {
	remaining := speedFactor
	var stages []string
	for remaining > 2.0 {
		stages = append(stages, "atempo=2.0")
		remaining /= 2.0
	}
	for remaining < 0.5 {
		stages = append(stages, "atempo=0.5")
		remaining /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%s", strconv.FormatFloat(remaining, 'f', 6, 64)))

	out := stages[0]
	for _, s := range stages[1:] {
		out += "," + s
	}
	return out
}

type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (t *Transformer) probeDuration(ctx context.Context, path string) (float64, error) {
	res, err := t.runner.Run(ctx, process.Command{
		Binary: t.cfg.ffprobe(),
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "json",
			path,
		},
	})
	if err != nil {
		return 0, err
	}
	var parsed ffprobeFormat
	if err := json.Unmarshal(res.Stdout, &parsed); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	d, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", parsed.Format.Duration, err)
	}
	return d, nil
}
