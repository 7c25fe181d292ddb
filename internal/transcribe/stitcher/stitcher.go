// Package stitcher reassembles per-chunk transcription results into one
// ordered transcript on the original (pre-speed-up) timeline.
package stitcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kbukum/scribeflow/internal/transcribe/model"
)

const (
	gapOverlapThresholdSeconds = 1.0
	duplicateLookback          = 3

	qualityTimelineDiscrepancySeconds = 60.0
	qualityMinDensityPerMinute        = 1.0
	qualityMaxFailureRate             = 0.3
)

// Result is the stitched transcript plus any warnings surfaced along the way.
type Result struct {
	Segments []model.Segment
	Warnings []string
}

// Stitch reassembles results (which need not arrive pre-sorted) into the
// final ordered transcript, per spec §4.5.
func Stitch(results []model.ChunkResult, speedFactor float64) Result {
	sorted := make([]model.ChunkResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkIndex < sorted[j].ChunkIndex })

	var (
		segments       []model.Segment
		warnings       []string
		lastEndTime    float64
		failedChunks   int
		recentTexts    []string
		originalDuration float64
	)

	for _, r := range sorted {
		if d := r.Chunk.StartTime + r.Chunk.Duration; d > originalDuration {
			originalDuration = d
		}

		if diff := r.Chunk.StartTime - lastEndTime; diff > gapOverlapThresholdSeconds {
			warnings = append(warnings, fmt.Sprintf("GAP: chunk %d starts %.2fs after the previous chunk ended", r.ChunkIndex, diff))
		} else if diff < -gapOverlapThresholdSeconds {
			warnings = append(warnings, fmt.Sprintf("OVERLAP: chunk %d starts %.2fs before the previous chunk ended", r.ChunkIndex, -diff))
		}

		if !r.Success {
			failedChunks++
			warnings = append(warnings, fmt.Sprintf("chunk %d (span %.2fs-%.2fs) failed: %s", r.ChunkIndex, r.Chunk.StartTime, r.Chunk.EndTime(), r.Error))
			lastEndTime = r.Chunk.StartTime + r.Chunk.Duration
			continue
		}

		for _, s := range r.Segments {
			text := strings.TrimSpace(s.Text)
			if text == "" {
				continue
			}
			if isRecentDuplicate(text, recentTexts) {
				warnings = append(warnings, fmt.Sprintf("suppressed duplicate segment text in chunk %d: %q", r.ChunkIndex, text))
				continue
			}

			start := s.Start*speedFactor + r.Chunk.StartTime
			end := s.End*speedFactor + r.Chunk.StartTime

			segments = append(segments, model.Segment{
				Index: len(segments) + 1,
				Start: start,
				End:   end,
				Text:  text,
			})
			recentTexts = pushRecent(recentTexts, text)
			lastEndTime = end
		}
	}

	warnings = append(warnings, qualityWarnings(sorted, segments, originalDuration, failedChunks)...)

	return Result{Segments: segments, Warnings: warnings}
}

func isRecentDuplicate(text string, recent []string) bool {
	for _, r := range recent {
		if r == text {
			return true
		}
	}
	return false
}

func pushRecent(recent []string, text string) []string {
	recent = append(recent, text)
	if len(recent) > duplicateLookback {
		recent = recent[len(recent)-duplicateLookback:]
	}
	return recent
}

// qualityWarnings implements the global quality gate: timeline discrepancy,
// segment density, and failure rate thresholds.
func qualityWarnings(results []model.ChunkResult, segments []model.Segment, originalDuration float64, failedChunks int) []string {
	if len(results) == 0 || originalDuration <= 0 {
		return nil
	}

	var lastSegmentEnd float64
	if len(segments) > 0 {
		lastSegmentEnd = segments[len(segments)-1].End
	}
	discrepancy := originalDuration - lastSegmentEnd
	if discrepancy < 0 {
		discrepancy = -discrepancy
	}

	densityPerMinute := float64(len(segments)) / (originalDuration / 60.0)
	failureRate := float64(failedChunks) / float64(len(results))

	if discrepancy > qualityTimelineDiscrepancySeconds || densityPerMinute < qualityMinDensityPerMinute || failureRate > qualityMaxFailureRate {
		return []string{fmt.Sprintf(
			"QUALITY_ALERT: discrepancy=%.1fs density=%.2f/min failureRate=%.2f",
			discrepancy, densityPerMinute, failureRate,
		)}
	}
	return nil
}
