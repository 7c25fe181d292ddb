package stitcher

import (
	"strings"
	"testing"

	"github.com/kbukum/scribeflow/internal/transcribe/model"
)

func successResult(index int, start, duration float64, segs ...model.ServiceSegment) model.ChunkResult {
	return model.ChunkResult{
		ChunkIndex: index,
		Chunk:      model.AudioChunk{Index: index, StartTime: start, Duration: duration},
		Success:    true,
		Segments:   segs,
	}
}

func TestStitch_HappyPath(t *testing.T) {
	results := []model.ChunkResult{
		successResult(1, 0, 10,
			model.ServiceSegment{Start: 0, End: 2, Text: "hello there"},
			model.ServiceSegment{Start: 2, End: 4, Text: "general kenobi"},
		),
		successResult(2, 10, 10,
			model.ServiceSegment{Start: 0, End: 2, Text: "you are a bold one"},
		),
	}

	got := Stitch(results, 2.0)
	if len(got.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(got.Segments), got.Segments)
	}
	if got.Segments[0].Start != 0 || got.Segments[0].End != 4 {
		t.Errorf("segment 0 timestamps = [%v, %v], want [0, 4]", got.Segments[0].Start, got.Segments[0].End)
	}
	// chunk 2 segment: s.Start*F + chunk.StartTime = 0*2+10 = 10
	if got.Segments[2].Start != 10 {
		t.Errorf("segment 2 start = %v, want 10", got.Segments[2].Start)
	}
	for i, s := range got.Segments {
		if s.Index != i+1 {
			t.Errorf("segment %d has Index %d, want %d", i, s.Index, i+1)
		}
	}
}

func TestStitch_FailedChunkAdvancesTimelineAndWarns(t *testing.T) {
	results := []model.ChunkResult{
		{
			ChunkIndex: 1,
			Chunk:      model.AudioChunk{Index: 1, StartTime: 0, Duration: 10},
			Success:    false,
			Error:      "exhausted retries",
		},
		successResult(2, 10, 10, model.ServiceSegment{Start: 0, End: 2, Text: "after the gap"}),
	}

	got := Stitch(results, 1.0)
	if len(got.Segments) != 1 {
		t.Fatalf("expected 1 segment from the surviving chunk, got %d", len(got.Segments))
	}

	foundFailureWarning := false
	for _, w := range got.Warnings {
		if strings.Contains(w, "chunk 1") && strings.Contains(w, "failed") {
			foundFailureWarning = true
		}
	}
	if !foundFailureWarning {
		t.Errorf("expected a per-chunk failure warning, got: %v", got.Warnings)
	}

	// Chunk 2 starts where the failed chunk 1 ends, so once the timeline has
	// advanced past chunk 1 there is no discontinuity to report.
	for _, w := range got.Warnings {
		if strings.HasPrefix(w, "GAP:") || strings.HasPrefix(w, "OVERLAP:") {
			t.Errorf("expected no GAP/OVERLAP warning after the failed chunk, got %q", w)
		}
	}
}

func TestStitch_DuplicateSuppression(t *testing.T) {
	results := []model.ChunkResult{
		successResult(1, 0, 10,
			model.ServiceSegment{Start: 0, End: 2, Text: "thanks for watching"},
			model.ServiceSegment{Start: 2, End: 4, Text: "thanks for watching"},
		),
	}

	got := Stitch(results, 1.0)
	if len(got.Segments) != 1 {
		t.Fatalf("expected duplicate segment to be suppressed, got %d segments", len(got.Segments))
	}

	suppressed := false
	for _, w := range got.Warnings {
		if strings.Contains(w, "suppressed duplicate") {
			suppressed = true
		}
	}
	if !suppressed {
		t.Errorf("expected a duplicate-suppression warning, got: %v", got.Warnings)
	}
}

func TestStitch_GapWarning(t *testing.T) {
	results := []model.ChunkResult{
		successResult(1, 0, 10, model.ServiceSegment{Start: 0, End: 1, Text: "first chunk text"}),
		successResult(2, 15, 10, model.ServiceSegment{Start: 0, End: 1, Text: "second chunk text"}),
	}

	got := Stitch(results, 1.0)
	found := false
	for _, w := range got.Warnings {
		if strings.HasPrefix(w, "GAP:") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a GAP warning for a >1s discontinuity, got: %v", got.Warnings)
	}
}

func TestStitch_QualityAlertOnHighFailureRate(t *testing.T) {
	results := []model.ChunkResult{
		{ChunkIndex: 1, Chunk: model.AudioChunk{Index: 1, StartTime: 0, Duration: 100}, Success: false, Error: "exhausted"},
		successResult(2, 100, 100, model.ServiceSegment{Start: 0, End: 1, Text: "a lonely little segment"}),
	}

	got := Stitch(results, 1.0)
	found := false
	for _, w := range got.Warnings {
		if strings.HasPrefix(w, "QUALITY_ALERT") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected QUALITY_ALERT with a 50%% failure rate, got: %v", got.Warnings)
	}
}
