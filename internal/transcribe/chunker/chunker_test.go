package chunker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/scribeflow/internal/transcribe/model"
	"github.com/kbukum/scribeflow/process"
)

// fakeChunkRunner answers ffmpeg silencedetect calls with a canned stderr
// transcript and, on cut calls, writes a placeholder file of cutBytes bytes
// to the output path so size-enforcement sees a realistic file size.
type fakeChunkRunner struct {
	cutBytes      int64
	silenceStderr string
}

func (f *fakeChunkRunner) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	for _, a := range cmd.Args {
		if a == "-af" {
			return &process.Result{Stderr: []byte(f.silenceStderr)}, nil
		}
	}
	dst := cmd.Args[len(cmd.Args)-1]
	if err := os.WriteFile(dst, make([]byte, f.cutBytes), 0o644); err != nil {
		return nil, err
	}
	return &process.Result{}, nil
}

func TestTargetChunkCount(t *testing.T) {
	tests := []struct {
		name                string
		originalBytes       int64
		acceleratedDuration float64
		want                int
	}{
		{"small file short duration", 1 * 1024 * 1024, 60, 1},
		{"size dominates", 90 * 1024 * 1024, 60, 5},
		{"duration dominates", 1 * 1024 * 1024, 3600, 3},
		{"both equal", 36 * 1024 * 1024, 2400, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := targetChunkCount(tt.originalBytes, tt.acceleratedDuration)
			if got != tt.want {
				t.Errorf("targetChunkCount(%d, %v) = %d, want %d", tt.originalBytes, tt.acceleratedDuration, got, tt.want)
			}
		})
	}
}

func TestNearestSilenceCenter(t *testing.T) {
	silences := []model.Silence{
		{Start: 10, End: 11, Duration: 1},  // center 10.5
		{Start: 50, End: 52, Duration: 2},  // center 51
	}

	center, ok := nearestSilenceCenter(silences, 12, 5)
	if !ok || center != 10.5 {
		t.Errorf("expected snap to 10.5 within window, got %v ok=%v", center, ok)
	}

	_, ok = nearestSilenceCenter(silences, 30, 5)
	if ok {
		t.Errorf("expected no snap when nearest silence is outside the window")
	}
}

func TestSplitLines(t *testing.T) {
	got := splitLines("a\nb\nc")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitLines returned %d lines, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSilenceConfigDefaults(t *testing.T) {
	c := SilenceConfig{}.withDefaults()
	if c.ThresholdDB != -40 || c.MinDuration != 0.5 || c.Window != 5 || c.MinChunkSeconds != 30 {
		t.Errorf("unexpected defaults: %+v", c)
	}

	custom := SilenceConfig{ThresholdDB: -30, MinDuration: 1, Window: 10, MinChunkSeconds: 20}.withDefaults()
	if custom.ThresholdDB != -30 || custom.MinDuration != 1 || custom.Window != 10 || custom.MinChunkSeconds != 20 {
		t.Errorf("custom values should be preserved: %+v", custom)
	}
}

// TestPlanChunks_SizeBoundary covers scenario 2: a 40-minute source whose
// encoded accelerated size exceeds the 18 MiB cap is split across N≥2
// chunks whose original-timeline spans sum to the full original duration
// exactly, with a monotonically increasing stitched timeline.
func TestPlanChunks_SizeBoundary(t *testing.T) {
	workDir := t.TempDir()
	accelerated := filepath.Join(workDir, "accelerated.wav")
	if err := os.WriteFile(accelerated, []byte("placeholder"), 0o644); err != nil {
		t.Fatal(err)
	}

	const originalDuration = 2400.0     // 40 minutes
	const acceleratedDuration = 1200.0  // original / speedFactor
	const speedFactor = 2.0
	const originalBytes = 40 * 1024 * 1024 // forces minBySize = 3

	runner := &fakeChunkRunner{cutBytes: 10 * 1024 * 1024} // under the 18 MiB cap
	c := NewForTests(Config{}, runner)

	chunks, warnings, err := c.PlanChunks(context.Background(), accelerated, acceleratedDuration, originalDuration, originalBytes, speedFactor, workDir)
	if err != nil {
		t.Fatalf("PlanChunks: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected N>=2 chunks, got %d", len(chunks))
	}

	var totalOriginalDuration float64
	prevEnd := -1.0
	for i, ch := range chunks {
		if ch.Index != i+1 {
			t.Errorf("chunk %d has Index %d", i, ch.Index)
		}
		if ch.StartTime < prevEnd {
			t.Errorf("chunk %d StartTime %v is not monotonic after previous end %v", i, ch.StartTime, prevEnd)
		}
		prevEnd = ch.StartTime + ch.Duration
		totalOriginalDuration += ch.Duration
	}
	if diff := totalOriginalDuration - originalDuration; diff > 0.001 || diff < -0.001 {
		t.Errorf("chunk durations sum to %v, want %v", totalOriginalDuration, originalDuration)
	}
}

// TestPlanChunks_OversizedAfterHalving covers the post-cut size-enforcement
// warning path: a chunk that still exceeds the 18 MiB cap even after its
// target window has been halved to the minimum is emitted oversized with a
// warning, rather than looping forever.
func TestPlanChunks_OversizedAfterHalving(t *testing.T) {
	workDir := t.TempDir()
	accelerated := filepath.Join(workDir, "accelerated.wav")
	if err := os.WriteFile(accelerated, []byte("placeholder"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeChunkRunner{cutBytes: 20 * 1024 * 1024} // always over the cap
	c := NewForTests(Config{}, runner)

	chunks, warnings, err := c.PlanChunks(context.Background(), accelerated, 60, 60, 1*1024*1024, 1.0, workDir)
	if err != nil {
		t.Fatalf("PlanChunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected a single oversized-chunk warning, got %v", warnings)
	}
}
