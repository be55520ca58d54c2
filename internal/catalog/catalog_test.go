package catalog

import (
	"testing"
)

func TestDefaultLimits(t *testing.T) {
	c := New(nil)

	tests := []struct {
		id        ID
		maxMB     int64
		multiple  bool
		minInputs int
	}{
		{PDFOptimizer, 100, false, 1},
		{AudioMerge, 200, true, 2},
		{AudioSplit, 200, false, 1},
		{ImageConverter, 50, false, 1},
		{VideoConverter, 500, false, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			tool, ok := c.Get(tt.id)
			if !ok {
				t.Fatalf("tool %q not found", tt.id)
			}
			if tool.MaxSizeMB != tt.maxMB {
				t.Errorf("MaxSizeMB = %d, want %d", tool.MaxSizeMB, tt.maxMB)
			}
			if tool.Multiple != tt.multiple {
				t.Errorf("Multiple = %v, want %v", tool.Multiple, tt.multiple)
			}
			if tool.MinInputs != tt.minInputs {
				t.Errorf("MinInputs = %d, want %d", tool.MinInputs, tt.minInputs)
			}
			if tool.Failure == "" {
				t.Error("Failure message should be set")
			}
		})
	}
}

func TestLimitOverrides(t *testing.T) {
	c := New(map[string]int64{"video-converter": 1024, "audio-merge": 0, "unknown": 5})

	video, _ := c.Get(VideoConverter)
	if video.MaxSizeMB != 1024 {
		t.Errorf("override not applied, got %d", video.MaxSizeMB)
	}
	merge, _ := c.Get(AudioMerge)
	if merge.MaxSizeMB != 200 {
		t.Errorf("zero override should be ignored, got %d", merge.MaxSizeMB)
	}

	// Overrides must not leak into other catalogs.
	fresh, _ := New(nil).Get(VideoConverter)
	if fresh.MaxSizeMB != 500 {
		t.Errorf("defaults were modified, got %d", fresh.MaxSizeMB)
	}
}

func TestRule(t *testing.T) {
	c := New(nil)
	tool, _ := c.Get(AudioMerge)
	rule := tool.Rule()

	if rule.MaxBytes != 200*1024*1024 {
		t.Errorf("MaxBytes = %d", rule.MaxBytes)
	}
	if !rule.Multiple {
		t.Error("audio merge accepts multiple files")
	}
	if !rule.Accept.Matches("song.flac", "") {
		t.Error("flac should be accepted")
	}
}

func TestAllAndEngineTools(t *testing.T) {
	c := New(nil)

	all := c.All()
	if len(all) != 5 || all[0].ID != PDFOptimizer {
		t.Fatalf("unexpected tools %+v", all)
	}

	engines := c.EngineTools()
	want := []ID{AudioMerge, AudioSplit, VideoConverter}
	if len(engines) != len(want) {
		t.Fatalf("EngineTools() = %v, want %v", engines, want)
	}
	for i := range want {
		if engines[i] != want[i] {
			t.Errorf("EngineTools()[%d] = %q, want %q", i, engines[i], want[i])
		}
	}

	if _, ok := c.Get("nope"); ok {
		t.Error("unknown tool should not be found")
	}
}
