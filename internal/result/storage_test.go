package result_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/tagteam/internal/result"
)

func TestWriteAndReadTrialMeta(t *testing.T) {
	dir := t.TempDir()
	meta := &result.TrialMeta{
		Task:       "shapes",
		Category:   "geometry",
		Trial:      1,
		DurationMS: 420,
		Status:     "passed",
		Scores:     result.Scores{Coverage: 2, Tests: 4, Overlap: -0.25},
		Reward:     5.75,
		Required:   4,
		Resolved:   4,
		Overlap:    1,
		TestsTotal: 5,
		TestsPass:  5,
	}
	if err := result.WriteTrialMeta(dir, meta); err != nil {
		t.Fatalf("WriteTrialMeta: %v", err)
	}
	got, err := result.ReadTrialMeta(filepath.Join(dir, result.MetaFile))
	if err != nil {
		t.Fatalf("ReadTrialMeta: %v", err)
	}
	if *got != *meta {
		t.Errorf("round trip: got %+v, want %+v", got, meta)
	}
}

func TestReadTrialMetaCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, result.MetaFile)
	os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := result.ReadTrialMeta(path); err == nil {
		t.Error("expected error for corrupt meta")
	}
}

func TestCreateRunDir(t *testing.T) {
	base := t.TempDir()
	runDir, err := result.CreateRunDir(base)
	if err != nil {
		t.Fatalf("CreateRunDir: %v", err)
	}
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		t.Errorf("run directory not created: %s", runDir)
	}
	latest := filepath.Join(base, "latest")
	target, err := os.Readlink(latest)
	if err != nil {
		t.Fatalf("reading latest symlink: %v", err)
	}
	if target != runDir {
		t.Errorf("latest symlink: got %q, want %q", target, runDir)
	}

	second, err := result.CreateRunDir(base)
	if err != nil {
		t.Fatalf("CreateRunDir: %v", err)
	}
	if second == runDir {
		t.Error("expected distinct run directories")
	}
}

func TestTrialDir(t *testing.T) {
	base := t.TempDir()
	dir := result.TrialDir(base, "my-task", 3)
	expected := filepath.Join(base, "trials", "my-task", "trial-3")
	if dir != expected {
		t.Errorf("got %q, want %q", dir, expected)
	}
}

func TestWriteArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "trial-1")
	if err := result.WriteArtifact(dir, result.AssembledFile, []byte("class A:\n    pass\n")); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	if err := result.WriteJSON(dir, result.EvaluationFile, map[string]int{"passed": 2}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, result.EvaluationFile))
	if err != nil {
		t.Fatalf("reading evaluation: %v", err)
	}
	if !strings.Contains(string(data), `"passed": 2`) {
		t.Errorf("unexpected evaluation json: %s", data)
	}
}
