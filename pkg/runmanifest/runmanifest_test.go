package runmanifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/offlinefirst/behavioral-capture/pkg/config"
)

func TestBuildLayoutAndRelativePaths(t *testing.T) {
	layout := BuildLayout("/tmp/runs", "20240512_093000", "behavioral_data.csv")

	if layout.Root != filepath.Join("/tmp/runs", "20240512_093000") {
		t.Fatalf("unexpected root: %s", layout.Root)
	}
	if layout.EventsPath != filepath.Join(layout.Root, "behavioral_data.csv") {
		t.Fatalf("unexpected events path: %s", layout.EventsPath)
	}

	rel := layout.RelativePaths()
	if rel.Root != "." {
		t.Fatalf("expected relative root '.', got %q", rel.Root)
	}
	if rel.Manifest != "manifest.json" {
		t.Fatalf("expected manifest.json, got %s", rel.Manifest)
	}
	if rel.Events != "behavioral_data.csv" || rel.Traces != "traces.jsonl" {
		t.Fatalf("unexpected relative paths: %#v", rel)
	}
}

func TestEnsureFilesystemCreatesRunRoot(t *testing.T) {
	dir := t.TempDir()
	layout := BuildLayout(filepath.Join(dir, "nested", "runs"), "run", "behavioral_data.csv")

	if err := EnsureFilesystem(layout); err != nil {
		t.Fatalf("EnsureFilesystem failed: %v", err)
	}

	info, err := os.Stat(layout.Root)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected run directory at %s: %v", layout.Root, err)
	}
	if _, err := os.Stat(layout.CaptureLogPath); err != nil {
		t.Fatalf("expected capture log file: %v", err)
	}
}

func TestNewManifest(t *testing.T) {
	cfg := config.Default()
	cfg.Source = "config.yaml"
	cfg.Privacy.AllowApps = []string{"Terminal"}
	layout := BuildLayout("/tmp/runs", "run", cfg.Persist.FileName)
	now := time.Date(2024, 5, 12, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	man := New(Options{
		RunID:      "run",
		CreatedAt:  now,
		Hostname:   "host",
		AppVersion: "test",
		Provider:   "synthetic",
		Config:     cfg,
		Layout:     layout,
	})

	if man.SchemaVersion != SchemaVersion {
		t.Fatalf("unexpected schema version: %d", man.SchemaVersion)
	}
	if man.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected CreatedAt in UTC, got %s", man.CreatedAt.Location())
	}
	if _, err := uuid.Parse(man.SessionID); err != nil {
		t.Fatalf("expected uuid session id, got %q: %v", man.SessionID, err)
	}
	if man.Capture.SampleRate != 3 || man.Capture.EvictCount != 25000 || man.Capture.AllowApps != 1 {
		t.Fatalf("unexpected capture settings: %#v", man.Capture)
	}
	if man.Capture.RefreshInterval != "500ms" || man.Capture.Provider != "synthetic" {
		t.Fatalf("unexpected capture settings: %#v", man.Capture)
	}
	if man.Status.State != StatePending {
		t.Fatalf("expected pending state, got %q", man.Status.State)
	}
}

func TestNewManifestSessionIDsDiffer(t *testing.T) {
	cfg := config.Default()
	layout := BuildLayout("/tmp/runs", "run", cfg.Persist.FileName)
	a := New(Options{RunID: "run", Config: cfg, Layout: layout})
	b := New(Options{RunID: "run", Config: cfg, Layout: layout})
	if a.SessionID == b.SessionID {
		t.Fatalf("expected distinct session ids")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	layout := BuildLayout(dir, "run", "behavioral_data.db")
	cfg := config.Default()
	cfg.Source = "explicit"
	now := time.Now().UTC().Round(time.Second)

	orig := newSessionID
	newSessionID = func() string { return "fixed-session" }
	defer func() { newSessionID = orig }()

	man := New(Options{
		RunID:      "run",
		CreatedAt:  now,
		Hostname:   "host",
		AppVersion: "version",
		Config:     cfg,
		Layout:     layout,
	})
	man.Status.State = StateCompleted
	man.Status.Statistics = &Statistics{Total: 12, PointerMoves: 7, MeanSpeed: 88.5, LatestActiveApp: "Terminal"}

	path := filepath.Join(dir, "manifest.json")
	if err := Save(man, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.RunID != man.RunID || loaded.SessionID != "fixed-session" {
		t.Fatalf("unexpected identifiers: %s %s", loaded.RunID, loaded.SessionID)
	}
	if loaded.Status.Statistics == nil || *loaded.Status.Statistics != *man.Status.Statistics {
		t.Fatalf("statistics did not round trip: %#v", loaded.Status.Statistics)
	}
	if !loaded.CreatedAt.Equal(now) {
		t.Fatalf("expected created at %s, got %s", now, loaded.CreatedAt)
	}
}

func TestResolveRunID(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)

	if err := os.MkdirAll(filepath.Join(dir, now.Format("20060102_150405")), 0o755); err != nil {
		t.Fatalf("prep existing run: %v", err)
	}

	id, err := ResolveRunID(dir, now)
	if err != nil {
		t.Fatalf("ResolveRunID failed: %v", err)
	}
	expected := now.Format("20060102_150405") + "_01"
	if id != expected {
		t.Fatalf("expected %s, got %s", expected, id)
	}
}

func TestResolveRunIDEmptyRunsDir(t *testing.T) {
	if _, err := ResolveRunID(" ", time.Now()); err == nil {
		t.Fatalf("expected error for empty runs dir")
	}
}
