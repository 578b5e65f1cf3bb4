package runmanifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/offlinefirst/behavioral-capture/pkg/config"
)

// SchemaVersion captures the manifest version for compatibility checks.
const SchemaVersion = 2

// Run states recorded in Status.State.
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Layout represents the filesystem locations for a run.
type Layout struct {
	Root           string
	ManifestPath   string
	CaptureLogPath string
	EventsPath     string
	TracePath      string
}

// Paths holds the relative locations stored in the manifest for portability.
type Paths struct {
	Root       string `json:"root"`
	Manifest   string `json:"manifest"`
	CaptureLog string `json:"capture_log"`
	Events     string `json:"events"`
	Traces     string `json:"traces,omitempty"`
}

// CaptureSettings records the pipeline configuration used for the run.
type CaptureSettings struct {
	Source          string `json:"source"`
	Provider        string `json:"provider,omitempty"`
	SampleRate      int    `json:"sample_rate"`
	LogCapacity     int    `json:"log_capacity"`
	EvictCount      int    `json:"evict_count"`
	RefreshInterval string `json:"refresh_interval"`
	PersistFormat   string `json:"persist_format"`
	FlushThreshold  int    `json:"flush_threshold"`
	AllowApps       int    `json:"allow_apps"`
	RedactPatterns  int    `json:"redact_patterns"`
	TracingEnabled  bool   `json:"tracing_enabled"`
}

// Statistics is the end-of-run summary stored with the status.
type Statistics struct {
	Total                int     `json:"total"`
	PointerMoves         int     `json:"pointer_moves"`
	ButtonDowns          int     `json:"button_downs"`
	KeyDowns             int     `json:"key_downs"`
	MeanSpeed            float64 `json:"mean_speed_pxps"`
	LatestActiveApp      string  `json:"latest_active_app,omitempty"`
	LatestBackgroundApps int     `json:"latest_background_apps"`
	Received             int     `json:"received"`
	SampledOut           int     `json:"sampled_out"`
	Stationary           int     `json:"stationary"`
	Filtered             int     `json:"filtered"`
	PausedDrops          int     `json:"paused_drops"`
	Persisted            int     `json:"persisted"`
	Dropped              int     `json:"dropped"`
	Flushes              int     `json:"flushes"`
	Evicted              int     `json:"evicted"`
}

// Status summarises the lifecycle of a capture run.
type Status struct {
	State       string      `json:"state"`
	Summary     string      `json:"summary,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
	Termination string      `json:"termination,omitempty"`
	Statistics  *Statistics `json:"statistics,omitempty"`
}

// Manifest is the durable metadata describing a capture run.
type Manifest struct {
	SchemaVersion int             `json:"schema_version"`
	RunID         string          `json:"run_id"`
	SessionID     string          `json:"session_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Hostname      string          `json:"hostname"`
	AppVersion    string          `json:"app_version"`
	ConfigSource  string          `json:"config_source"`
	Capture       CaptureSettings `json:"capture"`
	Paths         Paths           `json:"paths"`
	Status        Status          `json:"status"`
}

// Options captures the knobs for creating a new manifest.
type Options struct {
	RunID      string
	CreatedAt  time.Time
	Hostname   string
	AppVersion string
	Provider   string
	Config     config.Config
	Layout     Layout
}

// newSessionID is swapped in tests.
var newSessionID = func() string { return uuid.NewString() }

// New constructs a manifest using the supplied options.
func New(opts Options) Manifest {
	cfg := opts.Config
	return Manifest{
		SchemaVersion: SchemaVersion,
		RunID:         opts.RunID,
		SessionID:     newSessionID(),
		CreatedAt:     opts.CreatedAt.UTC(),
		Hostname:      opts.Hostname,
		AppVersion:    opts.AppVersion,
		ConfigSource:  cfg.Source,
		Capture: CaptureSettings{
			Source:          cfg.Capture.Source,
			Provider:        opts.Provider,
			SampleRate:      cfg.Capture.SampleRate,
			LogCapacity:     cfg.Capture.LogCapacity,
			EvictCount:      cfg.Capture.EffectiveEvictCount(),
			RefreshInterval: cfg.Capture.RefreshInterval.String(),
			PersistFormat:   cfg.Persist.Format,
			FlushThreshold:  cfg.Persist.FlushThreshold,
			AllowApps:       len(cfg.Privacy.AllowApps),
			RedactPatterns:  len(cfg.Privacy.RedactPatterns),
			TracingEnabled:  cfg.Telemetry.Enabled,
		},
		Paths:  opts.Layout.RelativePaths(),
		Status: Status{State: StatePending},
	}
}

// BuildLayout creates the filesystem layout for a run; eventsFile names the
// persisted log inside the run directory.
func BuildLayout(runsDir, runID, eventsFile string) Layout {
	root := filepath.Join(runsDir, runID)
	return Layout{
		Root:           root,
		ManifestPath:   filepath.Join(root, "manifest.json"),
		CaptureLogPath: filepath.Join(root, "capture.log"),
		EventsPath:     filepath.Join(root, eventsFile),
		TracePath:      filepath.Join(root, "traces.jsonl"),
	}
}

// RelativePaths exposes the manifest-friendly relative paths for the layout.
func (l Layout) RelativePaths() Paths {
	paths := Paths{
		Root:       ".",
		Manifest:   filepath.Base(l.ManifestPath),
		CaptureLog: filepath.Base(l.CaptureLogPath),
		Events:     filepath.Base(l.EventsPath),
	}
	if l.TracePath != "" {
		paths.Traces = filepath.Base(l.TracePath)
	}
	return paths
}

// EnsureFilesystem prepares the directory and capture log for a run layout.
func EnsureFilesystem(layout Layout) error {
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return fmt.Errorf("create run root: %w", err)
	}

	file, err := os.OpenFile(layout.CaptureLogPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("initialise capture log: %w", err)
	}
	defer file.Close()

	return nil
}

// Save writes the manifest JSON to disk with indentation for readability.
func Save(man Manifest, path string) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest JSON file from disk.
func Load(path string) (Manifest, error) {
	var man Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("decode manifest: %w", err)
	}
	return man, nil
}

// ResolveRunID chooses a run identifier derived from the timestamp and avoids collisions.
func ResolveRunID(runsDir string, now time.Time) (string, error) {
	if strings.TrimSpace(runsDir) == "" {
		return "", errors.New("runs directory must not be empty")
	}

	base := now.UTC().Format("20060102_150405")
	candidate := base
	suffix := 1
	for {
		_, err := os.Stat(filepath.Join(runsDir, candidate))
		if err == nil {
			candidate = fmt.Sprintf("%s_%02d", base, suffix)
			suffix++
			continue
		}
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		return "", fmt.Errorf("inspect runs directory: %w", err)
	}
}
