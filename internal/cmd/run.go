package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/offlinefirst/behavioral-capture/internal/buildinfo"
	"github.com/offlinefirst/behavioral-capture/pkg/capture"
	"github.com/offlinefirst/behavioral-capture/pkg/config"
	"github.com/offlinefirst/behavioral-capture/pkg/events"
	"github.com/offlinefirst/behavioral-capture/pkg/persist"
	"github.com/offlinefirst/behavioral-capture/pkg/runmanifest"
	"github.com/offlinefirst/behavioral-capture/pkg/telemetry"
)

// Termination causes recorded in the manifest.
const (
	terminationSignal   = "signal"
	terminationDuration = "duration"
	terminationError    = "error"
)

type runOptions struct {
	Duration      time.Duration
	Output        string
	PlanOnly      bool
	StatsInterval time.Duration
}

func newRunCommand(rc *RootCommand) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a behavioural capture session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			return runCapture(cmd.Context(), app, opts, rc.stdout)
		},
	}
	flags := cmd.Flags()
	flags.DurationVar(&opts.Duration, "duration", 0, "Stop automatically after this long (0 waits for a signal)")
	flags.StringVar(&opts.Output, "output", "", "Write events to this file instead of a run directory")
	flags.BoolVar(&opts.PlanOnly, "plan-only", false, "Print the resolved configuration without starting capture")
	flags.DurationVar(&opts.StatsInterval, "stats-interval", 0, "Print live statistics at this interval (0 disables)")
	return cmd
}

var (
	timeNow      = time.Now
	hostname     = os.Hostname
	manifestSave = runmanifest.Save
	// newEventSource builds the raw input source for a run.
	newEventSource = func(cfg config.Config) events.Source {
		return events.DefaultSource(events.Options{
			Synthetic: cfg.Capture.Source == "synthetic",
			Interval:  cfg.Capture.SyntheticInterval,
		})
	}
	// recorderOptions lets tests replace host queries before the recorder is built.
	recorderOptions = func(opts capture.Options) capture.Options { return opts }
)

func runCapture(parent context.Context, app *AppContext, opts runOptions, stdout io.Writer) error {
	if app == nil {
		return fmt.Errorf("application context unavailable")
	}
	if parent == nil {
		parent = context.Background()
	}
	cfg := app.Config
	logger := app.Logger

	logger.Info("run command invoked", "plan_only", opts.PlanOnly, "runs_dir", cfg.Paths.RunsDir, "config_source", cfg.Source)

	if opts.PlanOnly {
		printRunPlan(app, opts, stdout)
		return nil
	}

	format, err := persist.ParseFormat(cfg.Persist.Format)
	if err != nil {
		return err
	}
	privacy := events.NewPrivacyPolicy(cfg.Privacy.AllowApps, cfg.Privacy.DropUnknown)
	redactor, err := events.NewRedactor(cfg.Privacy.RedactPatterns)
	if err != nil {
		return fmt.Errorf("compile redact patterns: %w", err)
	}

	env := events.DetectEnvironment()
	provider := env.Provider
	if cfg.Capture.Source == "synthetic" {
		provider = events.ProviderSynthetic
	}

	var layout runmanifest.Layout
	var manifest *runmanifest.Manifest
	if opts.Output != "" {
		format = persist.FormatForPath(opts.Output)
		if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
			return fmt.Errorf("ensure output directory: %w", err)
		}
		layout = runmanifest.Layout{
			Root:       filepath.Dir(opts.Output),
			EventsPath: opts.Output,
			TracePath:  opts.Output + ".traces.jsonl",
		}
	} else {
		if err := os.MkdirAll(cfg.Paths.RunsDir, 0o755); err != nil {
			return fmt.Errorf("ensure runs directory: %w", err)
		}
		runID, err := runmanifest.ResolveRunID(cfg.Paths.RunsDir, timeNow())
		if err != nil {
			return fmt.Errorf("resolve run id: %w", err)
		}
		layout = runmanifest.BuildLayout(cfg.Paths.RunsDir, runID, cfg.Persist.FileName)
		if err := runmanifest.EnsureFilesystem(layout); err != nil {
			return fmt.Errorf("prepare run filesystem: %w", err)
		}

		host, err := hostname()
		if err != nil {
			host = "unknown"
		}
		man := runmanifest.New(runmanifest.Options{
			RunID:      runID,
			CreatedAt:  timeNow(),
			Hostname:   host,
			AppVersion: buildinfo.Version(),
			Provider:   provider,
			Config:     cfg,
			Layout:     layout,
		})
		if err := manifestSave(man, layout.ManifestPath); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		manifest = &man
	}

	if cfg.Telemetry.Enabled {
		traceFile, err := os.OpenFile(layout.TracePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer traceFile.Close()
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, traceFile, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	var lifecycleLog io.Writer
	if layout.CaptureLogPath != "" {
		logFile, err := os.OpenFile(layout.CaptureLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open capture log: %w", err)
		}
		defer logFile.Close()
		lifecycleLog = logFile
	}

	recorder, err := capture.NewRecorder(recorderOptions(capture.Options{
		Source:          newEventSource(cfg),
		SampleRate:      cfg.Capture.SampleRate,
		LogCapacity:     cfg.Capture.LogCapacity,
		EvictCount:      cfg.Capture.EffectiveEvictCount(),
		FlushThreshold:  cfg.Persist.FlushThreshold,
		RefreshInterval: cfg.Capture.RefreshInterval,
		Format:          format,
		Privacy:         privacy,
		Redactor:        redactor,
		Clock:           timeNow,
		Logger:          logger,
		LifecycleLog:    lifecycleLog,
	}))
	if err != nil {
		return err
	}

	started := timeNow().UTC()
	if manifest != nil {
		manifest.Status.State = runmanifest.StateRunning
		manifest.Status.Summary = "capture in progress"
		manifest.Status.StartedAt = &started
		if err := manifestSave(*manifest, layout.ManifestPath); err != nil {
			return fmt.Errorf("update manifest status: %w", err)
		}
	}

	if err := recorder.Start(layout.EventsPath); err != nil {
		logger.Error("capture start failed", "error", err)
		return finishManifest(manifest, layout, started, terminationError, capture.Statistics{}, fmt.Errorf("start capture: %w", err))
	}
	fmt.Fprintf(stdout, "Capturing %s events -> %s\n", provider, layout.EventsPath)

	termination, waitErr := waitForCapture(parent, recorder, opts, stdout)
	stopErr := recorder.Stop()
	stats := recorder.Statistics()

	runErr := errors.Join(waitErr, stopErr)
	if runErr != nil {
		logger.Error("capture run failed", "error", runErr)
		termination = terminationError
	}

	if err := finishManifest(manifest, layout, started, termination, stats, runErr); err != nil {
		return err
	}

	if layout.Root != "" && manifest != nil {
		fmt.Fprintf(stdout, "Run directory: %s\n", layout.Root)
		fmt.Fprintf(stdout, "Manifest: %s\n", layout.ManifestPath)
	}
	printCaptureStatistics(stdout, stats, layout.EventsPath, termination)
	return nil
}

// waitForCapture blocks until a termination signal, the configured duration
// or a recorder failure, and reports which one ended the run.
func waitForCapture(parent context.Context, recorder *capture.Recorder, opts runOptions, stdout io.Writer) (string, error) {
	sigCtx, stopSignals := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	termination := terminationSignal

	g.Go(func() error {
		var expired <-chan time.Time
		if opts.Duration > 0 {
			timer := time.NewTimer(opts.Duration)
			defer timer.Stop()
			expired = timer.C
		}
		select {
		case <-gctx.Done():
			return nil
		case <-expired:
			termination = terminationDuration
			cancel()
			return nil
		case <-recorder.Controller().Done():
			termination = terminationError
			if err := recorder.Controller().Err(); err != nil {
				return err
			}
			return errors.New("capture stopped unexpectedly")
		}
	})

	if opts.StatsInterval > 0 {
		g.Go(func() error {
			reportLiveStatistics(gctx, recorder, opts.StatsInterval, stdout)
			return nil
		})
	}

	g.Go(func() error {
		return watchControlSignals(gctx, recorder)
	})

	err := g.Wait()
	return termination, err
}

// reportLiveStatistics prints a statistics line every interval until ctx ends.
// While capture is paused it blocks on the controller instead of printing.
func reportLiveStatistics(ctx context.Context, recorder *capture.Recorder, interval time.Duration, stdout io.Writer) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	control := recorder.Controller()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := control.Wait(ctx); err != nil {
			return
		}
		printLiveStatistics(stdout, recorder.Statistics(), control.State(), recorder.Context())
	}
}

func finishManifest(manifest *runmanifest.Manifest, layout runmanifest.Layout, started time.Time, termination string, stats capture.Statistics, runErr error) error {
	if manifest == nil {
		return runErr
	}
	ended := timeNow().UTC()
	manifest.Status.StartedAt = &started
	manifest.Status.EndedAt = &ended
	manifest.Status.Termination = termination
	manifest.Status.Statistics = manifestStatistics(stats)

	if runErr != nil {
		manifest.Status.State = runmanifest.StateFailed
		manifest.Status.Summary = runErr.Error()
		if saveErr := manifestSave(*manifest, layout.ManifestPath); saveErr != nil {
			return fmt.Errorf("%w (additionally failed to persist manifest: %w)", runErr, saveErr)
		}
		return runErr
	}

	manifest.Status.State = runmanifest.StateCompleted
	manifest.Status.Summary = fmt.Sprintf("capture finished (%s)", termination)
	if err := manifestSave(*manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("finalise manifest: %w", err)
	}
	return nil
}

func manifestStatistics(stats capture.Statistics) *runmanifest.Statistics {
	return &runmanifest.Statistics{
		Total:                stats.Total,
		PointerMoves:         stats.PointerMoves,
		ButtonDowns:          stats.ButtonDowns,
		KeyDowns:             stats.KeyDowns,
		MeanSpeed:            stats.MeanSpeed,
		LatestActiveApp:      stats.LatestActiveApp,
		LatestBackgroundApps: stats.LatestBackgroundApps,
		Received:             stats.Pipeline.Received,
		SampledOut:           stats.Pipeline.SampledOut,
		Stationary:           stats.Pipeline.Stationary,
		Filtered:             stats.Pipeline.Filtered,
		PausedDrops:          stats.Pipeline.PausedDrops,
		Persisted:            stats.Persist.Written,
		Dropped:              stats.Persist.Dropped,
		Flushes:              stats.Persist.Flushes,
		Evicted:              stats.Evicted,
	}
}

func printRunPlan(app *AppContext, opts runOptions, stdout io.Writer) {
	cfg := app.Config
	fmt.Fprintf(stdout, "Resolved configuration (source: %s)\n", cfg.Source)
	fmt.Fprintf(stdout, "  runs_dir: %s\n", cfg.Paths.RunsDir)
	fmt.Fprintf(stdout, "  capture.source: %s\n", cfg.Capture.Source)
	fmt.Fprintf(stdout, "  capture.sample_rate: %d\n", cfg.Capture.SampleRate)
	fmt.Fprintf(stdout, "  capture.log_capacity: %d\n", cfg.Capture.LogCapacity)
	fmt.Fprintf(stdout, "  capture.evict_count: %d\n", cfg.Capture.EffectiveEvictCount())
	fmt.Fprintf(stdout, "  capture.refresh_interval: %s\n", cfg.Capture.RefreshInterval)
	fmt.Fprintf(stdout, "  persist.format: %s\n", cfg.Persist.Format)
	fmt.Fprintf(stdout, "  persist.file_name: %s\n", cfg.Persist.FileName)
	fmt.Fprintf(stdout, "  persist.flush_threshold: %d\n", cfg.Persist.FlushThreshold)
	fmt.Fprintf(stdout, "  privacy.allow_apps: %d\n", len(cfg.Privacy.AllowApps))
	fmt.Fprintf(stdout, "  privacy.redact_patterns: %d\n", len(cfg.Privacy.RedactPatterns))
	fmt.Fprintf(stdout, "  telemetry.enabled: %t\n", cfg.Telemetry.Enabled)
	fmt.Fprintf(stdout, "  logging.level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(stdout, "  logging.format: %s\n", cfg.Logging.Format)
	if opts.Output != "" {
		fmt.Fprintf(stdout, "  output: %s\n", opts.Output)
	}
	if opts.Duration > 0 {
		fmt.Fprintf(stdout, "  duration: %s\n", opts.Duration)
	}
}
