package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/behavioral-capture/internal/buildinfo"
	"github.com/offlinefirst/behavioral-capture/pkg/config"
	"github.com/offlinefirst/behavioral-capture/pkg/logging"
)

// AppContext exposes lazily initialised configuration and logging facilities.
type AppContext struct {
	Config config.Config
	Logger *slog.Logger
}

// RootCommand owns the cobra command tree and the shared application context.
type RootCommand struct {
	cmd        *cobra.Command
	stdout     io.Writer
	stderr     io.Writer
	appCtx     *AppContext
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand constructs the CLI with its subcommands and global flags.
func NewRootCommand() *RootCommand {
	rc := &RootCommand{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	root := &cobra.Command{
		Use:           "behaviorcap",
		Short:         "Record enriched keyboard and pointer activity to an append-only log",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&rc.configPath, "config", "", "Path to config file (default: ./config.yaml if present)")
	flags.StringVar(&rc.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	flags.StringVar(&rc.logFormat, "log-format", "", "Override log output format (json, console)")

	root.AddCommand(
		newRunCommand(rc),
		newStatsCommand(rc),
		newDoctorCommand(rc),
		newVersionCommand(rc),
	)

	rc.cmd = root
	return rc
}

// SetOutput redirects command output, mainly for tests.
func (rc *RootCommand) SetOutput(stdout, stderr io.Writer) {
	rc.stdout = stdout
	rc.stderr = stderr
}

// Execute parses args and runs the selected subcommand.
func (rc *RootCommand) Execute(args []string) error {
	rc.cmd.SetArgs(args)
	rc.cmd.SetOut(rc.stdout)
	rc.cmd.SetErr(rc.stderr)
	return rc.cmd.Execute()
}

func (rc *RootCommand) ensureAppContext() (*AppContext, error) {
	if rc.appCtx != nil {
		return rc.appCtx, nil
	}

	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return nil, err
	}

	if rc.logLevel != "" {
		lvl, err := config.NormalizeLogLevel(rc.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = lvl
	}
	if rc.logFormat != "" {
		format, err := config.NormalizeFormat(rc.logFormat)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Format = format
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: rc.stderr,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("configuration loaded", "source", cfg.Source, "runs_dir", cfg.Paths.RunsDir, "persist_format", cfg.Persist.Format)

	rc.appCtx = &AppContext{Config: cfg, Logger: logger}
	return rc.appCtx, nil
}

func versionString() string {
	version := buildinfo.Version()
	if commit := buildinfo.Commit(); commit != "" {
		version += "+" + commit
	}
	return fmt.Sprintf("%s (%s/%s)", version, runtimeVersion(), runtimeGOOS())
}

// runtimeVersion is extracted for testability.
var runtimeVersion = func() string { return runtime.Version() }

// runtimeGOOS is extracted for testability.
var runtimeGOOS = func() string { return runtime.GOOS }
