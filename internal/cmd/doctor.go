package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/offlinefirst/behavioral-capture/pkg/events"
	"github.com/offlinefirst/behavioral-capture/pkg/hostinfo"
	"github.com/offlinefirst/behavioral-capture/pkg/permissions"
)

// Host probes, swapped in tests.
var (
	probeActiveApp    = hostinfo.ActiveApp
	probeProcessCount = hostinfo.ProcessCount
)

func newDoctorCommand(rc *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report event source, permission and host query readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			app.Logger.Debug("doctor invoked")
			runDoctor(app, rc.stdout)
			return nil
		},
	}
}

func runDoctor(app *AppContext, stdout io.Writer) {
	env := events.DetectEnvironment()
	fmt.Fprintf(stdout, "Configuration: %s\n", app.Config.Source)
	fmt.Fprintf(stdout, "Event source: provider=%s available=%t permission=%s\n", env.Provider, env.Available, env.Permission)
	if env.Message != "" {
		fmt.Fprintf(stdout, "  %s\n", env.Message)
	}
	if env.Guidance != "" {
		fmt.Fprintf(stdout, "  guidance: %s\n", env.Guidance)
	}

	for _, probe := range []struct {
		name   string
		result permissions.ProbeResult
	}{
		{"accessibility", permissions.ProbeAccessibility(nil)},
		{"input monitoring", permissions.ProbeInputMonitoring(nil)},
	} {
		fmt.Fprintf(stdout, "Permission %s: %s (%s)\n", probe.name, probe.result.StatusString(), probe.result.Message)
	}

	if name, err := probeActiveApp(); err != nil {
		fmt.Fprintf(stdout, "Active app query: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(stdout, "Active app query: %s\n", name)
	}
	if count, err := probeProcessCount(); err != nil {
		fmt.Fprintf(stdout, "Process count query: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(stdout, "Process count query: %s processes\n", humanize.Comma(int64(count)))
	}
}
