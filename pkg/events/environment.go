package events

import (
	"runtime"

	"github.com/offlinefirst/behavioral-capture/pkg/permissions"
)

// Environment summarises event source backend support.
type Environment struct {
	Provider   string
	Available  bool
	Permission string
	Message    string
	Guidance   string
}

const (
	ProviderQuartz    = "quartz_event_tap"
	ProviderSynthetic = "synthetic"
)

// DetectEnvironment reports the availability of a real Quartz event tap.
func DetectEnvironment() Environment {
	accessibility := permissions.ProbeAccessibility(nil)
	env := Environment{
		Provider:   ProviderSynthetic,
		Permission: accessibility.StatusString(),
		Message:    accessibility.Message,
		Guidance:   accessibility.Guidance,
		Available:  true,
	}

	if runtime.GOOS == "darwin" {
		env.Provider = ProviderQuartz
		env.Available = accessibility.Status != permissions.StatusDenied
		if !env.Available && env.Message == "" {
			env.Message = "accessibility permission missing"
		}
	} else {
		env.Permission = "not_applicable"
		env.Message = "no native input tap on " + runtime.GOOS + "; scripted synthetic source in use"
	}

	if !env.Available {
		env.Provider = ProviderSynthetic
	}
	return env
}
