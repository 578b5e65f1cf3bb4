package events

import "strings"

// UnknownApp is the active-app placeholder used when no name is available.
const UnknownApp = "Unknown"

// PrivacyPolicy enforces an allow-list on the foreground application.
// The zero value permits all events.
type PrivacyPolicy struct {
	allowApps   map[string]struct{}
	dropUnknown bool
}

// NewPrivacyPolicy constructs an allow-list filter. Matching is case-insensitive.
func NewPrivacyPolicy(allowApps []string, dropUnknown bool) PrivacyPolicy {
	policy := PrivacyPolicy{
		allowApps:   make(map[string]struct{}, len(allowApps)),
		dropUnknown: dropUnknown,
	}

	for _, app := range allowApps {
		trimmed := strings.TrimSpace(app)
		if trimmed == "" {
			continue
		}
		policy.allowApps[strings.ToLower(trimmed)] = struct{}{}
	}

	return policy
}

// Allows reports whether input observed while app was in the foreground may be recorded.
func (p PrivacyPolicy) Allows(app string) bool {
	if len(p.allowApps) == 0 {
		return true
	}

	normalized := strings.ToLower(strings.TrimSpace(app))
	if normalized == "" || normalized == strings.ToLower(UnknownApp) {
		return !p.dropUnknown
	}

	_, ok := p.allowApps[normalized]
	return ok
}
