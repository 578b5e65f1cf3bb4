// Package hostinfo answers the two environmental questions attached to every
// behavioral record: which application is in the foreground, and how many
// processes are running alongside it.
package hostinfo

import "errors"

// ErrUnsupported reports that a query has no implementation on this platform.
var ErrUnsupported = errors.New("host query unsupported on this platform")

// ActiveApp returns the display name of the foreground application.
func ActiveApp() (string, error) {
	return activeApp()
}

// ProcessCount returns the number of running processes.
func ProcessCount() (int, error) {
	return processCount()
}
