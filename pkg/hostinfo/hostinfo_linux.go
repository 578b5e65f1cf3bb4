//go:build linux

package hostinfo

import (
	"fmt"
	"os"
)

// procRoot is swapped in tests.
var procRoot = "/proc"

// activeApp has no portable answer on linux: X11, Wayland compositors and
// headless sessions each expose focus differently, if at all.
func activeApp() (string, error) {
	return "", ErrUnsupported
}

func processCount() (int, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", procRoot, err)
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() && isPID(entry.Name()) {
			count++
		}
	}
	return count, nil
}

func isPID(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
