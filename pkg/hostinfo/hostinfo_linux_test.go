//go:build linux

package hostinfo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProcessCountCountsNumericDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1", "42", "self", "sys", "1337"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "99"), nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	orig := procRoot
	procRoot = dir
	defer func() { procRoot = orig }()

	count, err := ProcessCount()
	if err != nil {
		t.Fatalf("ProcessCount: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 processes, got %d", count)
	}
}

func TestProcessCountMissingRoot(t *testing.T) {
	orig := procRoot
	procRoot = filepath.Join(t.TempDir(), "missing")
	defer func() { procRoot = orig }()

	if _, err := ProcessCount(); err == nil {
		t.Fatalf("expected error for missing proc root")
	}
}

func TestActiveAppUnsupportedOnLinux(t *testing.T) {
	if _, err := ActiveApp(); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
