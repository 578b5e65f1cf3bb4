package contextcache

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewValidation(t *testing.T) {
	count := func() (int, error) { return 0, nil }
	app := func() (string, error) { return "", nil }
	if _, err := New(Options{ProcessCount: count}); err == nil {
		t.Fatalf("expected error without active app query")
	}
	if _, err := New(Options{ActiveApp: app}); err == nil {
		t.Fatalf("expected error without process count query")
	}
}

func TestReadDefaultsBeforeRefresh(t *testing.T) {
	cache, err := New(Options{
		ActiveApp:    func() (string, error) { return "Terminal", nil },
		ProcessCount: func() (int, error) { return 7, nil },
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	snap := cache.Read()
	if snap.ActiveApp != UnknownApp || snap.BackgroundAppCount != 0 || !snap.CapturedAt.IsZero() {
		t.Fatalf("unexpected default snapshot: %#v", snap)
	}
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cache, err := New(Options{
		ActiveApp:    func() (string, error) { return "Terminal", nil },
		ProcessCount: func() (int, error) { return 7, nil },
		Clock:        func() time.Time { return at },
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	cache.Refresh()
	snap := cache.Read()
	if snap.ActiveApp != "Terminal" || snap.BackgroundAppCount != 7 || !snap.CapturedAt.Equal(at) {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}

func TestRefreshFailureRetainsPreviousValues(t *testing.T) {
	var failApp, failCount atomic.Bool
	cache, err := New(Options{
		ActiveApp: func() (string, error) {
			if failApp.Load() {
				return "", errors.New("no window server")
			}
			return "Safari", nil
		},
		ProcessCount: func() (int, error) {
			if failCount.Load() {
				return 0, errors.New("proc unavailable")
			}
			return 12, nil
		},
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	failApp.Store(true)
	failCount.Store(true)
	cache.Refresh()
	if snap := cache.Read(); snap.ActiveApp != UnknownApp || snap.BackgroundAppCount != 0 {
		t.Fatalf("expected defaults after failed first refresh, got %#v", snap)
	}

	failApp.Store(false)
	failCount.Store(false)
	cache.Refresh()

	failApp.Store(true)
	cache.Refresh()
	snap := cache.Read()
	if snap.ActiveApp != "Safari" {
		t.Fatalf("expected previous app to be retained, got %q", snap.ActiveApp)
	}
	if snap.BackgroundAppCount != 12 {
		t.Fatalf("expected count from successful query, got %d", snap.BackgroundAppCount)
	}
}

func TestLoopRefreshesUntilStopped(t *testing.T) {
	var calls atomic.Int64
	cache, err := New(Options{
		ActiveApp: func() (string, error) {
			calls.Add(1)
			return "Xcode", nil
		},
		ProcessCount: func() (int, error) { return 3, nil },
		Interval:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	cache.Start()
	cache.Start()
	if !cache.Running() {
		t.Fatalf("expected loop to be running")
	}

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("refresh loop did not run")
		case <-time.After(time.Millisecond):
		}
	}

	cache.Stop()
	cache.Stop()
	if cache.Running() {
		t.Fatalf("expected loop to be stopped")
	}

	stopped := calls.Load()
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != stopped {
		t.Fatalf("expected no refreshes after Stop returned")
	}
	if cache.Read().ActiveApp != "Xcode" {
		t.Fatalf("expected loop to update snapshot")
	}
}

func TestStopWithoutStart(t *testing.T) {
	cache, err := New(Options{
		ActiveApp:    func() (string, error) { return "", nil },
		ProcessCount: func() (int, error) { return 0, nil },
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	cache.Stop()
}
