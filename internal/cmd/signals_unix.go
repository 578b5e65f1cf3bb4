//go:build unix

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

type pausable interface {
	Pause()
	Resume()
}

// watchControlSignals maps SIGUSR1 to pause and SIGUSR2 to resume until ctx ends.
func watchControlSignals(ctx context.Context, target pausable) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			if sig == syscall.SIGUSR1 {
				target.Pause()
			} else {
				target.Resume()
			}
		}
	}
}
