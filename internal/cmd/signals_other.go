//go:build !unix

package cmd

import "context"

type pausable interface {
	Pause()
	Resume()
}

// watchControlSignals has no pause signals to watch on this platform.
func watchControlSignals(ctx context.Context, _ pausable) error {
	<-ctx.Done()
	return nil
}
