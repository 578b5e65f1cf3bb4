//go:build !darwin

package events

func defaultEventSource(opts Options) Source {
	return NewSyntheticSource(opts.Interval, nil)
}
