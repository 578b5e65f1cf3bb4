package behavior

// Statistics aggregates a sequence of records.
type Statistics struct {
	Total        int
	PointerMoves int
	ButtonDowns  int
	KeyDowns     int
	// MeanSpeed averages MouseSpeed over pointer moves with non-zero speed.
	MeanSpeed    float64
	SpeedSamples int

	// Latest* describe the most recent record; HasLatest is false when empty.
	HasLatest            bool
	LatestActiveApp      string
	LatestBackgroundApps int

	FirstTimestamp int64
	LastTimestamp  int64
}

// Summarize computes Statistics over events in order.
func Summarize(events []Event) Statistics {
	var stats Statistics
	var speedSum float64
	for i, ev := range events {
		stats.Total++
		switch {
		case ev.Type == PointerMove:
			stats.PointerMoves++
			if ev.MouseSpeed > 0 {
				speedSum += ev.MouseSpeed
				stats.SpeedSamples++
			}
		case ev.Type.IsButtonDown():
			stats.ButtonDowns++
		case ev.Type == KeyDown:
			stats.KeyDowns++
		}
		if i == 0 {
			stats.FirstTimestamp = ev.Timestamp
		}
		stats.LastTimestamp = ev.Timestamp
	}
	if stats.SpeedSamples > 0 {
		stats.MeanSpeed = speedSum / float64(stats.SpeedSamples)
	}
	if n := len(events); n > 0 {
		latest := events[n-1]
		stats.HasLatest = true
		stats.LatestActiveApp = latest.ActiveApp
		stats.LatestBackgroundApps = latest.BackgroundAppCount
	}
	return stats
}

// SpanMillis is the time covered between the first and last record.
func (s Statistics) SpanMillis() int64 {
	if s.Total == 0 {
		return 0
	}
	return s.LastTimestamp - s.FirstTimestamp
}
