package behavior

import (
	"math"

	"github.com/offlinefirst/behavioral-capture/pkg/contextcache"
	"github.com/offlinefirst/behavioral-capture/pkg/events"
)

// State is everything the enrichment step remembers between records.
// Timestamps are milliseconds since the Unix epoch.
type State struct {
	// LastEventAt is the timestamp of the previous record of any type, or the
	// start sentinel before the first record.
	LastEventAt int64
	// LastMoveAt is the timestamp of the previous recorded pointer move.
	LastMoveAt int64
	LastX      int
	LastY      int
	// HasPointer is false until the first pointer move is recorded.
	HasPointer bool
}

// NewState returns the state at pipeline start, with sentinel as the
// previous-event timestamp.
func NewState(sentinel int64) State {
	return State{LastEventAt: sentinel}
}

// Derive builds the record for n observed at atMs with context snap. It
// reports false, and returns state unchanged, when n is a pointer move to the
// last recorded pointer position or a kind with no recorded type.
func Derive(state State, n events.Notification, atMs int64, snap contextcache.Snapshot) (Event, State, bool) {
	typ, ok := TypeOf(n.Kind)
	if !ok {
		return Event{}, state, false
	}

	next := state
	ev := Event{
		Timestamp:          atMs,
		Type:               typ,
		ActiveApp:          snap.ActiveApp,
		BackgroundAppCount: snap.BackgroundAppCount,
	}
	if ev.ActiveApp == "" {
		ev.ActiveApp = contextcache.UnknownApp
	}

	switch {
	case typ == PointerMove:
		if state.HasPointer && n.X == state.LastX && n.Y == state.LastY {
			return Event{}, state, false
		}
		if state.HasPointer {
			ev.MouseSpeed = speed(state.LastX, state.LastY, n.X, n.Y, atMs-state.LastMoveAt)
		}
		ev.X, ev.Y = n.X, n.Y
		next.LastX, next.LastY = n.X, n.Y
		next.LastMoveAt = atMs
		next.HasPointer = true
	case n.Kind.IsPointer():
		ev.X, ev.Y = n.X, n.Y
		if typ == WheelScroll {
			ev.WheelDelta = n.WheelDelta
		}
	default:
		ev.KeyCode = n.KeyCode
	}

	ev.TimeSinceLast = atMs - state.LastEventAt
	next.LastEventAt = atMs
	return ev, next, true
}

// speed is pixels per second; zero or negative elapsed time yields 0.
func speed(x0, y0, x1, y1 int, elapsedMs int64) float64 {
	if elapsedMs <= 0 {
		return 0
	}
	distance := math.Hypot(float64(x1-x0), float64(y1-y0))
	return distance / (float64(elapsedMs) / 1000)
}

// Enricher pairs a Sampler with the enrichment State for a single pipeline.
// It is not safe for concurrent use.
type Enricher struct {
	sampler Sampler
	state   State
}

// NewEnricher constructs an enricher sampling pointer moves at rate.
func NewEnricher(rate int) *Enricher {
	return &Enricher{sampler: NewSampler(rate)}
}

// Reset clears remembered pointer state and sets the start sentinel.
func (e *Enricher) Reset(sentinelMs int64) {
	e.sampler = NewSampler(e.sampler.Rate())
	e.state = NewState(sentinelMs)
}

// Accept applies the sampler.
func (e *Enricher) Accept(kind events.Kind) bool {
	return e.sampler.Accept(kind)
}

// Enrich derives the record for an accepted notification and advances state
// when a record is produced.
func (e *Enricher) Enrich(n events.Notification, atMs int64, snap contextcache.Snapshot) (Event, bool) {
	ev, next, ok := Derive(e.state, n, atMs, snap)
	if !ok {
		return Event{}, false
	}
	e.state = next
	return ev, true
}

// State returns a copy of the current enrichment state.
func (e *Enricher) State() State {
	return e.state
}
