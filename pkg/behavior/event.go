// Package behavior turns raw input notifications into behavioral records.
//
// The derivation is split into a Sampler that thins pointer motion and a pure
// Derive step over an explicit State value, so that timing and velocity rules
// can be exercised without a live event source.
package behavior

import (
	"fmt"
	"strconv"

	"github.com/offlinefirst/behavioral-capture/pkg/events"
)

// EventType is the closed set of recorded input variants.
type EventType int

const (
	PointerMove EventType = iota
	PointerPrimaryDown
	PointerPrimaryUp
	PointerSecondaryDown
	PointerSecondaryUp
	WheelScroll
	KeyDown
	KeyUp
)

// Names are persisted in the event_type column and must stay stable.
var eventTypeNames = [...]string{
	PointerMove:          "pointer_move",
	PointerPrimaryDown:   "pointer_primary_down",
	PointerPrimaryUp:     "pointer_primary_up",
	PointerSecondaryDown: "pointer_secondary_down",
	PointerSecondaryUp:   "pointer_secondary_up",
	WheelScroll:          "wheel_scroll",
	KeyDown:              "key_down",
	KeyUp:                "key_up",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

// ParseEventType resolves a persisted event_type value.
func ParseEventType(name string) (EventType, error) {
	for i, candidate := range eventTypeNames {
		if candidate == name {
			return EventType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", name)
}

// TypeOf maps a raw notification kind onto its recorded type.
func TypeOf(kind events.Kind) (EventType, bool) {
	switch kind {
	case events.KindPointerMove:
		return PointerMove, true
	case events.KindPrimaryDown:
		return PointerPrimaryDown, true
	case events.KindPrimaryUp:
		return PointerPrimaryUp, true
	case events.KindSecondaryDown:
		return PointerSecondaryDown, true
	case events.KindSecondaryUp:
		return PointerSecondaryUp, true
	case events.KindWheel:
		return WheelScroll, true
	case events.KindKeyDown:
		return KeyDown, true
	case events.KindKeyUp:
		return KeyUp, true
	default:
		return 0, false
	}
}

// IsButtonDown reports whether t is a press of either pointer button.
func (t EventType) IsButtonDown() bool {
	return t == PointerPrimaryDown || t == PointerSecondaryDown
}

// Event is one behavioral record. Values are never mutated after Derive.
type Event struct {
	Timestamp          int64
	Type               EventType
	X                  int
	Y                  int
	KeyCode            int
	WheelDelta         int
	TimeSinceLast      int64
	ActiveApp          string
	BackgroundAppCount int
	MouseSpeed         float64
}

// Header names the persisted columns in order.
var Header = []string{
	"timestamp",
	"event_type",
	"x",
	"y",
	"key_code",
	"wheel_delta",
	"time_since_last",
	"active_app",
	"background_apps",
	"mouse_speed_pxps",
}

// coreColumns is the prefix every persisted row carries; context columns may be absent.
const coreColumns = 7

// Row serialises the event in Header order.
func (e Event) Row() []string {
	return []string{
		strconv.FormatInt(e.Timestamp, 10),
		e.Type.String(),
		strconv.Itoa(e.X),
		strconv.Itoa(e.Y),
		strconv.Itoa(e.KeyCode),
		strconv.Itoa(e.WheelDelta),
		strconv.FormatInt(e.TimeSinceLast, 10),
		e.ActiveApp,
		strconv.Itoa(e.BackgroundAppCount),
		strconv.FormatFloat(e.MouseSpeed, 'f', 2, 64),
	}
}

// ParseRow reverses Row. Rows with only the core columns yield an event
// without context.
func ParseRow(row []string) (Event, error) {
	if len(row) != coreColumns && len(row) != len(Header) {
		return Event{}, fmt.Errorf("expected %d or %d columns, got %d", coreColumns, len(Header), len(row))
	}

	var (
		ev  Event
		err error
	)
	if ev.Timestamp, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return Event{}, fmt.Errorf("parse timestamp: %w", err)
	}
	if ev.Type, err = ParseEventType(row[1]); err != nil {
		return Event{}, err
	}
	ints := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"x", row[2], &ev.X},
		{"y", row[3], &ev.Y},
		{"key_code", row[4], &ev.KeyCode},
		{"wheel_delta", row[5], &ev.WheelDelta},
	}
	for _, field := range ints {
		if *field.dst, err = strconv.Atoi(field.raw); err != nil {
			return Event{}, fmt.Errorf("parse %s: %w", field.name, err)
		}
	}
	if ev.TimeSinceLast, err = strconv.ParseInt(row[6], 10, 64); err != nil {
		return Event{}, fmt.Errorf("parse time_since_last: %w", err)
	}
	if len(row) == coreColumns {
		return ev, nil
	}

	ev.ActiveApp = row[7]
	if ev.BackgroundAppCount, err = strconv.Atoi(row[8]); err != nil {
		return Event{}, fmt.Errorf("parse background_apps: %w", err)
	}
	if ev.MouseSpeed, err = strconv.ParseFloat(row[9], 64); err != nil {
		return Event{}, fmt.Errorf("parse mouse_speed_pxps: %w", err)
	}
	return ev, nil
}
