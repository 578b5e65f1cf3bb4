package behavior

import (
	"reflect"
	"strings"
	"testing"

	"github.com/offlinefirst/behavioral-capture/pkg/contextcache"
	"github.com/offlinefirst/behavioral-capture/pkg/events"
)

var testSnapshot = contextcache.Snapshot{ActiveApp: "Terminal", BackgroundAppCount: 42}

func TestSamplerPassesEveryNthMove(t *testing.T) {
	sampler := NewSampler(3)
	var accepted []int
	for i := 1; i <= 9; i++ {
		if sampler.Accept(events.KindPointerMove) {
			accepted = append(accepted, i)
		}
		if !sampler.Accept(events.KindKeyDown) {
			t.Fatalf("non-motion event rejected at step %d", i)
		}
	}
	if !reflect.DeepEqual(accepted, []int{3, 6, 9}) {
		t.Fatalf("accepted = %v, want [3 6 9]", accepted)
	}
}

func TestSamplerRateOnePassesAll(t *testing.T) {
	for _, rate := range []int{-1, 0, 1} {
		sampler := NewSampler(rate)
		for i := 0; i < 5; i++ {
			if !sampler.Accept(events.KindPointerMove) {
				t.Fatalf("rate %d rejected move %d", rate, i)
			}
		}
	}
}

func TestDeriveVelocity(t *testing.T) {
	state := NewState(0)
	_, state, ok := Derive(state, events.Notification{Kind: events.KindPointerMove, X: 0, Y: 0}, 1000, testSnapshot)
	if !ok {
		t.Fatalf("first move suppressed")
	}
	ev, _, ok := Derive(state, events.Notification{Kind: events.KindPointerMove, X: 30, Y: 40}, 1500, testSnapshot)
	if !ok {
		t.Fatalf("second move suppressed")
	}
	if ev.MouseSpeed != 100 {
		t.Fatalf("speed = %v, want 100", ev.MouseSpeed)
	}
	if got := ev.Row()[9]; got != "100.00" {
		t.Fatalf("formatted speed = %q, want 100.00", got)
	}
}

func TestDeriveFirstMoveHasZeroSpeed(t *testing.T) {
	ev, state, ok := Derive(NewState(10), events.Notification{Kind: events.KindPointerMove, X: 5, Y: 5}, 20, testSnapshot)
	if !ok {
		t.Fatalf("first move suppressed")
	}
	if ev.MouseSpeed != 0 {
		t.Fatalf("expected zero speed without previous pointer, got %v", ev.MouseSpeed)
	}
	if ev.TimeSinceLast != 10 {
		t.Fatalf("time since sentinel = %d, want 10", ev.TimeSinceLast)
	}
	if !state.HasPointer || state.LastX != 5 || state.LastY != 5 || state.LastMoveAt != 20 {
		t.Fatalf("unexpected state after first move: %#v", state)
	}
}

func TestDeriveZeroElapsedSpeed(t *testing.T) {
	_, state, _ := Derive(NewState(0), events.Notification{Kind: events.KindPointerMove, X: 1, Y: 1}, 100, testSnapshot)
	ev, _, ok := Derive(state, events.Notification{Kind: events.KindPointerMove, X: 50, Y: 50}, 100, testSnapshot)
	if !ok {
		t.Fatalf("move suppressed")
	}
	if ev.MouseSpeed != 0 {
		t.Fatalf("expected zero speed for zero elapsed time, got %v", ev.MouseSpeed)
	}
}

func TestDeriveSuppressesStationaryMove(t *testing.T) {
	_, state, _ := Derive(NewState(0), events.Notification{Kind: events.KindPointerMove, X: 7, Y: 9}, 100, testSnapshot)
	ev, next, ok := Derive(state, events.Notification{Kind: events.KindPointerMove, X: 7, Y: 9}, 200, testSnapshot)
	if ok {
		t.Fatalf("stationary move produced record %#v", ev)
	}
	if next != state {
		t.Fatalf("state advanced on suppressed move: %#v", next)
	}
}

func TestDeriveTimeSinceLastAcrossTypes(t *testing.T) {
	sequence := []struct {
		n  events.Notification
		at int64
	}{
		{events.Notification{Kind: events.KindKeyDown, KeyCode: 4}, 1010},
		{events.Notification{Kind: events.KindPointerMove, X: 3, Y: 4}, 1030},
		{events.Notification{Kind: events.KindPrimaryDown, X: 3, Y: 4}, 1031},
		{events.Notification{Kind: events.KindWheel, X: 3, Y: 4, WheelDelta: -120}, 1100},
		{events.Notification{Kind: events.KindKeyUp, KeyCode: 4}, 1100},
	}

	state := NewState(1000)
	var recorded []Event
	for _, step := range sequence {
		ev, next, ok := Derive(state, step.n, step.at, testSnapshot)
		if !ok {
			t.Fatalf("unexpected suppression of %v", step.n.Kind)
		}
		state = next
		recorded = append(recorded, ev)
	}

	if recorded[0].TimeSinceLast != 10 {
		t.Fatalf("first record gap = %d, want 10", recorded[0].TimeSinceLast)
	}
	for i := 1; i < len(recorded); i++ {
		want := recorded[i].Timestamp - recorded[i-1].Timestamp
		if recorded[i].TimeSinceLast != want {
			t.Fatalf("record %d gap = %d, want %d", i, recorded[i].TimeSinceLast, want)
		}
	}
}

func TestDeriveZeroesIrrelevantFields(t *testing.T) {
	key, _, _ := Derive(NewState(0), events.Notification{Kind: events.KindKeyDown, X: 9, Y: 9, KeyCode: 31, WheelDelta: 5}, 1, testSnapshot)
	if key.X != 0 || key.Y != 0 || key.WheelDelta != 0 || key.KeyCode != 31 {
		t.Fatalf("unexpected key record %#v", key)
	}
	click, _, _ := Derive(NewState(0), events.Notification{Kind: events.KindSecondaryUp, X: 9, Y: 8, KeyCode: 3}, 1, testSnapshot)
	if click.X != 9 || click.Y != 8 || click.KeyCode != 0 {
		t.Fatalf("unexpected click record %#v", click)
	}
	if click.ActiveApp != "Terminal" || click.BackgroundAppCount != 42 {
		t.Fatalf("context not copied: %#v", click)
	}
}

func TestDeriveDefaultsEmptyApp(t *testing.T) {
	ev, _, _ := Derive(NewState(0), events.Notification{Kind: events.KindKeyUp}, 1, contextcache.Snapshot{})
	if ev.ActiveApp != contextcache.UnknownApp {
		t.Fatalf("active app = %q, want %q", ev.ActiveApp, contextcache.UnknownApp)
	}
}

func TestEnricherSamplesAndTracksState(t *testing.T) {
	enricher := NewEnricher(2)
	enricher.Reset(500)

	var produced []Event
	moves := []events.Notification{
		{Kind: events.KindPointerMove, X: 1, Y: 1},
		{Kind: events.KindPointerMove, X: 2, Y: 2},
		{Kind: events.KindPointerMove, X: 3, Y: 3},
		{Kind: events.KindPointerMove, X: 2, Y: 2},
	}
	for i, n := range moves {
		if !enricher.Accept(n.Kind) {
			continue
		}
		if ev, ok := enricher.Enrich(n, int64(600+i*100), testSnapshot); ok {
			produced = append(produced, ev)
		}
	}

	if len(produced) != 1 {
		t.Fatalf("expected one record, got %d", len(produced))
	}
	if produced[0].X != 2 || produced[0].TimeSinceLast != 200 {
		t.Fatalf("unexpected record %#v", produced[0])
	}
	if got := enricher.State(); got.LastEventAt != 700 {
		t.Fatalf("state last event = %d, want 700", got.LastEventAt)
	}

	enricher.Reset(0)
	if enricher.State().HasPointer {
		t.Fatalf("reset should forget pointer position")
	}
}

func TestRowRoundTrip(t *testing.T) {
	ev := Event{
		Timestamp:          1717243200123,
		Type:               WheelScroll,
		X:                  10,
		Y:                  -4,
		WheelDelta:         -120,
		TimeSinceLast:      33,
		ActiveApp:          "Visual Studio Code",
		BackgroundAppCount: 211,
	}
	row := ev.Row()
	if len(row) != len(Header) {
		t.Fatalf("row has %d columns, header has %d", len(row), len(Header))
	}
	if row[1] != "wheel_scroll" || row[9] != "0.00" {
		t.Fatalf("unexpected row %v", row)
	}
	parsed, err := ParseRow(row)
	if err != nil {
		t.Fatalf("parse row: %v", err)
	}
	if parsed != ev {
		t.Fatalf("parsed = %#v, want %#v", parsed, ev)
	}
}

func TestParseRowCoreColumnsOnly(t *testing.T) {
	ev, err := ParseRow([]string{"5", "key_down", "0", "0", "14", "0", "2"})
	if err != nil {
		t.Fatalf("parse row: %v", err)
	}
	if ev.Type != KeyDown || ev.KeyCode != 14 || ev.ActiveApp != "" {
		t.Fatalf("unexpected event %#v", ev)
	}
}

func TestParseRowErrors(t *testing.T) {
	cases := map[string][]string{
		"columns": {"1", "key_down"},
		"type":    {"1", "hover", "0", "0", "0", "0", "0"},
		"int":     {"1", "key_down", "x", "0", "0", "0", "0"},
		"speed":   {"1", "pointer_move", "0", "0", "0", "0", "0", "App", "1", "fast"},
	}
	for name, row := range cases {
		if _, err := ParseRow(row); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestHeaderColumns(t *testing.T) {
	want := "timestamp,event_type,x,y,key_code,wheel_delta,time_since_last,active_app,background_apps,mouse_speed_pxps"
	if got := strings.Join(Header, ","); got != want {
		t.Fatalf("header = %s", got)
	}
}

func TestEventTypeNamesAreStable(t *testing.T) {
	for typ := PointerMove; typ <= KeyUp; typ++ {
		parsed, err := ParseEventType(typ.String())
		if err != nil || parsed != typ {
			t.Fatalf("round trip of %s failed: %v", typ, err)
		}
	}
	if EventType(42).String() != "unknown" {
		t.Fatalf("expected unknown name for out-of-range type")
	}
}

func TestSummarize(t *testing.T) {
	records := []Event{
		{Timestamp: 10, Type: PointerMove, MouseSpeed: 0, ActiveApp: "A"},
		{Timestamp: 20, Type: PointerMove, MouseSpeed: 100, ActiveApp: "A"},
		{Timestamp: 30, Type: PointerMove, MouseSpeed: 50, ActiveApp: "A"},
		{Timestamp: 40, Type: PointerPrimaryDown},
		{Timestamp: 41, Type: PointerSecondaryDown},
		{Timestamp: 42, Type: PointerPrimaryUp},
		{Timestamp: 50, Type: KeyDown},
		{Timestamp: 60, Type: KeyUp, ActiveApp: "Mail", BackgroundAppCount: 9},
	}
	stats := Summarize(records)
	if stats.Total != 8 || stats.PointerMoves != 3 || stats.ButtonDowns != 2 || stats.KeyDowns != 1 {
		t.Fatalf("unexpected counts %#v", stats)
	}
	if stats.MeanSpeed != 75 || stats.SpeedSamples != 2 {
		t.Fatalf("mean speed = %v over %d samples", stats.MeanSpeed, stats.SpeedSamples)
	}
	if !stats.HasLatest || stats.LatestActiveApp != "Mail" || stats.LatestBackgroundApps != 9 {
		t.Fatalf("unexpected latest context %#v", stats)
	}
	if stats.SpanMillis() != 50 {
		t.Fatalf("span = %d, want 50", stats.SpanMillis())
	}

	empty := Summarize(nil)
	if empty.Total != 0 || empty.HasLatest || empty.MeanSpeed != 0 || empty.SpanMillis() != 0 {
		t.Fatalf("unexpected empty statistics %#v", empty)
	}
}

func TestDeriveWheelKeepsPositionAndDelta(t *testing.T) {
	ev, state, ok := Derive(NewState(0), events.Notification{Kind: events.KindWheel, X: 12, Y: 30, KeyCode: 7, WheelDelta: -120}, 5, testSnapshot)
	if !ok {
		t.Fatalf("wheel event suppressed")
	}
	if ev.X != 12 || ev.Y != 30 || ev.WheelDelta != -120 || ev.KeyCode != 0 {
		t.Fatalf("unexpected wheel record %#v", ev)
	}
	if state.HasPointer {
		t.Fatalf("wheel events must not move the speed origin")
	}
}
