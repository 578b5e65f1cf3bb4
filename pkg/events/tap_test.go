package events

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestManualSourceDeliversUntilUnsubscribed(t *testing.T) {
	source := NewManualSource()
	var got []Notification
	sub, err := source.Subscribe(func(n Notification) { got = append(got, n) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if !source.Emit(Notification{Kind: KindKeyDown, KeyCode: 12}) {
		t.Fatalf("expected emit to reach subscriber")
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second unsubscribe: %v", err)
	}
	if source.Emit(Notification{Kind: KindKeyUp, KeyCode: 12}) {
		t.Fatalf("expected emit after unsubscribe to be dropped")
	}

	if len(got) != 1 || got[0].KeyCode != 12 {
		t.Fatalf("unexpected deliveries: %#v", got)
	}
}

func TestManualSourceFailWith(t *testing.T) {
	source := NewManualSource()
	boom := errors.New("hook refused")
	source.FailWith(boom)

	if _, err := source.Subscribe(func(Notification) {}); !errors.Is(err, boom) {
		t.Fatalf("expected configured failure, got %v", err)
	}
	if source.Subscribed() {
		t.Fatalf("expected no subscriber after failure")
	}
}

func TestManualSourceRejectsSecondSubscriber(t *testing.T) {
	source := NewManualSource()
	if _, err := source.Subscribe(func(Notification) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := source.Subscribe(func(Notification) {}); err == nil {
		t.Fatalf("expected second subscribe to fail")
	}
}

func TestSyntheticSourceReplaysScriptInOrder(t *testing.T) {
	script := []Notification{
		{Kind: KindPointerMove, X: 1, Y: 1},
		{Kind: KindPrimaryDown, X: 1, Y: 1},
		{Kind: KindKeyDown, KeyCode: 4},
	}
	source := NewSyntheticSource(time.Millisecond, script)

	var mu sync.Mutex
	var got []Notification
	enough := make(chan struct{})
	var once sync.Once
	sub, err := source.Subscribe(func(n Notification) {
		mu.Lock()
		got = append(got, n)
		if len(got) >= 6 {
			once.Do(func() { close(enough) })
		}
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case <-enough:
	case <-time.After(2 * time.Second):
		t.Fatalf("synthetic source did not deliver")
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	mu.Lock()
	delivered := len(got)
	for i := 0; i < 6; i++ {
		if got[i] != script[i%len(script)] {
			t.Fatalf("delivery %d = %#v, want %#v", i, got[i], script[i%len(script)])
		}
	}
	mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(got) != delivered {
		t.Fatalf("expected no deliveries after unsubscribe, got %d more", len(got)-delivered)
	}
}

func TestDefaultScriptCoversEveryKind(t *testing.T) {
	seen := make(map[Kind]bool)
	for _, n := range defaultScript() {
		seen[n.Kind] = true
	}
	for k := KindPointerMove; k <= KindKeyUp; k++ {
		if !seen[k] {
			t.Fatalf("default script missing %s", k)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindWheel.String() != "wheel" {
		t.Fatalf("unexpected name %q", KindWheel.String())
	}
	if Kind(99).String() != "unknown" {
		t.Fatalf("expected unknown for out-of-range kind")
	}
	if KindKeyDown.IsPointer() || !KindWheel.IsPointer() {
		t.Fatalf("unexpected pointer classification")
	}
}

func TestPrivacyPolicyAllowList(t *testing.T) {
	open := PrivacyPolicy{}
	if !open.Allows("Anything") {
		t.Fatalf("zero policy should allow everything")
	}

	policy := NewPrivacyPolicy([]string{" Safari ", "Terminal", ""}, false)
	if !policy.Allows("safari") {
		t.Fatalf("expected case-insensitive match")
	}
	if policy.Allows("Mail") {
		t.Fatalf("expected unlisted app to be rejected")
	}
	if !policy.Allows(UnknownApp) {
		t.Fatalf("expected unknown app to pass when dropUnknown is false")
	}

	strict := NewPrivacyPolicy([]string{"Terminal"}, true)
	if strict.Allows(UnknownApp) || strict.Allows("") {
		t.Fatalf("expected unknown app to be dropped")
	}
}

func TestRedactorAppliesPatterns(t *testing.T) {
	redactor, err := NewRedactor([]string{"email", `secret-\d+`})
	if err != nil {
		t.Fatalf("new redactor: %v", err)
	}
	if !redactor.Enabled() {
		t.Fatalf("expected redactor to be enabled")
	}

	input := "Mail - jane@example.com secret-123"
	out := redactor.ApplyString(input)
	if strings.Contains(out, "jane@example.com") {
		t.Fatalf("expected email to be redacted: %s", out)
	}
	if strings.Contains(out, "secret-123") {
		t.Fatalf("expected custom token to be redacted: %s", out)
	}

	var zero Redactor
	if zero.ApplyString(input) != input {
		t.Fatalf("zero redactor should be a no-op")
	}
}

func TestNewRedactorRejectsInvalidExpression(t *testing.T) {
	if _, err := NewRedactor([]string{"("}); err == nil {
		t.Fatalf("expected compile error")
	}
}
