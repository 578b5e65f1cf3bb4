package events

import (
	"errors"
	"sync"
	"time"
)

// Kind identifies the variant of a raw input notification.
type Kind int

const (
	KindPointerMove Kind = iota
	KindPrimaryDown
	KindPrimaryUp
	KindSecondaryDown
	KindSecondaryUp
	KindWheel
	KindKeyDown
	KindKeyUp
)

var kindNames = [...]string{
	KindPointerMove:   "pointer-move",
	KindPrimaryDown:   "primary-down",
	KindPrimaryUp:     "primary-up",
	KindSecondaryDown: "secondary-down",
	KindSecondaryUp:   "secondary-up",
	KindWheel:         "wheel",
	KindKeyDown:       "key-down",
	KindKeyUp:         "key-up",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsPointer reports whether the notification carries screen coordinates.
func (k Kind) IsPointer() bool {
	return k >= KindPointerMove && k <= KindWheel
}

// Notification is an unenriched input event as delivered by the host.
// Fields that do not apply to Kind are zero.
type Notification struct {
	Kind       Kind
	X          int
	Y          int
	KeyCode    int
	WheelDelta int
}

// Handler receives notifications. It runs on the delivery context chosen by
// the source and must return promptly.
type Handler func(Notification)

// Source delivers raw notifications to a subscribed handler.
type Source interface {
	Subscribe(handler Handler) (Subscription, error)
}

// Subscription is the handle returned by Subscribe. Unsubscribe is idempotent
// and guarantees no further handler invocations once it returns.
type Subscription interface {
	Unsubscribe() error
}

// Options controls the platform default source.
type Options struct {
	// Synthetic forces the scripted source even where a real tap exists.
	Synthetic bool
	// Interval paces the synthetic source.
	Interval time.Duration
}

// DefaultSource returns the platform event source, or the synthetic source
// when requested or when no real tap is available.
func DefaultSource(opts Options) Source {
	if opts.Synthetic {
		return NewSyntheticSource(opts.Interval, nil)
	}
	return defaultEventSource(opts)
}

// ManualSource delivers notifications synchronously from Emit. It serves
// embedding hosts that already own an event loop, and tests.
type ManualSource struct {
	mu      sync.Mutex
	handler Handler
	fail    error
}

// NewManualSource constructs an idle manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// FailWith makes the next Subscribe calls return err.
func (m *ManualSource) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Subscribe registers the handler. Only one subscriber is supported.
func (m *ManualSource) Subscribe(handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("handler must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	if m.handler != nil {
		return nil, errors.New("manual source already subscribed")
	}
	m.handler = handler
	return &manualSubscription{source: m}, nil
}

// Emit invokes the subscribed handler on the caller's goroutine. It reports
// whether a subscriber received the notification.
func (m *ManualSource) Emit(n Notification) bool {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(n)
	return true
}

// Subscribed reports whether a handler is currently registered.
func (m *ManualSource) Subscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler != nil
}

type manualSubscription struct {
	source *ManualSource
	once   sync.Once
}

func (s *manualSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.source.mu.Lock()
		s.source.handler = nil
		s.source.mu.Unlock()
	})
	return nil
}
