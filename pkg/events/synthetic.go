package events

import (
	"errors"
	"sync"
	"time"
)

const defaultSyntheticInterval = 20 * time.Millisecond

// SyntheticSource replays a deterministic script of notifications on its own
// goroutine, looping until unsubscribed.
type SyntheticSource struct {
	interval time.Duration
	script   []Notification
}

// NewSyntheticSource builds a scripted source. A nil script uses the built-in
// timeline of pointer travel, clicks, scrolling and typing.
func NewSyntheticSource(interval time.Duration, script []Notification) *SyntheticSource {
	if interval <= 0 {
		interval = defaultSyntheticInterval
	}
	if len(script) == 0 {
		script = defaultScript()
	}
	return &SyntheticSource{interval: interval, script: append([]Notification(nil), script...)}
}

// Subscribe starts replaying the script into handler.
func (s *SyntheticSource) Subscribe(handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("handler must not be nil")
	}
	sub := &syntheticSubscription{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.replay(handler, sub)
	return sub, nil
}

func (s *SyntheticSource) replay(handler Handler, sub *syntheticSubscription) {
	defer close(sub.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-sub.stop:
			return
		case <-ticker.C:
		}
		handler(s.script[i%len(s.script)])
	}
}

type syntheticSubscription struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *syntheticSubscription) Unsubscribe() error {
	s.once.Do(func() {
		close(s.stop)
	})
	<-s.done
	return nil
}

func defaultScript() []Notification {
	script := make([]Notification, 0, 64)
	// Diagonal pointer travel with a few repeated samples, like a hand at rest.
	for step := 0; step < 24; step++ {
		x, y := 100+step*12, 200+step*9
		script = append(script, Notification{Kind: KindPointerMove, X: x, Y: y})
		if step%8 == 7 {
			script = append(script, Notification{Kind: KindPointerMove, X: x, Y: y})
		}
	}
	script = append(script,
		Notification{Kind: KindPrimaryDown, X: 388, Y: 407},
		Notification{Kind: KindPrimaryUp, X: 388, Y: 407},
		Notification{Kind: KindWheel, X: 388, Y: 407, WheelDelta: -120},
		Notification{Kind: KindWheel, X: 388, Y: 407, WheelDelta: -120},
		Notification{Kind: KindSecondaryDown, X: 390, Y: 410},
		Notification{Kind: KindSecondaryUp, X: 390, Y: 410},
	)
	// "hello" as macOS virtual key codes.
	for _, code := range []int{4, 14, 37, 37, 31} {
		script = append(script,
			Notification{Kind: KindKeyDown, KeyCode: code},
			Notification{Kind: KindKeyUp, KeyCode: code},
		)
	}
	return script
}
