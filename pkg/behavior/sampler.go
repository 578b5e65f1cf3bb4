package behavior

import "github.com/offlinefirst/behavioral-capture/pkg/events"

// DefaultSampleRate keeps one in every three pointer moves.
const DefaultSampleRate = 3

// Sampler thins pointer motion before enrichment. It is not safe for
// concurrent use; the recorder serialises calls under its pipeline lock.
type Sampler struct {
	rate  int
	moves int
}

// NewSampler returns a sampler passing every rate-th pointer move. A rate of
// one or less passes everything.
func NewSampler(rate int) Sampler {
	if rate < 1 {
		rate = 1
	}
	return Sampler{rate: rate}
}

// Accept counts pointer moves and reports whether this notification should
// continue down the pipeline. Other kinds always pass and do not advance the
// counter.
func (s *Sampler) Accept(kind events.Kind) bool {
	if kind != events.KindPointerMove {
		return true
	}
	if s.rate <= 1 {
		return true
	}
	s.moves++
	if s.moves < s.rate {
		return false
	}
	s.moves = 0
	return true
}

// Rate returns the configured rate.
func (s Sampler) Rate() int {
	if s.rate < 1 {
		return 1
	}
	return s.rate
}
