package simulator

import (
	"math/rand"
	"sync"
	"time"
)

// LinkQuality decides whether an outgoing telemetry frame reaches the broker.
type LinkQuality interface {
	Deliver() bool
}

// PerfectLink delivers every frame.
type PerfectLink struct{}

// Deliver implements LinkQuality.
func (PerfectLink) Deliver() bool { return true }

// LossyLink drops frames with the configured probability.
type LossyLink struct {
	DropRate float64

	once sync.Once
	mu   sync.Mutex
	rng  *rand.Rand
}

// Deliver implements LinkQuality.
func (l *LossyLink) Deliver() bool {
	if l.DropRate <= 0 {
		return true
	}
	l.once.Do(func() {
		if l.rng == nil {
			l.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	})
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64() >= l.DropRate
}
