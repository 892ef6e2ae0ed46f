package ws

import (
	"time"

	"go.uber.org/atomic"
)

// Stats tracks one relay connection's lifetime counters and the rolling
// latency average fed by ping round trips.
type Stats struct {
	Attempts     atomic.Uint64
	Success      atomic.Uint64
	BytesUp      atomic.Uint64
	BytesDown    atomic.Uint64
	ConnectedAt  atomic.Int64
	latencyTotal atomic.Int64
	latencyCount atomic.Int64
}

// NewStats creates a zeroed Stats.
func NewStats() *Stats { return &Stats{} }

// NewAttempt records a connection attempt.
func (s *Stats) NewAttempt() { s.Attempts.Add(1) }

// NewSuccess records a successful connection.
func (s *Stats) NewSuccess() {
	s.Success.Add(1)
	s.ConnectedAt.Store(time.Now().Unix())
}

// AddLatency records one ping round trip.
func (s *Stats) AddLatency(d time.Duration) {
	s.latencyTotal.Add(int64(d))
	s.latencyCount.Add(1)
}

// AverageLatency returns the mean ping round trip, zero before any sample.
func (s *Stats) AverageLatency() time.Duration {
	n := s.latencyCount.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(s.latencyTotal.Load() / n)
}

// UptimeSince returns when the current connection was established.
func (s *Stats) UptimeSince() time.Time {
	return time.Unix(s.ConnectedAt.Load(), 0)
}
