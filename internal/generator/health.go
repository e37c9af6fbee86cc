package generator

import (
	"sync"
	"time"
)

// DefaultHealthTTL is how long a FallbackGenerator trusts an availability
// probe before asking the backend again.
const DefaultHealthTTL = 10 * time.Second

// BackendStatus is a backend's static info plus what the chain has observed
// about it at runtime.
type BackendStatus struct {
	BackendInfo
	Requests int64 `json:"requests"`
	Failures int64 `json:"failures"`
	// SuccessRate and AvailabilityScore are moving averages in [0,1].
	SuccessRate       float64       `json:"success_rate"`
	AvailabilityScore float64       `json:"availability_score"`
	AvgLatency        time.Duration `json:"avg_latency"`
	LastUsed          time.Time     `json:"last_used"`
	LastProbe         time.Time     `json:"last_probe"`
	LastProbeOK       bool          `json:"last_probe_ok"`
}

// health tracks one backend inside a FallbackGenerator.
type health struct {
	mu          sync.Mutex
	requests    int64
	failures    int64
	successRate float64
	availScore  float64
	avgLatency  time.Duration
	lastUsed    time.Time
	probedAt    time.Time
	probeOK     bool
}

func newHealth() *health {
	return &health{successRate: 1, availScore: 1}
}

// cached returns the last probe result and whether it is younger than ttl.
func (h *health) cached(now time.Time, ttl time.Duration) (ok, fresh bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ttl <= 0 || h.probedAt.IsZero() {
		return false, false
	}
	return h.probeOK, now.Sub(h.probedAt) < ttl
}

func (h *health) recordProbe(ok bool, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probedAt = now
	h.probeOK = ok
	h.availScore = 0.8*h.availScore + 0.2*score(ok)
}

func (h *health) recordResult(d time.Duration, ok bool, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests++
	if !ok {
		h.failures++
	}
	h.successRate = 0.9*h.successRate + 0.1*score(ok)
	if h.requests == 1 {
		h.avgLatency = d
	} else {
		h.avgLatency = (9*h.avgLatency + d) / 10
	}
	h.lastUsed = now
}

func (h *health) status(info BackendInfo) BackendStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return BackendStatus{
		BackendInfo:       info,
		Requests:          h.requests,
		Failures:          h.failures,
		SuccessRate:       h.successRate,
		AvailabilityScore: h.availScore,
		AvgLatency:        h.avgLatency,
		LastUsed:          h.lastUsed,
		LastProbe:         h.probedAt,
		LastProbeOK:       h.probeOK,
	}
}

func score(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
