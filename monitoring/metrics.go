package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// Outcome labels for RecordRequest.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// MetricsCollector counts prediction traffic. All methods are safe for
// concurrent use.
type MetricsCollector struct {
	mu         sync.RWMutex
	startTime  time.Time
	requests   map[string]int64
	species    map[string]int64
	latencyN   int64
	latencySum time.Duration
	latencyMax time.Duration
}

// MetricsSnapshot is the JSON view served on /metrics.
type MetricsSnapshot struct {
	Uptime         string           `json:"uptime"`
	Requests       map[string]int64 `json:"requests"`
	Species        map[string]int64 `json:"species"`
	MeanLatencyMS  float64          `json:"mean_latency_ms"`
	MaxLatencyMS   float64          `json:"max_latency_ms"`
	Goroutines     int              `json:"goroutines"`
	HeapAllocBytes uint64           `json:"heap_alloc_bytes"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startTime: time.Now(),
		requests:  make(map[string]int64),
		species:   make(map[string]int64),
	}
}

// RecordRequest counts one /predict call by outcome.
func (mc *MetricsCollector) RecordRequest(outcome string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requests[outcome]++
}

// RecordPrediction counts a served prediction and its model latency.
func (mc *MetricsCollector) RecordPrediction(species string, latency time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requests[OutcomeOK]++
	mc.species[species]++
	mc.latencyN++
	mc.latencySum += latency
	if latency > mc.latencyMax {
		mc.latencyMax = latency
	}
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snap := MetricsSnapshot{
		Uptime:         time.Since(mc.startTime).Round(time.Second).String(),
		Requests:       make(map[string]int64, len(mc.requests)),
		Species:        make(map[string]int64, len(mc.species)),
		MaxLatencyMS:   float64(mc.latencyMax) / float64(time.Millisecond),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}
	for k, v := range mc.requests {
		snap.Requests[k] = v
	}
	for k, v := range mc.species {
		snap.Species[k] = v
	}
	if mc.latencyN > 0 {
		snap.MeanLatencyMS = float64(mc.latencySum) / float64(mc.latencyN) / float64(time.Millisecond)
	}
	return snap
}
