// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Operation names recorded by docchat components.
const (
	OpModelGenerate    = "model_generate"
	OpModelToolCall    = "model_tool_call"
	OpEmbedding        = "embedding"
	OpIndexBuild       = "index_build"
	OpIndexSearch      = "index_search"
	OpWebSearch        = "web_search"
	OpToolDispatch     = "tool_dispatch"
	OpCheckpointLoad   = "checkpoint_load"
	OpCheckpointCommit = "checkpoint_commit"
	OpTurn             = "turn"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token counters, only populated by model operations.
	InputTokens  int64
	OutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Name        string
	Count       int64
	Errors      int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Nil for operations that never reported tokens.
	InputTokens  *int64
	OutputTokens *int64
}

// Snapshot is the collector's state at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Operations    []OperationSnapshot
}

// Collector aggregates in-memory runtime statistics.
// All methods are safe for concurrent use and on a nil receiver.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// RecordTiming records one completed operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.record(op, duration, nil, 0, 0)
}

// RecordError records one failed operation.
func (c *Collector) RecordError(op string, duration time.Duration, err error) {
	c.record(op, duration, err, 0, 0)
}

// RecordLLMUsage records timing and token usage for a model call.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.record(op, duration, nil, inputTokens, outputTokens)
}

// Track returns a func that records the elapsed time since Track was called,
// counting the call as failed when *errp is non-nil.
//
//	defer mc.Track(metrics.OpIndexSearch)(&err)
func (c *Collector) Track(op string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		c.record(op, time.Since(start), err, 0, 0)
	}
}

func (c *Collector) record(op string, d time.Duration, err error, in, out int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	m.Count++
	if err != nil {
		m.Errors++
	}
	m.TotalTime += d
	m.MinTime = min(m.MinTime, d)
	m.MaxTime = max(m.MaxTime, d)
	m.InputTokens += in
	m.OutputTokens += out
}

// Snapshot returns a point-in-time snapshot of all metrics, ordered by operation name.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{UptimeSeconds: time.Since(c.startTime).Seconds()}
	for name, m := range c.ops {
		s := OperationSnapshot{
			Name:        name,
			Count:       m.Count,
			Errors:      m.Errors,
			TotalTimeMs: m.TotalTime.Milliseconds(),
			AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
			MinTimeMs:   m.MinTime.Milliseconds(),
			MaxTimeMs:   m.MaxTime.Milliseconds(),
		}
		if m.InputTokens > 0 || m.OutputTokens > 0 {
			in, out := m.InputTokens, m.OutputTokens
			s.InputTokens, s.OutputTokens = &in, &out
		}
		snap.Operations = append(snap.Operations, s)
	}
	sort.Slice(snap.Operations, func(i, j int) bool {
		return snap.Operations[i].Name < snap.Operations[j].Name
	})
	return snap
}

// Get returns the snapshot for a single operation.
func (s Snapshot) Get(op string) (OperationSnapshot, bool) {
	for _, o := range s.Operations {
		if o.Name == op {
			return o, true
		}
	}
	return OperationSnapshot{}, false
}
