package errclass

import "sync"

// Collector accumulates per-classification counts for a session. It is used
// for operational visibility only and never drives control flow.
type Collector struct {
	mu     sync.Mutex
	counts map[Classification]int64
	total  int64
}

// Snapshot is a point-in-time view of classification counts.
type Snapshot struct {
	Total        int64
	Counts       map[Classification]int64
	Distribution map[Classification]float64
}

// NewCollector returns an empty stats collector.
func NewCollector() *Collector {
	return &Collector{counts: make(map[Classification]int64)}
}

// Record counts one occurrence of the given classification.
func (c *Collector) Record(class Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[class]++
	c.total++
}

// Snapshot returns the accumulated counts and their relative distribution.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Total:        c.total,
		Counts:       make(map[Classification]int64, len(c.counts)),
		Distribution: make(map[Classification]float64, len(c.counts)),
	}
	for class, count := range c.counts {
		snap.Counts[class] = count
		if c.total > 0 {
			snap.Distribution[class] = float64(count) / float64(c.total)
		}
	}
	return snap
}

// Reset clears all accumulated counts.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[Classification]int64)
	c.total = 0
}
