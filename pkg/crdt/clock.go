package crdt

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// NodeBits is the width of the replica identifier folded into the low bits of
// timestamps issued by a replica clock.
const NodeBits = 16

// Clock supplies timestamps for writes that don't carry one.
type Clock interface {
	Now() Timestamp
}

// Observer is implemented by clocks that need to learn about timestamps
// arriving from other replicas.
type Observer interface {
	Observe(ts Timestamp)
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() Timestamp

func (f ClockFunc) Now() Timestamp { return f() }

// WallClock reads the system clock in nanoseconds since the Unix epoch.
type WallClock struct{}

func (WallClock) Now() Timestamp {
	return Timestamp(time.Now().UnixNano())
}

// LogicalClock is a Lamport counter. Every Now call ticks it; Observe moves it
// past a timestamp seen in merged state so the next local write dominates it.
//
// A clock built by NewReplicaClock issues counter<<NodeBits | node, so two
// replicas ticking to the same counter still issue distinct timestamps.
type LogicalClock struct {
	counter Timestamp
	node    Timestamp
	shift   uint
	mu      sync.Mutex
}

func NewLogicalClock(start Timestamp) *LogicalClock {
	return &LogicalClock{counter: start}
}

// NewReplicaClock returns a logical clock whose timestamps carry a hash of
// replicaID in their low NodeBits bits.
func NewReplicaClock(replicaID string) *LogicalClock {
	return &LogicalClock{
		node:  Timestamp(xxhash.Sum64String(replicaID) & (1<<NodeBits - 1)),
		shift: NodeBits,
	}
}

func (c *LogicalClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counter++
	return c.counter<<c.shift | c.node
}

// Observe advances the counter to the counter part of ts.
func (c *LogicalClock) Observe(ts Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := ts >> c.shift; n > c.counter {
		c.counter = n
	}
}

// Current returns the last issued or observed counter without ticking.
func (c *LogicalClock) Current() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counter
}

var (
	_ Clock    = WallClock{}
	_ Clock    = (*LogicalClock)(nil)
	_ Observer = (*LogicalClock)(nil)
	_ Clock    = ClockFunc(nil)
)
