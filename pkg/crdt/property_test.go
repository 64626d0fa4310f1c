package crdt

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	propertyRounds = 200
	propertyOps    = 40
)

var propertyKeys = []string{"a", "b", "c", "d", "e", "f"}

// opGen issues random adds and removes. Timestamps come from a shared
// counter, possibly shuffled, so no two writes ever carry the same timestamp.
type opGen struct {
	rng *rand.Rand
	ts  Timestamp
}

func newOpGen(seed uint64) *opGen {
	return &opGen{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *opGen) timestamp() Timestamp {
	g.ts += Timestamp(1 + g.rng.IntN(3))
	// Occasionally write into the past to exercise stale-write handling.
	if g.rng.IntN(5) == 0 {
		return -g.ts
	}
	return g.ts
}

func (g *opGen) apply(d *Dictionary[string, int], n int) {
	for range n {
		key := propertyKeys[g.rng.IntN(len(propertyKeys))]
		if g.rng.IntN(3) == 0 {
			d.RemoveAt(key, g.timestamp())
			continue
		}
		d.AddAt(key, g.rng.IntN(4), g.timestamp())
	}
}

func (g *opGen) replicas(n int) []*Dictionary[string, int] {
	base := New[string, int]()
	g.apply(base, propertyOps/4)

	out := make([]*Dictionary[string, int], n)
	for i := range out {
		out[i] = base.Clone()
		g.apply(out[i], propertyOps)
	}
	return out
}

func merged(a, b *Dictionary[string, int]) *Dictionary[string, int] {
	out := a.Clone()
	out.Merge(b)
	return out
}

func forEachSeed(t *testing.T, fn func(t *testing.T, g *opGen)) {
	t.Helper()
	for seed := range uint64(propertyRounds) {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			fn(t, newOpGen(seed))
		})
	}
}

func TestPropertyConvergence(t *testing.T) {
	forEachSeed(t, func(t *testing.T, g *opGen) {
		r := g.replicas(2)
		a, b := r[0], r[1]

		aBefore := a.Clone()
		a.Merge(b)
		b.Merge(aBefore)

		require.True(t, a.Compare(b))
		require.True(t, b.Compare(a))
		require.Equal(t, a.Items(), b.Items())
	})
}

func TestPropertyIdempotence(t *testing.T) {
	forEachSeed(t, func(t *testing.T, g *opGen) {
		a := g.replicas(1)[0]
		want := a.Snapshot()

		a.Merge(a)
		require.Equal(t, want, a.Snapshot())

		a.Merge(a.Clone())
		require.Equal(t, want, a.Snapshot())
	})
}

func TestPropertyCommutativity(t *testing.T) {
	forEachSeed(t, func(t *testing.T, g *opGen) {
		r := g.replicas(2)
		require.Equal(t, merged(r[0], r[1]).Snapshot(), merged(r[1], r[0]).Snapshot())
	})
}

func TestPropertyAssociativity(t *testing.T) {
	forEachSeed(t, func(t *testing.T, g *opGen) {
		r := g.replicas(3)
		left := merged(merged(r[0], r[1]), r[2])
		right := merged(r[0], merged(r[1], r[2]))
		require.Equal(t, left.Snapshot(), right.Snapshot())
	})
}

func TestPropertyRepeatedDeliveryConverges(t *testing.T) {
	forEachSeed(t, func(t *testing.T, g *opGen) {
		r := g.replicas(3)
		want := merged(merged(r[0], r[1]), r[2]).Snapshot()

		// Deliver every snapshot to every replica several times in a random order.
		deliveries := make([]*Dictionary[string, int], 0, 9)
		for range 3 {
			for _, d := range r {
				deliveries = append(deliveries, d.Clone())
			}
		}
		for _, d := range r {
			g.rng.Shuffle(len(deliveries), func(i, j int) {
				deliveries[i], deliveries[j] = deliveries[j], deliveries[i]
			})
			for _, in := range deliveries {
				d.Merge(in)
			}
			require.Equal(t, want, d.Snapshot())
		}
	})
}

func TestPropertyTimestampsNeverDecrease(t *testing.T) {
	forEachSeed(t, func(t *testing.T, g *opGen) {
		d := New[string, int]()
		other := g.replicas(1)[0]

		highest := func(m *GrowMap[string, int]) map[string]Timestamp {
			out := make(map[string]Timestamp, m.Len())
			for _, e := range m.Entries() {
				out[e.Key] = e.Timestamp
			}
			return out
		}

		prevAdds, prevRemoves := highest(d.adds), highest(d.removes)
		for i := range propertyOps {
			if i%10 == 9 {
				d.Merge(other)
			} else {
				g.apply(d, 1)
			}

			adds, removes := highest(d.adds), highest(d.removes)
			for k, ts := range prevAdds {
				require.Contains(t, adds, k)
				require.GreaterOrEqual(t, adds[k], ts)
			}
			for k, ts := range prevRemoves {
				require.Contains(t, removes, k)
				require.GreaterOrEqual(t, removes[k], ts)
			}
			prevAdds, prevRemoves = adds, removes
		}
	})
}

func TestPropertyRemoveOrdering(t *testing.T) {
	forEachSeed(t, func(t *testing.T, g *opGen) {
		d := New[string, int](WithBias(BiasRemove))
		t1 := Timestamp(g.rng.IntN(100))
		t2 := Timestamp(g.rng.IntN(100))

		d.AddAt("k", 1, t1)
		d.RemoveAt("k", t2)

		got, ok := d.Lookup("k")
		if t2 >= t1 {
			require.False(t, ok)
			return
		}
		require.True(t, ok)
		require.Equal(t, TimestampedValue[int]{Value: 1, Timestamp: t1}, got)
	})
}
