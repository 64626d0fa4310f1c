package crdt

import (
	"cmp"
)

// Dictionary is a Last-Writer-Wins element dictionary. Adds and removes are
// recorded in two grow-only maps; a key is visible when its latest add is
// more recent than its latest remove, with ties settled by the Bias.
type Dictionary[K cmp.Ordered, V comparable] struct {
	adds    *GrowMap[K, V]
	removes *GrowMap[K, V]
	clock   Clock
	bias    Bias
}

// Snapshot is the complete replicable state of a Dictionary. The bias is
// deliberately absent: it is a local setting every replica must agree on.
type Snapshot[K cmp.Ordered, V comparable] struct {
	Adds    []Entry[K, V]
	Removes []Entry[K, V]
}

func New[K cmp.Ordered, V comparable](opts ...Option) *Dictionary[K, V] {
	o := buildOptions(opts)
	return &Dictionary[K, V]{
		adds:    NewGrowMap[K, V](WithClock(o.clock)),
		removes: NewGrowMap[K, V](WithClock(o.clock)),
		clock:   o.clock,
		bias:    o.bias,
	}
}

// FromSnapshot builds a Dictionary holding exactly the state in s.
func FromSnapshot[K cmp.Ordered, V comparable](s Snapshot[K, V], opts ...Option) *Dictionary[K, V] {
	d := New[K, V](opts...)
	for _, e := range s.Adds {
		d.adds.AddAt(e.Key, e.Value, e.Timestamp)
	}
	for _, e := range s.Removes {
		d.removes.AddAt(e.Key, e.Value, e.Timestamp)
	}
	return d
}

func (d *Dictionary[K, V]) Bias() Bias {
	return d.bias
}

// Lookup returns the element under key if it is visible.
func (d *Dictionary[K, V]) Lookup(key K) (TimestampedValue[V], bool) {
	added, ok := d.adds.Lookup(key)
	if !ok {
		return TimestampedValue[V]{}, false
	}
	if !d.visible(key, added) {
		return TimestampedValue[V]{}, false
	}
	return added, true
}

// LookupValue finds the most recent add holding value, then applies the
// same visibility rule as Lookup to its key.
func (d *Dictionary[K, V]) LookupValue(value V) (TimestampedValue[V], bool) {
	key, added, ok := d.adds.lookupValue(value)
	if !ok || !d.visible(key, added) {
		return TimestampedValue[V]{}, false
	}
	return added, true
}

func (d *Dictionary[K, V]) visible(key K, added TimestampedValue[V]) bool {
	removed, ok := d.removes.Lookup(key)
	if !ok {
		return true
	}
	if d.bias == BiasAdd {
		return added.Timestamp >= removed.Timestamp
	}
	return added.Timestamp > removed.Timestamp
}

// Add stamps the write with the dictionary's clock. See AddAt.
func (d *Dictionary[K, V]) Add(key K, value V) {
	d.AddAt(key, value, d.clock.Now())
}

// AddAt records an add. A newer add makes a previously removed key visible
// again.
func (d *Dictionary[K, V]) AddAt(key K, value V, ts Timestamp) {
	d.adds.AddAt(key, value, ts)
}

// Remove stamps the tombstone with the dictionary's clock. See RemoveAt.
func (d *Dictionary[K, V]) Remove(key K) {
	d.RemoveAt(key, d.clock.Now())
}

// RemoveAt records a tombstone for key carrying the value of its latest add.
// It is ignored when key was never added or when ts is older than that add.
func (d *Dictionary[K, V]) RemoveAt(key K, ts Timestamp) {
	added, ok := d.adds.Lookup(key)
	if !ok || ts < added.Timestamp {
		return
	}
	d.removes.AddAt(key, added.Value, ts)
}

// Merge folds other's add and remove maps into d. A nil other is a no-op.
func (d *Dictionary[K, V]) Merge(other *Dictionary[K, V]) {
	if other == nil {
		return
	}
	d.adds.Merge(other.adds)
	d.removes.Merge(other.removes)
}

// Compare reports whether d's stored state is a subset of other's: both the
// add and the remove map of d are value-subsets of their counterparts.
// Tombstone values count, so equal visible contents with different removal
// histories compare false. A nil other yields false.
func (d *Dictionary[K, V]) Compare(other *Dictionary[K, V]) bool {
	if other == nil {
		return false
	}
	return d.adds.Compare(other.adds) && d.removes.Compare(other.removes)
}

// CompareKeys is a looser Compare: add maps are compared by value, remove maps
// only by which keys carry a tombstone.
func (d *Dictionary[K, V]) CompareKeys(other *Dictionary[K, V]) bool {
	if other == nil {
		return false
	}
	return d.adds.Compare(other.adds) && d.removes.CompareKeys(other.removes)
}

// Equivalent reports whether d and other compare true in both directions.
func (d *Dictionary[K, V]) Equivalent(other *Dictionary[K, V]) bool {
	return d.Compare(other) && other.Compare(d)
}

// Items returns the visible keys and their values.
func (d *Dictionary[K, V]) Items() map[K]V {
	out := make(map[K]V, d.adds.Len())
	for k, tv := range d.adds.entries {
		if d.visible(k, tv) {
			out[k] = tv.Value
		}
	}
	return out
}

// Len returns the number of visible keys.
func (d *Dictionary[K, V]) Len() int {
	n := 0
	for k, tv := range d.adds.entries {
		if d.visible(k, tv) {
			n++
		}
	}
	return n
}

// MaxTimestamp returns the greatest timestamp stored in either map, or zero
// for an empty dictionary.
func (d *Dictionary[K, V]) MaxTimestamp() Timestamp {
	var highest Timestamp
	for _, m := range []*GrowMap[K, V]{d.adds, d.removes} {
		for _, tv := range m.entries {
			highest = max(highest, tv.Timestamp)
		}
	}
	return highest
}

func (d *Dictionary[K, V]) Snapshot() Snapshot[K, V] {
	return Snapshot[K, V]{
		Adds:    d.adds.Entries(),
		Removes: d.removes.Entries(),
	}
}

// Clone returns an independent copy with the same clock and bias.
func (d *Dictionary[K, V]) Clone() *Dictionary[K, V] {
	return &Dictionary[K, V]{
		adds:    d.adds.Clone(),
		removes: d.removes.Clone(),
		clock:   d.clock,
		bias:    d.bias,
	}
}
