package crdt

import (
	"cmp"
	"maps"
	"slices"
)

// Entry is a key with its stored value and timestamp, used when exporting
// a map's state.
type Entry[K cmp.Ordered, V comparable] struct {
	Key       K
	Value     V
	Timestamp Timestamp
}

// GrowMap is a grow-only map keeping, per key, the write with the greatest
// timestamp it has ever seen. Keys are never removed and a stored timestamp
// never goes backwards. On an exact timestamp tie the incoming write replaces
// the stored one.
type GrowMap[K cmp.Ordered, V comparable] struct {
	entries map[K]TimestampedValue[V]
	clock   Clock
}

func NewGrowMap[K cmp.Ordered, V comparable](opts ...Option) *GrowMap[K, V] {
	o := buildOptions(opts)
	return &GrowMap[K, V]{
		entries: make(map[K]TimestampedValue[V]),
		clock:   o.clock,
	}
}

// Lookup returns the stored element for key.
func (m *GrowMap[K, V]) Lookup(key K) (TimestampedValue[V], bool) {
	tv, ok := m.entries[key]
	return tv, ok
}

// LookupValue scans for entries holding value and returns the most recent one.
// If several keys hold value with the same greatest timestamp, the entry under
// the smallest key is returned.
func (m *GrowMap[K, V]) LookupValue(value V) (TimestampedValue[V], bool) {
	_, tv, ok := m.lookupValue(value)
	return tv, ok
}

func (m *GrowMap[K, V]) lookupValue(value V) (K, TimestampedValue[V], bool) {
	var (
		bestKey K
		best    TimestampedValue[V]
		found   bool
	)
	for k, tv := range m.entries {
		if tv.Value != value {
			continue
		}
		if !found || tv.Timestamp > best.Timestamp || (tv.Timestamp == best.Timestamp && k < bestKey) {
			bestKey, best, found = k, tv, true
		}
	}
	return bestKey, best, found
}

// Add stamps the write with the map's clock. See AddAt.
func (m *GrowMap[K, V]) Add(key K, value V) {
	m.AddAt(key, value, m.clock.Now())
}

// AddAt inserts value under key. If key is already present it behaves
// exactly like UpdateAt.
func (m *GrowMap[K, V]) AddAt(key K, value V, ts Timestamp) {
	if _, ok := m.entries[key]; ok {
		m.UpdateAt(key, value, ts)
		return
	}
	m.entries[key] = TimestampedValue[V]{Value: value, Timestamp: ts}
}

// Update stamps the write with the map's clock. See UpdateAt.
func (m *GrowMap[K, V]) Update(key K, value V) {
	m.UpdateAt(key, value, m.clock.Now())
}

// UpdateAt replaces the element under an existing key when ts is not older
// than the stored timestamp. Absent keys and stale writes are ignored.
func (m *GrowMap[K, V]) UpdateAt(key K, value V, ts Timestamp) {
	cur, ok := m.entries[key]
	if !ok || ts < cur.Timestamp {
		return
	}
	m.entries[key] = TimestampedValue[V]{Value: value, Timestamp: ts}
}

// Merge folds other into m key by key, keeping the more recent side. On an
// exact timestamp tie other wins. A nil or empty other is a no-op.
func (m *GrowMap[K, V]) Merge(other *GrowMap[K, V]) {
	if other == nil || len(other.entries) == 0 {
		return
	}
	for k, tv := range other.entries {
		if _, ok := m.entries[k]; ok {
			m.UpdateAt(k, tv.Value, tv.Timestamp)
		} else {
			m.AddAt(k, tv.Value, tv.Timestamp)
		}
	}
}

// Compare reports whether m is a value-subset of other: every key of m is
// present in other with an equal value. Timestamps are not compared.
// A nil other yields false.
func (m *GrowMap[K, V]) Compare(other *GrowMap[K, V]) bool {
	if other == nil {
		return false
	}
	for k, tv := range m.entries {
		o, ok := other.entries[k]
		if !ok || !tv.SameValue(o) {
			return false
		}
	}
	return true
}

// CompareKeys reports whether every key of m is present in other, regardless
// of values. A nil other yields false.
func (m *GrowMap[K, V]) CompareKeys(other *GrowMap[K, V]) bool {
	if other == nil {
		return false
	}
	for k := range m.entries {
		if _, ok := other.entries[k]; !ok {
			return false
		}
	}
	return true
}

func (m *GrowMap[K, V]) Len() int {
	return len(m.entries)
}

// Keys returns the keys in ascending order.
func (m *GrowMap[K, V]) Keys() []K {
	return slices.Sorted(maps.Keys(m.entries))
}

// Entries returns the full state ordered by key, or nil when m is empty.
func (m *GrowMap[K, V]) Entries() []Entry[K, V] {
	if len(m.entries) == 0 {
		return nil
	}
	out := make([]Entry[K, V], 0, len(m.entries))
	for _, k := range m.Keys() {
		tv := m.entries[k]
		out = append(out, Entry[K, V]{Key: k, Value: tv.Value, Timestamp: tv.Timestamp})
	}
	return out
}

// Clone returns an independent copy sharing the clock.
func (m *GrowMap[K, V]) Clone() *GrowMap[K, V] {
	return &GrowMap[K, V]{
		entries: maps.Clone(m.entries),
		clock:   m.clock,
	}
}
