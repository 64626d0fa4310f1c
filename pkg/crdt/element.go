package crdt

// Timestamp orders writes. A larger timestamp happened more recently and wins.
type Timestamp int64

// TimestampedValue is the unit of state stored per key: a value together with
// the time it was written.
type TimestampedValue[V comparable] struct {
	Value     V
	Timestamp Timestamp
}

// Equal reports whether both the value and the timestamp match.
func (tv TimestampedValue[V]) Equal(other TimestampedValue[V]) bool {
	return tv.Value == other.Value && tv.Timestamp == other.Timestamp
}

// SameValue compares values only.
func (tv TimestampedValue[V]) SameValue(other TimestampedValue[V]) bool {
	return tv.Value == other.Value
}
