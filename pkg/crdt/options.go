package crdt

// Bias decides visibility when an add and a remove of the same key carry
// equal timestamps.
type Bias int

const (
	// BiasAdd keeps the key visible on a tie.
	BiasAdd Bias = iota
	// BiasRemove hides the key on a tie.
	BiasRemove
)

func (b Bias) String() string {
	switch b {
	case BiasAdd:
		return "add"
	case BiasRemove:
		return "remove"
	default:
		return "unknown"
	}
}

type options struct {
	clock Clock
	bias  Bias
}

type Option func(*options)

// WithClock sets the clock used by the timestamp-less write methods.
// Defaults to WallClock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithBias sets the tie-break policy of a Dictionary. Defaults to BiasAdd.
// GrowMap ignores it.
func WithBias(b Bias) Option {
	return func(o *options) {
		o.bias = b
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: WallClock{}, bias: BiasAdd}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
