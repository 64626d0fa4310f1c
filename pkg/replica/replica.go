package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sambigeara/lwwdict/pkg/crdt"
	"github.com/sambigeara/lwwdict/pkg/state"
	"github.com/sambigeara/lwwdict/pkg/transport"
)

const (
	defaultGossipInterval = 5 * time.Second
	gossipJitter          = 0.2
)

var ErrNoTransport = errors.New("replica has no transport")

type Options struct {
	Log           *zap.SugaredLogger
	Clock         crdt.Clock
	MeterProvider metric.MeterProvider
	// Store persists every change when set.
	Store *state.Store
	// Transport is only needed by Run.
	Transport      transport.Transport
	ID             string
	Peers          []string
	GossipInterval time.Duration
	Bias           crdt.Bias
}

// Replica owns one dictionary and serializes all access to it. It persists
// changes to its store and, while Run is active, sends its whole state to
// every peer on a jittered interval and right after each local write, and
// merges whatever it receives.
type Replica struct {
	log      *zap.SugaredLogger
	dict     *crdt.Dictionary[string, string]
	clock    crdt.Clock
	store    *state.Store
	tr       transport.Transport
	metrics  *metrics
	ID       string
	peers    []string
	interval time.Duration
	dirty    chan struct{}
	mu       sync.Mutex
}

func New(opts Options) (*Replica, error) {
	log := opts.Log
	if log == nil {
		log = zap.S()
	}
	clock := opts.Clock
	if clock == nil {
		clock = crdt.WallClock{}
	}
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	interval := opts.GossipInterval
	if interval <= 0 {
		interval = defaultGossipInterval
	}

	m, err := newMetrics(mp)
	if err != nil {
		return nil, err
	}

	r := &Replica{
		log:      log.With("replica", opts.ID),
		dict:     crdt.New[string, string](crdt.WithClock(clock), crdt.WithBias(opts.Bias)),
		clock:    clock,
		store:    opts.Store,
		tr:       opts.Transport,
		metrics:  m,
		ID:       opts.ID,
		peers:    append([]string(nil), opts.Peers...),
		interval: interval,
		dirty:    make(chan struct{}, 1),
	}

	if r.store != nil {
		snap, err := r.store.Load()
		if err != nil {
			return nil, err
		}
		r.hydrate(snap)
	}

	return r, nil
}

// hydrate merges a persisted snapshot into memory and moves the clock past it.
func (r *Replica) hydrate(snap state.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dict.Merge(crdt.FromSnapshot(snap, crdt.WithBias(r.dict.Bias())))
	r.observeLocked()
}

func (r *Replica) Put(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dict.Add(key, value)
	r.metrics.write(opAdd)
	r.log.Debugw("put", "key", key)
	r.markDirty()
	return r.persistLocked()
}

// Delete hides key and reports whether it was visible before the call.
// Deleting an unknown key changes nothing.
func (r *Replica) Delete(key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, wasVisible := r.dict.Lookup(key)
	r.dict.Remove(key)
	_, visible := r.dict.Lookup(key)
	r.metrics.write(opRemove)
	r.log.Debugw("delete", "key", key, "wasVisible", wasVisible)
	r.markDirty()

	if err := r.persistLocked(); err != nil {
		return false, err
	}
	return wasVisible && !visible, nil
}

func (r *Replica) Get(key string) (crdt.TimestampedValue[string], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dict.Lookup(key)
}

// Find returns the most recent visible element holding value.
func (r *Replica) Find(value string) (crdt.TimestampedValue[string], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dict.LookupValue(value)
}

func (r *Replica) Items() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dict.Items()
}

func (r *Replica) Snapshot() state.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dict.Snapshot()
}

// Dictionary returns a copy of the current state.
func (r *Replica) Dictionary() *crdt.Dictionary[string, string] {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dict.Clone()
}

// MergeSnapshot folds a remote replica's state into this one.
func (r *Replica) MergeSnapshot(snap state.Snapshot) error {
	remote := crdt.FromSnapshot(snap, crdt.WithBias(r.dict.Bias()))

	r.mu.Lock()
	defer r.mu.Unlock()

	r.dict.Merge(remote)
	r.observeLocked()
	r.metrics.merges.Add(context.Background(), 1)
	r.log.Debugw("merged snapshot", "adds", len(snap.Adds), "removes", len(snap.Removes))
	return r.persistLocked()
}

// MergeEncoded decodes a snapshot produced by state.Marshal and merges it.
func (r *Replica) MergeEncoded(b []byte) error {
	snap, err := state.Unmarshal(b)
	if err != nil {
		return err
	}
	return r.MergeSnapshot(snap)
}

// Equivalent reports whether both replicas hold the same stored state.
func (r *Replica) Equivalent(other *Replica) bool {
	theirs := other.Dictionary()

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dict.Equivalent(theirs)
}

// Gossip sends the current state to every peer once. Send failures are
// logged and skipped.
func (r *Replica) Gossip() {
	if r.tr == nil || len(r.peers) == 0 {
		return
	}

	b := state.Marshal(r.Snapshot())
	if len(b) > transport.MaxDatagramSize {
		r.log.Warnw("snapshot too large to gossip", "bytes", len(b))
		return
	}

	for _, peer := range r.peers {
		if err := r.tr.Send(peer, b); err != nil {
			r.log.Debugw("gossip send failed", "peer", peer, zap.Error(err))
			continue
		}
		r.metrics.sent.Add(context.Background(), 1)
	}
}

// Run gossips and merges until ctx is done.
func (r *Replica) Run(ctx context.Context) error {
	if r.tr == nil {
		return ErrNoTransport
	}

	r.log.Infow("replica running", "addr", r.tr.LocalAddr(), "peers", r.peers, "interval", r.interval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.recvLoop(ctx) })
	g.Go(func() error { return r.gossipLoop(ctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (r *Replica) recvLoop(ctx context.Context) error {
	for {
		src, b, err := r.tr.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		if err := r.MergeEncoded(b); err != nil {
			if errors.Is(err, state.ErrCorrupt) {
				r.metrics.dropped.Add(ctx, 1)
				r.log.Warnw("dropping undecodable snapshot", "src", src, zap.Error(err))
				continue
			}
			r.log.Errorw("merge snapshot", "src", src, zap.Error(err))
		}
	}
}

func (r *Replica) gossipLoop(ctx context.Context) error {
	ticker := newGossipTicker(ctx, r.interval, gossipJitter, r.dirty)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ticker.C:
			if !ok {
				return nil
			}
			r.Gossip()
		}
	}
}

// markDirty asks the gossip loop for an early round. Signals coalesce.
func (r *Replica) markDirty() {
	select {
	case r.dirty <- struct{}{}:
	default:
	}
}

func (r *Replica) observeLocked() {
	if o, ok := r.clock.(crdt.Observer); ok {
		o.Observe(r.dict.MaxTimestamp())
	}
}

func (r *Replica) persistLocked() error {
	if r.store == nil {
		return nil
	}
	if err := r.store.Save(r.dict.Snapshot()); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}
