package replica

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/sambigeara/lwwdict/pkg/replica"

var (
	opAdd    = metric.WithAttributes(attribute.String("op", "add"))
	opRemove = metric.WithAttributes(attribute.String("op", "remove"))
)

type metrics struct {
	writes  metric.Int64Counter
	merges  metric.Int64Counter
	sent    metric.Int64Counter
	dropped metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(meterName)

	writes, err := meter.Int64Counter("lwwdict.replica.writes",
		metric.WithDescription("Local adds and removes applied to the dictionary."))
	if err != nil {
		return nil, fmt.Errorf("create writes counter: %w", err)
	}
	merges, err := meter.Int64Counter("lwwdict.replica.merges",
		metric.WithDescription("Remote snapshots merged into the dictionary."))
	if err != nil {
		return nil, fmt.Errorf("create merges counter: %w", err)
	}
	sent, err := meter.Int64Counter("lwwdict.replica.gossip.sent",
		metric.WithDescription("Snapshots sent to peers."))
	if err != nil {
		return nil, fmt.Errorf("create sent counter: %w", err)
	}
	dropped, err := meter.Int64Counter("lwwdict.replica.gossip.dropped",
		metric.WithDescription("Received datagrams that could not be decoded."))
	if err != nil {
		return nil, fmt.Errorf("create dropped counter: %w", err)
	}

	return &metrics{
		writes:  writes,
		merges:  merges,
		sent:    sent,
		dropped: dropped,
	}, nil
}

func (m *metrics) write(op metric.AddOption) {
	m.writes.Add(context.Background(), 1, op)
}
