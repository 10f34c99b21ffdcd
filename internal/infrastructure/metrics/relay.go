package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// RelayMetrics records hub traffic
type RelayMetrics struct {
	connections  api.Int64UpDownCounter
	received     api.Int64Counter
	delivered    api.Int64Counter
	sendFailures api.Int64Counter
	bytesSent    api.Int64Counter

	mode attribute.KeyValue
}

func NewRelayMetrics(meter api.Meter, mode string) (*RelayMetrics, error) {
	connections, err := meter.Int64UpDownCounter("relay_connections",
		api.WithDescription("Currently registered connections"))
	if err != nil {
		return nil, err
	}

	received, err := meter.Int64Counter("relay_messages_received",
		api.WithDescription("Messages received from clients"))
	if err != nil {
		return nil, err
	}

	delivered, err := meter.Int64Counter("relay_messages_delivered",
		api.WithDescription("Messages handed to peer connections"))
	if err != nil {
		return nil, err
	}

	sendFailures, err := meter.Int64Counter("relay_send_failures",
		api.WithDescription("Per-peer sends that were skipped"))
	if err != nil {
		return nil, err
	}

	bytesSent, err := meter.Int64Counter("relay_bytes_delivered",
		api.WithDescription("Payload bytes handed to peer connections"),
		api.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	return &RelayMetrics{
		connections:  connections,
		received:     received,
		delivered:    delivered,
		sendFailures: sendFailures,
		bytesSent:    bytesSent,
		mode:         attribute.String("mode", mode),
	}, nil
}

// NewNoopRelayMetrics returns metrics that record nothing
func NewNoopRelayMetrics() *RelayMetrics {
	m, _ := NewRelayMetrics(noop.NewMeterProvider().Meter(""), "")
	return m
}

func (m *RelayMetrics) ConnectionOpened(ctx context.Context, connType string) {
	m.connections.Add(ctx, 1, m.attrs(connType))
}

func (m *RelayMetrics) ConnectionClosed(ctx context.Context, connType string) {
	m.connections.Add(ctx, -1, m.attrs(connType))
}

func (m *RelayMetrics) MessageReceived(ctx context.Context, connType string) {
	m.received.Add(ctx, 1, m.attrs(connType))
}

func (m *RelayMetrics) MessageDelivered(ctx context.Context, connType string, size int) {
	m.delivered.Add(ctx, 1, m.attrs(connType))
	m.bytesSent.Add(ctx, int64(size), m.attrs(connType))
}

func (m *RelayMetrics) SendFailed(ctx context.Context, connType string) {
	m.sendFailures.Add(ctx, 1, m.attrs(connType))
}

func (m *RelayMetrics) attrs(connType string) api.MeasurementOption {
	return api.WithAttributes(m.mode, attribute.String("conn_type", connType))
}
