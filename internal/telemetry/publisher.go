// Package telemetry is coccache's optional observability sink: it
// publishes aggregate CacheState.Snapshot() counters (population, hit
// rate, purge counts) to Redis Pub/Sub and exposes them as Prometheus
// gauges. It never touches cache content or CacheHead/CacheState
// internals directly -- the core coccache package has no import of this
// package or of any metrics/redis library (see SPEC_FULL.md §10/§11).
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/rasterworks/coccache"
)

// Publisher publishes CacheState.Snapshot() payloads to a Redis Pub/Sub
// channel for an external dashboard. Publish is synchronous: it blocks on
// a SET and a PUBLISH round trip, each bounded by the client's own timeout.
type Publisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewPublisher builds a Publisher against a single Redis address. addr
// follows redis.Options.Addr's host:port form.
func NewPublisher(addr, channel string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		logger:  logger,
	}
}

// snapshotPayload is the wire shape published to the channel: aggregate
// counters plus a publish timestamp, never a chain-class key, input
// color, or device-color handle.
type snapshotPayload struct {
	PublishedAt time.Time        `json:"published_at"`
	Snapshot    coccache.Snapshot `json:"snapshot"`
}

// Publish serializes snap and publishes it to the configured channel,
// also setting a retrievable key (the same key AdminProbe reads back) so
// a smoke test can confirm delivery without subscribing.
func (p *Publisher) Publish(ctx context.Context, snap coccache.Snapshot) error {
	payload, err := json.Marshal(snapshotPayload{PublishedAt: time.Now(), Snapshot: snap})
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, p.channel+":last", payload, 0).Err(); err != nil {
		p.logger.Warn("telemetry: failed to set last-snapshot key", zap.Error(err))
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("telemetry: failed to publish snapshot", zap.Error(err))
		return err
	}
	return nil
}

// Close releases the underlying Redis client.
func (p *Publisher) Close() error { return p.client.Close() }
