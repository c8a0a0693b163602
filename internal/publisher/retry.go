package publisher

import (
	"context"

	"github.com/cenkalti/backoff/v5"

	"github.com/coachpo/feedgate/internal/bus"
	"github.com/coachpo/feedgate/internal/config"
)

// newBackOff builds the exponential backoff used to retry a flush,
// adapted from the teacher's streamManager.connect reconnect loop
// (internal/infra/adapters/binance/websocket_manager.go) to the
// context-first Retry API of backoff/v5.
func newBackOff(cfg config.PublisherConfig) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxRetryDelay
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5
	return b
}

// retryPublish hands the batch to the bus as a single unit, retrying up
// to cfg.MaxRetries times with exponential backoff bounded by
// cfg.MaxRetryDelay (spec.md §4.3 "Retry").
func retryPublish(ctx context.Context, b bus.Bus, topic string, records []*bus.Record, cfg config.PublisherConfig) error {
	maxTries := uint(cfg.MaxRetries) + 1
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, publishBatch(ctx, b, topic, records)
	}, backoff.WithBackOff(newBackOff(cfg)), backoff.WithMaxTries(maxTries))
	return err
}
