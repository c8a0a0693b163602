package publisher

import (
	"context"

	"github.com/coachpo/feedgate/internal/bus"
)

// BatchBus is implemented by Bus backends that can accept a batch of
// records for one topic as a single operation. bus.MemoryBus does not
// implement it, so the Publisher falls back to issuing one Publish per
// record in submission order, which preserves the same per-topic
// ordering guarantee at the cost of per-record round trips.
type BatchBus interface {
	PublishBatch(ctx context.Context, topic string, records []*bus.Record) error
}

func publishBatch(ctx context.Context, b bus.Bus, topic string, records []*bus.Record) error {
	if bb, ok := b.(BatchBus); ok {
		return bb.PublishBatch(ctx, topic, records)
	}
	for _, rec := range records {
		if err := b.Publish(ctx, topic, rec); err != nil {
			return err
		}
	}
	return nil
}
