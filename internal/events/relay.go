package events

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// Publisher hands events to a broker.
type Publisher interface {
	Publish(ctx context.Context, events []model.OutboxEvent) error
}

// Source is the outbox the relay drains.
type Source interface {
	FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkSent(ctx context.Context, ids []int64) error
}

// Recorder receives relay counts. Implemented by the metrics package.
type Recorder interface {
	EventsRelayed(published, failed int)
}

// Relay polls the outbox and publishes pending events. Delivery is at least
// once: an event published but not yet marked sent is published again.
type Relay struct {
	source    Source
	publisher Publisher
	recorder  Recorder
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

// NewRelay creates an outbox relay. recorder may be nil.
func NewRelay(source Source, publisher Publisher, recorder Recorder, interval time.Duration, batchSize int, logger zerolog.Logger) *Relay {
	return &Relay{
		source:    source,
		publisher: publisher,
		recorder:  recorder,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With().Str("worker", "outbox_relay").Logger(),
	}
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Int("batch_size", r.batchSize).Msg("outbox relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		// Drain full batches back to back before waiting for the next tick.
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil || n < r.batchSize || ctx.Err() != nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many events were sent.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.source.FetchPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to fetch pending events")
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, pending); err != nil {
		r.record(0, len(pending))
		r.logger.Error().Err(err).Int("count", len(pending)).Msg("failed to publish events")
		return 0, err
	}

	ids := make([]int64, len(pending))
	for i, ev := range pending {
		ids[i] = ev.ID
	}

	if err := r.source.MarkSent(ctx, ids); err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("events published but not marked sent")
		return 0, err
	}

	r.record(len(pending), 0)
	r.logger.Debug().Int("count", len(pending)).Msg("events relayed")
	return len(pending), nil
}

func (r *Relay) record(published, failed int) {
	if r.recorder != nil {
		r.recorder.EventsRelayed(published, failed)
	}
}
