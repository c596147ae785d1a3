// Package update applies authenticated MMR batches to the player store.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/lounge/internal/domain/model"
	"github.com/okian/lounge/pkg/logger"
	"github.com/okian/lounge/pkg/metrics"
)

// Store is the single write the processor needs from a player store.
type Store interface {
	Apply(ctx context.Context, name string, mmr int64) (model.Change, error)
}

// Result records what a batch committed. On error it holds the items applied
// before the failing one; those stay applied.
type Result struct {
	BatchID string         `json:"batch_id"`
	Applied []model.Change `json:"applied"`
}

// Processor applies batches item by item. Each item is one atomic store
// write; there is no atomicity across items.
type Processor struct {
	store   Store
	log     logger.Logger
	batchID func() string
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor's logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithBatchIDFunc overrides batch id generation (uuid v4 by default).
func WithBatchIDFunc(fn func() string) Option {
	return func(p *Processor) {
		if fn != nil {
			p.batchID = fn
		}
	}
}

// NewProcessor returns a Processor writing to store.
func NewProcessor(store Store, opts ...Option) *Processor {
	p := &Processor{
		store:   store,
		log:     logger.Nop(),
		batchID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply validates and applies items in order, stopping at the first invalid
// item or failed write.
func (p *Processor) Apply(ctx context.Context, items []json.RawMessage) (Result, error) {
	res := Result{BatchID: p.batchID(), Applied: make([]model.Change, 0, len(items))}
	log := p.log.With(logger.String("batch_id", res.BatchID))

	for i, raw := range items {
		item, err := ParseItem(raw)
		if err != nil {
			return p.fail(ctx, log, res, "invalid_format", fmt.Errorf("item %d: %w", i, err))
		}

		ch, err := p.store.Apply(ctx, item.Name, item.MMR)
		if errors.Is(err, ErrDeltaOverflow) {
			return p.fail(ctx, log, res, "invalid_format", fmt.Errorf("item %d (%s): %w: %w", i, item.Name, ErrInvalidFormat, err))
		}
		if errors.Is(err, ErrPlayerNotFound) {
			return p.fail(ctx, log, res, "player_not_found", fmt.Errorf("item %d (%s): %w", i, item.Name, err))
		}
		if err != nil {
			return p.fail(ctx, log, res, "store_error", fmt.Errorf("item %d (%s): apply: %w", i, item.Name, err))
		}

		res.Applied = append(res.Applied, ch)
		metrics.RecordUpdateApplied(ch.Win)
		log.Debug(ctx, "rating applied",
			logger.String("player", ch.Name),
			logger.Int64("previous", ch.Previous),
			logger.Int64("current", ch.Current),
			logger.Bool("win", ch.Win))
	}

	metrics.RecordUpdateBatch("success", len(res.Applied))
	log.Info(ctx, "update batch applied", logger.Int("items", len(res.Applied)))
	return res, nil
}

func (p *Processor) fail(ctx context.Context, log logger.Logger, res Result, outcome string, err error) (Result, error) {
	metrics.RecordUpdateBatch(outcome, len(res.Applied))
	log.Warn(ctx, "update batch stopped",
		logger.String("outcome", outcome),
		logger.Int("applied", len(res.Applied)),
		logger.Error(err))
	return res, err
}
