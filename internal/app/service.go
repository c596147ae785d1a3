// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/lounge/internal/adapters/mq/queue"
	"github.com/okian/lounge/internal/adapters/mq/worker"
	"github.com/okian/lounge/internal/adapters/repository"
	"github.com/okian/lounge/internal/domain/dedupe"
	"github.com/okian/lounge/internal/domain/model"
	"github.com/okian/lounge/internal/domain/signature"
	"github.com/okian/lounge/internal/domain/update"
	"github.com/okian/lounge/pkg/logger"
	"github.com/okian/lounge/pkg/metrics"
)

const (
	defaultWorkerCount = 2
	defaultQueueSize   = 1024
	defaultDedupeSize  = 10_000
	stopTimeout        = 30 * time.Second
)

// Service implements the API dependencies for the lounge.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	processor *update.Processor
	updates   *signature.Verifier
	hooks     *signature.Verifier
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	handler   worker.Handler

	// Configuration
	updateSecret []byte
	passwdSecret []byte
	workerCount  int
	queueSize    int
	dedupeSize   int

	// State
	started   bool
	ownsStore bool
	cancel    context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: defaultWorkerCount,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates the secrets, builds the components and starts the webhook
// workers. Starting a started service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	updates, err := signature.NewVerifier(s.updateSecret, signature.StringForm)
	if err != nil {
		return fmt.Errorf("%w: update secret: %w", ErrConfiguration, err)
	}
	hooks, err := signature.NewVerifier(s.passwdSecret, signature.RawBody)
	if err != nil {
		return fmt.Errorf("%w: passwd secret: %w", ErrConfiguration, err)
	}
	s.updates, s.hooks = updates, hooks

	s.logger.Info(ctx, "starting lounge service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.ownsStore = true
		s.logger.Info(ctx, "using memory store")
	}
	if s.handler == nil {
		s.handler = worker.LogHandler{Logger: s.logger.Named("webhook")}
	}

	s.processor = update.NewProcessor(s.store, update.WithLogger(s.logger.Named("update")))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.handler, worker.WithLogger(s.logger))

	// Workers outlive the caller's context; Stop drains and cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "lounge service started",
		logger.Int("webhookWorkers", s.workerCount),
		logger.Int("webhookQueueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the webhook queue and stops the workers. A store the service
// created itself is closed; a store passed in with WithStore is not.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping lounge service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "webhook workers did not drain", logger.Error(err))
	}
	s.cancel()

	// Injected stores belong to the caller and stay open for a restart.
	if s.ownsStore {
		if err := s.store.Close(ctx); err != nil {
			s.logger.Error(ctx, "error closing store", logger.Error(err))
		}
		s.store, s.ownsStore = nil, false
	}

	s.started = false
	s.logger.Info(ctx, "lounge service stopped")
}

// Leaderboard returns every player record.
func (s *Service) Leaderboard(ctx context.Context) ([]model.Player, error) {
	store, err := s.currentStore()
	if err != nil {
		return nil, err
	}
	players, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return players, nil
}

// Player returns one player record.
func (s *Service) Player(ctx context.Context, name string) (model.Player, error) {
	store, err := s.currentStore()
	if err != nil {
		return model.Player{}, err
	}
	p, err := store.Get(ctx, name)
	if err != nil {
		return model.Player{}, fmt.Errorf("player %q: %w", name, err)
	}
	return p, nil
}

// SubmitUpdate authenticates an update batch against its string-form
// signature and applies it. An empty body, an empty batch or a missing
// signature is reported as missing credentials before any signature check.
func (s *Service) SubmitUpdate(ctx context.Context, body []byte, sig string) (update.Result, error) {
	s.mu.RLock()
	started, verifier, processor := s.started, s.updates, s.processor
	s.mu.RUnlock()
	if !started {
		return update.Result{}, ErrNotStarted
	}

	if len(body) == 0 || sig == "" {
		metrics.RecordSignatureFailure("update", "missing")
		return update.Result{}, fmt.Errorf("submit update: %w", signature.ErrMissingCredentials)
	}

	items, parseErr := update.ParseBatch(body)
	if errors.Is(parseErr, update.ErrEmptyBatch) {
		metrics.RecordSignatureFailure("update", "missing")
		return update.Result{}, fmt.Errorf("submit update: %w", signature.ErrMissingCredentials)
	}

	if err := verifier.VerifyJSON(body, sig); err != nil {
		metrics.RecordSignatureFailure("update", failureReason(err))
		return update.Result{}, fmt.Errorf("submit update: %w", err)
	}
	if parseErr != nil {
		metrics.RecordUpdateBatch("invalid_format", 0)
		return update.Result{}, fmt.Errorf("submit update: %w", parseErr)
	}

	res, err := processor.Apply(ctx, items)
	if err != nil {
		return res, fmt.Errorf("submit update: %w", err)
	}
	return res, nil
}

// SubmitWebhook authenticates a raw-body signed delivery and hands it to the
// worker pool. A delivery id seen before is acknowledged as a duplicate and
// not processed again.
func (s *Service) SubmitWebhook(ctx context.Context, body []byte, sig, deliveryID, event string) (bool, error) {
	s.mu.RLock()
	started, verifier, deduper, q := s.started, s.hooks, s.deduper, s.queue
	s.mu.RUnlock()
	if !started {
		return false, ErrNotStarted
	}

	if len(body) == 0 || sig == "" {
		metrics.RecordSignatureFailure("passwd", "missing")
		return false, fmt.Errorf("submit webhook: %w", signature.ErrMissingCredentials)
	}
	if err := verifier.Verify(body, sig); err != nil {
		metrics.RecordSignatureFailure("passwd", failureReason(err))
		return false, fmt.Errorf("submit webhook: %w", err)
	}

	if deliveryID != "" && deduper.SeenAndRecord(ctx, deliveryID) {
		metrics.RecordWebhookEvent("duplicate")
		s.logger.Debug(ctx, "duplicate delivery ignored", logger.String("delivery_id", deliveryID))
		return true, nil
	}

	ev := model.WebhookEvent{
		DeliveryID: deliveryID,
		Event:      event,
		Payload:    append([]byte(nil), body...),
		ReceivedAt: time.Now(),
	}
	if ev.DeliveryID == "" {
		ev.DeliveryID = uuid.NewString()
	}
	if err := q.Enqueue(ctx, ev); err != nil {
		if deliveryID != "" {
			deduper.Unrecord(ctx, deliveryID)
		}
		metrics.RecordWebhookEvent("dropped")
		return false, fmt.Errorf("submit webhook: %w", err)
	}
	metrics.RecordWebhookEvent("accepted")
	return false, nil
}

// Ready reports whether the store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	store, err := s.currentStore()
	if err != nil {
		return err
	}
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":          s.started,
		"webhookWorkers":   s.workerCount,
		"webhookQueueSize": s.queueSize,
		"dedupeSize":       s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["webhookQueueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)

		if count, err := s.store.Count(ctx); err == nil {
			stats["totalPlayers"] = count
			metrics.UpdateTotalPlayers(count)
		} else {
			s.logger.Warn(ctx, "counting players failed", logger.Error(err))
		}
	}

	return stats
}

func (s *Service) currentStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, signature.ErrMissingCredentials):
		return "missing"
	case errors.Is(err, signature.ErrMalformedPayload):
		return "malformed"
	default:
		return "invalid"
	}
}
