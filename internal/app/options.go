package service

import (
	"github.com/okian/lounge/internal/adapters/mq/worker"
	"github.com/okian/lounge/internal/adapters/repository"
	"github.com/okian/lounge/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the player store. The caller keeps ownership and closes it
// after Stop.
// Without it Start creates a memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithUpdateSecret sets the secret for string-form signatures on /api/update.
func WithUpdateSecret(secret string) Option {
	return func(s *Service) {
		s.updateSecret = []byte(secret)
	}
}

// WithPasswdSecret sets the secret for raw-body signatures on /api/passwd.
func WithPasswdSecret(secret string) Option {
	return func(s *Service) {
		s.passwdSecret = []byte(secret)
	}
}

// WithWebhookWorkers sets the number of webhook worker goroutines.
func WithWebhookWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithWebhookQueueSize sets the capacity of the webhook queue.
func WithWebhookQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many webhook delivery ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithWebhookHandler sets what workers do with accepted deliveries.
func WithWebhookHandler(h worker.Handler) Option {
	return func(s *Service) {
		if h != nil {
			s.handler = h
		}
	}
}
