package repository

import (
	"errors"
	"time"

	"github.com/okian/lounge/pkg/metrics"
)

// observe records latency for one store operation and counts failures that
// are not ordinary lookup misses. Use with a named error return:
//
//	defer observe(BackendMongo, "apply", time.Now(), &err)
func observe(backend, op string, start time.Time, err *error) {
	metrics.RecordRepositoryLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
	if err == nil || *err == nil {
		return
	}
	if errors.Is(*err, ErrNotFound) || errors.Is(*err, ErrAlreadyExists) {
		return
	}
	metrics.RecordRepositoryError(backend, op)
}
