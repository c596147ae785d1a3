package api

import (
	"errors"
	"net/http"

	"github.com/okian/lounge/internal/adapters/mq/queue"
	"github.com/okian/lounge/internal/domain/model"
	"github.com/okian/lounge/internal/domain/signature"
	"github.com/okian/lounge/internal/domain/update"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrRateLimiter     = errors.New("rate limiter unavailable")
)

// opError ties an error to the handler operation that produced it.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	switch {
	case e.kind != nil && e.err != nil:
		return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
	case e.kind != nil:
		return e.op + ": " + e.kind.Error()
	case e.err != nil:
		return e.op + ": " + e.err.Error()
	default:
		return e.op
	}
}

func (e *opError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.err != nil {
		errs = append(errs, e.err)
	}
	return errs
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// WrapKind classifies err as kind and tags it with op.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}

// Wrap tags err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// failure is how an error is presented to a client.
type failure struct {
	status  int
	code    string
	message string
}

// classify maps domain errors to the response a client sees. Anything
// unrecognised is a server error whose details stay in the log.
func classify(err error) failure {
	switch {
	case errors.Is(err, signature.ErrMissingCredentials):
		return failure{http.StatusBadRequest, "missing_credentials", "Missing data or signature"}
	case errors.Is(err, signature.ErrMalformedPayload), errors.Is(err, update.ErrInvalidFormat):
		return failure{http.StatusBadRequest, "invalid_format", "Invalid Data Format"}
	case errors.Is(err, signature.ErrInvalidSignature):
		return failure{http.StatusForbidden, "invalid_signature", "Invalid signature"}
	case errors.Is(err, model.ErrPlayerNotFound):
		return failure{http.StatusNotFound, "player_not_found", "Player not found"}
	case errors.Is(err, ErrPayloadTooLarge):
		return failure{http.StatusRequestEntityTooLarge, "payload_too_large", "Payload too large"}
	case errors.Is(err, ErrBadRequest):
		return failure{http.StatusBadRequest, "bad_request", "Bad request"}
	case errors.Is(err, queue.ErrQueueFull):
		return failure{http.StatusServiceUnavailable, "backpressure", "Webhook queue is full"}
	case errors.Is(err, queue.ErrQueueClosed):
		return failure{http.StatusServiceUnavailable, "shutting_down", "Service is shutting down"}
	default:
		return failure{http.StatusInternalServerError, "internal_error", "internal server error"}
	}
}
