package signature

import "errors"

// Sentinel kinds for signature verification. Callers map them with errors.Is.
var (
	ErrMissingCredentials = errors.New("missing data or signature")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrMissingSecret      = errors.New("signing secret is empty")
	ErrUnknownMode        = errors.New("unknown signature mode")
)
