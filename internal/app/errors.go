package service

import "errors"

var (
	// ErrConfiguration is returned by Start when a required setting is missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotStarted is returned by operations used before Start.
	ErrNotStarted = errors.New("service not started")
)
