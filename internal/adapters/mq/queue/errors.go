package queue

import "errors"

var (
	// ErrQueueFull is returned when the buffer has no room for another delivery.
	ErrQueueFull = errors.New("webhook queue is full")
	// ErrQueueClosed is returned once Close has been called.
	ErrQueueClosed = errors.New("webhook queue is closed")
)
