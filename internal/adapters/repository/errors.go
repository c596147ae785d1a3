package repository

import (
	"errors"

	"github.com/okian/lounge/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound      = model.ErrPlayerNotFound
	ErrDeltaOverflow = model.ErrDeltaOverflow
	ErrAlreadyExists = errors.New("player already exists")
	ErrInvalidName   = errors.New("player name is empty")
	ErrUnknownStore  = errors.New("unknown store backend")
)
