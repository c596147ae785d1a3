package update

import (
	"errors"

	"github.com/okian/lounge/internal/domain/model"
)

// Sentinel kinds for update batches.
var (
	// ErrEmptyBatch means the body carried no data (null, [], {}, "", 0 or false).
	ErrEmptyBatch = errors.New("empty update batch")
	// ErrInvalidFormat means the body or one item does not have the [name, mmr] shape.
	ErrInvalidFormat = errors.New("invalid data format")
	// ErrPlayerNotFound means an item named a player with no record.
	ErrPlayerNotFound = model.ErrPlayerNotFound
	// ErrDeltaOverflow means the rating change of an item does not fit in an
	// int64. It is reported as ErrInvalidFormat.
	ErrDeltaOverflow = model.ErrDeltaOverflow
)
