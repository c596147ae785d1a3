package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/lounge/internal/domain/model"
	"github.com/okian/lounge/pkg/logger"
)

// PlayerDependencies defines the interface for single player reads.
type PlayerDependencies interface {
	Player(ctx context.Context, name string) (model.Player, error)
}

// PlayerHandler handles player requests.
type PlayerHandler struct {
	deps   PlayerDependencies
	logger logger.Logger
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(deps PlayerDependencies, l logger.Logger) *PlayerHandler {
	return &PlayerHandler{deps: deps, logger: l}
}

// HandleGetPlayer handles GET /api/players/{name} requests.
func (h *PlayerHandler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_player"
	name := chi.URLParam(r, "name")
	if name == "" {
		writeFailure(r.Context(), w, h.logger, NewKind(op, ErrBadRequest))
		return
	}
	p, err := h.deps.Player(r.Context(), name)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}
