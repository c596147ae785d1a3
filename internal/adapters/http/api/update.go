package api

import (
	"context"
	"net/http"

	"github.com/okian/lounge/internal/domain/update"
	"github.com/okian/lounge/pkg/logger"
)

// HeaderUpdateSignature carries the string-form signature of an update batch.
const HeaderUpdateSignature = "X-HMAC-Signature"

// UpdateDependencies defines the interface for rating submissions.
type UpdateDependencies interface {
	SubmitUpdate(ctx context.Context, body []byte, sig string) (update.Result, error)
}

// UpdateHandler handles update requests.
type UpdateHandler struct {
	deps    UpdateDependencies
	maxBody int64
	logger  logger.Logger
}

// NewUpdateHandler creates a new update handler.
func NewUpdateHandler(deps UpdateDependencies, maxBody int64, l logger.Logger) *UpdateHandler {
	return &UpdateHandler{deps: deps, maxBody: maxBody, logger: l}
}

// HandleUpdate handles POST /api/update requests.
func (h *UpdateHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_update"
	body, err := readBody(w, r, h.maxBody)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}

	res, err := h.deps.SubmitUpdate(r.Context(), body, r.Header.Get(HeaderUpdateSignature))
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Data submitted successfully", BatchID: res.BatchID})
}
