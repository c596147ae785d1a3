package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/lounge/internal/domain/signature"
	"github.com/okian/lounge/pkg/logger"
)

// Webhook headers.
const (
	HeaderHubSignature = "X-Hub-Signature-256"
	HeaderDelivery     = "X-GitHub-Delivery"
	HeaderEvent        = "X-GitHub-Event"
)

// PasswdDependencies defines the interface for the signed passwd hook.
type PasswdDependencies interface {
	SubmitWebhook(ctx context.Context, body []byte, sig, deliveryID, event string) (bool, error)
}

// PasswdHandler handles passwd hook deliveries.
type PasswdHandler struct {
	deps    PasswdDependencies
	maxBody int64
	logger  logger.Logger
}

// NewPasswdHandler creates a new passwd hook handler.
func NewPasswdHandler(deps PasswdDependencies, maxBody int64, l logger.Logger) *PasswdHandler {
	return &PasswdHandler{deps: deps, maxBody: maxBody, logger: l}
}

// HandlePasswd handles POST /api/passwd requests. A signature mismatch is a
// 400 that echoes the supplied header and its byte form, nothing else.
func (h *PasswdHandler) HandlePasswd(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_passwd"
	body, err := readBody(w, r, h.maxBody)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}

	header := r.Header.Get(HeaderHubSignature)
	duplicate, err := h.deps.SubmitWebhook(r.Context(), body, header,
		r.Header.Get(HeaderDelivery), r.Header.Get(HeaderEvent))
	switch {
	case errors.Is(err, signature.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid_signature",
			"nope: sig: "+header+", in-utf8: "+signature.ByteRepr([]byte(header)))
		return
	case err != nil:
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}

	if duplicate {
		h.logger.Debug(r.Context(), "redelivery acknowledged",
			logger.String("delivery_id", r.Header.Get(HeaderDelivery)))
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Cool!"})
}
