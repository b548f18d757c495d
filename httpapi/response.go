package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/goSocialAuth/pipeline"
)

// MsgTimeout is returned when a flow runs out of time before it decides.
const MsgTimeout = "the sign-in took too long, try again"

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res pipeline.Result, err error) {
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			// client is gone
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			h.logFlowError(r, err)
			writeJSON(w, http.StatusGatewayTimeout, pipeline.NewError(MsgTimeout))
			return
		}
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logFlowError(r, err)
	writeJSON(w, http.StatusInternalServerError, pipeline.InternalError())
}

func (h *Handler) logFlowError(r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
}

// failureResult is the status and Result shown in the popup for a flow that
// failed without deciding.
func (h *Handler) failureResult(r *http.Request, err error) (int, pipeline.Result) {
	h.logFlowError(r, err)
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, pipeline.NewError(MsgTimeout)
	}
	return http.StatusOK, pipeline.InternalError()
}
