package batch

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/partquote/internal/common"
	"github.com/noah-isme/partquote/internal/obs"
)

var errRedisRequired = common.Unavailable("batch quoting requires redis")

// Handler exposes the batch endpoints.
type Handler struct {
	service      *Service
	maxBodyBytes int64
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service      *Service
	MaxBodyBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, maxBodyBytes: cfg.MaxBodyBytes}
}

// Submit handles POST /api/v1/quotes/batch.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.WriteError(w, errRedisRequired)
		return
	}
	var req Request
	if err := common.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	b, err := h.service.Submit(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	obs.Annotate(r.Context(), "batch_id", b.ID)
	w.Header().Set("Location", "/api/v1/quotes/batch/"+b.ID)
	common.JSON(w, http.StatusAccepted, map[string]any{"data": b})
}

// Get handles GET /api/v1/quotes/batch/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.WriteError(w, errRedisRequired)
		return
	}
	id := chi.URLParam(r, "id")
	obs.Annotate(r.Context(), "batch_id", id)
	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}
