package quote

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/partquote/internal/common"
	"github.com/noah-isme/partquote/internal/obs"
	"github.com/noah-isme/partquote/internal/pricing"
)

const defaultMaxBodyBytes = 1 << 20

// Handler exposes the quoting endpoints.
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
	limit := cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	return &Handler{service: cfg.Service, maxBodyBytes: limit}
}

// Create handles POST /api/v1/quotes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in pricing.SpecInput
	if err := common.DecodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.service.Quote(r.Context(), in, opts)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	cache := "MISS"
	if q.Cached {
		cache = "HIT"
	}
	w.Header().Set("X-Cache", cache)
	obs.Annotate(r.Context(), "quote_id", q.ID)
	obs.Annotate(r.Context(), "best_tier", string(q.Result.BestTier))
	obs.Annotate(r.Context(), "cache", cache)
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// Tiers handles GET /api/v1/pricing/tiers.
func (h *Handler) Tiers(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	snap, err := h.service.Snapshot()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": snap.Config.TierConfigs(),
		"meta": map[string]any{"snapshotVersion": snap.Version, "source": snap.Source},
	})
}

// Limits handles GET /api/v1/pricing/limits.
func (h *Handler) Limits(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	snap, err := h.service.Snapshot()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": snap.Limits(),
		"meta": map[string]any{"snapshotVersion": snap.Version, "source": snap.Source},
	})
}

func parseOptions(r *http.Request) (Options, error) {
	opts := Options{Explain: true}
	query := r.URL.Query()
	if raw := query.Get("explain"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, common.BadRequest("explain must be a boolean", err)
		}
		opts.Explain = v
	}
	if raw := query.Get("fresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, common.BadRequest("fresh must be a boolean", err)
		}
		opts.SkipCache = v
	}
	return opts, nil
}
