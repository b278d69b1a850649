package quote

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/partquote/internal/common"
	"github.com/noah-isme/partquote/internal/obs"
	"github.com/noah-isme/partquote/internal/pricing"
	"github.com/noah-isme/partquote/internal/snapshot"
)

// Quote is a priced specification as returned to clients.
type Quote struct {
	ID              string                      `json:"id"`
	SnapshotVersion string                      `json:"snapshotVersion"`
	CreatedAt       time.Time                   `json:"createdAt"`
	Spec            pricing.SpecInput           `json:"spec"`
	Result          pricing.PricingResult       `json:"result"`
	Explanation     *pricing.PricingExplanation `json:"explanation,omitempty"`
	Cached          bool                        `json:"cached"`
}

// Options tune a single quote request.
type Options struct {
	Explain   bool
	SkipCache bool
}

// SnapshotSource yields the active pricing snapshot.
type SnapshotSource interface {
	Current() *snapshot.Snapshot
}

// Service prices specifications against the active snapshot.
type Service struct {
	source SnapshotSource
	cache  *Cache
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source SnapshotSource
	Cache  *Cache
	Logger *zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("quote: snapshot source is required")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "quote").Logger()
	}
	return &Service{
		source: cfg.Source,
		cache:  cfg.Cache,
		logger: logger,
		tracer: obs.Tracer("quote"),
		now:    time.Now,
	}, nil
}

// Snapshot returns the active snapshot or an error when none is loaded.
func (s *Service) Snapshot() (*snapshot.Snapshot, error) {
	snap := s.source.Current()
	if snap == nil {
		return nil, &common.AppError{Code: common.CodeDataUnavailable, Message: "pricing snapshot not loaded", HTTPStatus: http.StatusServiceUnavailable, Err: pricing.ErrDataUnavailable}
	}
	return snap, nil
}

// Quote validates and prices a specification.
func (s *Service) Quote(ctx context.Context, in pricing.SpecInput, opts Options) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "quote.calculate")
	defer span.End()

	spec, err := pricing.NewPartSpecification(in)
	if err != nil {
		obs.RecordQuote("invalid", -1)
		span.SetStatus(codes.Error, "invalid specification")
		return nil, toAppError(err)
	}
	snap, err := s.Snapshot()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	normalized := spec.Input()
	span.SetAttributes(
		attribute.String("quote.material", normalized.Material),
		attribute.String("quote.process", normalized.Process),
		attribute.Int("quote.quantity", normalized.Quantity),
		attribute.String("quote.snapshot_version", snap.Version),
	)

	key := CacheKey(normalized, snap.Version)
	if !opts.SkipCache && s.cache.Enabled() {
		var cached Quote
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case err != nil:
			obs.RecordQuoteCache("error")
			s.logger.Warn().Err(err).Msg("quote_cache_read_failed")
		case ok:
			obs.RecordQuoteCache("hit")
			span.SetAttributes(attribute.Bool("quote.cached", true))
			cached.Cached = true
			if !opts.Explain {
				cached.Explanation = nil
			}
			return &cached, nil
		default:
			obs.RecordQuoteCache("miss")
		}
	}

	engine := pricing.Engine{OnExplainError: func(err error) {
		s.logger.Warn().Err(err).Str("material", normalized.Material).Msg("quote_explanation_failed")
	}}
	start := time.Now()
	result, explanation, err := engine.Calculate(spec, snap.Costs, snap.Config, snap.Limits())
	elapsed := obs.DurationMillis(time.Since(start))
	if err != nil {
		obs.RecordQuote(resultLabel(err), elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).Str("material", normalized.Material).Str("process", normalized.Process).Msg("quote_failed")
		return nil, toAppError(err)
	}
	obs.RecordQuote("ok", elapsed)

	for _, adj := range result.Adjustments {
		obs.RecordLimitAdjustment(string(adj.TierName), adj.FieldName)
		s.logger.Info().
			Str("tier", string(adj.TierName)).
			Str("field", adj.FieldName).
			Str("original", adj.OriginalValue.String()).
			Str("adjusted", adj.AdjustedValue.String()).
			Str("reason", adj.Reason).
			Msg("quote_limit_adjusted")
	}

	q := &Quote{
		ID:              uuid.NewString(),
		SnapshotVersion: snap.Version,
		CreatedAt:       s.now().UTC(),
		Spec:            normalized,
		Result:          result,
		Explanation:     explanation,
	}
	s.logger.Debug().
		Str("quote_id", q.ID).
		Str("best_tier", string(result.BestTier)).
		Str("best_price", result.Best().FinalPrice.StringFixed(2)).
		Float64("duration_ms", elapsed).
		Msg("quote_calculated")

	if s.cache.Enabled() {
		if err := s.cache.SetJSON(ctx, key, q); err != nil {
			s.logger.Warn().Err(err).Msg("quote_cache_write_failed")
		}
	}
	span.SetAttributes(attribute.String("quote.best_tier", string(result.BestTier)))

	if !opts.Explain {
		out := *q
		out.Explanation = nil
		return &out, nil
	}
	return q, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, pricing.ErrValidation):
		return "invalid"
	case errors.Is(err, pricing.ErrDataUnavailable):
		return "data_unavailable"
	default:
		return "error"
	}
}

// toAppError maps pricing failures onto the API error contract.
func toAppError(err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var verr *pricing.ValidationError
	if errors.As(err, &verr) {
		return common.Unprocessable("specification is invalid", err).WithDetails(verr.Fields)
	}
	var derr *pricing.DataUnavailableError
	if errors.As(err, &derr) {
		return &common.AppError{
			Code:       common.CodeDataUnavailable,
			Message:    "pricing data unavailable for this specification",
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        err,
			Details:    map[string]string{"kind": derr.Kind, "key": derr.Key},
		}
	}
	return common.NewAppError(common.CodeInternal, "quote calculation failed", http.StatusInternalServerError, err)
}
