package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/partquote/internal/common"
	"github.com/noah-isme/partquote/internal/obs"
	"github.com/noah-isme/partquote/internal/pricing"
	"github.com/noah-isme/partquote/internal/quote"
)

// TypeQuoteBatch is the asynq task type that prices a stored batch.
const TypeQuoteBatch = "quote:batch"

const (
	defaultMaxItems = 200
	processLease    = 6 * time.Minute
)

// Request is the body of a batch submission.
type Request struct {
	Items   []pricing.SpecInput `json:"items" validate:"required,min=1"`
	Explain bool                `json:"explain"`
}

type taskPayload struct {
	BatchID string `json:"batchId"`
}

// Enqueuer is the part of *asynq.Client the service needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Quoter prices a single specification.
type Quoter interface {
	Quote(ctx context.Context, in pricing.SpecInput, opts quote.Options) (*quote.Quote, error)
}

// Locker serialises processing of the same batch across workers.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service submits batches and processes them in the worker.
type Service struct {
	store    *Store
	queue    Enqueuer
	quoter   Quoter
	locker   Locker
	maxItems int
	logger   zerolog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// ServiceConfig groups Service dependencies. Queue may be nil in the worker
// and Quoter may be nil in the API process.
type ServiceConfig struct {
	Store    *Store
	Queue    Enqueuer
	Quoter   Quoter
	Locker   Locker
	MaxItems int
	Logger   *zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("batch: store is required")
	}
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "batch").Logger()
	}
	return &Service{
		store:    cfg.Store,
		queue:    cfg.Queue,
		quoter:   cfg.Quoter,
		locker:   cfg.Locker,
		maxItems: maxItems,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}, nil
}

// Submit stores a pending batch and enqueues it for pricing. Items are
// validated individually by the worker so one bad item does not reject the
// whole submission.
func (s *Service) Submit(ctx context.Context, req Request) (*Batch, error) {
	if s.queue == nil {
		return nil, common.Unavailable("batch queue not configured")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, common.Unprocessable("batch must contain at least one item", err)
	}
	if len(req.Items) > s.maxItems {
		msg := fmt.Sprintf("batch may contain at most %d items", s.maxItems)
		return nil, common.Unprocessable(msg, nil).WithDetails(map[string]int{"max": s.maxItems, "got": len(req.Items)})
	}

	now := s.now().UTC()
	b := &Batch{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Explain:   req.Explain,
		Total:     len(req.Items),
		CreatedAt: now,
		UpdatedAt: now,
		Items:     make([]Item, len(req.Items)),
	}
	for i, in := range req.Items {
		b.Items[i] = Item{Index: i, Spec: in}
	}
	if err := s.store.Save(ctx, b); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(taskPayload{BatchID: b.ID})
	if err != nil {
		return nil, err
	}
	task := asynq.NewTask(TypeQuoteBatch, payload)
	if _, err := s.queue.EnqueueContext(ctx, task, asynq.TaskID(b.ID), asynq.MaxRetry(3), asynq.Timeout(5*time.Minute)); err != nil {
		return nil, fmt.Errorf("enqueue batch: %w", err)
	}
	s.logger.Info().Str("batch_id", b.ID).Int("items", b.Total).Msg("batch_submitted")
	return b, nil
}

// Get returns the current state of a batch.
func (s *Service) Get(ctx context.Context, id string) (*Batch, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// ProcessTask implements asynq.Handler.
func (s *Service) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p taskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	return s.Process(ctx, p.BatchID)
}

// Process prices every item of a batch and stores the outcome. With a Locker
// configured, a batch is processed by at most one worker at a time.
func (s *Service) Process(ctx context.Context, id string) error {
	if s.quoter == nil {
		return errors.New("batch: quoter not configured")
	}
	if s.locker == nil {
		return s.process(ctx, id)
	}
	return s.locker.WithLock(ctx, "partquote:lock:batch:"+id, processLease, func(ctx context.Context) error {
		return s.process(ctx, id)
	})
}

func (s *Service) process(ctx context.Context, id string) error {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("batch %s: %w", id, asynq.SkipRetry)
		}
		return err
	}
	if b.Status == StatusCompleted {
		return nil
	}
	b.Status = StatusProcessing
	b.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, b); err != nil {
		return err
	}

	b.Succeeded, b.Failed = 0, 0
	for i := range b.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := &b.Items[i]
		q, err := s.quoter.Quote(ctx, item.Spec, quote.Options{Explain: b.Explain})
		if err != nil {
			item.Quote = nil
			item.Error = itemError(err)
			b.Failed++
			obs.RecordBatchItem("failed")
			continue
		}
		item.Quote = q
		item.Error = nil
		b.Succeeded++
		obs.RecordBatchItem("ok")
	}
	b.Status = StatusCompleted
	b.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, b); err != nil {
		return err
	}
	s.logger.Info().
		Str("batch_id", b.ID).
		Int("succeeded", b.Succeeded).
		Int("failed", b.Failed).
		Msg("batch_completed")
	return nil
}

func itemError(err error) *ItemError {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return &ItemError{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}
	return &ItemError{Code: common.CodeInternal, Message: err.Error()}
}
