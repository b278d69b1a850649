// Package batch prices many specifications asynchronously. Submissions are
// persisted in Redis and processed by the worker through an asynq task.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/partquote/internal/common"
	"github.com/noah-isme/partquote/internal/pricing"
	"github.com/noah-isme/partquote/internal/quote"
)

const keyPrefix = "partquote:batch:"

// Status is the lifecycle state of a batch.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// ErrNotFound is returned when a batch id is unknown or has expired.
var ErrNotFound = common.NewAppError(common.CodeNotFound, "batch not found", http.StatusNotFound, nil)

// ItemError is the per-item failure recorded in place of a quote.
type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Item is one specification of a batch and its outcome.
type Item struct {
	Index int               `json:"index"`
	Spec  pricing.SpecInput `json:"spec"`
	Quote *quote.Quote      `json:"quote,omitempty"`
	Error *ItemError        `json:"error,omitempty"`
}

// Batch is the persisted state of a submission.
type Batch struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Explain   bool      `json:"explain"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Items     []Item    `json:"items"`
}

// Store persists batches as JSON documents with a TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

// Save writes the batch, refreshing its TTL.
func (s *Store) Save(ctx context.Context, b *Batch) error {
	if s == nil || s.client == nil {
		return errors.New("batch: store not configured")
	}
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(b.ID), data, s.ttl).Err()
}

// Get loads a batch by id.
func (s *Store) Get(ctx context.Context, id string) (*Batch, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("batch: store not configured")
	}
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
