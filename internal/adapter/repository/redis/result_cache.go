package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/ledgerflow/internal/domain"
)

// DefaultResultTTL bounds how long terminal results are served from cache.
const DefaultResultTTL = 24 * time.Hour

type cachedResult struct {
	ReferenceID string `json:"referenceId"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// ResultCache implements usecase.ResultCache using Redis. The database stays
// authoritative, so a miss or an error only costs a trip through the gate.
type ResultCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewResultCache creates a new ResultCache. A non-positive ttl selects DefaultResultTTL.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}

	return &ResultCache{
		client: client,
		prefix: "ledgerflow:result:",
		ttl:    ttl,
	}
}

// Get returns the cached result for referenceID, or nil on a miss.
func (c *ResultCache) Get(ctx context.Context, referenceID string) (*domain.TransferResult, error) {
	raw, err := c.client.Get(ctx, c.prefix+referenceID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cr cachedResult
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, err
	}

	return &domain.TransferResult{
		ReferenceID: cr.ReferenceID,
		Status:      domain.TransactionStatus(cr.Status),
		Message:     cr.Message,
	}, nil
}

// Set stores a terminal result. Non-terminal results are ignored.
func (c *ResultCache) Set(ctx context.Context, result domain.TransferResult) error {
	if !result.IsTerminal() {
		return nil
	}

	raw, err := json.Marshal(cachedResult{
		ReferenceID: result.ReferenceID,
		Status:      string(result.Status),
		Message:     result.Message,
	})
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.prefix+result.ReferenceID, raw, c.ttl).Err()
}
