package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platformbuilds/mirador-watchdog/pkg/cache"
)

// ErrResultNotFound is returned when a run id is unknown or expired.
var ErrResultNotFound = errors.New("evaluation result not found")

// ResultStore keeps finished results so they can be fetched by run id.
type ResultStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewResultStore stores results in c for ttl (c's default when ttl <= 0).
func NewResultStore(c cache.Cache, ttl time.Duration) *ResultStore {
	return &ResultStore{cache: c, ttl: ttl}
}

func resultKey(runID string) string {
	return "evaluation:" + runID
}

// Save stores r under its run id. Failed results have no run id and are
// not stored.
func (s *ResultStore) Save(ctx context.Context, r *Result) error {
	if r == nil || r.RunID == "" {
		return nil
	}
	if err := s.cache.Set(ctx, resultKey(r.RunID), r, s.ttl); err != nil {
		return fmt.Errorf("failed to store result %s: %w", r.RunID, err)
	}
	return nil
}

// Load fetches a stored result. Errors on individual slices come back
// without their typed cause.
func (s *ResultStore) Load(ctx context.Context, runID string) (*Result, error) {
	b, err := s.cache.Get(ctx, resultKey(runID))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", runID, err)
	}
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("failed to decode result %s: %w", runID, err)
	}
	return &r, nil
}
