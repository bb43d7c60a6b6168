package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"SeekBeat/core/apperr"
	"SeekBeat/core/query"
	"SeekBeat/logger"
)

const (
	DefaultBulkMax         = 5
	DefaultBulkConcurrency = 2
)

// BulkOutcome is the per-query slot of a bulk response.
type BulkOutcome struct {
	Query   query.Query
	Results []Result
	Err     error
}

// Count is the number of results, zero on error.
func (o BulkOutcome) Count() int {
	if o.Err != nil {
		return 0
	}
	return len(o.Results)
}

// MarshalJSON renders {search_term, results|error, count}.
func (o BulkOutcome) MarshalJSON() ([]byte, error) {
	type wire struct {
		SearchTerm string   `json:"search_term"`
		Results    []Result `json:"results,omitempty"`
		Error      string   `json:"error,omitempty"`
		Count      int      `json:"count"`
	}
	w := wire{SearchTerm: o.Query.Cleaned, Count: o.Count()}
	if w.SearchTerm == "" {
		w.SearchTerm = o.Query.Raw
	}
	if o.Err != nil {
		w.Error = apperr.Message(o.Err)
	} else {
		w.Results = o.Results
		if w.Results == nil {
			w.Results = []Result{}
		}
	}
	return json.Marshal(w)
}

// Resolving is the part of Resolver the coordinator needs.
type Resolving interface {
	Resolve(ctx context.Context, q query.Query, opts Options) ([]Result, error)
}

// BulkCoordinator fans a batch out to the resolver. The semaphore is the
// backpressure against the API quota and is always present.
type BulkCoordinator struct {
	resolver Resolving
	sem      *semaphore.Weighted
	max      int
}

func NewBulkCoordinator(resolver Resolving, maxQueries, concurrency int) *BulkCoordinator {
	if maxQueries <= 0 {
		maxQueries = DefaultBulkMax
	}
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}
	return &BulkCoordinator{
		resolver: resolver,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		max:      maxQueries,
	}
}

// ResolveMany resolves at most the first max queries. The returned slice is
// index-aligned with the input; every slot is filled before it returns.
func (b *BulkCoordinator) ResolveMany(ctx context.Context, queries []query.Query, perQueryLimit int) []BulkOutcome {
	if len(queries) > b.max {
		logger.Info("bulk search truncated",
			logger.Int("received", len(queries)),
			logger.Int("kept", b.max))
		queries = queries[:b.max]
	}

	outcomes := make([]BulkOutcome, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		outcomes[i].Query = q
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := b.resolveOne(ctx, q, perQueryLimit)
			outcomes[i].Results, outcomes[i].Err = results, err
		}()
	}
	wg.Wait()
	return outcomes
}

func (b *BulkCoordinator) resolveOne(ctx context.Context, q query.Query, limit int) (results []Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("bulk search task panicked",
				logger.String("term", q.Cleaned),
				logger.Any("panic", rec))
			results, err = nil, apperr.Wrap(apperr.Internal, fmt.Sprintf("Search for %s failed", q.Cleaned), fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, apperr.Wrap(apperr.ServiceUnavailable, fmt.Sprintf("Search for %s was cancelled", q.Cleaned), err)
	}
	defer b.sem.Release(1)

	logger.Debug("starting bulk term", logger.String("term", q.Cleaned))
	results, err = b.resolver.Resolve(ctx, q, Options{MaxResults: limit, Bulk: true})
	if err != nil {
		logger.Warn("bulk term failed", logger.String("term", q.Cleaned), logger.ErrorField(err))
	}
	return results, err
}
