package search

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"SeekBeat/logger"
)

// DurationResolver fills in durations with one lookup per video, run in
// parallel under a fixed limit.
type DurationResolver struct {
	provider PrimaryProvider
	limit    int
}

func NewDurationResolver(provider PrimaryProvider, limit int) *DurationResolver {
	if limit <= 0 {
		limit = 8
	}
	return &DurationResolver{provider: provider, limit: limit}
}

// Resolve returns durations keyed by video id. Failed lookups are logged and
// left out; they never fail the search.
func (d *DurationResolver) Resolve(ctx context.Context, ids []string, bulk bool) map[string]int {
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.limit)
	for _, id := range ids {
		g.Go(func() error {
			secs, err := d.provider.Duration(ctx, id, bulk)
			if err != nil {
				logger.Debug("duration lookup failed", logger.String("video_id", id), logger.ErrorField(err))
				return nil
			}
			mu.Lock()
			out[id] = secs
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Apply writes resolved durations onto hits in place.
func (d *DurationResolver) Apply(ctx context.Context, hits []Hit, bulk bool) []Result {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.VideoID
	}
	durations := d.Resolve(ctx, ids, bulk)

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = h.Result
		if secs, ok := durations[h.VideoID]; ok {
			s := secs
			results[i].Duration = &s
		}
	}
	return results
}
