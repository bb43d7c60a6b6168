// Package search turns classified queries into canonical results. Search
// terms go to the metered YouTube Data API first and fall back to yt-dlp;
// direct links always go to yt-dlp.
package search

import (
	"context"
	"fmt"
	"time"

	"SeekBeat/core/apperr"
	"SeekBeat/core/query"
	"SeekBeat/logger"
)

const (
	DefaultMaxResults = 10
	DefaultAttempts   = 5

	bulkUnavailableMsg = "Bulk Search API is currently unavailable. Try again later."
	noResultsMsg       = "No usable results returned"
)

// Options for a single resolution.
type Options struct {
	MaxResults int
	Offset     int
	Bulk       bool // part of a bulk request; selects the bulk key and fallback gate
}

// ResolverConfig holds the read-only knobs of a Resolver.
type ResolverConfig struct {
	Attempts       int
	AttemptTimeout time.Duration // bounds each provider attempt; zero means none
	Backoff        Backoff
	// BulkFallback allows bulk searches to fall back to the scraper when the
	// API fails. Hosted deployments switch it off to protect shared egress.
	BulkFallback bool
}

// Resolver runs the primary → secondary state machine for one query.
type Resolver struct {
	primary   PrimaryProvider
	secondary Extractor
	durations *DurationResolver
	cfg       ResolverConfig
}

// NewResolver wires the providers. primary may be nil when no API is used.
func NewResolver(primary PrimaryProvider, secondary Extractor, durations *DurationResolver, cfg ResolverConfig) *Resolver {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = ExponentialJitter
	}
	if durations == nil && primary != nil {
		durations = NewDurationResolver(primary, 0)
	}
	return &Resolver{primary: primary, secondary: secondary, durations: durations, cfg: cfg}
}

// Resolve returns results for q or a *apperr.Error describing why not.
func (r *Resolver) Resolve(ctx context.Context, q query.Query, opts Options) ([]Result, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	if !q.Valid() {
		return nil, apperr.New(apperr.InvalidQuery, q.Reason)
	}

	switch q.Kind {
	case query.DirectLink:
		logger.Info("resolving direct link", logger.String("link", q.Cleaned))
		return r.extract(ctx, r.secondaryLink, q.Cleaned, q.Cleaned, 0, 1)
	default:
		return r.searchTerm(ctx, q.Cleaned, opts)
	}
}

func (r *Resolver) searchTerm(ctx context.Context, term string, opts Options) ([]Result, error) {
	total := opts.MaxResults + opts.Offset

	var primaryErr error
	if r.primary != nil && r.primary.Configured(opts.Bulk) {
		out := retry(ctx, "youtube-api", r.cfg.Attempts, r.cfg.Backoff, func(ctx context.Context, _ int) Outcome[[]Hit] {
			actx, cancel := r.attemptContext(ctx)
			defer cancel()
			hits, err := r.primary.Search(actx, term, total, opts.Bulk)
			return classifyPrimary(hits, err)
		})
		if out.Kind == Success {
			hits := window(out.Value, opts.Offset, opts.MaxResults)
			logger.Info("youtube api search finished",
				logger.String("term", term),
				logger.Int("count", len(hits)),
				logger.Bool("bulk", opts.Bulk))
			return r.durations.Apply(ctx, hits, opts.Bulk), nil
		}
		primaryErr = out.Err
	} else {
		primaryErr = apperr.New(apperr.UnrecoverableProvider, "YouTube API key not configured")
	}

	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.TransientProvider, fmt.Sprintf("Search for %s was cancelled", term), err)
	}
	if opts.Bulk && !r.cfg.BulkFallback {
		logger.Warn("bulk fallback disabled, aborting term",
			logger.String("term", term),
			logger.ErrorField(primaryErr))
		return nil, apperr.Wrap(apperr.ServiceUnavailable, bulkUnavailableMsg, primaryErr)
	}

	if apperr.Is(primaryErr, apperr.QuotaExceeded) {
		logger.Warn("youtube api quota exhausted", logger.Bool("bulk", opts.Bulk))
	}
	logger.Info("falling back to yt-dlp",
		logger.String("term", term),
		logger.String("reason", apperr.KindOf(primaryErr).String()))
	return r.extract(ctx, r.secondarySearch, SearchTarget(term, total), term, opts.Offset, opts.MaxResults)
}

// classifyPrimary turns a provider error into the retry loop's vocabulary.
func classifyPrimary(hits []Hit, err error) Outcome[[]Hit] {
	if err == nil {
		return succeed(hits)
	}
	switch apperr.KindOf(err) {
	case apperr.TransientProvider:
		return retryable[[]Hit](err)
	default:
		return hardFail[[]Hit](err)
	}
}

func (r *Resolver) secondarySearch(ctx context.Context, target string) (*Info, error) {
	return r.secondary.Extract(ctx, target)
}

func (r *Resolver) secondaryLink(ctx context.Context, link string) (*Info, error) {
	return r.secondary.ExtractLink(ctx, link)
}

// extract runs the secondary provider with its own retry budget. A direct
// link passes limit 1 so it never yields more than one result.
func (r *Resolver) extract(ctx context.Context, fetch func(context.Context, string) (*Info, error), target, term string, offset, limit int) ([]Result, error) {
	if r.secondary == nil {
		return nil, apperr.New(apperr.ExtractionFailure, fmt.Sprintf("An error occurred while searching for %s: no extractor available", term))
	}

	out := retry(ctx, "yt-dlp", r.cfg.Attempts, r.cfg.Backoff, func(ctx context.Context, _ int) Outcome[*Info] {
		actx, cancel := r.attemptContext(ctx)
		defer cancel()
		info, err := fetch(actx, target)
		if err != nil {
			if ctx.Err() != nil {
				return hardFail[*Info](ctx.Err())
			}
			return retryable[*Info](err)
		}
		return succeed(info)
	})
	if out.Kind != Success {
		return nil, apperr.Wrap(apperr.ExtractionFailure,
			fmt.Sprintf("An error occurred while searching for %s", term), out.Err)
	}

	info := out.Value
	if info == nil {
		return nil, apperr.New(apperr.ExtractionFailure, noResultsMsg)
	}
	if info.IsPlaylist() {
		return fromEntries(info.Entries, offset, limit), nil
	}
	if res, ok := fromEntry(*info); ok {
		return []Result{res}, nil
	}
	return nil, apperr.New(apperr.ExtractionFailure, noResultsMsg)
}

func (r *Resolver) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.AttemptTimeout > 0 {
		return context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	}
	return context.WithCancel(ctx)
}

func window(hits []Hit, offset, limit int) []Hit {
	if offset >= len(hits) {
		return nil
	}
	hits = hits[offset:]
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
