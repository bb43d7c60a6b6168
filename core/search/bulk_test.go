package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SeekBeat/core/apperr"
	"SeekBeat/core/query"
)

// stubResolver records concurrency and answers from a function.
type stubResolver struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	fn       func(q query.Query) ([]Result, error)
}

func (s *stubResolver) Resolve(ctx context.Context, q query.Query, opts Options) ([]Result, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if !opts.Bulk {
		return nil, fmt.Errorf("expected bulk options")
	}
	time.Sleep(5 * time.Millisecond)
	return s.fn(q)
}

func terms(n int) []query.Query {
	qs := make([]query.Query, n)
	for i := range qs {
		qs[i] = query.Classify(fmt.Sprintf("term %d", i))
	}
	return qs
}

func TestResolveManyCapsInput(t *testing.T) {
	stub := &stubResolver{fn: func(q query.Query) ([]Result, error) {
		return []Result{{Title: q.Cleaned, WebpageURL: "u"}}, nil
	}}
	b := NewBulkCoordinator(stub, 5, 2)

	out := b.ResolveMany(context.Background(), terms(12), 3)

	require.Len(t, out, 5)
	assert.Equal(t, int32(5), stub.calls.Load())
	for i, o := range out {
		assert.Equal(t, fmt.Sprintf("term %d", i), o.Query.Cleaned)
		require.NoError(t, o.Err)
		assert.Equal(t, o.Query.Cleaned, o.Results[0].Title)
		assert.Equal(t, 1, o.Count())
	}
}

func TestResolveManyRespectsConcurrencyCap(t *testing.T) {
	stub := &stubResolver{fn: func(q query.Query) ([]Result, error) { return nil, nil }}
	b := NewBulkCoordinator(stub, 5, 2)

	b.ResolveMany(context.Background(), terms(5), 1)

	assert.LessOrEqual(t, stub.peak.Load(), int32(2))
	assert.Equal(t, int32(5), stub.calls.Load())
}

func TestResolveManyIsolatesFailures(t *testing.T) {
	stub := &stubResolver{fn: func(q query.Query) ([]Result, error) {
		switch q.Cleaned {
		case "term 1":
			return nil, apperr.New(apperr.ServiceUnavailable, bulkUnavailableMsg)
		case "term 3":
			panic("extractor exploded")
		}
		return []Result{{Title: "ok", WebpageURL: "u"}}, nil
	}}
	b := NewBulkCoordinator(stub, 5, 2)

	out := b.ResolveMany(context.Background(), terms(5), 1)

	require.Len(t, out, 5)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, apperr.ServiceUnavailable, apperr.KindOf(out[1].Err))
	assert.NoError(t, out[2].Err)
	require.Error(t, out[3].Err)
	assert.Equal(t, 0, out[3].Count())
	assert.NoError(t, out[4].Err)
}

func TestResolveManyWithRealResolverInvalidTerm(t *testing.T) {
	r := newTestResolver(nil, new(MockExtractor), false)
	b := NewBulkCoordinator(r, 5, 2)

	out := b.ResolveMany(context.Background(), []query.Query{query.Classify("")}, 5)

	require.Len(t, out, 1)
	assert.Equal(t, apperr.InvalidQuery, apperr.KindOf(out[0].Err))
}

func TestResolveManyCancelledBeforeStart(t *testing.T) {
	block := make(chan struct{})
	var once sync.Once
	stub := &stubResolver{fn: func(q query.Query) ([]Result, error) {
		<-block
		return nil, nil
	}}
	b := NewBulkCoordinator(stub, 5, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		once.Do(func() { close(block) })
	}()
	out := b.ResolveMany(ctx, terms(3), 1)

	require.Len(t, out, 3)
	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}

func TestBulkOutcomeJSON(t *testing.T) {
	ok := BulkOutcome{Query: query.Classify("lofi"), Results: []Result{{Title: "a", WebpageURL: "u"}}}
	bad := BulkOutcome{Query: query.Classify("song"), Err: apperr.Wrap(apperr.ServiceUnavailable, bulkUnavailableMsg, fmt.Errorf("quota"))}

	b, err := json.Marshal([]BulkOutcome{ok, bad})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "lofi", decoded[0]["search_term"])
	assert.Equal(t, float64(1), decoded[0]["count"])
	assert.NotContains(t, decoded[0], "error")

	assert.Equal(t, "song", decoded[1]["search_term"])
	assert.Equal(t, bulkUnavailableMsg, decoded[1]["error"])
	assert.Equal(t, float64(0), decoded[1]["count"])
	assert.NotContains(t, decoded[1], "results")
}
