package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"SeekBeat/config"
	"SeekBeat/core/query"
	"SeekBeat/core/search"
	"SeekBeat/core/stream"
	"SeekBeat/repository"
)

// Searcher resolves a single classified query.
type Searcher interface {
	Resolve(ctx context.Context, q query.Query, opts search.Options) ([]search.Result, error)
}

// BulkSearcher resolves a batch of queries.
type BulkSearcher interface {
	ResolveMany(ctx context.Context, queries []query.Query, perQueryLimit int) []search.BulkOutcome
}

// LANSearcher searches songs shared by LAN devices.
type LANSearcher interface {
	SearchLAN(ctx context.Context, term string, limit int) ([]repository.LANMatch, error)
}

// Streamer serves stream requests.
type Streamer interface {
	Handle(ctx context.Context, req stream.Request) (*stream.Response, error)
}

// APIHandler 持有各接口所需的服务
type APIHandler struct {
	classifier *query.Classifier
	searcher   Searcher
	bulk       BulkSearcher
	lan        LANSearcher
	streamer   Streamer
	maxResults int
}

// NewAPIHandler lan may be nil when no registry is configured.
func NewAPIHandler(cfg *config.Config, searcher Searcher, bulk BulkSearcher, lan LANSearcher, streamer Streamer) *APIHandler {
	maxResults := cfg.SearchMaxResults
	if maxResults <= 0 {
		maxResults = search.DefaultMaxResults
	}
	return &APIHandler{
		classifier: query.NewClassifier(cfg.MaxQueryLength),
		searcher:   searcher,
		bulk:       bulk,
		lan:        lan,
		streamer:   streamer,
		maxResults: maxResults,
	}
}

// HealthHandler 健康检查
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// intParam reads a non-negative integer query parameter, falling back to def
// when absent or malformed.
func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// SearchHandler 单个查询搜索
func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	raw, ok := r.URL.Query()["query"]
	if !ok || len(raw) == 0 {
		badRequest(w, r, "No query parameter provided.")
		return
	}

	q := h.classifier.Classify(raw[0])
	opts := search.Options{
		MaxResults: intParam(r, "max_results", h.maxResults),
		Offset:     intParam(r, "offset", 0),
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = h.maxResults
	}

	results, err := h.searcher.Resolve(r.Context(), q, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// BulkSearchHandler 批量搜索, queries separated by commas.
func (h *APIHandler) BulkSearchHandler(w http.ResponseWriter, r *http.Request) {
	var queries []query.Query
	for _, term := range strings.Split(r.URL.Query().Get("queries"), ",") {
		if strings.TrimSpace(term) == "" {
			continue
		}
		queries = append(queries, h.classifier.Classify(term))
	}
	if len(queries) == 0 {
		badRequest(w, r, "No queries provided")
		return
	}

	limit := intParam(r, "max_results", h.maxResults)
	if limit == 0 {
		limit = h.maxResults
	}
	writeJSON(w, http.StatusOK, h.bulk.ResolveMany(r.Context(), queries, limit))
}

// LANSearchHandler 搜索局域网设备共享的歌曲
func (h *APIHandler) LANSearchHandler(w http.ResponseWriter, r *http.Request) {
	term := query.Clean(r.URL.Query().Get("query"))
	if term == "" {
		badRequest(w, r, "No query parameter provided.")
		return
	}
	if h.lan == nil {
		writeJSON(w, http.StatusOK, []repository.LANMatch{})
		return
	}
	matches, err := h.lan.SearchLAN(r.Context(), term, intParam(r, "limit", 50))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}
