package stream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SeekBeat/core/apperr"
	"SeekBeat/storage"
)

func fileOf(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func newStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	s, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func putFile(t *testing.T, s storage.FileStore, key string, data []byte) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), key, bytes.NewReader(data), int64(len(data))))
}

func readBody(t *testing.T, rr *RangeResponse) []byte {
	t.Helper()
	defer rr.Body.Close()
	b, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return b
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header     string
		start, end int64
		ok         bool
		err        bool
	}{
		{header: "bytes=0-99", start: 0, end: 99, ok: true},
		{header: "bytes=900-", start: 900, end: 999, ok: true},
		{header: "bytes=500-5000", start: 500, end: 999, ok: true},
		{header: "bytes=-100", start: 900, end: 999, ok: true},
		{header: "bytes=-5000", start: 0, end: 999, ok: true},
		{header: "bytes=1000-", err: true},
		{header: "", ok: false},
		{header: "items=0-1", ok: false},
		{header: "bytes=abc-", ok: false},
		{header: "bytes=0-1,5-6", ok: false},
		{header: "bytes=50-10", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r, ok, err := parseRange(tt.header, 1000)
			if tt.err {
				assert.ErrorIs(t, err, errUnsatisfiable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.start, r.start)
				assert.Equal(t, tt.end, r.end)
			}
		})
	}
}

func TestServePartial(t *testing.T) {
	store := newStore(t)
	data := fileOf(1000)
	putFile(t, store, "song.mp3", data)
	s := NewRangeServer(store, nil, nil)

	rr, err := s.Serve(context.Background(), Target{Key: "song.mp3"}, "bytes=0-99")
	require.NoError(t, err)

	assert.Equal(t, http.StatusPartialContent, rr.Status)
	assert.Equal(t, "bytes 0-99/1000", rr.Header.Get("Content-Range"))
	assert.Equal(t, "100", rr.Header.Get("Content-Length"))
	assert.Equal(t, data[:100], readBody(t, rr))
}

func TestServeMiddleWindow(t *testing.T) {
	store := newStore(t)
	data := fileOf(1000)
	putFile(t, store, "song.mp3", data)
	s := NewRangeServer(store, nil, nil)

	rr, err := s.Serve(context.Background(), Target{Key: "song.mp3"}, "bytes=250-2000")
	require.NoError(t, err)
	assert.Equal(t, "bytes 250-999/1000", rr.Header.Get("Content-Range"))
	assert.Equal(t, data[250:], readBody(t, rr))
}

func TestServeWhole(t *testing.T) {
	store := newStore(t)
	data := fileOf(1000)
	putFile(t, store, "song.mp3", data)
	s := NewRangeServer(store, nil, nil)

	rr, err := s.Serve(context.Background(), Target{Key: "song.mp3"}, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rr.Status)
	assert.Equal(t, "bytes", rr.Header.Get("Accept-Ranges"))
	assert.Equal(t, "1000", rr.Header.Get("Content-Length"))
	assert.Len(t, readBody(t, rr), 1000)
}

func TestServeUnsatisfiable(t *testing.T) {
	store := newStore(t)
	putFile(t, store, "song.mp3", fileOf(10))
	s := NewRangeServer(store, nil, nil)

	rr, err := s.Serve(context.Background(), Target{Key: "song.mp3"}, "bytes=10-")
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rr.Status)
	assert.Equal(t, "bytes */10", rr.Header.Get("Content-Range"))
}

func TestServeMissingWithoutOwner(t *testing.T) {
	s := NewRangeServer(newStore(t), nil, nil)

	_, err := s.Serve(context.Background(), Target{Key: "gone.mp3"}, "")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

type recorder struct {
	mu    sync.Mutex
	paths map[string]string
}

func (r *recorder) UpdateFilePath(ctx context.Context, songID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paths == nil {
		r.paths = map[string]string{}
	}
	r.paths[songID] = key
	return nil
}

func ownerServer(t *testing.T, songID string, data []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/lan/songs/"+songID+"/file" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServeFetchesFromOwner(t *testing.T) {
	store := newStore(t)
	data := fileOf(300)
	srv := ownerServer(t, "s-1", data)
	rec := &recorder{}
	s := NewRangeServer(store, NewOwnerFetcher(srv.Client(), store), rec)

	target := Target{SongID: "s-1", DeviceID: "d-9", OwnerAddr: strings.TrimPrefix(srv.URL, "http://")}
	rr, err := s.Serve(context.Background(), target, "bytes=100-")
	require.NoError(t, err)

	assert.Equal(t, http.StatusPartialContent, rr.Status)
	assert.Equal(t, data[100:], readBody(t, rr))
	assert.Equal(t, "device_d-9/song_s-1.mp3", rec.paths["s-1"])
	assert.True(t, store.Exists(context.Background(), "device_d-9/song_s-1.mp3"))
}

func TestServeOwnerMissingIsNotFound(t *testing.T) {
	store := newStore(t)
	srv := ownerServer(t, "other", nil)
	s := NewRangeServer(store, NewOwnerFetcher(srv.Client(), store), nil)

	target := Target{SongID: "s-1", DeviceID: "d-9", OwnerAddr: strings.TrimPrefix(srv.URL, "http://")}
	_, err := s.Serve(context.Background(), target, "")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.False(t, store.Exists(context.Background(), SongKey("d-9", "s-1")))
}

func TestServeOwnerUnreachableIsNotFound(t *testing.T) {
	store := newStore(t)
	srv := ownerServer(t, "s-1", nil)
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()
	s := NewRangeServer(store, NewOwnerFetcher(nil, store), nil)

	_, err := s.Serve(context.Background(), Target{SongID: "s-1", DeviceID: "d", OwnerAddr: addr}, "")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
