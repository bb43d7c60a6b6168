package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"SeekBeat/core/apperr"
	"SeekBeat/logger"
	"SeekBeat/storage"
)

// Target identifies a stored song file. OwnerAddr is the host:port of the
// device that owns the song, used when the file is not present locally.
type Target struct {
	Key       string
	SongID    string
	DeviceID  string
	OwnerAddr string
}

// RangeResponse is a ready-to-write response for a stored file.
type RangeResponse struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// byteRange is an inclusive window into a file.
type byteRange struct {
	start, end int64
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

var errUnsatisfiable = errors.New("range not satisfiable")

// parseRange understands a single "bytes=start-end" or suffix "bytes=-n"
// window. ok is false when the header should be ignored and the whole file
// served.
func parseRange(header string, size int64) (r byteRange, ok bool, err error) {
	spec, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found || strings.Contains(spec, ",") {
		return byteRange{}, false, nil
	}
	startStr, endStr, found := strings.Cut(strings.TrimSpace(spec), "-")
	if !found {
		return byteRange{}, false, nil
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)

	if startStr == "" {
		n, perr := strconv.ParseInt(endStr, 10, 64)
		if perr != nil || n <= 0 {
			return byteRange{}, false, nil
		}
		if size == 0 {
			return byteRange{}, false, errUnsatisfiable
		}
		if n > size {
			n = size
		}
		return byteRange{start: size - n, end: size - 1}, true, nil
	}

	start, perr := strconv.ParseInt(startStr, 10, 64)
	if perr != nil || start < 0 {
		return byteRange{}, false, nil
	}
	end := size - 1
	if endStr != "" {
		e, perr := strconv.ParseInt(endStr, 10, 64)
		if perr != nil || e < start {
			return byteRange{}, false, nil
		}
		if e < end {
			end = e
		}
	}
	if start >= size {
		return byteRange{}, false, errUnsatisfiable
	}
	return byteRange{start: start, end: end}, true, nil
}

// PathRecorder persists where a fetched song ended up.
type PathRecorder interface {
	UpdateFilePath(ctx context.Context, songID, key string) error
}

// RangeServer serves stored songs with byte-range support.
type RangeServer struct {
	store    storage.FileStore
	owner    *OwnerFetcher
	recorder PathRecorder
}

// NewRangeServer builds a range server. owner and recorder may be nil, in
// which case missing files are simply not found.
func NewRangeServer(store storage.FileStore, owner *OwnerFetcher, recorder PathRecorder) *RangeServer {
	return &RangeServer{store: store, owner: owner, recorder: recorder}
}

// Locate makes sure the target exists in the store, fetching it from the
// owning device when needed, and returns its key.
func (s *RangeServer) Locate(ctx context.Context, t Target) (string, error) {
	if t.Key != "" && s.store.Exists(ctx, t.Key) {
		return t.Key, nil
	}
	if s.owner == nil || t.OwnerAddr == "" {
		return "", apperr.New(apperr.NotFound, "File not found")
	}

	key, err := s.owner.Fetch(ctx, t)
	if err != nil {
		return "", err
	}
	if s.recorder != nil {
		if err := s.recorder.UpdateFilePath(ctx, t.SongID, key); err != nil {
			logger.Warn("记录歌曲文件路径失败",
				logger.String("songId", t.SongID),
				logger.ErrorField(err))
		}
	}
	return key, nil
}

// Serve opens the target and answers rangeHeader. Without a usable header
// the whole file is returned with status 200.
func (s *RangeServer) Serve(ctx context.Context, t Target, rangeHeader string) (*RangeResponse, error) {
	key, err := s.Locate(ctx, t)
	if err != nil {
		return nil, err
	}
	obj, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, apperr.Wrap(apperr.NotFound, "File not found", err)
		}
		return nil, apperr.Wrap(apperr.Internal, "open song file", err)
	}

	size := obj.Size()
	h := http.Header{}
	h.Set("Content-Type", "audio/mpeg")
	h.Set("Accept-Ranges", "bytes")

	r, ranged, err := parseRange(rangeHeader, size)
	if err != nil {
		obj.Close()
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		return &RangeResponse{Status: http.StatusRequestedRangeNotSatisfiable, Header: h, Body: http.NoBody}, nil
	}
	if !ranged {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		return &RangeResponse{Status: http.StatusOK, Header: h, Body: obj}, nil
	}

	if _, err := obj.Seek(r.start, io.SeekStart); err != nil {
		obj.Close()
		return nil, apperr.Wrap(apperr.Internal, "seek song file", err)
	}
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, size))
	h.Set("Content-Length", strconv.FormatInt(r.length(), 10))
	return &RangeResponse{
		Status: http.StatusPartialContent,
		Header: h,
		Body:   limitedReadCloser{Reader: io.LimitReader(obj, r.length()), Closer: obj},
	}, nil
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}
