// Package audio applies trim, speed, volume and tag edits to an input by
// driving ffmpeg, and exposes the result as a stream.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"SeekBeat/core/apperr"
	"SeekBeat/core/utils"
	"SeekBeat/logger"
)

// ChunkSize is the unit in which encoded audio is handed to the caller.
const ChunkSize = 8 << 10

// Source is what the pipeline decodes: a local path or a remote media URL.
type Source struct {
	Input    string
	Duration float64 // seconds, zero when unknown
	Title    string
}

// TranscodeError carries the attempted command for diagnostics.
type TranscodeError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *TranscodeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("transcode failed: %v: %s (command: %s)", e.Err, e.Stderr, e.Command)
	}
	return fmt.Sprintf("transcode failed: %v (command: %s)", e.Err, e.Command)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

func transcodeFailure(command, stderr string, err error) error {
	return apperr.Wrap(apperr.TranscodeFailure, "Audio transcoding failed",
		&TranscodeError{Command: command, Stderr: stderr, Err: err})
}

// PipelineConfig holds the read-only settings of a Pipeline.
type PipelineConfig struct {
	TempDir string
	Bitrate string
	Timeout time.Duration // bounds each transcoder process; zero means none
}

// Pipeline turns a Source and an EditSpec into MP3 bytes.
type Pipeline struct {
	transcoder Transcoder
	prober     Prober
	tagger     *Tagger
	cfg        PipelineConfig
}

// NewPipeline wires the pipeline. prober may be nil; it is only consulted
// when a trim is requested on a source of unknown duration.
func NewPipeline(transcoder Transcoder, prober Prober, tagger *Tagger, cfg PipelineConfig) *Pipeline {
	if tagger == nil {
		tagger = NewTagger(nil)
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Pipeline{transcoder: transcoder, prober: prober, tagger: tagger, cfg: cfg}
}

// Stream starts transcoding. The returned stream must be closed; closing it
// stops the process and removes temp artifacts in the background.
func (p *Pipeline) Stream(ctx context.Context, src Source, edits EditSpec) (*Stream, error) {
	duration := src.Duration
	if duration <= 0 && edits.Trim != nil && p.prober != nil {
		if d, err := p.prober.Probe(ctx, src.Input); err == nil {
			duration = d
		} else {
			logger.Debug("probe failed, trim checked without duration", logger.ErrorField(err))
		}
	}
	edits = edits.Normalize(duration)

	pctx, cancel := p.processContext(ctx)
	if edits.NeedsTagging() {
		return p.twoPass(ctx, pctx, cancel, src, edits)
	}
	return p.singlePass(pctx, cancel, src, edits)
}

func (p *Pipeline) processContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, p.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) singlePass(ctx context.Context, cancel context.CancelFunc, src Source, edits EditSpec) (*Stream, error) {
	args := buildArgs(src.Input, edits, PipeOutput, p.cfg.Bitrate)
	proc, err := p.transcoder.Start(ctx, args)
	if err != nil {
		cancel()
		return nil, transcodeFailure(p.transcoder.Command(args), "", err)
	}
	logger.Info("transcode started",
		logger.String("command", proc.Describe()),
		logger.Bool("tagged", false))

	return &Stream{
		r:      proc.Stdout(),
		proc:   proc,
		cancel: cancel,
	}, nil
}

// twoPass transcodes into a temp file, tags it, then streams the file.
func (p *Pipeline) twoPass(ctx, pctx context.Context, cancel context.CancelFunc, src Source, edits EditSpec) (*Stream, error) {
	if err := os.MkdirAll(p.cfg.TempDir, 0755); err != nil {
		cancel()
		return nil, apperr.Wrap(apperr.Internal, "Audio transcoding failed", err)
	}
	base := filepath.Join(p.cfg.TempDir, uuid.NewString())
	audioPath := base + ".mp3"
	rawCover, jpgCover := coverPaths(base)
	artifacts := []string{audioPath, rawCover, jpgCover}

	fail := func(err error) (*Stream, error) {
		cancel()
		scheduleCleanup(artifacts)
		return nil, err
	}

	args := buildArgs(src.Input, edits, audioPath, p.cfg.Bitrate)
	proc, err := p.transcoder.Start(pctx, args)
	if err != nil {
		return fail(transcodeFailure(p.transcoder.Command(args), "", err))
	}
	logger.Info("transcode started",
		logger.String("command", proc.Describe()),
		logger.Bool("tagged", true))

	_, copyErr := io.Copy(io.Discard, proc.Stdout())
	if err := proc.Wait(); err != nil {
		return fail(transcodeFailure(proc.Describe(), proc.Stderr(), err))
	}
	if copyErr != nil {
		return fail(transcodeFailure(proc.Describe(), proc.Stderr(), copyErr))
	}
	cancel()

	if err := p.tagger.Apply(ctx, audioPath, base, *edits.Metadata); err != nil {
		logger.Warn("tagging failed, streaming untagged audio",
			logger.String("path", audioPath),
			logger.ErrorField(err))
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return fail(transcodeFailure(proc.Describe(), "", err))
	}
	return &Stream{r: f, file: f, artifacts: artifacts, cancel: func() {}}, nil
}

// Stream is the finite, non-restartable output of one transcode.
type Stream struct {
	r         io.Reader
	proc      Process // nil once the file is complete
	file      *os.File
	cancel    context.CancelFunc
	artifacts []string

	mu       sync.Mutex
	waited   bool
	termErr  error // what the terminal read reported, repeated on later reads
	closed   bool
	closeErr error
}

// Read returns encoded audio. When the process exits with an error the
// terminal read reports a TranscodeError instead of io.EOF.
func (s *Stream) Read(b []byte) (int, error) {
	n, err := s.r.Read(b)
	if err == nil || s.proc == nil {
		return n, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waited {
		if s.termErr != nil {
			return n, s.termErr
		}
		return n, err
	}
	s.waited = true
	waitErr := s.proc.Wait()
	switch {
	case waitErr != nil:
		s.termErr = transcodeFailure(s.proc.Describe(), s.proc.Stderr(), waitErr)
	case !errors.Is(err, io.EOF):
		s.termErr = transcodeFailure(s.proc.Describe(), s.proc.Stderr(), err)
	default:
		s.termErr = io.EOF
	}
	return n, s.termErr
}

// WriteTo copies the stream to w in ChunkSize pieces, flushing after each
// one when w supports it.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, ChunkSize)
	var total int64
	for {
		n, err := s.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Close stops the process if it is still running and schedules removal of
// temp artifacts. It is safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true

	s.cancel()
	if s.proc != nil && !s.waited {
		s.waited = true
		proc := s.proc
		// Reap in the background; cancellation already killed it.
		go func() {
			if err := proc.Wait(); err != nil {
				logger.Debug("transcoder stopped", logger.String("command", proc.Describe()), logger.ErrorField(err))
			}
		}()
	}
	if s.file != nil {
		s.closeErr = s.file.Close()
	}
	scheduleCleanup(s.artifacts)
	return s.closeErr
}

// scheduleCleanup removes temp artifacts without blocking the response.
func scheduleCleanup(paths []string) {
	if len(paths) == 0 {
		return
	}
	go func() {
		if err := utils.RemoveFiles(paths...); err != nil {
			logger.Warn("temp cleanup failed", logger.Strings("paths", paths), logger.ErrorField(err))
		}
	}()
}
