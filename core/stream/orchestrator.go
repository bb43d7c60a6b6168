package stream

import (
	"context"
	"math"
	"time"

	"SeekBeat/core/apperr"
	"SeekBeat/core/audio"
	"SeekBeat/core/query"
	"SeekBeat/core/search"
	"SeekBeat/logger"
	"SeekBeat/storage"
)

// SourceKind tells where a stream identifier points.
type SourceKind int

const (
	// Remote is a video id resolved through the extractor.
	Remote SourceKind = iota
	// Local is a song registered by a LAN device.
	Local
)

func (k SourceKind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

// Source is a classified stream identifier.
type Source struct {
	Kind SourceKind
	ID   string
}

// ClassifySource treats anything shaped like a video id as remote.
func ClassifySource(id string) Source {
	if query.IsMediaID(id) {
		return Source{Kind: Remote, ID: id}
	}
	return Source{Kind: Local, ID: id}
}

// Song is what the registry knows about a local song.
type Song struct {
	ID        string
	DeviceID  string
	Title     string
	Artist    string
	Duration  int
	FilePath  string
	OwnerAddr string
}

// Registry looks up local songs. LookupSong fails with apperr.NotFound when
// the song is unknown or its device is no longer active.
type Registry interface {
	LookupSong(ctx context.Context, id string) (*Song, error)
	PathRecorder
}

// AccessGate validates the access code sent with local requests.
type AccessGate interface {
	Check(ctx context.Context, code string) error
}

// Transcoding is the part of audio.Pipeline the orchestrator needs.
type Transcoding interface {
	Stream(ctx context.Context, src audio.Source, edits audio.EditSpec) (*audio.Stream, error)
}

// presigner is implemented by stores that are not on local disk.
type presigner interface {
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Request is one stream call. Download marks a POST, which always yields
// audio bytes rather than metadata.
type Request struct {
	ID         string
	Download   bool
	Edits      audio.EditSpec
	Range      string
	AccessCode string
}

// ResponseKind selects which field of Response is set.
type ResponseKind int

const (
	MetadataResponse ResponseKind = iota
	RangedResponse
	TranscodedResponse
)

// Metadata describes a remote stream without fetching it.
type Metadata struct {
	StreamURL string `json:"stream_url"`
	Title     string `json:"title"`
	Duration  *int   `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	Source    string `json:"source"`
}

// Response carries exactly one of Metadata, Ranged or Audio.
type Response struct {
	Kind     ResponseKind
	Title    string
	Metadata *Metadata
	Ranged   *RangeResponse
	Audio    *audio.Stream
}

// Close releases whichever body the response holds.
func (r *Response) Close() error {
	switch {
	case r.Audio != nil:
		return r.Audio.Close()
	case r.Ranged != nil && r.Ranged.Body != nil:
		return r.Ranged.Body.Close()
	}
	return nil
}

// Orchestrator routes stream requests to metadata extraction, range
// serving or the transcode pipeline.
type Orchestrator struct {
	extractor search.Extractor
	registry  Registry
	gate      AccessGate
	ranges    *RangeServer
	pipeline  Transcoding
	store     storage.FileStore
}

func NewOrchestrator(extractor search.Extractor, registry Registry, gate AccessGate, ranges *RangeServer, pipeline Transcoding, store storage.FileStore) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		registry:  registry,
		gate:      gate,
		ranges:    ranges,
		pipeline:  pipeline,
		store:     store,
	}
}

// Handle serves one stream request.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Response, error) {
	if req.ID == "" {
		return nil, apperr.New(apperr.InvalidQuery, "Missing YouTube video URL.")
	}
	src := ClassifySource(req.ID)
	logger.Info("stream request",
		logger.String("id", req.ID),
		logger.String("source", src.Kind.String()),
		logger.Bool("download", req.Download),
		logger.Bool("edits", !req.Edits.IsZero()))

	if src.Kind == Remote {
		return o.remote(ctx, src, req)
	}
	return o.local(ctx, src, req)
}

func (o *Orchestrator) streamInfo(ctx context.Context, id string) (*search.Info, error) {
	info, err := o.extractor.StreamInfo(ctx, query.WatchURL(id))
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.TransientProvider, "request cancelled", err)
		}
		return nil, apperr.Wrap(apperr.ExtractionFailure, "Failed to extract stream URL", err)
	}
	return info, nil
}

func (o *Orchestrator) remote(ctx context.Context, src Source, req Request) (*Response, error) {
	info, err := o.streamInfo(ctx, src.ID)
	if err != nil {
		return nil, err
	}

	var duration float64
	if info.Duration != nil {
		duration = *info.Duration
	}

	if !req.Download {
		md := &Metadata{
			StreamURL: info.URL,
			Title:     info.Title,
			Thumbnail: info.Thumbnail,
			Source:    "youtube",
		}
		if info.Duration != nil {
			d := int(math.Round(duration))
			md.Duration = &d
		}
		return &Response{Kind: MetadataResponse, Title: info.Title, Metadata: md}, nil
	}

	// remote audio is fetched by the transcoder whether or not edits exist
	s, err := o.pipeline.Stream(ctx, audio.Source{Input: info.URL, Duration: duration, Title: info.Title}, req.Edits)
	if err != nil {
		return nil, err
	}
	return &Response{Kind: TranscodedResponse, Title: info.Title, Audio: s}, nil
}

func (o *Orchestrator) local(ctx context.Context, src Source, req Request) (*Response, error) {
	if o.gate != nil {
		if err := o.gate.Check(ctx, req.AccessCode); err != nil {
			return nil, err
		}
	}
	if o.registry == nil {
		return nil, apperr.New(apperr.NotFound, "Song not found")
	}
	song, err := o.registry.LookupSong(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	t := Target{Key: song.FilePath, SongID: song.ID, DeviceID: song.DeviceID, OwnerAddr: song.OwnerAddr}

	if req.Edits.IsZero() {
		rr, err := o.ranges.Serve(ctx, t, req.Range)
		if err != nil {
			return nil, err
		}
		return &Response{Kind: RangedResponse, Title: song.Title, Ranged: rr}, nil
	}

	key, err := o.ranges.Locate(ctx, t)
	if err != nil {
		return nil, err
	}
	input, err := o.transcodeInput(ctx, key)
	if err != nil {
		return nil, err
	}
	s, err := o.pipeline.Stream(ctx, audio.Source{Input: input, Duration: float64(song.Duration), Title: song.Title}, req.Edits)
	if err != nil {
		return nil, err
	}
	return &Response{Kind: TranscodedResponse, Title: song.Title, Audio: s}, nil
}

// transcodeInput gives the transcoder something it can open: a path for
// disk-backed stores, a short-lived URL otherwise.
func (o *Orchestrator) transcodeInput(ctx context.Context, key string) (string, error) {
	if p, ok := o.store.LocalPath(key); ok {
		return p, nil
	}
	if ps, ok := o.store.(presigner); ok {
		u, err := ps.PresignedURL(ctx, key, time.Hour)
		if err != nil {
			return "", apperr.Wrap(apperr.Internal, "presign song file", err)
		}
		return u, nil
	}
	return "", apperr.New(apperr.NotFound, "File not found")
}
