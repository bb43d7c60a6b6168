package audio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SeekBeat/core/apperr"
)

// fakeTranscoder records invocations and plays back canned output. When the
// last argument is a file path it writes the output there instead.
type fakeTranscoder struct {
	mu       sync.Mutex
	calls    [][]string
	output   []byte
	stderr   string
	exitErr  error
	startErr error
	block    bool // stdout stays open until ctx is cancelled
	procs    []*fakeProcess
}

func (f *fakeTranscoder) Command(args []string) string {
	return Describe("ffmpeg", args)
}

func (f *fakeTranscoder) Start(ctx context.Context, args []string) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args)
	if f.startErr != nil {
		return nil, f.startErr
	}

	p := &fakeProcess{desc: Describe("ffmpeg", args), stderr: f.stderr, exitErr: f.exitErr, waited: make(chan struct{})}
	out := args[len(args)-1]
	switch {
	case f.block:
		pr, pw := io.Pipe()
		go func() {
			pw.Write(f.output)
			<-ctx.Done()
			pw.CloseWithError(ctx.Err())
		}()
		p.stdout = pr
		p.exitErr = errors.New("signal: killed")
	case out == PipeOutput:
		p.stdout = bytes.NewReader(f.output)
	default:
		if err := os.WriteFile(out, f.output, 0644); err != nil {
			return nil, err
		}
		p.stdout = strings.NewReader("")
	}
	f.procs = append(f.procs, p)
	return p, nil
}

func (f *fakeTranscoder) lastArgs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeProcess struct {
	stdout  io.Reader
	stderr  string
	exitErr error
	desc    string
	once    sync.Once
	waited  chan struct{}
}

func (p *fakeProcess) Stdout() io.Reader { return p.stdout }
func (p *fakeProcess) Stderr() string    { return p.stderr }
func (p *fakeProcess) Describe() string  { return p.desc }
func (p *fakeProcess) Wait() error {
	p.once.Do(func() { close(p.waited) })
	return p.exitErr
}

type fakeProber struct {
	duration float64
	err      error
}

func (f fakeProber) Probe(ctx context.Context, input string) (float64, error) {
	return f.duration, f.err
}

func TestSinglePassStreamsOutput(t *testing.T) {
	payload := bytes.Repeat([]byte{0xFF, 0xFB}, 20000)
	tr := &fakeTranscoder{output: payload}
	p := NewPipeline(tr, nil, nil, PipelineConfig{TempDir: t.TempDir()})

	s, err := p.Stream(context.Background(), Source{Input: "/music/a.flac", Duration: 200}, EditSpec{Speed: f64(10)})
	require.NoError(t, err)

	var out bytes.Buffer
	n, err := s.WriteTo(&out)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, out.Bytes())
	args := tr.lastArgs()
	assert.Equal(t, "atempo=2", args[indexOf(args, "-af")+1], "speed clamped before use")
	assert.Equal(t, PipeOutput, args[len(args)-1])
}

func TestSinglePassFailureSurfacesOnTerminalRead(t *testing.T) {
	tr := &fakeTranscoder{output: []byte("abc"), stderr: "Invalid data found", exitErr: errors.New("exit status 1")}
	p := NewPipeline(tr, nil, nil, PipelineConfig{TempDir: t.TempDir()})

	s, err := p.Stream(context.Background(), Source{Input: "/music/broken.mp3"}, EditSpec{})
	require.NoError(t, err)
	defer s.Close()

	data, err := io.ReadAll(s)
	assert.Equal(t, "abc", string(data))
	require.Error(t, err)
	assert.Equal(t, apperr.TranscodeFailure, apperr.KindOf(err))

	var te *TranscodeError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Command, "/music/broken.mp3")
	assert.Equal(t, "Invalid data found", te.Stderr)
}

func TestStartFailureIsTranscodeError(t *testing.T) {
	tr := &fakeTranscoder{startErr: errors.New("exec: \"ffmpeg\": executable file not found")}
	p := NewPipeline(tr, nil, nil, PipelineConfig{TempDir: t.TempDir()})

	_, err := p.Stream(context.Background(), Source{Input: "/music/a.mp3"}, EditSpec{})

	var te *TranscodeError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Command, "ffmpeg")
}

func TestCloseStopsRunningProcess(t *testing.T) {
	tr := &fakeTranscoder{output: []byte("head"), block: true}
	p := NewPipeline(tr, nil, nil, PipelineConfig{TempDir: t.TempDir()})

	s, err := p.Stream(context.Background(), Source{Input: "https://example.com/a.webm"}, EditSpec{})
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	proc := tr.procs[0]
	select {
	case <-proc.waited:
	case <-time.After(2 * time.Second):
		t.Fatal("process was not reaped after Close")
	}
	assert.NoError(t, s.Close(), "second close is a no-op")
}

func TestProbeUsedForTrimWithUnknownDuration(t *testing.T) {
	tr := &fakeTranscoder{output: []byte("x")}
	p := NewPipeline(tr, fakeProber{duration: 60}, nil, PipelineConfig{TempDir: t.TempDir()})

	s, err := p.Stream(context.Background(), Source{Input: "/music/a.mp3"}, EditSpec{Trim: &Trim{Start: 10, End: 90}})
	require.NoError(t, err)
	s.Close()
	assert.Equal(t, -1, indexOf(tr.lastArgs(), "-ss"), "trim past probed duration is ignored")

	s, err = p.Stream(context.Background(), Source{Input: "/music/a.mp3"}, EditSpec{Trim: &Trim{Start: 10, End: 50}})
	require.NoError(t, err)
	s.Close()
	assert.NotEqual(t, -1, indexOf(tr.lastArgs(), "-ss"))
}

func TestTrimKeptWhenDurationCannotBeProbed(t *testing.T) {
	tr := &fakeTranscoder{output: []byte("x")}
	p := NewPipeline(tr, fakeProber{err: errors.New("ffprobe: invalid data")}, nil, PipelineConfig{TempDir: t.TempDir()})

	s, err := p.Stream(context.Background(), Source{Input: "/music/a.mp3"}, EditSpec{Trim: &Trim{Start: 10, End: 90}})
	require.NoError(t, err)
	s.Close()

	args := tr.lastArgs()
	require.NotEqual(t, -1, indexOf(args, "-ss"))
	assert.Equal(t, "10.000", args[indexOf(args, "-ss")+1])
}

func TestStartFailureNamesConfiguredBinary(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "custom-ffmpeg")
	p := NewPipeline(NewFFmpegTranscoder(bin), nil, nil, PipelineConfig{TempDir: t.TempDir()})

	_, err := p.Stream(context.Background(), Source{Input: "/music/a.mp3"}, EditSpec{})

	var te *TranscodeError
	require.ErrorAs(t, err, &te)
	assert.True(t, strings.HasPrefix(te.Command, bin+" "), te.Command)
	assert.Contains(t, te.Command, "/music/a.mp3")
}

func coverServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cover.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readTag(t *testing.T, data []byte) *id3v2.Tag {
	t.Helper()
	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	require.NoError(t, err)
	return tag
}

func TestTwoPassTagsAndCleansUp(t *testing.T) {
	srv := coverServer(t)
	tmp := t.TempDir()
	audio := bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 512)
	tr := &fakeTranscoder{output: audio}
	p := NewPipeline(tr, nil, NewTagger(srv.Client()), PipelineConfig{TempDir: tmp})

	edits := EditSpec{Metadata: &Metadata{
		Title:     "The High Seas' Anthem",
		Artist:    "Pirate Sea Shanty",
		Album:     "Sea Shanties Vol.1",
		Date:      "2025",
		Genre:     "Folk",
		URL:       "https://youtu.be/V_N1MavsGJE",
		Thumbnail: srv.URL + "/cover.png",
	}}
	s, err := p.Stream(context.Background(), Source{Input: "/music/a.flac"}, edits)
	require.NoError(t, err)

	args := tr.lastArgs()
	out := args[len(args)-1]
	assert.Equal(t, tmp, filepath.Dir(out))
	assert.True(t, strings.HasSuffix(out, ".mp3"))
	assert.FileExists(t, strings.TrimSuffix(out, ".mp3")+"_cover.jpg")

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	tag := readTag(t, data)
	assert.Equal(t, "The High Seas' Anthem", tag.Title())
	assert.Equal(t, "Pirate Sea Shanty", tag.Artist())
	assert.Equal(t, "Sea Shanties Vol.1", tag.Album())
	assert.Equal(t, "Folk", tag.Genre())

	pics := tag.GetFrames(tag.CommonID("Attached picture"))
	require.Len(t, pics, 1)
	pic := pics[0].(id3v2.PictureFrame)
	assert.Equal(t, "image/jpeg", pic.MimeType)
	_, format, err := image.Decode(bytes.NewReader(pic.Picture))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	udtf := tag.GetFrames(tag.CommonID("User defined text information frame"))
	require.NotEmpty(t, udtf)
	assert.Equal(t, "https://youtu.be/V_N1MavsGJE", udtf[0].(id3v2.UserDefinedTextFrame).Value)

	assert.True(t, bytes.HasSuffix(data, audio), "audio frames follow the tag")

	assert.Eventually(t, func() bool {
		entries, _ := os.ReadDir(tmp)
		return len(entries) == 0
	}, 2*time.Second, 10*time.Millisecond, "temp artifacts removed after close")
}

func TestTwoPassMissingCoverStillStreams(t *testing.T) {
	srv := coverServer(t)
	tmp := t.TempDir()
	tr := &fakeTranscoder{output: bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 64)}
	p := NewPipeline(tr, nil, NewTagger(srv.Client()), PipelineConfig{TempDir: tmp})

	s, err := p.Stream(context.Background(), Source{Input: "/music/a.flac"},
		EditSpec{Metadata: &Metadata{Title: "No Cover", Thumbnail: srv.URL + "/missing.jpg"}})
	require.NoError(t, err)

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	s.Close()

	tag := readTag(t, data)
	assert.Equal(t, "No Cover", tag.Title())
	assert.Empty(t, tag.GetFrames(tag.CommonID("Attached picture")))
}

func TestTwoPassTranscodeFailureCleansUp(t *testing.T) {
	tmp := t.TempDir()
	tr := &fakeTranscoder{output: []byte("partial"), exitErr: errors.New("exit status 1"), stderr: "boom"}
	p := NewPipeline(tr, nil, nil, PipelineConfig{TempDir: tmp})

	_, err := p.Stream(context.Background(), Source{Input: "/music/a.flac"}, EditSpec{Metadata: &Metadata{Title: "x"}})

	var te *TranscodeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "boom", te.Stderr)
	assert.Eventually(t, func() bool {
		entries, _ := os.ReadDir(tmp)
		return len(entries) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
