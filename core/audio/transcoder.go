package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Process is a running transcoder.
type Process interface {
	Stdout() io.Reader
	// Wait blocks until the process exits. It must be called once stdout is
	// drained or abandoned.
	Wait() error
	// Stderr returns what the process has written to stderr so far.
	Stderr() string
	// Describe renders the command for diagnostics.
	Describe() string
}

// Transcoder starts processes. Cancelling ctx kills the process.
type Transcoder interface {
	Start(ctx context.Context, args []string) (Process, error)
	// Command renders the command line Start would run for args.
	Command(args []string) string
}

// Prober reports the duration of a media input in seconds.
type Prober interface {
	Probe(ctx context.Context, input string) (float64, error)
}

// FFmpegTranscoder runs the ffmpeg binary.
type FFmpegTranscoder struct {
	ffmpegPath string
}

// NewFFmpegTranscoder creates a transcoder for the given binary.
func NewFFmpegTranscoder(ffmpegPath string) *FFmpegTranscoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath}
}

// Describe renders a command line the way it would be typed.
func Describe(bin string, args []string) string {
	return bin + " " + strings.Join(args, " ")
}

func (t *FFmpegTranscoder) Command(args []string) string {
	return Describe(t.ffmpegPath, args)
}

func (t *FFmpegTranscoder) Start(ctx context.Context, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	// 进程被取消后最多等待管道关闭的时间
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := &tailBuffer{max: 16 << 10}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &ffmpegProcess{cmd: cmd, stdout: stdout, stderr: stderr, desc: t.Command(args)}, nil
}

type ffmpegProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr *tailBuffer
	desc   string
}

func (p *ffmpegProcess) Stdout() io.Reader { return p.stdout }
func (p *ffmpegProcess) Wait() error       { return p.cmd.Wait() }
func (p *ffmpegProcess) Stderr() string    { return p.stderr.String() }
func (p *ffmpegProcess) Describe() string  { return p.desc }

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe uses ffprobe, found next to ffmpeg, to read the duration of input.
func (t *FFmpegTranscoder) Probe(ctx context.Context, input string) (float64, error) {
	ffprobePath := filepath.Join(filepath.Dir(t.ffmpegPath), strings.Replace(filepath.Base(t.ffmpegPath), "ffmpeg", "ffprobe", 1))

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		input,
	}

	cmd := exec.CommandContext(ctx, ffprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w: %s", input, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbeOutput(out.Bytes())
}

func parseProbeOutput(raw []byte) (float64, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(raw, &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output")
	}
	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probeData.Format.Duration, err)
	}
	return duration, nil
}
