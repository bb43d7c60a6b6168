package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lrstanley/go-ytdlp"
)

// Info is the subset of a yt-dlp info dict the service reads. Playlists
// (including ytsearchN: results) carry their videos in Entries.
type Info struct {
	Type       string      `json:"_type"`
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Duration   *float64    `json:"duration"`
	Uploader   string      `json:"uploader"`
	Thumbnail  string      `json:"thumbnail"`
	Thumbnails []Thumbnail `json:"thumbnails"`
	WebpageURL string      `json:"webpage_url"`
	UploadDate string      `json:"upload_date"`
	URL        string      `json:"url"` // direct media URL of the selected format
	Entries    []*Info     `json:"entries"`
}

// IsPlaylist reports whether the info wraps several entries.
func (i *Info) IsPlaylist() bool { return i.Type == "playlist" }

// Extractor is the scraping fallback. It needs no key but is slow and must
// not be hammered.
type Extractor interface {
	// Extract resolves a ytsearchN: expression to metadata.
	Extract(ctx context.Context, target string) (*Info, error)
	// ExtractLink resolves a single video link, ignoring any playlist the
	// link also names.
	ExtractLink(ctx context.Context, link string) (*Info, error)
	// StreamInfo resolves a single video and its best audio URL.
	StreamInfo(ctx context.Context, link string) (*Info, error)
}

// YtdlpExtractor shells out to yt-dlp through go-ytdlp.
type YtdlpExtractor struct {
	executable string
}

func NewYtdlpExtractor(executable string) *YtdlpExtractor {
	return &YtdlpExtractor{executable: executable}
}

func (y *YtdlpExtractor) command() *ytdlp.Command {
	cmd := ytdlp.New().
		DumpSingleJSON().
		SkipDownload().
		NoWarnings().
		IgnoreConfig()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	return cmd
}

func (y *YtdlpExtractor) Extract(ctx context.Context, target string) (*Info, error) {
	return y.run(ctx, y.command().Format("bestaudio/best"), target)
}

func (y *YtdlpExtractor) ExtractLink(ctx context.Context, link string) (*Info, error) {
	return y.run(ctx, y.command().Format("bestaudio/best").NoPlaylist(), link)
}

func (y *YtdlpExtractor) StreamInfo(ctx context.Context, link string) (*Info, error) {
	info, err := y.run(ctx, y.command().Format("bestaudio/best").NoPlaylist(), link)
	if err != nil {
		return nil, err
	}
	if info.URL == "" {
		return nil, fmt.Errorf("yt-dlp: no audio stream for %s", link)
	}
	return info, nil
}

func (y *YtdlpExtractor) run(ctx context.Context, cmd *ytdlp.Command, target string) (*Info, error) {
	res, err := cmd.Run(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp %s: %w", target, err)
	}
	var info Info
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return nil, fmt.Errorf("yt-dlp %s: decode output: %w", target, err)
	}
	return &info, nil
}

// SearchTarget builds the expression yt-dlp understands as "first n results".
func SearchTarget(term string, n int) string {
	return fmt.Sprintf("ytsearch%d:%s", n, term)
}
