package audio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"time"

	"github.com/bogem/id3v2/v2"
	_ "golang.org/x/image/webp"

	"SeekBeat/core/utils"
	"SeekBeat/logger"
)

const maxCoverBytes = 10 << 20

// Tagger merges metadata into an MP3's ID3 tag and embeds cover art.
type Tagger struct {
	client *http.Client
}

func NewTagger(client *http.Client) *Tagger {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Tagger{client: client}
}

// coverPaths are the temp files a cover download may leave behind.
func coverPaths(base string) (raw, jpg string) {
	return base + "_cover.src", base + "_cover.jpg"
}

// Apply rewrites the standard text frames present in md, adds the source link
// as a TXXX frame and, when md.Thumbnail is set, replaces the front cover.
// A cover that cannot be fetched or decoded is skipped with a warning.
func (t *Tagger) Apply(ctx context.Context, audioPath, artifactBase string, md Metadata) error {
	tag, err := id3v2.Open(audioPath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open tag %s: %w", audioPath, err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if md.Title != "" {
		tag.SetTitle(md.Title)
	}
	if md.Artist != "" {
		tag.SetArtist(md.Artist)
	}
	if md.Album != "" {
		tag.SetAlbum(md.Album)
	}
	if md.Date != "" {
		tag.SetYear(md.Date)
	}
	if md.Genre != "" {
		tag.SetGenre(md.Genre)
	}
	if md.URL != "" {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: "source_url",
			Value:       md.URL,
		})
	}

	if md.Thumbnail != "" {
		cover, err := t.fetchCover(ctx, md.Thumbnail, artifactBase)
		if err != nil {
			logger.Warn("cover art skipped",
				logger.String("url", md.Thumbnail),
				logger.ErrorField(err))
		} else {
			tag.DeleteFrames(tag.CommonID("Attached picture"))
			tag.AddAttachedPicture(id3v2.PictureFrame{
				Encoding:    id3v2.EncodingUTF8,
				MimeType:    "image/jpeg",
				PictureType: id3v2.PTFrontCover,
				Description: "Cover",
				Picture:     cover,
			})
		}
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tag %s: %w", audioPath, err)
	}
	return nil
}

// fetchCover downloads the image, decodes any registered format (jpeg, png,
// gif, webp) and re-encodes it as JPEG next to the audio artifact.
func (t *Tagger) fetchCover(ctx context.Context, url, artifactBase string) ([]byte, error) {
	rawPath, jpgPath := coverPaths(artifactBase)
	if err := utils.DownloadFile(ctx, t.client, url, rawPath, maxCoverBytes); err != nil {
		return nil, err
	}

	f, err := os.Open(rawPath)
	if err != nil {
		return nil, err
	}
	img, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode cover: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode %s cover: %w", format, err)
	}
	if err := os.WriteFile(jpgPath, buf.Bytes(), 0644); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
