package search

import (
	"math"
	"strings"
	"time"

	"SeekBeat/core/query"
)

// Result is the canonical shape of one search hit, whichever provider
// produced it.
type Result struct {
	Title             string `json:"title"`
	Duration          *int   `json:"duration"`
	Uploader          string `json:"uploader"`
	Thumbnail         string `json:"thumbnail"`
	WebpageURL        string `json:"webpage_url"`
	UploadDate        string `json:"upload_date"`
	LargestThumbnail  string `json:"largest_thumbnail"`
	SmallestThumbnail string `json:"smallest_thumbnail"`
}

// Thumbnail as reported by either provider. Zero fields mean "not reported".
type Thumbnail struct {
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Filesize int64  `json:"filesize"`
}

func (t Thumbnail) area() int { return t.Width * t.Height }

// largestThumbnail picks the greatest width*height.
func largestThumbnail(thumbs []Thumbnail, fallback string) string {
	best, bestArea := "", -1
	for _, t := range thumbs {
		if t.URL == "" {
			continue
		}
		if a := t.area(); a > bestArea {
			best, bestArea = t.URL, a
		}
	}
	if best == "" {
		return fallback
	}
	return best
}

// smallestThumbnail prefers the smallest reported filesize and only compares
// areas when no thumbnail reports a size.
func smallestThumbnail(thumbs []Thumbnail, fallback string) string {
	bySize, minSize := "", int64(math.MaxInt64)
	byArea, minArea := "", math.MaxInt
	for _, t := range thumbs {
		if t.URL == "" {
			continue
		}
		if t.Filesize > 0 && t.Filesize < minSize {
			bySize, minSize = t.URL, t.Filesize
		}
		if a := t.area(); a < minArea {
			byArea, minArea = t.URL, a
		}
	}
	switch {
	case bySize != "":
		return bySize
	case byArea != "":
		return byArea
	default:
		return fallback
	}
}

// apiThumbnailOrder ranks the named sizes returned by the Data API.
var apiThumbnailOrder = []string{"default", "medium", "high", "standard", "maxres"}

func fromAPIItem(item apiSearchItem) Result {
	thumbs := make([]Thumbnail, 0, len(item.Snippet.Thumbnails))
	for _, name := range apiThumbnailOrder {
		if t, ok := item.Snippet.Thumbnails[name]; ok {
			thumbs = append(thumbs, t)
		}
	}
	primary := item.Snippet.Thumbnails["high"].URL
	if primary == "" && len(thumbs) > 0 {
		primary = thumbs[len(thumbs)-1].URL
	}

	return Result{
		Title:             item.Snippet.Title,
		Uploader:          item.Snippet.ChannelTitle,
		Thumbnail:         primary,
		WebpageURL:        query.WatchURL(item.ID.VideoID),
		UploadDate:        compactDate(item.Snippet.PublishedAt),
		LargestThumbnail:  largestThumbnail(thumbs, primary),
		SmallestThumbnail: smallestThumbnail(thumbs, primary),
	}
}

// fromEntry maps one extractor info dict. ok is false when the entry lacks a
// title or a link.
func fromEntry(e Info) (Result, bool) {
	if strings.TrimSpace(e.Title) == "" || e.WebpageURL == "" {
		return Result{}, false
	}
	r := Result{
		Title:             e.Title,
		Uploader:          e.Uploader,
		Thumbnail:         e.Thumbnail,
		WebpageURL:        e.WebpageURL,
		UploadDate:        e.UploadDate,
		LargestThumbnail:  largestThumbnail(e.Thumbnails, e.Thumbnail),
		SmallestThumbnail: smallestThumbnail(e.Thumbnails, e.Thumbnail),
	}
	if e.Duration != nil {
		d := int(math.Round(*e.Duration))
		r.Duration = &d
	}
	return r, true
}

// fromEntries keeps the usable entries inside [offset, offset+limit).
func fromEntries(entries []*Info, offset, limit int) []Result {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return []Result{}
	}
	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]Result, 0, end-offset)
	for _, e := range entries[offset:end] {
		if e == nil {
			continue
		}
		if r, ok := fromEntry(*e); ok {
			out = append(out, r)
		}
	}
	return out
}

// compactDate turns an RFC 3339 timestamp into YYYYMMDD, the form yt-dlp
// reports. Unparseable input is returned unchanged.
func compactDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.UTC().Format("20060102")
}
