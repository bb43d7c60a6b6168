package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThumbnailSelection(t *testing.T) {
	thumbs := []Thumbnail{
		{URL: "medium", Width: 320, Height: 180, Filesize: 9000},
		{URL: "big", Width: 1280, Height: 720, Filesize: 60000},
		{URL: "small", Width: 120, Height: 90, Filesize: 3000},
	}
	assert.Equal(t, "big", largestThumbnail(thumbs, "fallback"))
	assert.Equal(t, "small", smallestThumbnail(thumbs, "fallback"))
}

func TestSmallestThumbnailPrefersFilesize(t *testing.T) {
	// The tiny-area thumbnail has no size; the sized ones win.
	thumbs := []Thumbnail{
		{URL: "no-size", Width: 10, Height: 10},
		{URL: "sized-large", Width: 640, Height: 480, Filesize: 50000},
		{URL: "sized-small", Width: 1280, Height: 720, Filesize: 20000},
	}
	assert.Equal(t, "sized-small", smallestThumbnail(thumbs, "fallback"))
}

func TestSmallestThumbnailFallsBackToArea(t *testing.T) {
	thumbs := []Thumbnail{
		{URL: "b", Width: 640, Height: 480},
		{URL: "a", Width: 120, Height: 90},
	}
	assert.Equal(t, "a", smallestThumbnail(thumbs, "fallback"))
}

func TestThumbnailSelectionEmptyList(t *testing.T) {
	assert.Equal(t, "default.jpg", largestThumbnail(nil, "default.jpg"))
	assert.Equal(t, "default.jpg", smallestThumbnail([]Thumbnail{}, "default.jpg"))
	assert.Equal(t, "default.jpg", smallestThumbnail([]Thumbnail{{URL: ""}}, "default.jpg"))
}

func TestFromEntriesFiltersAndSlices(t *testing.T) {
	entries := []*Info{
		video("aaaaaaaaaaa", "first"),
		{Title: "no link"},
		nil,
		{WebpageURL: "https://www.youtube.com/watch?v=ccccccccccc"},
		video("ddddddddddd", "fourth"),
		video("eeeeeeeeeee", "fifth"),
	}

	all := fromEntries(entries, 0, 0)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Title)
	require.NotNil(t, all[0].Duration)
	assert.Equal(t, 200, *all[0].Duration)

	window := fromEntries(entries, 4, 1)
	require.Len(t, window, 1)
	assert.Equal(t, "fourth", window[0].Title)

	assert.Empty(t, fromEntries(entries, 10, 5))
	for _, r := range all {
		assert.NotEmpty(t, r.Title)
		assert.NotEmpty(t, r.WebpageURL)
	}
}

func TestFromAPIItem(t *testing.T) {
	raw := `{
		"id": {"videoId": "dQw4w9WgXcQ"},
		"snippet": {
			"title": "Never Gonna Give You Up",
			"channelTitle": "Rick Astley",
			"publishedAt": "2009-10-25T06:57:33Z",
			"thumbnails": {
				"default": {"url": "d.jpg", "width": 120, "height": 90},
				"medium": {"url": "m.jpg", "width": 320, "height": 180},
				"high": {"url": "h.jpg", "width": 480, "height": 360}
			}
		}
	}`
	var item apiSearchItem
	require.NoError(t, json.Unmarshal([]byte(raw), &item))

	r := fromAPIItem(item)
	assert.Equal(t, "Never Gonna Give You Up", r.Title)
	assert.Equal(t, "Rick Astley", r.Uploader)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", r.WebpageURL)
	assert.Equal(t, "20091025", r.UploadDate)
	assert.Equal(t, "h.jpg", r.Thumbnail)
	assert.Equal(t, "h.jpg", r.LargestThumbnail)
	assert.Equal(t, "d.jpg", r.SmallestThumbnail)
	assert.Nil(t, r.Duration)
}

func TestResultJSONShape(t *testing.T) {
	d := 213
	b, err := json.Marshal(Result{Title: "t", Duration: &d, WebpageURL: "u"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, key := range []string{"title", "duration", "uploader", "thumbnail", "webpage_url", "upload_date", "largest_thumbnail", "smallest_thumbnail"} {
		assert.Contains(t, m, key)
	}
}

func TestCompactDate(t *testing.T) {
	assert.Equal(t, "20240102", compactDate("2024-01-02T10:00:00Z"))
	assert.Equal(t, "20240101", compactDate("20240101"))
	assert.Equal(t, "", compactDate(""))
}
