package audio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Factor bounds. Values outside are clamped, never rejected.
const (
	MinSpeed  = 0.5
	MaxSpeed  = 2.0
	MinVolume = 0.5
	MaxVolume = 5.0
)

// Trim selects [Start, End] in seconds of the source.
type Trim struct {
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// Metadata to write into the ID3 tag. URL is the source link, Thumbnail the
// cover art to fetch and embed.
type Metadata struct {
	Title     string `json:"title,omitempty"`
	Artist    string `json:"artist,omitempty"`
	Album     string `json:"album,omitempty"`
	Date      string `json:"date,omitempty"`
	Genre     string `json:"genre,omitempty"`
	URL       string `json:"url,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

func (m *Metadata) empty() bool {
	return m == nil || *m == Metadata{}
}

// EditSpec describes the edits requested for one stream.
type EditSpec struct {
	Trim     *Trim     `json:"trim,omitempty"`
	Speed    *float64  `json:"speed,omitempty"`
	Volume   *float64  `json:"volume,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// IsZero reports whether no edit was requested.
func (e EditSpec) IsZero() bool {
	return e.Trim == nil && e.Speed == nil && e.Volume == nil && e.Metadata.empty()
}

// NeedsTagging selects the two-pass path.
func (e EditSpec) NeedsTagging() bool {
	return !e.Metadata.empty()
}

// Normalize clamps factors and drops a trim that does not satisfy
// 0 <= start <= end <= duration. A non-positive duration means unknown and
// only the lower bounds are checked.
func (e EditSpec) Normalize(duration float64) EditSpec {
	out := e
	if e.Speed != nil {
		s := clamp(*e.Speed, MinSpeed, MaxSpeed, 1)
		out.Speed = &s
	}
	if e.Volume != nil {
		v := clamp(*e.Volume, MinVolume, MaxVolume, 1)
		out.Volume = &v
	}
	if e.Trim != nil && !e.Trim.valid(duration) {
		out.Trim = nil
	}
	if e.Metadata.empty() {
		out.Metadata = nil
	}
	return out
}

func (t *Trim) valid(duration float64) bool {
	if math.IsNaN(t.Start) || math.IsNaN(t.End) || t.Start < 0 || t.Start > t.End {
		return false
	}
	return duration <= 0 || t.End <= duration
}

func clamp(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return math.Min(math.Max(v, lo), hi)
}

// ParseEdits accepts the edits value either as a JSON object or as a JSON
// string holding an object. Empty input, null and "" yield a zero spec.
func ParseEdits(raw json.RawMessage) (EditSpec, error) {
	var spec EditSpec
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return spec, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return spec, fmt.Errorf("edits: %w", err)
		}
		if inner == "" {
			return spec, nil
		}
		raw = json.RawMessage(inner)
	}
	if err := json.Unmarshal(raw, &spec); err != nil {
		return spec, fmt.Errorf("edits: %w", err)
	}
	return spec, nil
}
