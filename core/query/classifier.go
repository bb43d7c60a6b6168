// Package query normalizes raw user input and decides whether it is a direct
// video link, a free-text search term, or unusable.
package query

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLength is the longest accepted query, counted in code points.
const DefaultMaxLength = 500

const (
	ReasonEmpty   = "This is an empty query. Please provide a search term or YouTube link."
	ReasonTooLong = "This query is too long. Please shorten it."
)

// Kind of a classified query.
type Kind int

const (
	Invalid Kind = iota
	DirectLink
	SearchTerm
)

func (k Kind) String() string {
	switch k {
	case DirectLink:
		return "youtube"
	case SearchTerm:
		return "search"
	default:
		return "invalid"
	}
}

// Query is immutable once classified.
type Query struct {
	Raw     string
	Cleaned string
	Kind    Kind
	Reason  string // set only when Kind is Invalid
}

// Valid reports whether the query can be resolved.
func (q Query) Valid() bool { return q.Kind != Invalid }

var (
	// watch?v=, watch?feature=x&v=, youtu.be/, embed/ and shorts/ forms.
	linkPattern = regexp.MustCompile(
		`^(?:https?://)?(?:www\.|m\.)?` +
			`(?:youtube\.com/(?:watch\?(?:[^#\s]*&)?v=|embed/|shorts/)|youtu\.be/)` +
			`([A-Za-z0-9_-]{11})(?:[?&#/][^\s]*)?$`)
	mediaIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// Classifier is safe for concurrent use.
type Classifier struct {
	maxLen int
}

// NewClassifier returns a classifier rejecting queries longer than maxLen
// code points. A non-positive maxLen selects DefaultMaxLength.
func NewClassifier(maxLen int) *Classifier {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	return &Classifier{maxLen: maxLen}
}

var defaultClassifier = NewClassifier(DefaultMaxLength)

// Classify uses the default length limit.
func Classify(raw string) Query {
	return defaultClassifier.Classify(raw)
}

// Classify cleans raw and assigns it a kind.
func (c *Classifier) Classify(raw string) Query {
	cleaned := Clean(raw)
	q := Query{Raw: raw, Cleaned: cleaned}

	switch {
	case cleaned == "":
		q.Kind, q.Reason = Invalid, ReasonEmpty
	case utf8.RuneCountInString(cleaned) > c.maxLen:
		q.Kind, q.Reason = Invalid, ReasonTooLong
	case linkPattern.MatchString(cleaned):
		q.Kind = DirectLink
	default:
		q.Kind = SearchTerm
	}
	return q
}

// Clean applies NFKC, trims, and collapses whitespace runs to one space.
func Clean(raw string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(raw)), " ")
}

// VideoID extracts the 11 character id from a direct link.
func VideoID(link string) (string, bool) {
	m := linkPattern.FindStringSubmatch(Clean(link))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsMediaID reports whether s has the shape of a remote video id.
func IsMediaID(s string) bool {
	return mediaIDPattern.MatchString(s)
}

// WatchURL builds the canonical link for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
