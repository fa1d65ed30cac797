// Package share builds the public link for a finished measurement.
package share

import (
	"net/url"
	"strings"
)

// DefaultPath is where the results backend serves a stored run.
const DefaultPath = "/results/"

// Formatter composes share URLs from an origin such as "https://example.com".
type Formatter struct {
	Origin string
	Path   string
}

// New creates a Formatter using DefaultPath.
func New(origin string) Formatter {
	return Formatter{Origin: origin, Path: DefaultPath}
}

// URL returns the share URL for testID. It reports false when there is no
// test id, in which case nothing should be shared.
func (f Formatter) URL(testID string) (string, bool) {
	if testID == "" {
		return "", false
	}
	path := f.Path
	if path == "" {
		path = DefaultPath
	}
	origin := strings.TrimSuffix(f.Origin, "/")
	return origin + path + "?id=" + url.QueryEscape(testID), true
}

// TestID extracts the id from a share URL's query string.
func TestID(shareURL string) (string, bool) {
	u, err := url.Parse(shareURL)
	if err != nil {
		return "", false
	}
	id := u.Query().Get("id")
	return id, id != ""
}
