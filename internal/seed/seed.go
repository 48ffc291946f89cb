// Package seed describes the seed artifact attached to a race or
// qualifier timeline and resolves the player-facing link for it.
package seed

import (
	"net/url"
	"strings"
)

// PatcherURL is the web patcher used for raw patch files.
const PatcherURL = "https://alttprpatch.synack.live/patcher.html"

// Data is the seed descriptor carried on races and qualifier timelines.
// Any one populated field identifies a seed; stored as an opaque JSON
// blob on qualifier rows.
type Data struct {
	Permalink string   `json:"permalink,omitempty"`
	FileURL   string   `json:"file_url,omitempty"`
	Hash      []string `json:"seed_hash,omitempty"`
	Password  string   `json:"password,omitempty"`
}

// Present reports whether the descriptor identifies a seed at all.
func (d Data) Present() bool {
	return d.Permalink != "" || d.FileURL != "" || len(d.Hash) > 0
}

// PlayerURL resolves the link a player should open: raw patch files go
// through the web patcher, anything else uses the permalink directly.
func (d Data) PlayerURL() string {
	if d.FileURL != "" {
		return PatcherURL + "?patch=" + url.QueryEscape(d.FileURL)
	}
	return d.Permalink
}

// HashLine renders the hash icon names as a single display line, empty
// when the seed carries no hash.
func (d Data) HashLine() string {
	if len(d.Hash) == 0 {
		return ""
	}
	return strings.Join(d.Hash, " / ")
}
