package crawl

// Handle the special-case parsing some publishers need, keyed by
// source name, so the walk loop itself stays identical across sources.

import (
	"time"

	"golang.org/x/net/html"
)

// Quirk overrides parts of the generic page parsing for one publisher.
type Quirk struct {
	// Parse takes over the whole fetch+parse result for publishers
	// whose pages defeat the selector-driven path.
	Parse func(root *html.Node, rawHTML []byte, artURL string) (*ParsedPage, error)
	// ExtractDate digs a publication date out of the flattened body
	// text, for publishers which bury it there.
	ExtractDate func(bodyText string) (time.Time, bool)
}

var quirks = map[string]*Quirk{}

// RegisterQuirk installs a per-publisher override. Call from an init()
// alongside the quirk's code.
func RegisterQuirk(name string, q *Quirk) {
	quirks[name] = q
}

// GetQuirk returns the override for a source, or nil.
func GetQuirk(name string) *Quirk {
	return quirks[name]
}
