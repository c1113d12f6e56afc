package store

import (
	"time"
)

// Article is one scraped news item, ready for stashing.
// Constructed by a crawler after a successful fetch+parse+filter pass
// and treated as immutable from then on.
type Article struct {
	ID    int    `json:"id,omitempty"`
	URL   string `json:"url"`
	Title string `json:"title"`
	// Content is the extracted body text (not raw html).
	Content   string    `json:"content,omitempty"`
	Published time.Time `json:"published"`
	// DateGuessed is set when no date signal was found on the page and
	// Published was filled in with the fetch time instead.
	DateGuessed bool   `json:"date_guessed,omitempty"`
	Source      string `json:"source"`
	// Keywords holds the matched keywords, in the order they were
	// configured. Always non-empty for articles which made it through
	// the filter.
	Keywords  []string  `json:"keywords,omitempty"`
	Relevance int       `json:"relevance,omitempty"`
	Added     time.Time `json:"added,omitempty"`
}

// SourceStat is one row of a per-source/per-day count summary.
type SourceStat struct {
	Date   time.Time
	Source string
	Count  int
}
