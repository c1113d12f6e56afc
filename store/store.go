package store

import (
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Printf(format string, v ...interface{})
}

type nullLogger struct{}

func (l nullLogger) Printf(format string, v ...interface{}) {
}

// Store is the boundary the crawl pipeline hands its batches to.
// Stash must be idempotent on URL - the pipeline only dedupes within
// a single run, cross-run suppression is the store's job.
type Store interface {
	Stash(arts ...*Article) ([]int, error)
	WhichAreNew(urls []string) ([]string, error)
	Fetch(filt *Filter) ArtIter
	FetchCount(filt *Filter) (int, error)
	FetchSummary(filt *Filter) ([]SourceStat, error)
	Sources() ([]string, error)
	Close()
}

// ArtIter iterates over fetched articles, sql.Rows style.
type ArtIter interface {
	Next() bool
	Article() *Article
	Err() error
	Close() error
}

type Filter struct {
	// date ranges are [from,to)
	PubFrom   time.Time
	PubTo     time.Time
	AddedFrom time.Time
	AddedTo   time.Time
	// if empty, accept all sources (else only ones in list)
	Sources []string
	// exclude any sources in XSources
	XSources []string
	// Only return articles with ID > SinceID
	SinceID int
	// max number of articles wanted
	Count int
}

// Describe returns a concise description of the filter for logging.
func (filt *Filter) Describe() string {
	s := "[ "

	if !filt.PubFrom.IsZero() {
		s += fmt.Sprintf("pub %s.. ", filt.PubFrom.Format("2006-01-02"))
	}
	if !filt.PubTo.IsZero() {
		s += fmt.Sprintf("pub ..%s ", filt.PubTo.Format("2006-01-02"))
	}
	if !filt.AddedFrom.IsZero() {
		s += fmt.Sprintf("added %s.. ", filt.AddedFrom.Format("2006-01-02"))
	}
	if !filt.AddedTo.IsZero() {
		s += fmt.Sprintf("added ..%s ", filt.AddedTo.Format("2006-01-02"))
	}
	if len(filt.Sources) > 0 {
		s += strings.Join(filt.Sources, "|") + " "
	}
	if len(filt.XSources) > 0 {
		foo := make([]string, len(filt.XSources))
		for i, x := range filt.XSources {
			foo[i] = "!" + x
		}
		s += strings.Join(foo, "|") + " "
	}
	if filt.Count > 0 {
		s += fmt.Sprintf("cnt %d ", filt.Count)
	}
	if filt.SinceID > 0 {
		s += fmt.Sprintf("since %d ", filt.SinceID)
	}

	s += "]"
	return s
}
