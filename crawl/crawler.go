package crawl

import (
	"fmt"
	"strings"
	"time"

	"newstrawl/progress"
	"newstrawl/store"
)

// DefaultFailureThreshold is how many consecutive fetch/parse failures
// a crawler rides out before giving up on the source for this run.
const DefaultFailureThreshold = 5

// Stats counts one crawler's run.
type Stats struct {
	Checked  int
	Scraped  int
	Filtered int
	Failed   int
}

// Crawler walks one publisher's article-id space backward from the
// newest id, fetching, filtering and collecting matches. Each crawler
// owns its cursor and counters exclusively - the progress sink is the
// only thing shared with the rest of the run.
type Crawler struct {
	Src ArticleSource
	// date window [StartDate, EndDate]. Walking past StartDate is
	// terminal - ids are assumed time-ordered, so everything further
	// back is older still.
	StartDate time.Time
	EndDate   time.Time
	// articles must match at least one keyword (case-insensitive
	// substring over title+body)
	Keywords    []string
	MaxArticles int
	// Delay paces requests between fetches.
	Delay time.Duration
	// FailureThreshold overrides DefaultFailureThreshold when >0.
	FailureThreshold int
	Sink             progress.Sink

	// Now is a clock hook for the no-date-signal fallback.
	Now func() time.Time

	stats Stats
}

type verdict int

const (
	vScraped verdict = iota
	vFiltered
	vBoundary
	vFailed
)

// Run performs one backward walk. It always returns whatever was
// collected - discovery failure, error storms and timeouts degrade to
// a shorter (possibly empty) result with a warning trail, never an
// error to the caller. Closing quit stops the walk at the next
// opportunity.
func (cr *Crawler) Run(quit <-chan struct{}) []*store.Article {
	cr.stats = Stats{}
	name := cr.Src.Name()
	sink := cr.Sink
	if sink == nil {
		sink = progress.NullSink{}
	}
	now := cr.Now
	if now == nil {
		now = time.Now
	}
	threshold := cr.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}

	latest, err := cr.Src.DiscoverLatest()
	if err != nil {
		sink.Append(progress.Event{
			Message:   fmt.Sprintf("discovery failed: %s", err),
			Level:     progress.Warning,
			Source:    name,
			Aggregate: true,
		})
		return nil
	}
	sink.Append(progress.Event{
		Message:   fmt.Sprintf("starting backward walk at id %d", latest),
		Level:     progress.Info,
		Source:    name,
		Aggregate: true,
	})

	arts := []*store.Article{}
	id := latest
	consecutiveFails := 0
	reason := "max articles reached"

walk:
	for cr.stats.Checked < cr.MaxArticles {
		select {
		case <-quit:
			reason = "stopped early"
			break walk
		default:
		}

		cr.stats.Checked++
		switch cr.checkOne(id, sink, now, &arts) {
		case vBoundary:
			reason = "date boundary reached"
			break walk
		case vFailed:
			consecutiveFails++
			if consecutiveFails > threshold {
				reason = fmt.Sprintf("too many consecutive failures (%d)", consecutiveFails)
				break walk
			}
		default:
			consecutiveFails = 0
		}

		// cursor only ever decreases
		id--

		if cr.stats.Checked < cr.MaxArticles && !cr.pause(quit) {
			reason = "stopped early"
			break walk
		}
	}

	sink.Append(progress.Event{
		Message: fmt.Sprintf("finished (%s): %d checked, %d scraped, %d filtered, %d failed",
			reason, cr.stats.Checked, cr.stats.Scraped, cr.stats.Filtered, cr.stats.Failed),
		Level:     progress.Info,
		Source:    name,
		Aggregate: true,
	})
	return arts
}

// checkOne fetches and judges a single article id.
func (cr *Crawler) checkOne(id int, sink progress.Sink, now func() time.Time, arts *[]*store.Article) verdict {
	name := cr.Src.Name()

	page, err := cr.Src.FetchParse(id)
	if err != nil {
		cr.stats.Failed++
		sink.Append(progress.Event{
			Message: fmt.Sprintf("skip %s: %s", cr.Src.ArticleURL(id), err),
			Level:   progress.Warning,
			Source:  name,
		})
		return vFailed
	}

	published := page.Published
	if page.DateGuessed {
		published = now()
		sink.Append(progress.Event{
			Message: fmt.Sprintf("no date signal on %s, assuming %s", page.URL, published.Format("2006-01-02")),
			Level:   progress.Warning,
			Source:  name,
		})
	}

	if !cr.StartDate.IsZero() && published.Before(cr.StartDate) {
		// older than the window. ids are time-ordered, so stop dead -
		// everything further back is older still.
		sink.Append(progress.Event{
			Message: fmt.Sprintf("hit %s article (%s), stopping", published.Format("2006-01-02"), page.URL),
			Level:   progress.Progress,
			Source:  name,
		})
		return vBoundary
	}
	if !cr.EndDate.IsZero() && published.After(cr.EndDate) {
		cr.stats.Filtered++
		sink.Append(progress.Event{
			Message: fmt.Sprintf("too new: %s (%s)", page.URL, published.Format("2006-01-02")),
			Level:   progress.Filtered,
			Source:  name,
		})
		return vFiltered
	}

	matched := MatchKeywords(cr.Keywords, page.Title, page.Body)
	if len(matched) == 0 {
		cr.stats.Filtered++
		sink.Append(progress.Event{
			Message: fmt.Sprintf("no keyword match: %s", page.Title),
			Level:   progress.Filtered,
			Source:  name,
		})
		return vFiltered
	}

	art := &store.Article{
		URL:         page.URL,
		Title:       page.Title,
		Content:     page.Body,
		Published:   published,
		DateGuessed: page.DateGuessed,
		Source:      name,
		Keywords:    matched,
	}
	*arts = append(*arts, art)
	cr.stats.Scraped++
	sink.Append(progress.Event{
		Message:   fmt.Sprintf("scraped %q (%s)", page.Title, strings.Join(matched, ",")),
		Level:     progress.Success,
		Source:    name,
		Aggregate: true,
	})
	return vScraped
}

// pause sleeps the pacing delay. Returns false if quit was requested.
func (cr *Crawler) pause(quit <-chan struct{}) bool {
	if cr.Delay <= 0 {
		select {
		case <-quit:
			return false
		default:
			return true
		}
	}
	select {
	case <-quit:
		return false
	case <-time.After(cr.Delay):
		return true
	}
}

// Stats returns the counters from the last Run.
func (cr *Crawler) Stats() Stats {
	return cr.stats
}

// MatchKeywords returns the keywords appearing in title or body
// (case-insensitive substring match), in configured order.
func MatchKeywords(keywords []string, title, body string) []string {
	hay := strings.ToLower(title) + " " + strings.ToLower(body)
	var out []string
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if strings.Contains(hay, k) {
			out = append(out, kw)
		}
	}
	return out
}
