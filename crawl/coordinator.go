package crawl

import (
	"fmt"
	"sync"
	"time"

	"newstrawl/dedup"
	"newstrawl/progress"
	"newstrawl/relevance"
	"newstrawl/store"
)

// Config is the shared per-run crawl configuration.
type Config struct {
	StartDate time.Time
	EndDate   time.Time
	Keywords  []string
	// MaxPerSource caps how many ids each crawler checks.
	MaxPerSource int
	// Delay paces each crawler's requests.
	Delay time.Duration
	// FailureThreshold: 0 means DefaultFailureThreshold.
	FailureThreshold int
	// Parallel runs all crawlers concurrently; sequential mode exists
	// for environments where concurrent outbound requests are
	// undesirable.
	Parallel bool
	// Dedupe runs the merged set through the dedup engine.
	Dedupe bool
	// SourceTimeout bounds each crawler's wall time (0 = no limit).
	// A crawler over budget contributes whatever it collected so far.
	SourceTimeout time.Duration
}

// SourceResult is one crawler's contribution to a run.
type SourceResult struct {
	Name     string
	Stats    Stats
	Articles []*store.Article
	TimedOut bool
	// Err records a crawler-level fatal error. The run as a whole
	// carries on without this source.
	Err error
}

// Summary is the outcome of one coordinated run.
type Summary struct {
	PerSource []SourceResult
	// Articles is the merged (and, if enabled, deduplicated) set.
	Articles          []*store.Article
	DuplicatesRemoved int
	DuplicateClusters int
}

// Coordinator fans a crawl out over several sources, merges the
// results and deduplicates across the merge exactly once (never
// per-source).
type Coordinator struct {
	Cfg     Config
	Sources []ArticleSource
	Sink    progress.Sink
	// Scorer, if set, scores kept articles after dedup.
	Scorer relevance.Scorer
}

// chanSink forwards crawler events into the run's event channel.
type chanSink chan<- progress.Event

func (c chanSink) Append(ev progress.Event) {
	c <- ev
}

// Run executes the crawl. Best effort across available sources: a
// source that fails to discover, errors out or times over budget
// contributes an empty or partial list and a warning - Run itself
// never fails.
func (co *Coordinator) Run() *Summary {
	sink := co.Sink
	if sink == nil {
		sink = progress.NullSink{}
	}

	// all crawler events funnel through one channel, drained here, so
	// crawlers never contend on the sink itself
	events := make(chan progress.Event, 256)
	drained := make(chan struct{})
	go func() {
		for ev := range events {
			sink.Append(ev)
		}
		close(drained)
	}()

	results := make([]SourceResult, len(co.Sources))

	if co.Cfg.Parallel {
		var wg sync.WaitGroup
		for i, src := range co.Sources {
			wg.Add(1)
			go func(i int, src ArticleSource) {
				defer wg.Done()
				results[i] = co.runOne(src, chanSink(events))
			}(i, src)
		}
		wg.Wait()
	} else {
		for i, src := range co.Sources {
			results[i] = co.runOne(src, chanSink(events))
		}
	}

	close(events)
	<-drained

	// merge
	merged := []*store.Article{}
	for _, res := range results {
		merged = append(merged, res.Articles...)
	}

	summary := &Summary{PerSource: results, Articles: merged}
	if co.Cfg.Dedupe {
		dres := dedup.Dedupe(merged)
		summary.Articles = dres.Kept
		summary.DuplicatesRemoved = dres.Removed
		summary.DuplicateClusters = dres.Clusters
		for _, pair := range dres.Dropped {
			sink.Append(progress.Event{
				Message: fmt.Sprintf("dropped duplicate %s (kept %s)", pair.DroppedURL, pair.KeptURL),
				Level:   progress.Info,
			})
		}
	}

	if co.Scorer != nil {
		for _, art := range summary.Articles {
			score, err := co.Scorer.Score(art.Title, art.Content)
			if err != nil {
				sink.Append(progress.Event{
					Message: fmt.Sprintf("relevance scoring failed for %s: %s", art.URL, err),
					Level:   progress.Warning,
				})
				continue
			}
			art.Relevance = score
		}
	}

	for _, res := range results {
		line := fmt.Sprintf("%s: %d checked, %d scraped, %d failed",
			res.Name, res.Stats.Checked, res.Stats.Scraped, res.Stats.Failed)
		if res.TimedOut {
			line += " (timed out)"
		}
		if res.Err != nil {
			line += fmt.Sprintf(" (error: %s)", res.Err)
		}
		sink.Append(progress.Event{Message: line, Level: progress.Info, Aggregate: true})
	}
	sink.Append(progress.Event{
		Message: fmt.Sprintf("run complete: %d unique articles, %d duplicates removed",
			len(summary.Articles), summary.DuplicatesRemoved),
		Level:     progress.Success,
		Aggregate: true,
	})

	return summary
}

// runOne runs a single crawler, converting panics and timeouts into a
// degraded result rather than letting them abort sibling crawlers.
func (co *Coordinator) runOne(src ArticleSource, sink progress.Sink) (res SourceResult) {
	res.Name = src.Name()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("crawler panic: %v", r)
			res.Articles = nil
			sink.Append(progress.Event{
				Message:   fmt.Sprintf("crawler failed: %v", r),
				Level:     progress.Error,
				Source:    res.Name,
				Aggregate: true,
			})
		}
	}()

	quit := make(chan struct{})
	if co.Cfg.SourceTimeout > 0 {
		timer := time.AfterFunc(co.Cfg.SourceTimeout, func() { close(quit) })
		defer timer.Stop()
	}

	cr := &Crawler{
		Src:              src,
		StartDate:        co.Cfg.StartDate,
		EndDate:          co.Cfg.EndDate,
		Keywords:         co.Cfg.Keywords,
		MaxArticles:      co.Cfg.MaxPerSource,
		Delay:            co.Cfg.Delay,
		FailureThreshold: co.Cfg.FailureThreshold,
		Sink:             sink,
	}
	res.Articles = cr.Run(quit)
	res.Stats = cr.Stats()

	select {
	case <-quit:
		res.TimedOut = true
		sink.Append(progress.Event{
			Message:   fmt.Sprintf("over time budget, using %d partial results", len(res.Articles)),
			Level:     progress.Warning,
			Source:    res.Name,
			Aggregate: true,
		})
	default:
	}
	return res
}
