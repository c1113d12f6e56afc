package main

import (
	"fmt"
	"time"

	"gopkg.in/gcfg.v1"

	"newstrawl/crawl"
)

// TrawlConf is the [trawl] section of the config file: the settings
// shared by every source in a run.
type TrawlConf struct {
	// DaysBack sets the crawl window: articles published between
	// now-daysback and now are kept.
	DaysBack int
	// Keywords to filter on (repeat the key for multiple).
	Keywords []string
	// Sources names the [source] sections to run (empty = all).
	Sources []string
	// MaxArticles caps how many ids each source checks per run.
	MaxArticles int
	// Delay between requests to the same source, in seconds.
	Delay int
	// Timeout bounds each source's wall time, in seconds (0 = none).
	Timeout int
	// FailThreshold: give up on a source after this many consecutive
	// failed fetches (0 = default).
	FailThreshold int
	Parallel      bool
	Dedupe        bool
	// RelevanceURL points at an external scoring service (optional).
	RelevanceURL string
}

// SourceConf is one [source "name"] section.
type SourceConf struct {
	// URL is the article url template, eg "https://example.com/news/%d"
	URL string
	// Index is the listing page used to find the newest article id.
	Index string
	// Latest selects article links on the index page.
	Latest string
	IDPat  string
	Title  string
	Body   string
	Date   string
	// DateFormat is a Go reference-time layout to try first.
	DateFormat string
	UserAgent  string
	CookieFile string
	// Bootstrap is a known-good recent id, used when index discovery
	// fails.
	Bootstrap int
}

type Config struct {
	Trawl  TrawlConf
	Source map[string]*SourceConf
}

func loadConfig(fileName string) (*Config, error) {
	cfg := &Config{}
	err := gcfg.ReadFileInto(cfg, fileName)
	if err != nil {
		return nil, err
	}
	if len(cfg.Source) == 0 {
		return nil, fmt.Errorf("%s: no sources configured", fileName)
	}
	// fill in the knobs most configs leave out
	if cfg.Trawl.DaysBack == 0 {
		cfg.Trawl.DaysBack = 7
	}
	if cfg.Trawl.MaxArticles == 0 {
		cfg.Trawl.MaxArticles = 100
	}
	return cfg, nil
}

func (sc *SourceConf) sourceDef(name string) crawl.SourceDef {
	return crawl.SourceDef{
		Name:        name,
		URLTemplate: sc.URL,
		IndexURL:    sc.Index,
		LatestSel:   sc.Latest,
		IDPat:       sc.IDPat,
		TitleSel:    sc.Title,
		BodySel:     sc.Body,
		DateSel:     sc.Date,
		DateFormat:  sc.DateFormat,
		UserAgent:   sc.UserAgent,
		CookieFile:  sc.CookieFile,
		BootstrapID: sc.Bootstrap,
	}
}

// crawlConfig translates the [trawl] section into a run configuration,
// anchored at now.
func (cfg *Config) crawlConfig(now time.Time) crawl.Config {
	return crawl.Config{
		StartDate:        now.AddDate(0, 0, -cfg.Trawl.DaysBack),
		EndDate:          now,
		Keywords:         cfg.Trawl.Keywords,
		MaxPerSource:     cfg.Trawl.MaxArticles,
		Delay:            time.Duration(cfg.Trawl.Delay) * time.Second,
		FailureThreshold: cfg.Trawl.FailThreshold,
		Parallel:         cfg.Trawl.Parallel,
		Dedupe:           cfg.Trawl.Dedupe,
		SourceTimeout:    time.Duration(cfg.Trawl.Timeout) * time.Second,
	}
}
