package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"newstrawl/crawl"
	"newstrawl/progress"
	"newstrawl/relevance"
	"newstrawl/store"
)

func main() {
	var configFlag = flag.String("s", "trawlers.cfg", "config file for sources")
	var verbosityFlag = flag.Int("v", 1, "verbosity of output (0=errors only 1=info 2=debug)")
	var listFlag = flag.Bool("list", false, "list configured sources and exit")
	var discoverFlag = flag.Bool("discover", false, "discover the latest article id for each source, print it, then exit")
	var dryRunFlag = flag.Bool("dry-run", false, "run the crawl but don't store anything")
	var databaseFlag = flag.String("database", "", `database connection string (or set $NEWSTRAWL_DB). eg:
sqlite3:  "newstrawl.db"
postgres: "user=news dbname=newstrawl host=localhost sslmode=disable"
`)
	var driverFlag = flag.String("driver", "", `database driver: sqlite3 or postgres (or set $NEWSTRAWL_DRIVER, default sqlite3)`)
	var archiveDirFlag = flag.String("a", "", "archive dir to dump .warc files into (unset = no archiving)")
	flag.Parse()

	err := run(*configFlag, *verbosityFlag, *listFlag, *discoverFlag, *dryRunFlag,
		*databaseFlag, *driverFlag, *archiveDirFlag, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func run(configFile string, verbosity int, list, discover, dryRun bool, database, driver, archiveDir string, picked []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	// which sources? commandline args trump the config's own list.
	names := picked
	if len(names) == 0 {
		names = cfg.Trawl.Sources
	}
	if len(names) == 0 {
		for name := range cfg.Source {
			names = append(names, name)
		}
	}

	srcs := make([]crawl.ArticleSource, 0, len(names))
	for _, name := range names {
		sc, got := cfg.Source[name]
		if !got {
			return fmt.Errorf("unknown source '%s'", name)
		}
		src, err := crawl.NewSource(sc.sourceDef(name), archiveDir)
		if err != nil {
			return err
		}
		srcs = append(srcs, src)
	}

	if list {
		for _, src := range srcs {
			fmt.Println(src.Name())
		}
		return nil
	}

	if discover {
		for _, src := range srcs {
			latest, err := src.DiscoverLatest()
			if err != nil {
				fmt.Fprintf(os.Stderr, "ERR %s: %s\n", src.Name(), err)
				continue
			}
			fmt.Printf("%s: %d (%s)\n", src.Name(), latest, src.ArticleURL(latest))
		}
		return nil
	}

	var sink progress.Sink = progress.NullSink{}
	if verbosity > 0 {
		sink = progress.LogSink{Out: log.New(os.Stderr, "", 0)}
	}

	var scorer relevance.Scorer
	if cfg.Trawl.RelevanceURL != "" {
		scorer = &relevance.Fallback{
			Primary:  relevance.NewClient(cfg.Trawl.RelevanceURL),
			Fallback: &relevance.KeywordDensity{Keywords: cfg.Trawl.Keywords},
		}
	}

	co := &crawl.Coordinator{
		Cfg:     cfg.crawlConfig(time.Now()),
		Sources: srcs,
		Sink:    sink,
		Scorer:  scorer,
	}
	summary := co.Run()

	if dryRun {
		for _, art := range summary.Articles {
			fmt.Printf("%s  %s  %s\n", art.Published.Format("2006-01-02"), art.Source, art.URL)
		}
		fmt.Fprintf(os.Stderr, "dry run: %d articles (not stored)\n", len(summary.Articles))
		return nil
	}

	db, err := store.NewWithEnv(driver, database)
	if err != nil {
		return err
	}
	defer db.Close()
	if verbosity > 1 {
		db.DebugLog = log.New(os.Stderr, "DBG store: ", 0)
	} else {
		db.DebugLog = log.New(ioutil.Discard, "", 0)
	}

	ids, err := db.Stash(summary.Articles...)
	if err != nil {
		return fmt.Errorf("stash failed: %s", err)
	}
	fmt.Fprintf(os.Stderr, "stored %d articles (%d duplicates removed)\n",
		len(ids), summary.DuplicatesRemoved)
	return nil
}
