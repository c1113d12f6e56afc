package main

// dump articles from a newstrawl database as csv

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"newstrawl/store"
)

var opts struct {
	driver   string
	connStr  string
	from, to string
	sources  srcArgs
	xsources srcArgs
	count    int
	sinceID  int
	noBody   bool
}

type srcArgs []string

func (s *srcArgs) String() string         { return fmt.Sprintf("%s", *s) }
func (s *srcArgs) Set(value string) error { *s = append(*s, value); return nil }

func init() {
	flag.StringVar(&opts.connStr, "db", "", "database connection string (or set NEWSTRAWL_DB)")
	flag.StringVar(&opts.driver, "driver", "", "database driver name (defaults to sqlite3 if NEWSTRAWL_DRIVER is unset)")
	flag.StringVar(&opts.from, "from", "", "only articles published on/after this date (YYYY-MM-DD)")
	flag.StringVar(&opts.to, "to", "", "only articles published before this date (YYYY-MM-DD)")
	flag.IntVar(&opts.count, "n", 0, "max number of articles (0=no limit)")
	flag.IntVar(&opts.sinceID, "since", 0, "only articles with id above this")
	flag.BoolVar(&opts.noBody, "nobody", false, "leave out the article text")
	flag.Var(&opts.sources, "src", "source name(s) to include")
	flag.Var(&opts.xsources, "xsrc", "source name(s) to exclude")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [outfile]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, `
Exports articles as csv (to stdout if no outfile given).
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	filt, err := buildFilter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(2)
	}

	out := os.Stdout
	if flag.NArg() > 0 {
		out, err = os.Create(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	db, err := store.NewWithEnv(opts.driver, opts.connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR opening db: %s\n", err)
		os.Exit(1)
	}
	defer db.Close()

	err = export(db, filt, out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func buildFilter() (*store.Filter, error) {
	filt := &store.Filter{
		Sources:  opts.sources,
		XSources: opts.xsources,
		SinceID:  opts.sinceID,
		Count:    opts.count,
	}

	if opts.from != "" {
		from, err := time.Parse("2006-01-02", opts.from)
		if err != nil {
			return nil, fmt.Errorf("bad from: %s", err)
		}
		filt.PubFrom = from
	}
	if opts.to != "" {
		to, err := time.Parse("2006-01-02", opts.to)
		if err != nil {
			return nil, fmt.Errorf("bad to: %s", err)
		}
		filt.PubTo = to
	}
	return filt, nil
}

func export(db store.Store, filt *store.Filter, out *os.File) error {
	w := csv.NewWriter(out)

	hdr := []string{"id", "url", "title", "published", "source", "keywords", "relevance"}
	if !opts.noBody {
		hdr = append(hdr, "content")
	}
	err := w.Write(hdr)
	if err != nil {
		return err
	}

	it := db.Fetch(filt)
	defer it.Close()
	n := 0
	for it.Next() {
		art := it.Article()
		row := []string{
			strconv.Itoa(art.ID),
			art.URL,
			art.Title,
			art.Published.Format("2006-01-02T15:04:05Z07:00"),
			art.Source,
			strings.Join(art.Keywords, " "),
			strconv.Itoa(art.Relevance),
		}
		if !opts.noBody {
			row = append(row, art.Content)
		}
		err = w.Write(row)
		if err != nil {
			return err
		}
		n++
	}
	if err := it.Err(); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "exported %d articles %s\n", n, filt.Describe())
	return nil
}
