package crawl

import (
	"fmt"
	"testing"
	"time"

	"newstrawl/progress"
)

// fakeSource scripts a publisher for walk-loop tests - no network.
type fakeSource struct {
	name        string
	latest      int
	discoverErr error
	pages       map[int]*ParsedPage
	fetchErr    map[int]error
	fetchDelay  time.Duration
	visited     []int
	panicOn     int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) DiscoverLatest() (int, error) {
	if f.discoverErr != nil {
		return 0, f.discoverErr
	}
	return f.latest, nil
}

func (f *fakeSource) ArticleURL(id int) string {
	return fmt.Sprintf("http://%s.example.com/news/%d", f.name, id)
}

func (f *fakeSource) FetchParse(id int) (*ParsedPage, error) {
	f.visited = append(f.visited, id)
	if f.fetchDelay > 0 {
		time.Sleep(f.fetchDelay)
	}
	if f.panicOn != 0 && id == f.panicOn {
		panic("scripted crawler blowup")
	}
	if err, got := f.fetchErr[id]; got {
		return nil, err
	}
	page, got := f.pages[id]
	if !got {
		return nil, fmt.Errorf("HTTP error: 404 Not Found (%s)", f.ArticleURL(id))
	}
	return page, nil
}

func page(src *fakeSource, id int, title, body, published string) {
	p := &ParsedPage{
		URL:   src.ArticleURL(id),
		Title: title,
		Body:  body,
	}
	if published == "" {
		p.DateGuessed = true
	} else {
		t, err := time.Parse("2006-01-02", published)
		if err != nil {
			panic(err)
		}
		p.Published = t
	}
	if src.pages == nil {
		src.pages = map[int]*ParsedPage{}
	}
	src.pages[id] = p
}

func window(from, to string) (time.Time, time.Time) {
	f, err := time.Parse("2006-01-02", from)
	if err != nil {
		panic(err)
	}
	t, err := time.Parse("2006-01-02", to)
	if err != nil {
		panic(err)
	}
	return f, t
}

func TestBackwardMonotonic(t *testing.T) {
	src := &fakeSource{name: "alpha", latest: 100}
	for id := 96; id <= 100; id++ {
		page(src, id, fmt.Sprintf("bitcoin news %d", id), "body text about bitcoin", "2024-03-05")
	}
	start, end := window("2024-03-01", "2024-03-10")

	cr := &Crawler{
		Src: src, StartDate: start, EndDate: end,
		Keywords: []string{"bitcoin"}, MaxArticles: 5,
	}
	arts := cr.Run(make(chan struct{}))

	if len(arts) != 5 {
		t.Fatalf("got %d articles, expected 5", len(arts))
	}
	for i := 1; i < len(src.visited); i++ {
		if src.visited[i] >= src.visited[i-1] {
			t.Fatalf("ids not strictly decreasing: %v", src.visited)
		}
	}
	if src.visited[0] != 100 || src.visited[len(src.visited)-1] != 96 {
		t.Errorf("unexpected walk: %v", src.visited)
	}
}

// the date boundary is terminal - once one article predates the
// window, no further ids may be fetched.
func TestDateBoundaryStops(t *testing.T) {
	src := &fakeSource{name: "alpha", latest: 100}
	page(src, 100, "bitcoin in window", "bitcoin body", "2024-03-05")
	page(src, 99, "bitcoin too old", "bitcoin body", "2024-02-01")
	page(src, 98, "bitcoin would match", "bitcoin body", "2024-03-04")
	start, end := window("2024-03-01", "2024-03-10")

	cr := &Crawler{
		Src: src, StartDate: start, EndDate: end,
		Keywords: []string{"bitcoin"}, MaxArticles: 50,
	}
	arts := cr.Run(make(chan struct{}))

	if len(arts) != 1 {
		t.Fatalf("got %d articles, expected 1", len(arts))
	}
	for _, id := range src.visited {
		if id <= 98 {
			t.Errorf("fetched id %d after crossing the boundary", id)
		}
	}
	if st := cr.Stats(); st.Checked != 2 {
		t.Errorf("checked %d, expected 2", st.Checked)
	}
}

func TestKeywordPrecondition(t *testing.T) {
	src := &fakeSource{name: "alpha", latest: 100}
	page(src, 100, "bitcoin exchange hacked", "attackers took bitcoin", "2024-03-05")
	page(src, 99, "local sports roundup", "the match ended nil-nil", "2024-03-05")
	start, end := window("2024-03-01", "2024-03-10")

	sink := progress.NewMemSink(0)
	cr := &Crawler{
		Src: src, StartDate: start, EndDate: end,
		Keywords: []string{"bitcoin", "hack"}, MaxArticles: 2,
		Sink: sink,
	}
	arts := cr.Run(make(chan struct{}))

	if len(arts) != 1 {
		t.Fatalf("got %d articles, expected 1", len(arts))
	}
	for _, art := range arts {
		if len(art.Keywords) == 0 {
			t.Errorf("article %s has no matched keywords", art.URL)
		}
	}
	// ordered as configured
	if arts[0].Keywords[0] != "bitcoin" || arts[0].Keywords[1] != "hack" {
		t.Errorf("keyword order wrong: %v", arts[0].Keywords)
	}
	// the filtered item must stay out of the aggregate view
	for _, ev := range sink.AggregateEvents() {
		if ev.Level == progress.Filtered {
			t.Errorf("filtered event leaked into aggregate view: %+v", ev)
		}
	}
}

// five valid matching articles, cap of five: checked 5, scraped 5,
// nothing filtered.
func TestCleanRunCounters(t *testing.T) {
	src := &fakeSource{name: "alpha", latest: 20}
	for id := 16; id <= 20; id++ {
		page(src, id, fmt.Sprintf("bitcoin item %d", id), "bitcoin all the way down", "2024-03-05")
	}
	start, end := window("2024-03-01", "2024-03-10")

	cr := &Crawler{
		Src: src, StartDate: start, EndDate: end,
		Keywords: []string{"bitcoin"}, MaxArticles: 5,
	}
	cr.Run(make(chan struct{}))

	st := cr.Stats()
	if st.Checked != 5 || st.Scraped != 5 || st.Filtered != 0 {
		t.Errorf("got checked=%d scraped=%d filtered=%d, expected 5/5/0",
			st.Checked, st.Scraped, st.Filtered)
	}
}

// six consecutive fetch failures with threshold 5: the crawl ends
// quietly after the sixth, nothing scraped, no error to the caller.
func TestFailureThreshold(t *testing.T) {
	src := &fakeSource{name: "alpha", latest: 100, fetchErr: map[int]error{}}
	for id := 80; id <= 100; id++ {
		src.fetchErr[id] = fmt.Errorf("HTTP error: 500 Internal Server Error")
	}

	cr := &Crawler{
		Src: src, Keywords: []string{"bitcoin"}, MaxArticles: 50,
		FailureThreshold: 5,
	}
	arts := cr.Run(make(chan struct{}))

	if len(arts) != 0 {
		t.Fatalf("got %d articles, expected 0", len(arts))
	}
	st := cr.Stats()
	if st.Scraped != 0 {
		t.Errorf("scraped %d, expected 0", st.Scraped)
	}
	if len(src.visited) != 6 {
		t.Errorf("visited %d ids, expected 6 (terminate after the sixth failure)", len(src.visited))
	}
}

// a failure mid-run resets on the next success rather than
// accumulating across the whole crawl
func TestFailureCounterResets(t *testing.T) {
	src := &fakeSource{name: "alpha", latest: 100, fetchErr: map[int]error{}}
	for id := 90; id <= 100; id++ {
		if id%2 == 0 {
			src.fetchErr[id] = fmt.Errorf("HTTP error: 503")
		} else {
			page(src, id, "bitcoin piece", "bitcoin body", "2024-03-05")
		}
	}
	start, end := window("2024-03-01", "2024-03-10")

	cr := &Crawler{
		Src: src, StartDate: start, EndDate: end,
		Keywords: []string{"bitcoin"}, MaxArticles: 10, FailureThreshold: 2,
	}
	arts := cr.Run(make(chan struct{}))

	if len(arts) != 5 {
		t.Errorf("got %d articles, expected 5 (alternating failures shouldn't kill the run)", len(arts))
	}
}

func TestTooNewSkipped(t *testing.T) {
	src := &fakeSource{name: "alpha", latest: 100}
	page(src, 100, "bitcoin from the future", "bitcoin body", "2024-03-20")
	page(src, 99, "bitcoin in window", "bitcoin body", "2024-03-05")
	start, end := window("2024-03-01", "2024-03-10")

	cr := &Crawler{
		Src: src, StartDate: start, EndDate: end,
		Keywords: []string{"bitcoin"}, MaxArticles: 2,
	}
	arts := cr.Run(make(chan struct{}))

	if len(arts) != 1 || arts[0].URL != src.ArticleURL(99) {
		t.Fatalf("expected only the in-window article, got %d", len(arts))
	}
	if st := cr.Stats(); st.Filtered != 1 {
		t.Errorf("filtered %d, expected 1", st.Filtered)
	}
}

// failed discovery degrades to an empty result and a warning, never an
// error.
func TestDiscoveryFailSoft(t *testing.T) {
	src := &fakeSource{name: "alpha", discoverErr: fmt.Errorf("index page gone")}
	sink := progress.NewMemSink(0)

	cr := &Crawler{Src: src, Keywords: []string{"bitcoin"}, MaxArticles: 5, Sink: sink}
	arts := cr.Run(make(chan struct{}))

	if len(arts) != 0 {
		t.Fatalf("got %d articles, expected 0", len(arts))
	}
	warned := false
	for _, ev := range sink.SourceEvents("alpha") {
		if ev.Level == progress.Warning {
			warned = true
		}
	}
	if !warned {
		t.Errorf("no warning event for failed discovery")
	}
}

// a page with no date signal gets the clock time and a flag, and still
// flows through the window checks.
func TestDateFallback(t *testing.T) {
	src := &fakeSource{name: "alpha", latest: 100}
	page(src, 100, "undated bitcoin piece", "bitcoin body, no date anywhere", "")
	start, end := window("2024-03-01", "2024-03-10")

	fixed, _ := time.Parse("2006-01-02", "2024-03-05")
	cr := &Crawler{
		Src: src, StartDate: start, EndDate: end,
		Keywords: []string{"bitcoin"}, MaxArticles: 1,
		Now: func() time.Time { return fixed },
	}
	arts := cr.Run(make(chan struct{}))

	if len(arts) != 1 {
		t.Fatalf("got %d articles, expected 1", len(arts))
	}
	if !arts[0].DateGuessed {
		t.Errorf("DateGuessed not set")
	}
	if !arts[0].Published.Equal(fixed) {
		t.Errorf("expected fallback date %s, got %s", fixed, arts[0].Published)
	}
}

func TestQuitStopsWalk(t *testing.T) {
	src := &fakeSource{name: "alpha", latest: 1000}
	for id := 900; id <= 1000; id++ {
		page(src, id, "bitcoin again", "bitcoin body", "2024-03-05")
	}
	start, end := window("2024-03-01", "2024-03-10")

	quit := make(chan struct{})
	close(quit)
	cr := &Crawler{
		Src: src, StartDate: start, EndDate: end,
		Keywords: []string{"bitcoin"}, MaxArticles: 100,
		Delay: time.Millisecond,
	}
	arts := cr.Run(quit)
	if len(arts) != 0 {
		t.Errorf("pre-closed quit should stop before any fetch, got %d articles", len(arts))
	}
}

func TestMatchKeywords(t *testing.T) {
	got := MatchKeywords([]string{"Bitcoin", "hack", "regulator"},
		"Exchange hacked", "thieves took BITCOIN overnight")
	if len(got) != 2 || got[0] != "Bitcoin" || got[1] != "hack" {
		t.Errorf("got %v", got)
	}
	if got := MatchKeywords([]string{"ethereum"}, "no match here", "none at all"); len(got) != 0 {
		t.Errorf("expected no match, got %v", got)
	}
}
