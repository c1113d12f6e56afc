package crawl

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/purell"
	"github.com/andybalholm/cascadia"
	"github.com/araddon/dateparse"
	"github.com/bcampbell/arts/arts"
	"github.com/bcampbell/arts/util"
	"github.com/bcampbell/biscuit"
	"github.com/bcampbell/htmlutil"
	"golang.org/x/net/html"

	"newstrawl/arc"
)

// SourceDef holds the per-publisher settings, as read from the config
// file. One [source "name"] section each.
type SourceDef struct {
	Name string
	// URLTemplate builds an article URL from a numeric id,
	// eg "https://example.com/news/%d"
	URLTemplate string
	// IndexURL is the listing page used to discover the newest id.
	IndexURL string
	// LatestSel selects candidate article links on the index page.
	LatestSel string
	// IDPat extracts the id from a candidate href (first capture
	// group). Default picks the last run of digits in the path.
	IDPat string
	// selectors for pulling the bits out of an article page. If
	// TitleSel is empty the generic whole-page extractor is used
	// instead.
	TitleSel string
	BodySel  string
	DateSel  string
	// DateFormat is a Go reference-time layout tried before the
	// fuzzy parser.
	DateFormat string
	UserAgent  string
	// CookieFile points at a cookies.txt to pre-load (some publishers
	// gate content behind consent cookies).
	CookieFile string
	// BootstrapID is a known-good recent id to fall back on when
	// index discovery comes up empty (0 = none).
	BootstrapID int
}

// ParsedPage is what a fetch+parse pass produces, before filtering.
type ParsedPage struct {
	URL       string
	Title     string
	Body      string
	Published time.Time
	// DateGuessed is set when the page carried no usable date signal.
	DateGuessed bool
}

// ArticleSource is one publisher variant: the backward-walk loop is
// identical across sources, only discovery and fetch/parse differ.
type ArticleSource interface {
	Name() string
	DiscoverLatest() (int, error)
	ArticleURL(id int) string
	FetchParse(id int) (*ParsedPage, error)
}

// Source is an ArticleSource driven by a SourceDef.
type Source struct {
	name        string
	urlTemplate string
	indexURL    *url.URL
	latestSel   cascadia.Selector
	idPat       *regexp.Regexp
	titleSel    cascadia.Selector
	bodySel     cascadia.Selector
	dateSel     cascadia.Selector
	dateFormat  string
	userAgent   string
	bootstrapID int
	quirk       *Quirk
	client      *http.Client
	// if set, raw responses are archived here as .warc.gz
	archiveDir string
}

var defaultIDPat = regexp.MustCompile(`(\d+)/?$`)

// NewSource compiles a SourceDef. archiveDir may be empty.
func NewSource(def SourceDef, archiveDir string) (*Source, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("source has no name")
	}
	if !strings.Contains(def.URLTemplate, "%d") {
		return nil, fmt.Errorf("%s: bad url template %q", def.Name, def.URLTemplate)
	}

	src := &Source{
		name:        def.Name,
		urlTemplate: def.URLTemplate,
		dateFormat:  def.DateFormat,
		userAgent:   def.UserAgent,
		bootstrapID: def.BootstrapID,
		quirk:       GetQuirk(def.Name),
		archiveDir:  archiveDir,
		idPat:       defaultIDPat,
	}

	var err error
	if def.IndexURL != "" {
		src.indexURL, err = url.Parse(def.IndexURL)
		if err != nil {
			return nil, fmt.Errorf("%s: bad index url: %s", def.Name, err)
		}
	}
	if def.IDPat != "" {
		src.idPat, err = regexp.Compile(def.IDPat)
		if err != nil {
			return nil, fmt.Errorf("%s: bad idpat: %s", def.Name, err)
		}
	}

	for _, sel := range []struct {
		expr string
		dst  *cascadia.Selector
	}{
		{def.LatestSel, &src.latestSel},
		{def.TitleSel, &src.titleSel},
		{def.BodySel, &src.bodySel},
		{def.DateSel, &src.dateSel},
	} {
		if sel.expr == "" {
			continue
		}
		*sel.dst, err = cascadia.Compile(sel.expr)
		if err != nil {
			return nil, fmt.Errorf("%s: bad selector %q: %s", def.Name, sel.expr, err)
		}
	}

	// polite client - don't hammer the publisher
	src.client = &http.Client{
		Transport: util.NewPoliteTripper(),
		Timeout:   60 * time.Second,
	}
	if def.CookieFile != "" {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		cookieFile, err := os.Open(def.CookieFile)
		if err != nil {
			return nil, err
		}
		cookies, err := biscuit.ReadCookies(cookieFile)
		cookieFile.Close()
		if err != nil {
			return nil, err
		}
		if src.indexURL != nil {
			jar.SetCookies(src.indexURL, cookies)
		}
		src.client.Jar = jar
	}

	return src, nil
}

func (src *Source) Name() string {
	return src.name
}

// ArticleURL builds the (normalised) url for an article id.
func (src *Source) ArticleURL(id int) string {
	raw := fmt.Sprintf(src.urlTemplate, id)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return purell.NormalizeURL(u, purell.FlagsUsuallySafeGreedy)
}

// DiscoverLatest fetches the index page and picks the highest article
// id linked from it. If nothing turns up, falls back to the bootstrap
// id when one is configured.
func (src *Source) DiscoverLatest() (int, error) {
	if src.indexURL == nil || src.latestSel == nil {
		if src.bootstrapID > 0 {
			return src.bootstrapID, nil
		}
		return 0, fmt.Errorf("no index url configured")
	}

	root, _, err := src.fetchAndParse(src.indexURL.String())
	if err != nil {
		if src.bootstrapID > 0 {
			return src.bootstrapID, nil
		}
		return 0, err
	}

	best := 0
	for _, a := range src.latestSel.MatchAll(root) {
		href := getAttr(a, "href")
		if href == "" {
			continue
		}
		link, err := src.indexURL.Parse(href)
		if err != nil {
			continue
		}
		m := src.idPat.FindStringSubmatch(link.Path)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if id > best {
			best = id
		}
	}
	if best == 0 {
		if src.bootstrapID > 0 {
			return src.bootstrapID, nil
		}
		return 0, fmt.Errorf("no article ids found on %s", src.indexURL)
	}
	return best, nil
}

// FetchParse grabs one article page and pulls out title, body text and
// publication date.
func (src *Source) FetchParse(id int) (*ParsedPage, error) {
	artURL := src.ArticleURL(id)

	root, rawHTML, err := src.fetchAndParse(artURL)
	if err != nil {
		return nil, err
	}

	if src.quirk != nil && src.quirk.Parse != nil {
		return src.quirk.Parse(root, rawHTML, artURL)
	}

	page := &ParsedPage{URL: artURL}

	if src.titleSel != nil {
		if n := src.titleSel.MatchFirst(root); n != nil {
			page.Title = compressSpace(htmlutil.TextContent(n))
		}
		for _, n := range matchAll(src.bodySel, root) {
			txt := compressSpace(htmlutil.TextContent(n))
			if txt == "" {
				continue
			}
			if page.Body != "" {
				page.Body += "\n"
			}
			page.Body += txt
		}
	}

	var dateStr string
	if src.dateSel != nil {
		if n := src.dateSel.MatchFirst(root); n != nil {
			dateStr = compressSpace(htmlutil.TextContent(n))
		}
	}

	if page.Title == "" || page.Body == "" {
		// fall back to generic whole-page extraction for the blanks
		scraped, err := arts.ExtractFromHTML(rawHTML, artURL)
		if err != nil && page.Title == "" {
			return nil, fmt.Errorf("extract failed: %s (%s)", err, artURL)
		}
		if scraped != nil {
			if page.Title == "" {
				page.Title = scraped.Headline
				if scraped.CanonicalURL != "" {
					page.URL = scraped.CanonicalURL
				}
			}
			if page.Body == "" {
				page.Body = compressSpace(scraped.Content)
			}
			if dateStr == "" {
				dateStr = scraped.Published
			}
		}
	}

	if page.Title == "" {
		return nil, fmt.Errorf("no title found (%s)", artURL)
	}

	page.Published, page.DateGuessed = src.resolveDate(dateStr, page.Body)
	return page, nil
}

// resolveDate turns whatever date signal we found into a time.Time.
// Order: explicit date string (configured layout, then fuzzy parse),
// then a date-shaped sweep of the body text. DateGuessed flags the
// no-signal case - the caller fills in the fetch time.
func (src *Source) resolveDate(dateStr, bodyText string) (time.Time, bool) {
	if src.quirk != nil && src.quirk.ExtractDate != nil {
		if t, ok := src.quirk.ExtractDate(bodyText); ok {
			return t, false
		}
	}

	if dateStr != "" {
		if src.dateFormat != "" {
			if t, err := time.Parse(src.dateFormat, dateStr); err == nil {
				return t, false
			}
		}
		if t, err := dateparse.ParseAny(dateStr); err == nil {
			return t, false
		}
	}

	if t, ok := dateFromText(bodyText); ok {
		return t, false
	}

	return time.Time{}, true
}

// rough date-shaped patterns for digging a date out of body text
var textDatePats = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`(?i)\d{1,2}(?:st|nd|rd|th)?\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+\d{4}`),
	regexp.MustCompile(`(?i)(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}`),
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
}

func dateFromText(txt string) (time.Time, bool) {
	// only bother with the top of the article - bylines live there
	if len(txt) > 512 {
		txt = txt[:512]
	}
	for _, pat := range textDatePats {
		m := pat.FindString(txt)
		if m == "" {
			continue
		}
		if t, err := dateparse.ParseAny(m); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (src *Source) fetchAndParse(pageURL string) (*html.Node, []byte, error) {
	req, err := http.NewRequest("GET", pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "*/*")
	if src.userAgent != "" {
		req.Header.Set("User-Agent", src.userAgent)
	}

	fetchTime := time.Now()
	resp, err := src.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if src.archiveDir != "" {
		err = arc.ArchiveResponse(src.archiveDir, resp, pageURL, fetchTime)
		if err != nil {
			return nil, nil, err
		}
	}

	if resp.StatusCode != 200 {
		return nil, nil, fmt.Errorf("HTTP error: %s (%s)", resp.Status, pageURL)
	}

	rawHTML, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	root, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return nil, nil, err
	}
	return root, rawHTML, nil
}

func matchAll(sel cascadia.Selector, root *html.Node) []*html.Node {
	if sel == nil {
		return nil
	}
	return sel.MatchAll(root)
}

// getAttr retrieves the value of an attribute on a node.
// Returns empty string if attribute doesn't exist.
func getAttr(n *html.Node, attr string) string {
	for _, a := range n.Attr {
		if a.Key == attr {
			return a.Val
		}
	}
	return ""
}

var multispacePat = regexp.MustCompile(`[\s]+`)

// compressSpace reduces all whitespace sequences in a string to a
// single space and trims. Has the effect of converting multiline
// strings to one line.
func compressSpace(s string) string {
	return strings.TrimSpace(multispacePat.ReplaceAllLiteralString(s, " "))
}
