// Package dedup removes near-duplicate coverage of the same story from
// a merged multi-source article batch, keeping the earliest report.
package dedup

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"

	"newstrawl/store"
)

// Two articles are duplicates if any one of these trips: near-identical
// headlines with reworded bodies and near-identical bodies under
// reworded headlines are both common across publishers, and the
// weighted score catches partial overlap on both axes.
const (
	TitleThreshold    = 0.85
	BodyThreshold     = 0.80
	CombinedThreshold = 0.75

	titleWeight = 0.6
	bodyWeight  = 0.4
)

// Pair records one removal, for logging.
type Pair struct {
	KeptURL    string
	DroppedURL string
}

type Result struct {
	// Kept is the surviving set, in input order (with earlier-published
	// duplicates swapped into their cluster's slot).
	Kept []*store.Article
	// Removed is how many incoming articles were dropped as dupes.
	Removed int
	// Clusters is how many kept articles absorbed at least one dupe.
	Clusters int
	// Dropped lists each removal pair.
	Dropped []Pair
}

// Normalize lowercases, strips punctuation, collapses whitespace and
// trims, so similarity scoring isn't thrown by formatting.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func ratio(a, b []string) float64 {
	// two empty sequences say nothing about duplication
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	return difflib.NewMatcher(a, b).Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// TitleSimilarity is a longest-matching-block ratio in [0,1] over
// normalized titles, per-rune.
func TitleSimilarity(a, b string) float64 {
	return ratio(splitRunes(Normalize(a)), splitRunes(Normalize(b)))
}

// BodySimilarity is the same ratio over normalized bodies, per-word
// (bodies run to kilobytes, the rune-level matcher is quadratic).
func BodySimilarity(a, b string) float64 {
	return ratio(strings.Fields(Normalize(a)), strings.Fields(Normalize(b)))
}

// IsDuplicate applies the three-way decision rule.
func IsDuplicate(a, b *store.Article) bool {
	titleSim := TitleSimilarity(a.Title, b.Title)
	if titleSim >= TitleThreshold {
		return true
	}
	bodySim := BodySimilarity(a.Content, b.Content)
	if bodySim >= BodyThreshold {
		return true
	}
	return titleWeight*titleSim+bodyWeight*bodySim >= CombinedThreshold
}

// Dedupe processes articles in input order, comparing each against the
// already-kept set. A match joins that article's cluster: the incoming
// copy is dropped, unless it was published earlier than the kept
// representative, in which case it takes the slot. Single pass, no
// global sort - earliest-wins compares Published explicitly, so input
// (arrival) order doesn't matter.
func Dedupe(arts []*store.Article) *Result {
	res := &Result{}
	if len(arts) <= 1 {
		res.Kept = arts
		return res
	}

	kept := make([]*store.Article, 0, len(arts))
	clusterSize := make([]int, 0, len(arts))

	for _, art := range arts {
		matched := false
		for i, rep := range kept {
			if !IsDuplicate(art, rep) {
				continue
			}
			matched = true
			clusterSize[i]++
			res.Removed++
			if !art.Published.IsZero() && art.Published.Before(rep.Published) {
				// earlier report wins the slot
				kept[i] = art
				res.Dropped = append(res.Dropped, Pair{KeptURL: art.URL, DroppedURL: rep.URL})
			} else {
				res.Dropped = append(res.Dropped, Pair{KeptURL: rep.URL, DroppedURL: art.URL})
			}
			break
		}
		if !matched {
			kept = append(kept, art)
			clusterSize = append(clusterSize, 1)
		}
	}

	for _, n := range clusterSize {
		if n > 1 {
			res.Clusters++
		}
	}
	res.Kept = kept
	return res
}
