package dedup

import (
	"testing"
	"time"

	"newstrawl/store"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNormalize(t *testing.T) {
	cases := []struct{ in, expect string }{
		{"Hello, World!", "hello world"},
		{"  lots   of\n\twhitespace  ", "lots of whitespace"},
		{"Exchange X hacked for $10M!!!", "exchange x hacked for 10m"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.expect {
			t.Errorf("Normalize(%q): got %q, expected %q", c.in, got, c.expect)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := TitleSimilarity("Exchange X hacked for $10M", "Exchange X hacked, for $10M!"); got < TitleThreshold {
		t.Errorf("punctuation-only variants should score high, got %f", got)
	}
	if got := TitleSimilarity("Bitcoin slides below $60k", "Parliament passes budget bill"); got >= TitleThreshold {
		t.Errorf("unrelated titles should score low, got %f", got)
	}
	// empty bodies mustn't count as identical
	if got := BodySimilarity("", ""); got != 0 {
		t.Errorf("empty bodies: got %f, expected 0", got)
	}
}

func TestDedupeEdgeCases(t *testing.T) {
	res := Dedupe(nil)
	if len(res.Kept) != 0 || res.Removed != 0 {
		t.Errorf("nil input: %+v", res)
	}

	one := []*store.Article{{URL: "u1", Title: "solo"}}
	res = Dedupe(one)
	if len(res.Kept) != 1 || res.Removed != 0 {
		t.Errorf("single input: %+v", res)
	}
}

// two sources cover the same hack, titles differing only by
// punctuation, published 3 hours apart: exactly one survives, the
// earlier one, whichever order they arrive in.
func TestEarliestWins(t *testing.T) {
	early := &store.Article{
		URL:       "http://alpha.example.com/news/1",
		Title:     "Exchange X hacked for $10M",
		Content:   "Attackers drained hot wallets at Exchange X overnight, taking roughly ten million dollars.",
		Published: ts("2024-03-01T06:00:00Z"),
		Source:    "alpha",
	}
	late := &store.Article{
		URL:       "http://beta.example.com/item/77",
		Title:     "Exchange X hacked, for $10M!",
		Content:   "Roughly ten million dollars was taken overnight as attackers drained Exchange X hot wallets.",
		Published: ts("2024-03-01T09:00:00Z"),
		Source:    "beta",
	}

	for _, order := range [][]*store.Article{{early, late}, {late, early}} {
		res := Dedupe(order)
		if len(res.Kept) != 1 {
			t.Fatalf("expected 1 kept, got %d", len(res.Kept))
		}
		if res.Kept[0] != early {
			t.Errorf("expected the earlier article kept, got %s", res.Kept[0].URL)
		}
		if res.Removed != 1 {
			t.Errorf("expected 1 removed, got %d", res.Removed)
		}
		if res.Clusters != 1 {
			t.Errorf("expected 1 cluster, got %d", res.Clusters)
		}
		if len(res.Dropped) != 1 || res.Dropped[0].DroppedURL != late.URL {
			t.Errorf("wrong removal record: %+v", res.Dropped)
		}
	}
}

func TestDedupeIdempotent(t *testing.T) {
	arts := []*store.Article{
		{
			URL:       "u1",
			Title:     "Exchange X hacked for $10M",
			Content:   "Attackers drained hot wallets at Exchange X overnight.",
			Published: ts("2024-03-01T06:00:00Z"),
		},
		{
			URL:       "u2",
			Title:     "Exchange X hacked for $10M!",
			Content:   "Attackers drained hot wallets at Exchange X overnight, say researchers.",
			Published: ts("2024-03-01T08:00:00Z"),
		},
		{
			URL:       "u3",
			Title:     "Regulator opens inquiry into stablecoin issuer",
			Content:   "The inquiry will look at reserve attestations going back two years.",
			Published: ts("2024-03-01T07:00:00Z"),
		},
	}

	first := Dedupe(arts)
	if len(first.Kept) != 2 {
		t.Fatalf("first pass: expected 2 kept, got %d", len(first.Kept))
	}

	second := Dedupe(first.Kept)
	if second.Removed != 0 {
		t.Errorf("second pass removed %d, expected 0", second.Removed)
	}
	if len(second.Kept) != len(first.Kept) {
		t.Errorf("second pass changed the set (%d -> %d)", len(first.Kept), len(second.Kept))
	}
	for i := range first.Kept {
		if first.Kept[i] != second.Kept[i] {
			t.Errorf("second pass reordered the set at %d", i)
		}
	}
}

// reworded headline over a near-identical body still counts as a dupe.
func TestBodyOnlyDuplicate(t *testing.T) {
	body := "The central bank left rates unchanged on Thursday, citing softening inflation and a cooling labour market as reasons to hold steady through the summer."
	a := &store.Article{
		URL: "u1", Title: "Central bank holds rates steady",
		Content:   body,
		Published: ts("2024-05-01T10:00:00Z"),
	}
	b := &store.Article{
		URL: "u2", Title: "No change from policymakers this month",
		Content:   body + " Analysts broadly expected the decision.",
		Published: ts("2024-05-01T12:00:00Z"),
	}
	res := Dedupe([]*store.Article{a, b})
	if len(res.Kept) != 1 {
		t.Fatalf("expected body-similarity dedup, kept %d", len(res.Kept))
	}
	if res.Kept[0] != a {
		t.Errorf("expected earlier article kept")
	}
}
