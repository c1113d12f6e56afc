package relevance

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestKeywordDensity(t *testing.T) {
	kd := &KeywordDensity{Keywords: []string{"bitcoin", "hack"}}

	hit, err := kd.Score("Bitcoin exchange hack", "The hack drained bitcoin wallets.")
	if err != nil {
		t.Fatalf("Score: %s", err)
	}
	if hit == 0 {
		t.Errorf("expected nonzero score for keyword-laden text")
	}
	if hit > 100 {
		t.Errorf("score out of range: %d", hit)
	}

	miss, err := kd.Score("Parliament passes budget", "The bill passed on a narrow vote.")
	if err != nil {
		t.Fatalf("Score: %s", err)
	}
	if miss != 0 {
		t.Errorf("expected zero score for unrelated text, got %d", miss)
	}
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"score": 87}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.Score("title", "body")
	if err != nil {
		t.Fatalf("Score: %s", err)
	}
	if got != 87 {
		t.Errorf("got %d, expected 87", got)
	}
}

// the pipeline must keep scoring when the service is down
func TestFallbackOnServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", 500)
	}))
	defer srv.Close()

	sc := &Fallback{
		Primary:  NewClient(srv.URL),
		Fallback: &KeywordDensity{Keywords: []string{"bitcoin"}},
	}
	got, err := sc.Score("Bitcoin rally", "bitcoin bitcoin bitcoin")
	if err != nil {
		t.Fatalf("Score: %s", err)
	}
	if got == 0 {
		t.Errorf("fallback should have produced a score")
	}
}

func TestFallbackNoPrimary(t *testing.T) {
	sc := &Fallback{Fallback: &KeywordDensity{Keywords: []string{"bitcoin"}}}
	if _, err := sc.Score("Bitcoin rally", ""); err != nil {
		t.Fatalf("Score with absent collaborator: %s", err)
	}
}
