// Package relevance scores articles 0-100 against the configured
// keyword set. An external scoring service can be consulted, but the
// pipeline has to work with it entirely absent, so a deterministic
// keyword-density heuristic is always available as the fallback.
package relevance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Scorer interface {
	Score(title, body string) (int, error)
}

// KeywordDensity is the offline fallback scorer. The score is driven
// by how often any of the keywords turn up, with title hits weighted
// heavier than body hits.
type KeywordDensity struct {
	Keywords []string
}

func (kd *KeywordDensity) Score(title, body string) (int, error) {
	lt := strings.ToLower(title)
	lb := strings.ToLower(body)

	score := 0
	for _, kw := range kd.Keywords {
		k := strings.ToLower(kw)
		if k == "" {
			continue
		}
		score += 25 * strings.Count(lt, k)
		score += 5 * strings.Count(lb, k)
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}

// Client asks an external HTTP service for a relevance score.
type Client struct {
	URL    string
	Client *http.Client
}

func NewClient(u string) *Client {
	return &Client{
		URL:    u,
		Client: &http.Client{Timeout: 20 * time.Second},
	}
}

type scoreRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type scoreResponse struct {
	Score int `json:"score"`
}

func (c *Client) Score(title, body string) (int, error) {
	payload, err := json.Marshal(scoreRequest{Title: title, Body: body})
	if err != nil {
		return 0, err
	}
	resp, err := c.Client.Post(c.URL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("scoring service: HTTP %s", resp.Status)
	}
	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if out.Score < 0 || out.Score > 100 {
		return 0, fmt.Errorf("scoring service: score %d out of range", out.Score)
	}
	return out.Score, nil
}

// Fallback tries the primary scorer and falls back on any error.
// With a nil primary it's just the fallback.
type Fallback struct {
	Primary  Scorer
	Fallback Scorer
}

func (f *Fallback) Score(title, body string) (int, error) {
	if f.Primary != nil {
		score, err := f.Primary.Score(title, body)
		if err == nil {
			return score, nil
		}
	}
	return f.Fallback.Score(title, body)
}
