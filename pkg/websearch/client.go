// Package websearch implements the WEB: marker's backing provider: a
// small multi-provider HTTP client (Brave, SerpAPI, Tavily) with
// TTL-cached results, satisfying runtimeloop.WebSearchProvider.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
)

// Result is a single search hit normalized across providers.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Client performs a web search against the configured provider, caching
// results for the configured TTL to avoid re-spending API quota on
// repeated queries within a turn.
type Client struct {
	httpClient *http.Client
	provider   string
	apiKey     string
	defaultCap int
	cache      *cache
	logger     *slog.Logger

	braveBaseURL   string
	serpAPIBaseURL string
	tavilyBaseURL  string
}

// NewClient builds a Client from config, resolving the provider API key
// from the configured environment variable. An empty key is tolerated at
// construction; Search reports the missing-key error per call instead,
// matching the reference provider's own "fail per request" behavior.
func NewClient(cfg config.WebSearchConfig) *Client {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	cap := cfg.DefaultCap
	if cap <= 0 {
		cap = 5
	}
	return &Client{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		provider:       strings.ToLower(strings.TrimSpace(cfg.Provider)),
		apiKey:         os.Getenv(cfg.APIKeyEnv),
		defaultCap:     cap,
		cache:          newCache(ttl),
		logger:         slog.Default(),
		braveBaseURL:   "https://api.search.brave.com/res/v1/web/search",
		serpAPIBaseURL: "https://serpapi.com/search.json",
		tavilyBaseURL:  "https://api.tavily.com/search",
	}
}

// OverrideEndpointsForTest replaces the provider base URLs. Test-only.
func (c *Client) OverrideEndpointsForTest(braveURL, serpAPIURL, tavilyURL string) {
	c.braveBaseURL = braveURL
	c.serpAPIBaseURL = serpAPIURL
	c.tavilyBaseURL = tavilyURL
}

func capLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 10 {
		limit = 10
	}
	return limit
}

// Search runs a query against the configured provider and renders the
// results as the text block the runtime loop injects into the
// [WEB_SEARCH_RESULTS] trailer.
func (c *Client) Search(ctx context.Context, query string, limit int) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("empty query")
	}
	limit = capLimit(limit, c.defaultCap)
	if c.apiKey == "" {
		return "", fmt.Errorf("missing API key for provider %q", c.provider)
	}

	key := c.provider + "|" + query + "|" + strconv.Itoa(limit)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	var results []Result
	var err error
	switch c.provider {
	case "brave":
		results, err = c.searchBrave(ctx, query, limit)
	case "serpapi":
		results, err = c.searchSerpAPI(ctx, query, limit)
	case "tavily":
		results, err = c.searchTavily(ctx, query, limit)
	default:
		return "", fmt.Errorf("unknown provider %q", c.provider)
	}
	if err != nil {
		c.logger.Warn("web search failed", "provider", c.provider, "query", query, "error", err)
		return "", err
	}

	rendered := renderResults(results)
	c.cache.Set(key, rendered)
	return rendered, nil
}

func renderResults(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.TrimSpace(b.String())
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned HTTP %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

func (c *Client) searchBrave(ctx context.Context, query string, limit int) ([]Result, error) {
	u := c.braveBaseURL + "?" + url.Values{
		"q":     {query},
		"count": {strconv.Itoa(limit)},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	var data struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := c.doJSON(req, &data); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(data.Web.Results))
	for _, r := range data.Web.Results {
		if len(out) >= limit {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return out, nil
}

func (c *Client) searchSerpAPI(ctx context.Context, query string, limit int) ([]Result, error) {
	u := c.serpAPIBaseURL + "?" + url.Values{
		"engine":  {"google"},
		"q":       {query},
		"num":     {strconv.Itoa(limit)},
		"api_key": {c.apiKey},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var data struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := c.doJSON(req, &data); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(data.OrganicResults))
	for _, r := range data.OrganicResults {
		if len(out) >= limit {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

func (c *Client) searchTavily(ctx context.Context, query string, limit int) ([]Result, error) {
	body, err := json.Marshal(map[string]interface{}{
		"api_key":         c.apiKey,
		"query":           query,
		"max_results":     limit,
		"include_images":  false,
		"include_answer":  false,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tavilyBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var data struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := c.doJSON(req, &data); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(data.Results))
	for _, r := range data.Results {
		if len(out) >= limit {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return out, nil
}
