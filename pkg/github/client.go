package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/gitpulse/internal/observability"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 30 * time.Second

	acceptHeader     = "application/vnd.github+json"
	apiVersionHeader = "2022-11-28"
)

// Config holds client construction parameters.
type Config struct {
	Token      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a minimal GitHub REST API v3 client covering the
// endpoints the analytics domains need.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a GitHub API client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     log.With().Str("component", "github").Logger(),
	}
}

// get performs a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersionHeader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordGitHubRequest(endpoint, "network_error", time.Since(start))
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	observability.RecordGitHubRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	}
	if (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests) &&
		resp.Header.Get("X-RateLimit-Remaining") == "0" {
		resetAt := time.Now()
		if v, perr := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); perr == nil {
			resetAt = time.Unix(v, 0)
		}
		return &RateLimitError{ResetAt: resetAt}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		message := parseErrorMessage(body)
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("message", message).
			Msg("GitHub API error")
		return &APIError{StatusCode: resp.StatusCode, Message: message, Endpoint: endpoint}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

func parseErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	var out Repository
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLanguages fetches the language byte counts for a repository.
func (c *Client) GetLanguages(ctx context.Context, owner, repo string) (map[string]int64, error) {
	out := map[string]int64{}
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/languages", owner, repo), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCommits fetches the commit history for a repository.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, opts CommitListOptions) ([]Commit, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(clampPerPage(opts.PerPage)))
	if !opts.Since.IsZero() {
		params.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	if opts.Author != "" {
		params.Set("author", opts.Author)
	}

	var out []Commit
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/commits", owner, repo), params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListIssues fetches issues for a repository. The response may contain
// pull requests; callers filter with Issue.IsPullRequest.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, opts ListOptions) ([]Issue, error) {
	params := url.Values{}
	params.Set("state", stateOrDefault(opts.State))
	params.Set("per_page", strconv.Itoa(clampPerPage(opts.PerPage)))
	if opts.Labels != "" {
		params.Set("labels", opts.Labels)
	}

	var out []Issue
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/issues", owner, repo), params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetIssue fetches a single issue by number.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	var out Issue
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPullRequests fetches pull requests for a repository.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, opts ListOptions) ([]PullRequest, error) {
	params := url.Values{}
	params.Set("state", stateOrDefault(opts.State))
	params.Set("per_page", strconv.Itoa(clampPerPage(opts.PerPage)))

	var out []PullRequest
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls", owner, repo), params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPullRequest fetches a single pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	var out PullRequest
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListContributors fetches contributors ordered by contribution count.
func (c *Client) ListContributors(ctx context.Context, owner, repo string, perPage int) ([]Contributor, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(clampPerPage(perPage)))

	var out []Contributor
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/contributors", owner, repo), params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRateLimit fetches the current API quota.
func (c *Client) GetRateLimit(ctx context.Context) (*RateLimit, error) {
	var out RateLimit
	if err := c.get(ctx, "/rate_limit", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func clampPerPage(n int) int {
	if n <= 0 {
		return 30
	}
	if n > 100 {
		return 100
	}
	return n
}

func stateOrDefault(state string) string {
	if state == "" {
		return "open"
	}
	return state
}
