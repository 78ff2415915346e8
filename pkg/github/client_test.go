package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{Token: "ghp_testtoken", BaseURL: srv.URL})
}

func TestGetRepository(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/encode/starlette", r.URL.Path)
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "2022-11-28", r.Header.Get("X-GitHub-Api-Version"))
		assert.Equal(t, "Bearer ghp_testtoken", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "starlette",
			"full_name": "encode/starlette",
			"owner": {"login": "encode"},
			"stargazers_count": 9000,
			"forks_count": 800,
			"language": "Python",
			"license": {"key": "bsd-3-clause", "name": "BSD 3-Clause"},
			"created_at": "2018-06-25T14:00:00Z"
		}`))
	})

	repo, err := client.GetRepository(context.Background(), "encode", "starlette")
	require.NoError(t, err)
	assert.Equal(t, "encode/starlette", repo.FullName)
	assert.Equal(t, 9000, repo.StargazersCount)
	assert.Equal(t, "encode", repo.Owner.Login)
	require.NotNil(t, repo.License)
	assert.Equal(t, "BSD 3-Clause", repo.License.Name)
}

func TestGetRepository_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	})

	_, err := client.GetRepository(context.Background(), "nobody", "nothing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1756700000")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "API rate limit exceeded"}`))
	})

	_, err := client.GetLanguages(context.Background(), "a", "b")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestGet_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
	})

	_, err := client.GetRepository(context.Background(), "a", "b")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Bad credentials", apiErr.Message)
}

func TestListIssues_Params(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "closed", q.Get("state"))
		assert.Equal(t, "bug,p1", q.Get("labels"))
		assert.Equal(t, "100", q.Get("per_page"))

		_, _ = w.Write([]byte(`[
			{"number": 1, "title": "crash", "state": "closed", "user": {"login": "alice"}},
			{"number": 2, "title": "pr disguised as issue", "state": "closed", "pull_request": {"url": "x"}}
		]`))
	})

	issues, err := client.ListIssues(context.Background(), "a", "b", ListOptions{
		State:   "closed",
		Labels:  "bug,p1",
		PerPage: 500, // clamped to 100
	})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.False(t, issues[0].IsPullRequest())
	assert.True(t, issues[1].IsPullRequest())
}

func TestListCommits_SinceAndAuthor(t *testing.T) {
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2026-08-01T00:00:00Z", q.Get("since"))
		assert.Equal(t, "alice", q.Get("author"))

		_, _ = w.Write([]byte(`[
			{"sha": "abc123", "commit": {"message": "fix", "author": {"name": "alice", "date": "2026-08-02T10:00:00Z"}}}
		]`))
	})

	commits, err := client.ListCommits(context.Background(), "a", "b", CommitListOptions{
		Since:  since,
		Author: "alice",
	})
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "alice", commits[0].Commit.Author.Name)
}

func TestListPullRequests_DefaultState(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		_, _ = w.Write([]byte(`[{"number": 7, "title": "feat", "state": "open", "user": {"login": "bob"}}]`))
	})

	prs, err := client.ListPullRequests(context.Background(), "a", "b", ListOptions{})
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, 7, prs[0].Number)
	assert.Nil(t, prs[0].MergedAt)
}

func TestGetRateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rate_limit", r.URL.Path)
		_, _ = w.Write([]byte(`{"resources": {"core": {"limit": 5000, "remaining": 4200, "reset": 1756700000}}}`))
	})

	rl, err := client.GetRateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5000, rl.Resources.Core.Limit)
	assert.Equal(t, 4200, rl.Resources.Core.Remaining)
}
