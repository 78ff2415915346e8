// Package domains implements the tool services behind the router: one
// service per analytics domain, each exposing its tool definitions and
// an Invoke entry point.
package domains

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/harun/gitpulse/pkg/catalog"
	"github.com/harun/gitpulse/pkg/github"
)

// ErrUnknownAction indicates a service was invoked with an action it
// does not implement.
var ErrUnknownAction = errors.New("unknown action")

// Service is one analytics domain. It doubles as a catalog.ToolSource
// so the same value feeds both catalog construction and dispatch.
type Service interface {
	catalog.ToolSource
	Invoke(ctx context.Context, action string, args map[string]interface{}) (interface{}, error)
}

// GitHubAPI is the slice of the GitHub client the services consume.
type GitHubAPI interface {
	GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error)
	GetLanguages(ctx context.Context, owner, repo string) (map[string]int64, error)
	ListCommits(ctx context.Context, owner, repo string, opts github.CommitListOptions) ([]github.Commit, error)
	ListIssues(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.Issue, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*github.Issue, error)
	ListPullRequests(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.PullRequest, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	ListContributors(ctx context.Context, owner, repo string, perPage int) ([]github.Contributor, error)
	GetRateLimit(ctx context.Context) (*github.RateLimit, error)
}

// All returns every domain service wired to the given API client.
func All(api GitHubAPI) []Service {
	repoSvc := NewRepoStats(api)
	issueSvc := NewIssues(api)
	prSvc := NewPulls(api)
	contribSvc := NewContributors(api)
	scopeSvc := NewScope(repoSvc, issueSvc, prSvc, contribSvc)
	return []Service{repoSvc, issueSvc, prSvc, contribSvc, scopeSvc}
}

func unknownAction(d catalog.Domain, action string) error {
	return fmt.Errorf("%s domain: %q: %w", d, action, ErrUnknownAction)
}

// stringArg extracts a string argument, empty if absent.
func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg extracts an integer argument. JSON numbers decode as float64.
func intArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// positiveIntArg reads an integer argument that must be at least 1,
// such as a day window or result limit. Zero and negative values fall
// back to the default so downstream math never divides by zero.
func positiveIntArg(args map[string]interface{}, key string, def int) int {
	v := intArg(args, key, def)
	if v < 1 {
		return def
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
