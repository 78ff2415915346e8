package domains

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/gitpulse/pkg/catalog"
)

// Scope serves agent-level composite actions: the analysis prompt and
// the cross-domain health check. Its fan-out to the other domains is
// internal; the router sees it as one more service.
type Scope struct {
	repo    *RepoStats
	issues  *Issues
	pulls   *Pulls
	contrib *Contributors
	logger  zerolog.Logger
}

// NewScope creates the agent scope service.
func NewScope(repo *RepoStats, issues *Issues, pulls *Pulls, contrib *Contributors) *Scope {
	return &Scope{
		repo:    repo,
		issues:  issues,
		pulls:   pulls,
		contrib: contrib,
		logger:  log.With().Str("domain", string(catalog.DomainScope)).Logger(),
	}
}

// Domain returns the service's domain prefix.
func (s *Scope) Domain() catalog.Domain { return catalog.DomainScope }

// Tools returns the service's tool definitions.
func (s *Scope) Tools() []catalog.ToolDefinition {
	return []catalog.ToolDefinition{
		{
			Name:        "get_analysis_prompt",
			Description: "Get the analysis framework prompt for GitHub repository analysis",
			Parameters: []catalog.ToolParameter{
				{Name: "context", Type: "string", Description: "Current analysis context to append to the prompt"},
			},
		},
		{
			Name:        "repo_health_check",
			Description: "Run a comprehensive health check across issues, pull requests, and contributors",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			},
		},
	}
}

// Invoke dispatches one scope action.
func (s *Scope) Invoke(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	switch action {
	case "get_analysis_prompt":
		return s.analysisPrompt(stringArg(args, "context")), nil
	case "repo_health_check":
		return s.healthCheck(ctx, stringArg(args, "owner"), stringArg(args, "repo"))
	default:
		return nil, unknownAction(s.Domain(), action)
	}
}

// PromptResult is the get_analysis_prompt result.
type PromptResult struct {
	Prompt string `json:"prompt"`
}

func (s *Scope) analysisPrompt(analysisContext string) *PromptResult {
	return &PromptResult{
		Prompt: strings.Replace(AnalysisPrompt, "{context}", analysisContext, 1),
	}
}

// HealthReport is the repo_health_check result: one snapshot per
// dimension plus the repository overview.
type HealthReport struct {
	Repository   *RepoInfo        `json:"repository"`
	Issues       *ResolutionStats `json:"issue_resolution"`
	StaleIssues  *StaleIssues     `json:"stale_issues"`
	PullRequests *VelocityReport  `json:"pr_velocity"`
	MergeTime    *MergeStats      `json:"merge_time"`
	Contributors *TopContributors `json:"top_contributors"`
}

func (s *Scope) healthCheck(ctx context.Context, owner, repo string) (*HealthReport, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Msg("Running repository health check")

	info, err := s.repo.repoInfo(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	resolution, err := s.issues.avgResolutionTime(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	staleIssues, err := s.issues.staleIssues(ctx, owner, repo, 30)
	if err != nil {
		return nil, err
	}
	velocity, err := s.pulls.velocity(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	mergeTime, err := s.pulls.avgMergeTime(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	top, err := s.contrib.top(ctx, owner, repo, 10)
	if err != nil {
		return nil, err
	}

	return &HealthReport{
		Repository:   info,
		Issues:       resolution,
		StaleIssues:  staleIssues,
		PullRequests: velocity,
		MergeTime:    mergeTime,
		Contributors: top,
	}, nil
}
