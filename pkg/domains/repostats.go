package domains

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/gitpulse/pkg/catalog"
	"github.com/harun/gitpulse/pkg/github"
)

// RepoStats serves repository-level metrics and metadata.
type RepoStats struct {
	api    GitHubAPI
	logger zerolog.Logger
}

// NewRepoStats creates the repository stats service.
func NewRepoStats(api GitHubAPI) *RepoStats {
	return &RepoStats{
		api:    api,
		logger: log.With().Str("domain", string(catalog.DomainRepo)).Logger(),
	}
}

// Domain returns the service's domain prefix.
func (s *RepoStats) Domain() catalog.Domain { return catalog.DomainRepo }

// Tools returns the service's tool definitions.
func (s *RepoStats) Tools() []catalog.ToolDefinition {
	return []catalog.ToolDefinition{
		{
			Name:        "get_repo_info",
			Description: "Get comprehensive repository information including stars, forks, issues, and metadata",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner (username or organization)", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			},
		},
		{
			Name:        "get_repo_languages",
			Description: "Get programming languages used in the repository with their percentage breakdown",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			},
		},
		{
			Name:        "get_recent_commits",
			Description: "Get recent commit history for a repository",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "limit", Type: "integer", Description: "Number of commits to fetch (max 100)", Default: 10},
			},
		},
		{
			Name:        "compare_repos",
			Description: "Compare two repositories side by side",
			Parameters: []catalog.ToolParameter{
				{Name: "owner1", Type: "string", Description: "First repository owner", Required: true},
				{Name: "repo1", Type: "string", Description: "First repository name", Required: true},
				{Name: "owner2", Type: "string", Description: "Second repository owner", Required: true},
				{Name: "repo2", Type: "string", Description: "Second repository name", Required: true},
			},
		},
	}
}

// Invoke dispatches one repo action.
func (s *RepoStats) Invoke(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	switch action {
	case "get_repo_info":
		return s.repoInfo(ctx, stringArg(args, "owner"), stringArg(args, "repo"))
	case "get_repo_languages":
		return s.repoLanguages(ctx, stringArg(args, "owner"), stringArg(args, "repo"))
	case "get_recent_commits":
		return s.recentCommits(ctx, stringArg(args, "owner"), stringArg(args, "repo"), positiveIntArg(args, "limit", 10))
	case "compare_repos":
		return s.compareRepos(ctx,
			stringArg(args, "owner1"), stringArg(args, "repo1"),
			stringArg(args, "owner2"), stringArg(args, "repo2"))
	default:
		return nil, unknownAction(s.Domain(), action)
	}
}

// RepoInfo is the get_repo_info result.
type RepoInfo struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	Owner         string    `json:"owner"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	Watchers      int       `json:"watchers"`
	OpenIssues    int       `json:"open_issues"`
	Language      string    `json:"language"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Size          int       `json:"size"`
	DefaultBranch string    `json:"default_branch"`
	IsPrivate     bool      `json:"is_private"`
	HasWiki       bool      `json:"has_wiki"`
	HasPages      bool      `json:"has_pages"`
	License       string    `json:"license,omitempty"`
	URL           string    `json:"url"`
}

func (s *RepoStats) repoInfo(ctx context.Context, owner, repo string) (*RepoInfo, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Msg("Fetching repository info")

	data, err := s.api.GetRepository(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	return repoInfoFrom(data), nil
}

func repoInfoFrom(data *github.Repository) *RepoInfo {
	info := &RepoInfo{
		Name:          data.Name,
		FullName:      data.FullName,
		Description:   data.Description,
		Owner:         data.Owner.Login,
		Stars:         data.StargazersCount,
		Forks:         data.ForksCount,
		Watchers:      data.WatchersCount,
		OpenIssues:    data.OpenIssuesCount,
		Language:      data.Language,
		CreatedAt:     data.CreatedAt,
		UpdatedAt:     data.UpdatedAt,
		Size:          data.Size,
		DefaultBranch: data.DefaultBranch,
		IsPrivate:     data.Private,
		HasWiki:       data.HasWiki,
		HasPages:      data.HasPages,
		URL:           data.HTMLURL,
	}
	if data.License != nil {
		info.License = data.License.Name
	}
	return info
}

// LanguageShare is one language's byte count and share.
type LanguageShare struct {
	Bytes      int64   `json:"bytes"`
	Percentage float64 `json:"percentage"`
}

// LanguageBreakdown is the get_repo_languages result.
type LanguageBreakdown struct {
	Languages       map[string]LanguageShare `json:"languages"`
	TotalBytes      int64                    `json:"total_bytes"`
	PrimaryLanguage string                   `json:"primary_language,omitempty"`
}

func (s *RepoStats) repoLanguages(ctx context.Context, owner, repo string) (*LanguageBreakdown, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Msg("Fetching languages")

	data, err := s.api.GetLanguages(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, b := range data {
		total += b
	}

	breakdown := &LanguageBreakdown{
		Languages:  make(map[string]LanguageShare, len(data)),
		TotalBytes: total,
	}
	var primaryBytes int64
	for lang, b := range data {
		share := LanguageShare{Bytes: b}
		if total > 0 {
			share.Percentage = round2(float64(b) / float64(total) * 100)
		}
		breakdown.Languages[lang] = share
		if b > primaryBytes || (b == primaryBytes && lang < breakdown.PrimaryLanguage) {
			primaryBytes = b
			breakdown.PrimaryLanguage = lang
		}
	}
	return breakdown, nil
}

// CommitSummary is one entry in the get_recent_commits result.
type CommitSummary struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

// RecentCommits is the get_recent_commits result.
type RecentCommits struct {
	Commits []CommitSummary `json:"commits"`
	Count   int             `json:"count"`
}

func (s *RepoStats) recentCommits(ctx context.Context, owner, repo string, limit int) (*RecentCommits, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Int("limit", limit).Msg("Fetching recent commits")

	data, err := s.api.ListCommits(ctx, owner, repo, github.CommitListOptions{PerPage: limit})
	if err != nil {
		return nil, err
	}

	commits := make([]CommitSummary, 0, len(data))
	for _, c := range data {
		commits = append(commits, CommitSummary{
			SHA:     c.SHA,
			Message: c.Commit.Message,
			Author:  c.Commit.Author.Name,
			Date:    c.Commit.Author.Date,
			URL:     c.HTMLURL,
		})
	}
	return &RecentCommits{Commits: commits, Count: len(commits)}, nil
}

// RepoCapsule is one side of a compare_repos result.
type RepoCapsule struct {
	Name       string    `json:"name"`
	Stars      int       `json:"stars"`
	Forks      int       `json:"forks"`
	OpenIssues int       `json:"open_issues"`
	Language   string    `json:"language"`
	CreatedAt  time.Time `json:"created_at"`
}

// RepoComparison is the compare_repos result.
type RepoComparison struct {
	Repository1 RepoCapsule `json:"repository_1"`
	Repository2 RepoCapsule `json:"repository_2"`
	Comparison  struct {
		StarsDiff   int    `json:"stars_diff"`
		ForksDiff   int    `json:"forks_diff"`
		MorePopular string `json:"more_popular"`
	} `json:"comparison"`
}

func (s *RepoStats) compareRepos(ctx context.Context, owner1, repo1, owner2, repo2 string) (*RepoComparison, error) {
	s.logger.Info().
		Str("repo_1", owner1+"/"+repo1).
		Str("repo_2", owner2+"/"+repo2).
		Msg("Comparing repositories")

	first, err := s.api.GetRepository(ctx, owner1, repo1)
	if err != nil {
		return nil, err
	}
	second, err := s.api.GetRepository(ctx, owner2, repo2)
	if err != nil {
		return nil, err
	}

	result := &RepoComparison{
		Repository1: capsuleFrom(first),
		Repository2: capsuleFrom(second),
	}
	result.Comparison.StarsDiff = first.StargazersCount - second.StargazersCount
	result.Comparison.ForksDiff = first.ForksCount - second.ForksCount
	if first.StargazersCount > second.StargazersCount {
		result.Comparison.MorePopular = first.FullName
	} else {
		result.Comparison.MorePopular = second.FullName
	}
	return result, nil
}

func capsuleFrom(data *github.Repository) RepoCapsule {
	return RepoCapsule{
		Name:       data.FullName,
		Stars:      data.StargazersCount,
		Forks:      data.ForksCount,
		OpenIssues: data.OpenIssuesCount,
		Language:   data.Language,
		CreatedAt:  data.CreatedAt,
	}
}
