package domains

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/gitpulse/pkg/catalog"
	"github.com/harun/gitpulse/pkg/github"
)

// Contributors serves community and developer activity analytics.
type Contributors struct {
	api    GitHubAPI
	logger zerolog.Logger
	now    func() time.Time
}

// NewContributors creates the contributor insights service.
func NewContributors(api GitHubAPI) *Contributors {
	return &Contributors{
		api:    api,
		logger: log.With().Str("domain", string(catalog.DomainContributor)).Logger(),
		now:    time.Now,
	}
}

// Domain returns the service's domain prefix.
func (s *Contributors) Domain() catalog.Domain { return catalog.DomainContributor }

// Tools returns the service's tool definitions.
func (s *Contributors) Tools() []catalog.ToolDefinition {
	return []catalog.ToolDefinition{
		{
			Name:        "list_contributors",
			Description: "List all contributors to a repository with their contribution counts",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "limit", Type: "integer", Description: "Number of contributors to retrieve (max 100)", Default: 30},
			},
		},
		{
			Name:        "get_top_contributors",
			Description: "Get the top contributors to a repository ranked by contribution count",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "limit", Type: "integer", Description: "Number of top contributors to retrieve", Default: 10},
			},
		},
		{
			Name:        "analyze_contributor_activity",
			Description: "Analyze contributor activity patterns over time",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "days", Type: "integer", Description: "Time period in days to analyze", Default: 30},
			},
		},
		{
			Name:        "get_contributor_stats",
			Description: "Get detailed statistics for a specific contributor",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "username", Type: "string", Description: "Contributor's GitHub username", Required: true},
			},
		},
		{
			Name:        "analyze_commit_frequency",
			Description: "Analyze commit frequency patterns for a repository",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "days", Type: "integer", Description: "Time period in days to analyze", Default: 30},
			},
		},
	}
}

// Invoke dispatches one contributor action.
func (s *Contributors) Invoke(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	owner := stringArg(args, "owner")
	repo := stringArg(args, "repo")

	switch action {
	case "list_contributors":
		return s.list(ctx, owner, repo, positiveIntArg(args, "limit", 30))
	case "get_top_contributors":
		return s.top(ctx, owner, repo, positiveIntArg(args, "limit", 10))
	case "analyze_contributor_activity":
		return s.activity(ctx, owner, repo, positiveIntArg(args, "days", 30))
	case "get_contributor_stats":
		return s.stats(ctx, owner, repo, stringArg(args, "username"))
	case "analyze_commit_frequency":
		return s.commitFrequency(ctx, owner, repo, positiveIntArg(args, "days", 30))
	default:
		return nil, unknownAction(s.Domain(), action)
	}
}

// ContributorSummary is one entry in the list_contributors result.
type ContributorSummary struct {
	Username      string `json:"username"`
	Contributions int    `json:"contributions"`
	Type          string `json:"type"`
	ProfileURL    string `json:"profile_url"`
	AvatarURL     string `json:"avatar_url"`
}

// ContributorList is the list_contributors result.
type ContributorList struct {
	Contributors       []ContributorSummary `json:"contributors"`
	Count              int                  `json:"count"`
	TotalContributions int                  `json:"total_contributions"`
}

func (s *Contributors) list(ctx context.Context, owner, repo string, limit int) (*ContributorList, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Msg("Listing contributors")

	data, err := s.api.ListContributors(ctx, owner, repo, limit)
	if err != nil {
		return nil, err
	}

	contributors := make([]ContributorSummary, 0, len(data))
	total := 0
	for _, c := range data {
		total += c.Contributions
		contributors = append(contributors, ContributorSummary{
			Username:      c.Login,
			Contributions: c.Contributions,
			Type:          c.Type,
			ProfileURL:    c.HTMLURL,
			AvatarURL:     c.AvatarURL,
		})
	}
	return &ContributorList{
		Contributors:       contributors,
		Count:              len(contributors),
		TotalContributions: total,
	}, nil
}

// RankedContributor is one entry in the get_top_contributors result.
type RankedContributor struct {
	Rank          int    `json:"rank"`
	Username      string `json:"username"`
	Contributions int    `json:"contributions"`
	ProfileURL    string `json:"profile_url"`
}

// TopContributors is the get_top_contributors result.
type TopContributors struct {
	TopContributors          []RankedContributor `json:"top_contributors"`
	Count                    int                 `json:"count"`
	TopContributorPercentage float64             `json:"top_contributor_percentage"`
	TotalContributors        int                 `json:"total_contributors"`
}

func (s *Contributors) top(ctx context.Context, owner, repo string, limit int) (*TopContributors, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Int("limit", limit).Msg("Fetching top contributors")

	data, err := s.api.ListContributors(ctx, owner, repo, 100)
	if err != nil {
		return nil, err
	}

	// GitHub orders contributors by contribution count already
	top := data
	if len(top) > limit {
		top = top[:limit]
	}

	ranked := make([]RankedContributor, 0, len(top))
	topContributions := 0
	for i, c := range top {
		topContributions += c.Contributions
		ranked = append(ranked, RankedContributor{
			Rank:          i + 1,
			Username:      c.Login,
			Contributions: c.Contributions,
			ProfileURL:    c.HTMLURL,
		})
	}

	total := 0
	for _, c := range data {
		total += c.Contributions
	}

	result := &TopContributors{
		TopContributors:   ranked,
		Count:             len(ranked),
		TotalContributors: len(data),
	}
	if total > 0 {
		result.TopContributorPercentage = round2(float64(topContributions) / float64(total) * 100)
	}
	return result, nil
}

// ContributorActivity is one author with their commit count.
type ContributorActivity struct {
	Author  string `json:"author"`
	Commits int    `json:"commits"`
}

// ActivityReport is the analyze_contributor_activity result.
type ActivityReport struct {
	TimePeriodDays               int                   `json:"time_period_days"`
	ActiveContributors           int                   `json:"active_contributors"`
	TotalCommits                 int                   `json:"total_commits"`
	TopActiveContributors        []ContributorActivity `json:"top_active_contributors"`
	AverageCommitsPerContributor float64               `json:"average_commits_per_contributor"`
}

func (s *Contributors) activity(ctx context.Context, owner, repo string, days int) (*ActivityReport, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Int("days", days).Msg("Analyzing contributor activity")

	since := s.now().AddDate(0, 0, -days)
	commits, err := s.api.ListCommits(ctx, owner, repo, github.CommitListOptions{PerPage: 100, Since: since})
	if err != nil {
		return nil, err
	}

	perAuthor := map[string]int{}
	for _, c := range commits {
		if c.Commit.Author.Name != "" {
			perAuthor[c.Commit.Author.Name]++
		}
	}

	ranked := make([]ContributorActivity, 0, len(perAuthor))
	for author, count := range perAuthor {
		ranked = append(ranked, ContributorActivity{Author: author, Commits: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Commits != ranked[j].Commits {
			return ranked[i].Commits > ranked[j].Commits
		}
		return ranked[i].Author < ranked[j].Author
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}

	report := &ActivityReport{
		TimePeriodDays:        days,
		ActiveContributors:    len(perAuthor),
		TotalCommits:          len(commits),
		TopActiveContributors: ranked,
	}
	if len(perAuthor) > 0 {
		report.AverageCommitsPerContributor = round2(float64(len(commits)) / float64(len(perAuthor)))
	}
	return report, nil
}

// ContributorStats is the get_contributor_stats result.
type ContributorStats struct {
	Username               string  `json:"username"`
	Contributions          int     `json:"contributions"`
	Rank                   int     `json:"rank"`
	ContributionPercentage float64 `json:"contribution_percentage"`
	TotalContributors      int     `json:"total_contributors"`
	ProfileURL             string  `json:"profile_url"`
	Type                   string  `json:"type"`
}

func (s *Contributors) stats(ctx context.Context, owner, repo, username string) (*ContributorStats, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Str("username", username).Msg("Fetching contributor stats")

	data, err := s.api.ListContributors(ctx, owner, repo, 100)
	if err != nil {
		return nil, err
	}

	total := 0
	var found *github.Contributor
	rank := 0
	for i, c := range data {
		total += c.Contributions
		if c.Login == username {
			found = &data[i]
			rank = i + 1
		}
	}
	if found == nil {
		return nil, fmt.Errorf("contributor %q not found in %s/%s", username, owner, repo)
	}

	stats := &ContributorStats{
		Username:          found.Login,
		Contributions:     found.Contributions,
		Rank:              rank,
		TotalContributors: len(data),
		ProfileURL:        found.HTMLURL,
		Type:              found.Type,
	}
	if total > 0 {
		stats.ContributionPercentage = round2(float64(found.Contributions) / float64(total) * 100)
	}
	return stats, nil
}

// DayActivity is the most active day in a commit frequency report.
type DayActivity struct {
	Date    string `json:"date"`
	Commits int    `json:"commits"`
}

// FrequencyReport is the analyze_commit_frequency result.
type FrequencyReport struct {
	TimePeriodDays       int          `json:"time_period_days"`
	TotalCommits         int          `json:"total_commits"`
	AverageCommitsPerDay float64      `json:"average_commits_per_day"`
	MostActiveDay        *DayActivity `json:"most_active_day,omitempty"`
	DaysWithCommits      int          `json:"days_with_commits"`
	ActivityRate         float64      `json:"activity_rate"`
	Message              string       `json:"message,omitempty"`
}

func (s *Contributors) commitFrequency(ctx context.Context, owner, repo string, days int) (*FrequencyReport, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Int("days", days).Msg("Analyzing commit frequency")

	since := s.now().AddDate(0, 0, -days)
	commits, err := s.api.ListCommits(ctx, owner, repo, github.CommitListOptions{PerPage: 100, Since: since})
	if err != nil {
		return nil, err
	}

	if len(commits) == 0 {
		return &FrequencyReport{
			TimePeriodDays: days,
			Message:        "No commits found in the specified period",
		}, nil
	}

	daily := map[string]int{}
	for _, c := range commits {
		if !c.Commit.Author.Date.IsZero() {
			daily[c.Commit.Author.Date.UTC().Format("2006-01-02")]++
		}
	}

	report := &FrequencyReport{
		TimePeriodDays:       days,
		TotalCommits:         len(commits),
		AverageCommitsPerDay: round2(float64(len(commits)) / float64(days)),
		DaysWithCommits:      len(daily),
		ActivityRate:         round2(float64(len(daily)) / float64(days) * 100),
	}
	for date, count := range daily {
		if report.MostActiveDay == nil ||
			count > report.MostActiveDay.Commits ||
			(count == report.MostActiveDay.Commits && date < report.MostActiveDay.Date) {
			report.MostActiveDay = &DayActivity{Date: date, Commits: count}
		}
	}
	return report, nil
}
