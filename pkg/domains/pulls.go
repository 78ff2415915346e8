package domains

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/gitpulse/pkg/catalog"
	"github.com/harun/gitpulse/pkg/github"
)

// Pulls serves pull request workflow and velocity analytics.
type Pulls struct {
	api    GitHubAPI
	logger zerolog.Logger
	now    func() time.Time
}

// NewPulls creates the pull request analytics service.
func NewPulls(api GitHubAPI) *Pulls {
	return &Pulls{
		api:    api,
		logger: log.With().Str("domain", string(catalog.DomainPR)).Logger(),
		now:    time.Now,
	}
}

// Domain returns the service's domain prefix.
func (s *Pulls) Domain() catalog.Domain { return catalog.DomainPR }

// Tools returns the service's tool definitions.
func (s *Pulls) Tools() []catalog.ToolDefinition {
	return []catalog.ToolDefinition{
		{
			Name:        "list_pull_requests",
			Description: "List pull requests for a repository with optional state filtering",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "state", Type: "string", Description: "PR state: open, closed, or all", Default: "open"},
				{Name: "limit", Type: "integer", Description: "Number of PRs to retrieve (max 100)", Default: 30},
			},
		},
		{
			Name:        "get_pr_details",
			Description: "Get detailed information about a specific pull request",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "pr_number", Type: "integer", Description: "Pull request number", Required: true},
			},
		},
		{
			Name:        "calculate_avg_merge_time",
			Description: "Calculate average time to merge pull requests",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			},
		},
		{
			Name:        "get_stale_prs",
			Description: "Find stale pull requests with no activity for a specified number of days",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "days", Type: "integer", Description: "Days of inactivity to consider stale", Default: 30},
			},
		},
		{
			Name:        "analyze_pr_velocity",
			Description: "Analyze PR velocity - how many PRs are opened vs merged over time",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			},
		},
	}
}

// Invoke dispatches one pull request action.
func (s *Pulls) Invoke(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	owner := stringArg(args, "owner")
	repo := stringArg(args, "repo")

	switch action {
	case "list_pull_requests":
		return s.listPRs(ctx, owner, repo, stringArg(args, "state"), positiveIntArg(args, "limit", 30))
	case "get_pr_details":
		return s.prDetails(ctx, owner, repo, intArg(args, "pr_number", 0))
	case "calculate_avg_merge_time":
		return s.avgMergeTime(ctx, owner, repo)
	case "get_stale_prs":
		return s.stalePRs(ctx, owner, repo, positiveIntArg(args, "days", 30))
	case "analyze_pr_velocity":
		return s.velocity(ctx, owner, repo)
	default:
		return nil, unknownAction(s.Domain(), action)
	}
}

// PRSummary is one entry in the list_pull_requests result.
type PRSummary struct {
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	MergedAt       *time.Time `json:"merged_at,omitempty"`
	Author         string     `json:"author"`
	Draft          bool       `json:"draft"`
	MergeableState string     `json:"mergeable_state,omitempty"`
	URL            string     `json:"url"`
}

// PRList is the list_pull_requests result.
type PRList struct {
	PullRequests []PRSummary `json:"pull_requests"`
	Count        int         `json:"count"`
	State        string      `json:"state"`
}

func (s *Pulls) listPRs(ctx context.Context, owner, repo, state string, limit int) (*PRList, error) {
	if state == "" {
		state = "open"
	}
	s.logger.Info().Str("owner", owner).Str("repo", repo).Str("state", state).Msg("Listing pull requests")

	data, err := s.api.ListPullRequests(ctx, owner, repo, github.ListOptions{State: state, PerPage: limit})
	if err != nil {
		return nil, err
	}

	prs := make([]PRSummary, 0, len(data))
	for _, pr := range data {
		prs = append(prs, PRSummary{
			Number:         pr.Number,
			Title:          pr.Title,
			State:          pr.State,
			CreatedAt:      pr.CreatedAt,
			UpdatedAt:      pr.UpdatedAt,
			ClosedAt:       pr.ClosedAt,
			MergedAt:       pr.MergedAt,
			Author:         pr.User.Login,
			Draft:          pr.Draft,
			MergeableState: pr.MergeableState,
			URL:            pr.HTMLURL,
		})
	}
	return &PRList{PullRequests: prs, Count: len(prs), State: state}, nil
}

// PRDetails is the get_pr_details result.
type PRDetails struct {
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	MergedAt       *time.Time `json:"merged_at,omitempty"`
	Merged         bool       `json:"merged"`
	Author         string     `json:"author"`
	Draft          bool       `json:"draft"`
	Commits        int        `json:"commits"`
	Additions      int        `json:"additions"`
	Deletions      int        `json:"deletions"`
	ChangedFiles   int        `json:"changed_files"`
	Mergeable      *bool      `json:"mergeable,omitempty"`
	MergeableState string     `json:"mergeable_state,omitempty"`
	Labels         []string   `json:"labels"`
	URL            string     `json:"url"`
	HeadBranch     string     `json:"head_branch"`
	BaseBranch     string     `json:"base_branch"`
}

func (s *Pulls) prDetails(ctx context.Context, owner, repo string, number int) (*PRDetails, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Int("pr", number).Msg("Fetching pull request details")

	pr, err := s.api.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	return &PRDetails{
		Number:         pr.Number,
		Title:          pr.Title,
		Body:           pr.Body,
		State:          pr.State,
		CreatedAt:      pr.CreatedAt,
		UpdatedAt:      pr.UpdatedAt,
		ClosedAt:       pr.ClosedAt,
		MergedAt:       pr.MergedAt,
		Merged:         pr.Merged,
		Author:         pr.User.Login,
		Draft:          pr.Draft,
		Commits:        pr.Commits,
		Additions:      pr.Additions,
		Deletions:      pr.Deletions,
		ChangedFiles:   pr.ChangedFiles,
		Mergeable:      pr.Mergeable,
		MergeableState: pr.MergeableState,
		Labels:         labelNames(pr.Labels),
		URL:            pr.HTMLURL,
		HeadBranch:     pr.Head.Ref,
		BaseBranch:     pr.Base.Ref,
	}, nil
}

// MergeStats is the calculate_avg_merge_time result.
type MergeStats struct {
	AverageDays float64 `json:"average_days"`
	MinDays     float64 `json:"min_days,omitempty"`
	MaxDays     float64 `json:"max_days,omitempty"`
	MedianDays  float64 `json:"median_days,omitempty"`
	PRsAnalyzed int     `json:"prs_analyzed"`
	Message     string  `json:"message,omitempty"`
}

func (s *Pulls) avgMergeTime(ctx context.Context, owner, repo string) (*MergeStats, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Msg("Calculating merge time")

	data, err := s.api.ListPullRequests(ctx, owner, repo, github.ListOptions{State: "closed", PerPage: 100})
	if err != nil {
		return nil, err
	}

	var durations []float64
	for _, pr := range data {
		if pr.MergedAt == nil {
			continue
		}
		durations = append(durations, pr.MergedAt.Sub(pr.CreatedAt).Hours()/24)
	}

	if len(durations) == 0 {
		return &MergeStats{Message: "No merged PRs found"}, nil
	}
	avg, min, max, median := durationStats(durations)
	return &MergeStats{
		AverageDays: avg,
		MinDays:     min,
		MaxDays:     max,
		MedianDays:  median,
		PRsAnalyzed: len(durations),
	}, nil
}

// StalePR is one entry in the get_stale_prs result.
type StalePR struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	DaysStale   int       `json:"days_stale"`
	LastUpdated time.Time `json:"last_updated"`
	Author      string    `json:"author"`
	Draft       bool      `json:"draft"`
	URL         string    `json:"url"`
}

// StalePRs is the get_stale_prs result, sorted most stale first.
type StalePRs struct {
	StalePRs      []StalePR `json:"stale_prs"`
	Count         int       `json:"count"`
	ThresholdDays int       `json:"threshold_days"`
	MostStale     *StalePR  `json:"most_stale,omitempty"`
}

func (s *Pulls) stalePRs(ctx context.Context, owner, repo string, days int) (*StalePRs, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Int("days", days).Msg("Finding stale pull requests")

	data, err := s.api.ListPullRequests(ctx, owner, repo, github.ListOptions{State: "open", PerPage: 100})
	if err != nil {
		return nil, err
	}

	now := s.now()
	cutoff := now.AddDate(0, 0, -days)
	stale := []StalePR{}
	for _, pr := range data {
		if !pr.UpdatedAt.Before(cutoff) {
			continue
		}
		stale = append(stale, StalePR{
			Number:      pr.Number,
			Title:       pr.Title,
			DaysStale:   int(now.Sub(pr.UpdatedAt).Hours() / 24),
			LastUpdated: pr.UpdatedAt,
			Author:      pr.User.Login,
			Draft:       pr.Draft,
			URL:         pr.HTMLURL,
		})
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].DaysStale > stale[j].DaysStale })

	result := &StalePRs{StalePRs: stale, Count: len(stale), ThresholdDays: days}
	if len(stale) > 0 {
		result.MostStale = &stale[0]
	}
	return result, nil
}

// VelocityReport is the analyze_pr_velocity result.
type VelocityReport struct {
	OpenPRs            int     `json:"open_prs"`
	ClosedPRs          int     `json:"closed_prs"`
	MergedPRs          int     `json:"merged_prs"`
	ClosedWithoutMerge int     `json:"closed_without_merge"`
	MergeRate          float64 `json:"merge_rate"`
	VelocityStatus     string  `json:"velocity_status"`
}

func (s *Pulls) velocity(ctx context.Context, owner, repo string) (*VelocityReport, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Msg("Analyzing pull request velocity")

	open, err := s.api.ListPullRequests(ctx, owner, repo, github.ListOptions{State: "open", PerPage: 100})
	if err != nil {
		return nil, err
	}
	closed, err := s.api.ListPullRequests(ctx, owner, repo, github.ListOptions{State: "closed", PerPage: 100})
	if err != nil {
		return nil, err
	}

	merged := 0
	for _, pr := range closed {
		if pr.MergedAt != nil {
			merged++
		}
	}

	report := &VelocityReport{
		OpenPRs:            len(open),
		ClosedPRs:          len(closed),
		MergedPRs:          merged,
		ClosedWithoutMerge: len(closed) - merged,
	}
	if len(closed) > 0 {
		report.MergeRate = round2(float64(merged) / float64(len(closed)) * 100)
	}
	switch {
	case merged > len(open):
		report.VelocityStatus = "healthy"
	case len(open) > merged*2:
		report.VelocityStatus = "needs attention"
	default:
		report.VelocityStatus = "normal"
	}
	return report, nil
}
