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

// Issues serves issue tracking and health analysis.
type Issues struct {
	api    GitHubAPI
	logger zerolog.Logger
	now    func() time.Time
}

// NewIssues creates the issue management service.
func NewIssues(api GitHubAPI) *Issues {
	return &Issues{
		api:    api,
		logger: log.With().Str("domain", string(catalog.DomainIssue)).Logger(),
		now:    time.Now,
	}
}

// Domain returns the service's domain prefix.
func (s *Issues) Domain() catalog.Domain { return catalog.DomainIssue }

// Tools returns the service's tool definitions.
func (s *Issues) Tools() []catalog.ToolDefinition {
	return []catalog.ToolDefinition{
		{
			Name:        "list_issues",
			Description: "List issues for a repository with optional filtering by state and labels",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "state", Type: "string", Description: "Issue state: open, closed, or all", Default: "open"},
				{Name: "labels", Type: "string", Description: "Comma-separated list of labels to filter by"},
				{Name: "limit", Type: "integer", Description: "Number of issues to retrieve (max 100)", Default: 30},
			},
		},
		{
			Name:        "get_issue_details",
			Description: "Get detailed information about a specific issue including comments",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "issue_number", Type: "integer", Description: "Issue number", Required: true},
			},
		},
		{
			Name:        "analyze_issue_labels",
			Description: "Analyze issues by labels to see distribution and categorization",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "state", Type: "string", Description: "Issue state to analyze: open, closed, or all", Default: "all"},
			},
		},
		{
			Name:        "get_stale_issues",
			Description: "Find stale issues with no activity for a specified number of days",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
				{Name: "days", Type: "integer", Description: "Days of inactivity to consider stale", Default: 30},
			},
		},
		{
			Name:        "calculate_avg_resolution_time",
			Description: "Calculate average time to close issues for a repository",
			Parameters: []catalog.ToolParameter{
				{Name: "owner", Type: "string", Description: "Repository owner", Required: true},
				{Name: "repo", Type: "string", Description: "Repository name", Required: true},
			},
		},
	}
}

// Invoke dispatches one issue action.
func (s *Issues) Invoke(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	owner := stringArg(args, "owner")
	repo := stringArg(args, "repo")

	switch action {
	case "list_issues":
		return s.listIssues(ctx, owner, repo, stringArg(args, "state"), stringArg(args, "labels"), positiveIntArg(args, "limit", 30))
	case "get_issue_details":
		return s.issueDetails(ctx, owner, repo, intArg(args, "issue_number", 0))
	case "analyze_issue_labels":
		return s.analyzeLabels(ctx, owner, repo, stringArg(args, "state"))
	case "get_stale_issues":
		return s.staleIssues(ctx, owner, repo, positiveIntArg(args, "days", 30))
	case "calculate_avg_resolution_time":
		return s.avgResolutionTime(ctx, owner, repo)
	default:
		return nil, unknownAction(s.Domain(), action)
	}
}

// IssueSummary is one entry in the list_issues result.
type IssueSummary struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Labels    []string   `json:"labels"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Author    string     `json:"author"`
	Comments  int        `json:"comments"`
	URL       string     `json:"url"`
}

// IssueList is the list_issues result.
type IssueList struct {
	Issues []IssueSummary `json:"issues"`
	Count  int            `json:"count"`
	State  string         `json:"state"`
}

func (s *Issues) listIssues(ctx context.Context, owner, repo, state, labels string, limit int) (*IssueList, error) {
	if state == "" {
		state = "open"
	}
	s.logger.Info().Str("owner", owner).Str("repo", repo).Str("state", state).Msg("Listing issues")

	data, err := s.api.ListIssues(ctx, owner, repo, github.ListOptions{State: state, Labels: labels, PerPage: limit})
	if err != nil {
		return nil, err
	}

	issues := make([]IssueSummary, 0, len(data))
	for _, issue := range data {
		if issue.IsPullRequest() {
			continue
		}
		issues = append(issues, IssueSummary{
			Number:    issue.Number,
			Title:     issue.Title,
			State:     issue.State,
			Labels:    labelNames(issue.Labels),
			CreatedAt: issue.CreatedAt,
			UpdatedAt: issue.UpdatedAt,
			ClosedAt:  issue.ClosedAt,
			Author:    issue.User.Login,
			Comments:  issue.Comments,
			URL:       issue.HTMLURL,
		})
	}
	return &IssueList{Issues: issues, Count: len(issues), State: state}, nil
}

// IssueDetails is the get_issue_details result.
type IssueDetails struct {
	Number        int        `json:"number"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	State         string     `json:"state"`
	Labels        []string   `json:"labels"`
	Assignees     []string   `json:"assignees"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	Author        string     `json:"author"`
	CommentsCount int        `json:"comments_count"`
	URL           string     `json:"url"`
	Milestone     string     `json:"milestone,omitempty"`
}

func (s *Issues) issueDetails(ctx context.Context, owner, repo string, number int) (*IssueDetails, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Int("issue", number).Msg("Fetching issue details")

	issue, err := s.api.GetIssue(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	details := &IssueDetails{
		Number:        issue.Number,
		Title:         issue.Title,
		Body:          issue.Body,
		State:         issue.State,
		Labels:        labelNames(issue.Labels),
		Assignees:     userLogins(issue.Assignees),
		CreatedAt:     issue.CreatedAt,
		UpdatedAt:     issue.UpdatedAt,
		ClosedAt:      issue.ClosedAt,
		Author:        issue.User.Login,
		CommentsCount: issue.Comments,
		URL:           issue.HTMLURL,
	}
	if issue.Milestone != nil {
		details.Milestone = issue.Milestone.Title
	}
	return details, nil
}

// LabelCount is one label with its issue count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// LabelAnalysis is the analyze_issue_labels result.
type LabelAnalysis struct {
	LabelBreakdown []LabelCount `json:"label_breakdown"`
	TotalIssues    int          `json:"total_issues"`
	UniqueLabels   int          `json:"unique_labels"`
	TopLabels      []LabelCount `json:"top_labels"`
}

func (s *Issues) analyzeLabels(ctx context.Context, owner, repo, state string) (*LabelAnalysis, error) {
	if state == "" {
		state = "all"
	}
	s.logger.Info().Str("owner", owner).Str("repo", repo).Msg("Analyzing issue labels")

	data, err := s.api.ListIssues(ctx, owner, repo, github.ListOptions{State: state, PerPage: 100})
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	total := 0
	for _, issue := range data {
		if issue.IsPullRequest() {
			continue
		}
		total++
		for _, label := range issue.Labels {
			if label.Name != "" {
				counts[label.Name]++
			}
		}
	}

	breakdown := make([]LabelCount, 0, len(counts))
	for label, count := range counts {
		breakdown = append(breakdown, LabelCount{Label: label, Count: count})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Count != breakdown[j].Count {
			return breakdown[i].Count > breakdown[j].Count
		}
		return breakdown[i].Label < breakdown[j].Label
	})

	top := breakdown
	if len(top) > 10 {
		top = top[:10]
	}
	return &LabelAnalysis{
		LabelBreakdown: breakdown,
		TotalIssues:    total,
		UniqueLabels:   len(counts),
		TopLabels:      top,
	}, nil
}

// StaleIssue is one entry in the get_stale_issues result.
type StaleIssue struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	DaysStale   int       `json:"days_stale"`
	LastUpdated time.Time `json:"last_updated"`
	Labels      []string  `json:"labels"`
	URL         string    `json:"url"`
}

// StaleIssues is the get_stale_issues result, sorted most stale first.
type StaleIssues struct {
	StaleIssues   []StaleIssue `json:"stale_issues"`
	Count         int          `json:"count"`
	ThresholdDays int          `json:"threshold_days"`
	MostStale     *StaleIssue  `json:"most_stale,omitempty"`
}

func (s *Issues) staleIssues(ctx context.Context, owner, repo string, days int) (*StaleIssues, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Int("days", days).Msg("Finding stale issues")

	data, err := s.api.ListIssues(ctx, owner, repo, github.ListOptions{State: "open", PerPage: 100})
	if err != nil {
		return nil, err
	}

	now := s.now()
	cutoff := now.AddDate(0, 0, -days)
	stale := []StaleIssue{}
	for _, issue := range data {
		if issue.IsPullRequest() || !issue.UpdatedAt.Before(cutoff) {
			continue
		}
		stale = append(stale, StaleIssue{
			Number:      issue.Number,
			Title:       issue.Title,
			DaysStale:   int(now.Sub(issue.UpdatedAt).Hours() / 24),
			LastUpdated: issue.UpdatedAt,
			Labels:      labelNames(issue.Labels),
			URL:         issue.HTMLURL,
		})
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].DaysStale > stale[j].DaysStale })

	result := &StaleIssues{StaleIssues: stale, Count: len(stale), ThresholdDays: days}
	if len(stale) > 0 {
		result.MostStale = &stale[0]
	}
	return result, nil
}

// ResolutionStats is the calculate_avg_resolution_time result.
type ResolutionStats struct {
	AverageDays    float64 `json:"average_days"`
	MinDays        float64 `json:"min_days,omitempty"`
	MaxDays        float64 `json:"max_days,omitempty"`
	MedianDays     float64 `json:"median_days,omitempty"`
	IssuesAnalyzed int     `json:"issues_analyzed"`
	Message        string  `json:"message,omitempty"`
}

func (s *Issues) avgResolutionTime(ctx context.Context, owner, repo string) (*ResolutionStats, error) {
	s.logger.Info().Str("owner", owner).Str("repo", repo).Msg("Calculating issue resolution time")

	data, err := s.api.ListIssues(ctx, owner, repo, github.ListOptions{State: "closed", PerPage: 100})
	if err != nil {
		return nil, err
	}

	var durations []float64
	for _, issue := range data {
		if issue.IsPullRequest() || issue.ClosedAt == nil {
			continue
		}
		durations = append(durations, issue.ClosedAt.Sub(issue.CreatedAt).Hours()/24)
	}

	if len(durations) == 0 {
		return &ResolutionStats{Message: "No closed issues found"}, nil
	}
	avg, min, max, median := durationStats(durations)
	return &ResolutionStats{
		AverageDays:    avg,
		MinDays:        min,
		MaxDays:        max,
		MedianDays:     median,
		IssuesAnalyzed: len(durations),
	}, nil
}

func durationStats(durations []float64) (avg, min, max, median float64) {
	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	sort.Float64s(sorted)

	var sum float64
	for _, d := range sorted {
		sum += d
	}
	avg = round2(sum / float64(len(sorted)))
	min = round2(sorted[0])
	max = round2(sorted[len(sorted)-1])
	median = round2(sorted[len(sorted)/2])
	return avg, min, max, median
}

func labelNames(labels []github.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}

func userLogins(users []github.User) []string {
	logins := make([]string, 0, len(users))
	for _, u := range users {
		logins = append(logins, u.Login)
	}
	return logins
}
