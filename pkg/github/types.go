package github

import "time"

// Repository is the subset of the GitHub repository resource the
// analytics tools consume.
type Repository struct {
	Name            string     `json:"name"`
	FullName        string     `json:"full_name"`
	Description     string     `json:"description"`
	Owner           User       `json:"owner"`
	StargazersCount int        `json:"stargazers_count"`
	ForksCount      int        `json:"forks_count"`
	WatchersCount   int        `json:"watchers_count"`
	OpenIssuesCount int        `json:"open_issues_count"`
	Language        string     `json:"language"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	PushedAt        time.Time  `json:"pushed_at"`
	Size            int        `json:"size"`
	DefaultBranch   string     `json:"default_branch"`
	Private         bool       `json:"private"`
	HasWiki         bool       `json:"has_wiki"`
	HasPages        bool       `json:"has_pages"`
	License         *License   `json:"license"`
	HTMLURL         string     `json:"html_url"`
}

// License identifies a repository license.
type License struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// User is a GitHub account reference.
type User struct {
	Login     string `json:"login"`
	Type      string `json:"type"`
	HTMLURL   string `json:"html_url"`
	AvatarURL string `json:"avatar_url"`
}

// Commit is one entry from the commits listing endpoint.
type Commit struct {
	SHA     string       `json:"sha"`
	Commit  CommitDetail `json:"commit"`
	HTMLURL string       `json:"html_url"`
}

// CommitDetail holds the git-level commit metadata.
type CommitDetail struct {
	Message string       `json:"message"`
	Author  CommitAuthor `json:"author"`
}

// CommitAuthor is the git author signature.
type CommitAuthor struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// Label is an issue or pull request label.
type Label struct {
	Name string `json:"name"`
}

// Milestone is an issue milestone reference.
type Milestone struct {
	Title string `json:"title"`
}

// Issue is one entry from the issues endpoint. The endpoint also
// returns pull requests; PullRequest is non-nil for those entries and
// callers filter them out.
type Issue struct {
	Number      int              `json:"number"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	State       string           `json:"state"`
	Labels      []Label          `json:"labels"`
	Assignees   []User           `json:"assignees"`
	User        User             `json:"user"`
	Comments    int              `json:"comments"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ClosedAt    *time.Time       `json:"closed_at"`
	Milestone   *Milestone       `json:"milestone"`
	HTMLURL     string           `json:"html_url"`
	PullRequest *PullRequestLink `json:"pull_request"`
}

// PullRequestLink marks an issues-endpoint entry as a pull request.
type PullRequestLink struct {
	URL string `json:"url"`
}

// IsPullRequest reports whether this issues-endpoint entry is really
// a pull request.
func (i *Issue) IsPullRequest() bool {
	return i.PullRequest != nil
}

// Branch is a pull request head or base reference.
type Branch struct {
	Ref string `json:"ref"`
}

// PullRequest is the subset of the pulls resource the analytics tools
// consume.
type PullRequest struct {
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	State          string     `json:"state"`
	User           User       `json:"user"`
	Draft          bool       `json:"draft"`
	Labels         []Label    `json:"labels"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ClosedAt       *time.Time `json:"closed_at"`
	MergedAt       *time.Time `json:"merged_at"`
	Merged         bool       `json:"merged"`
	Commits        int        `json:"commits"`
	Additions      int        `json:"additions"`
	Deletions      int        `json:"deletions"`
	ChangedFiles   int        `json:"changed_files"`
	Mergeable      *bool      `json:"mergeable"`
	MergeableState string     `json:"mergeable_state"`
	Head           Branch     `json:"head"`
	Base           Branch     `json:"base"`
	HTMLURL        string     `json:"html_url"`
}

// Contributor is one entry from the contributors endpoint, ordered by
// GitHub in descending contribution count.
type Contributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
	Type          string `json:"type"`
	HTMLURL       string `json:"html_url"`
	AvatarURL     string `json:"avatar_url"`
}

// RateLimit reports the core API quota.
type RateLimit struct {
	Resources struct {
		Core RateLimitBucket `json:"core"`
	} `json:"resources"`
}

// RateLimitBucket is one quota bucket.
type RateLimitBucket struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

// ListOptions carries common listing parameters.
type ListOptions struct {
	State   string
	Labels  string
	PerPage int
}

// CommitListOptions carries commit listing parameters.
type CommitListOptions struct {
	PerPage int
	Since   time.Time
	Author  string
}
