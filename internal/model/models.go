package model

import (
	"time"

	"github.com/google/go-github/v62/github"
)

// Sentinels substituted for missing leaf fields in remote payloads.
const (
	UnknownAuthor = "unknown"
	UnknownState  = "unknown"
)

// Issue and pull request states as stored.
const (
	StateOpen    = "open"
	StateClosed  = "closed"
	StateDeleted = "deleted"
)

// Repository is an organization repository as listed by the remote API.
type Repository struct {
	Name     string
	Archived bool
	Private  bool
}

type PullRequest struct {
	ID                int64
	Repo              string
	Number            int
	State             string
	Author            string
	AuthorAssociation string
	Title             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	MergedAt          *time.Time
	ClosedAt          *time.Time
	Payload           *github.PullRequest
}

type Issue struct {
	ID        int64
	Repo      string
	Number    int
	State     string
	Author    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
	DeletedAt *time.Time
	// IsPullRequest marks listing entries that are pull requests. They are
	// never stored as issues.
	IsPullRequest bool
	Payload       *github.Issue
}

type IssueComment struct {
	ID          int64
	Repo        string
	IssueNumber int
	Author      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Payload     *github.IssueComment
}

// ReviewComment is a pull request review comment (a comment on a diff line).
type ReviewComment struct {
	ID        int64
	Repo      string
	PRNumber  int
	Author    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Payload   *github.PullRequestComment
}

type Review struct {
	ID          int64
	Repo        string
	PRNumber    int
	State       string
	Author      string
	SubmittedAt time.Time
	Payload     *github.PullRequestReview
}

type Stargazer struct {
	Repo      string
	User      string
	StarredAt time.Time
}

type Commit struct {
	SHA        string
	Repo       string
	Author     string
	CommitDate time.Time
	Additions  int
	Deletions  int
	Message    string
}

type WorkflowRun struct {
	ID         int64
	Repo       string
	Name       string
	HeadBranch string
	Conclusion string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DurationMS int64
}

// DailyMetric is one derived row per (date, repo). Averages are fractional
// hours and nil when no item contributed on that day.
type DailyMetric struct {
	Date                   string   `json:"date"`
	Repo                   string   `json:"repo"`
	PRsOpened              int64    `json:"prs_opened"`
	PRsMerged              int64    `json:"prs_merged"`
	IssuesOpened           int64    `json:"issues_opened"`
	IssuesClosed           int64    `json:"issues_closed"`
	ChurnAdditions         int64    `json:"churn_additions"`
	ChurnDeletions         int64    `json:"churn_deletions"`
	CIRuns                 int64    `json:"ci_runs"`
	CIFailures             int64    `json:"ci_failures"`
	Stars                  int64    `json:"stars"`
	OpenPRsCount           int64    `json:"open_prs_count"`
	OpenIssuesCount        int64    `json:"open_issues_count"`
	TimeToFirstResponse    *float64 `json:"time_to_first_response"`
	AvgIssueResolutionTime *float64 `json:"avg_issue_resolution_time"`
	AvgPRResolutionTime    *float64 `json:"avg_pr_resolution_time"`
	TimeToMergeInternal    *float64 `json:"time_to_merge_internal"`
	TimeToMergeExternal    *float64 `json:"time_to_merge_external"`
}
