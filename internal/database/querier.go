package database

import (
	"context"
	"time"

	"github-metrics/internal/model"
)

type Querier interface {
	UpsertPullRequest(ctx context.Context, pr model.PullRequest) error
	UpsertIssue(ctx context.Context, issue model.Issue) error
	UpsertIssueComment(ctx context.Context, c model.IssueComment) error
	UpsertReviewComment(ctx context.Context, c model.ReviewComment) error
	UpsertReview(ctx context.Context, r model.Review) error
	UpsertStargazer(ctx context.Context, s model.Stargazer) error
	UpsertCommit(ctx context.Context, c model.Commit) error
	UpsertWorkflowRun(ctx context.Context, r model.WorkflowRun) error
	CommitExists(ctx context.Context, sha string) (bool, error)

	ListStargazerUsers(ctx context.Context, repo string) ([]string, error)
	DeleteStargazer(ctx context.Context, repo, user string) error

	GetCheckpoint(ctx context.Context, org, repo string) (time.Time, error)
	LookupCheckpoint(ctx context.Context, org, repo string) (time.Time, bool, error)
	SetCheckpoint(ctx context.Context, org, repo string, at time.Time) error

	ListOpenIssueNumbers(ctx context.Context, repo string) ([]int, error)
	UpdateIssueState(ctx context.Context, repo string, number int, state string, closedAt *time.Time) error
	MarkIssueDeleted(ctx context.Context, repo string, number int, at time.Time) error

	ListAllPullRequests(ctx context.Context) ([]model.PullRequest, error)
	ListAllIssues(ctx context.Context) ([]model.Issue, error)
	ListAllIssueComments(ctx context.Context) ([]model.IssueComment, error)
	ListAllReviewComments(ctx context.Context) ([]model.ReviewComment, error)
	ListAllReviews(ctx context.Context) ([]model.Review, error)
	ListAllStargazers(ctx context.Context) ([]model.Stargazer, error)
	ListAllCommits(ctx context.Context) ([]model.Commit, error)
	ListAllWorkflowRuns(ctx context.Context) ([]model.WorkflowRun, error)

	MaxMetricDate(ctx context.Context) (string, bool, error)
	DeleteMetricsFrom(ctx context.Context, date string) error
	UpsertDailyMetric(ctx context.Context, m model.DailyMetric) error
	ListDailyMetrics(ctx context.Context, repo, from, to string) ([]model.DailyMetric, error)
}

var _ Querier = (*Queries)(nil)
