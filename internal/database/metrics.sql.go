package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/go-github/v62/github"

	"github-metrics/internal/model"
)

// The ListAll queries load the columns the aggregation engine needs, plus the
// stored raw payload where the table keeps one.

const listAllPullRequests = `-- name: ListAllPullRequests :many
SELECT id, repo, number, state, author, author_association, created_at, updated_at, merged_at, closed_at, payload
FROM pull_requests
ORDER BY repo, number
`

func (q *Queries) ListAllPullRequests(ctx context.Context) ([]model.PullRequest, error) {
	rows, err := q.db.QueryContext(ctx, listAllPullRequests)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.PullRequest
	for rows.Next() {
		var (
			pr                 model.PullRequest
			created, updated   string
			merged, closedTime sql.NullString
			payload            string
		)
		if err := rows.Scan(&pr.ID, &pr.Repo, &pr.Number, &pr.State, &pr.Author, &pr.AuthorAssociation,
			&created, &updated, &merged, &closedTime, &payload); err != nil {
			return nil, err
		}
		if pr.Payload, err = unmarshalPayload[github.PullRequest](payload); err != nil {
			return nil, fmt.Errorf("decode payload of pull request %s#%d: %w", pr.Repo, pr.Number, err)
		}
		pr.CreatedAt = parseTime(created)
		pr.UpdatedAt = parseTime(updated)
		pr.MergedAt = parseNullTime(merged)
		pr.ClosedAt = parseNullTime(closedTime)
		items = append(items, pr)
	}
	return items, rows.Err()
}

const listAllIssues = `-- name: ListAllIssues :many
SELECT id, repo, number, state, author, created_at, updated_at, closed_at, deleted_at, payload
FROM issues
ORDER BY repo, number
`

func (q *Queries) ListAllIssues(ctx context.Context) ([]model.Issue, error) {
	rows, err := q.db.QueryContext(ctx, listAllIssues)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Issue
	for rows.Next() {
		var (
			i                   model.Issue
			created, updated    string
			closedTime, deleted sql.NullString
			payload             string
		)
		if err := rows.Scan(&i.ID, &i.Repo, &i.Number, &i.State, &i.Author,
			&created, &updated, &closedTime, &deleted, &payload); err != nil {
			return nil, err
		}
		if i.Payload, err = unmarshalPayload[github.Issue](payload); err != nil {
			return nil, fmt.Errorf("decode payload of issue %s#%d: %w", i.Repo, i.Number, err)
		}
		i.CreatedAt = parseTime(created)
		i.UpdatedAt = parseTime(updated)
		i.ClosedAt = parseNullTime(closedTime)
		i.DeletedAt = parseNullTime(deleted)
		items = append(items, i)
	}
	return items, rows.Err()
}

const listAllIssueComments = `-- name: ListAllIssueComments :many
SELECT id, repo, issue_number, author, created_at, updated_at, payload FROM issue_comments
ORDER BY id
`

func (q *Queries) ListAllIssueComments(ctx context.Context) ([]model.IssueComment, error) {
	rows, err := q.db.QueryContext(ctx, listAllIssueComments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.IssueComment
	for rows.Next() {
		var (
			c                         model.IssueComment
			created, updated, payload string
		)
		if err := rows.Scan(&c.ID, &c.Repo, &c.IssueNumber, &c.Author, &created, &updated, &payload); err != nil {
			return nil, err
		}
		if c.Payload, err = unmarshalPayload[github.IssueComment](payload); err != nil {
			return nil, fmt.Errorf("decode payload of issue comment %d: %w", c.ID, err)
		}
		c.CreatedAt = parseTime(created)
		c.UpdatedAt = parseTime(updated)
		items = append(items, c)
	}
	return items, rows.Err()
}

const listAllReviewComments = `-- name: ListAllReviewComments :many
SELECT id, repo, pr_number, author, created_at, updated_at, payload FROM pr_review_comments
ORDER BY id
`

func (q *Queries) ListAllReviewComments(ctx context.Context) ([]model.ReviewComment, error) {
	rows, err := q.db.QueryContext(ctx, listAllReviewComments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.ReviewComment
	for rows.Next() {
		var (
			c                         model.ReviewComment
			created, updated, payload string
		)
		if err := rows.Scan(&c.ID, &c.Repo, &c.PRNumber, &c.Author, &created, &updated, &payload); err != nil {
			return nil, err
		}
		if c.Payload, err = unmarshalPayload[github.PullRequestComment](payload); err != nil {
			return nil, fmt.Errorf("decode payload of review comment %d: %w", c.ID, err)
		}
		c.CreatedAt = parseTime(created)
		c.UpdatedAt = parseTime(updated)
		items = append(items, c)
	}
	return items, rows.Err()
}

const listAllReviews = `-- name: ListAllReviews :many
SELECT id, repo, pr_number, state, author, submitted_at, payload FROM pr_reviews
ORDER BY id
`

func (q *Queries) ListAllReviews(ctx context.Context) ([]model.Review, error) {
	rows, err := q.db.QueryContext(ctx, listAllReviews)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Review
	for rows.Next() {
		var (
			r                  model.Review
			submitted, payload string
		)
		if err := rows.Scan(&r.ID, &r.Repo, &r.PRNumber, &r.State, &r.Author, &submitted, &payload); err != nil {
			return nil, err
		}
		if r.Payload, err = unmarshalPayload[github.PullRequestReview](payload); err != nil {
			return nil, fmt.Errorf("decode payload of review %d: %w", r.ID, err)
		}
		r.SubmittedAt = parseTime(submitted)
		items = append(items, r)
	}
	return items, rows.Err()
}

const listAllStargazers = `-- name: ListAllStargazers :many
SELECT repo, user, starred_at FROM stargazers
ORDER BY repo, user
`

func (q *Queries) ListAllStargazers(ctx context.Context) ([]model.Stargazer, error) {
	rows, err := q.db.QueryContext(ctx, listAllStargazers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Stargazer
	for rows.Next() {
		var (
			s       model.Stargazer
			starred string
		)
		if err := rows.Scan(&s.Repo, &s.User, &starred); err != nil {
			return nil, err
		}
		s.StarredAt = parseTime(starred)
		items = append(items, s)
	}
	return items, rows.Err()
}

const listAllCommits = `-- name: ListAllCommits :many
SELECT sha, repo, author, date, additions, deletions FROM commits
ORDER BY repo, sha
`

func (q *Queries) ListAllCommits(ctx context.Context) ([]model.Commit, error) {
	rows, err := q.db.QueryContext(ctx, listAllCommits)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Commit
	for rows.Next() {
		var (
			c    model.Commit
			date string
		)
		if err := rows.Scan(&c.SHA, &c.Repo, &c.Author, &date, &c.Additions, &c.Deletions); err != nil {
			return nil, err
		}
		c.CommitDate = parseTime(date)
		items = append(items, c)
	}
	return items, rows.Err()
}

const listAllWorkflowRuns = `-- name: ListAllWorkflowRuns :many
SELECT id, repo, conclusion, created_at, updated_at, duration_ms FROM workflow_runs
ORDER BY id
`

func (q *Queries) ListAllWorkflowRuns(ctx context.Context) ([]model.WorkflowRun, error) {
	rows, err := q.db.QueryContext(ctx, listAllWorkflowRuns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.WorkflowRun
	for rows.Next() {
		var (
			r                model.WorkflowRun
			created, updated string
		)
		if err := rows.Scan(&r.ID, &r.Repo, &r.Conclusion, &created, &updated, &r.DurationMS); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(created)
		r.UpdatedAt = parseTime(updated)
		items = append(items, r)
	}
	return items, rows.Err()
}

const maxMetricDate = `-- name: MaxMetricDate :one
SELECT MAX(date) FROM daily_metrics
`

// MaxMetricDate returns the latest date with a metrics row, if any.
func (q *Queries) MaxMetricDate(ctx context.Context) (string, bool, error) {
	var date sql.NullString
	if err := q.db.QueryRowContext(ctx, maxMetricDate).Scan(&date); err != nil {
		return "", false, err
	}
	if !date.Valid || date.String == "" {
		return "", false, nil
	}
	return date.String, true, nil
}

const deleteMetricsFrom = `-- name: DeleteMetricsFrom :exec
DELETE FROM daily_metrics WHERE date >= ?
`

func (q *Queries) DeleteMetricsFrom(ctx context.Context, date string) error {
	_, err := q.db.ExecContext(ctx, deleteMetricsFrom, date)
	return err
}

const upsertDailyMetric = `-- name: UpsertDailyMetric :exec
INSERT OR REPLACE INTO daily_metrics (
    date, repo, prs_opened, prs_merged, issues_opened, issues_closed,
    churn_additions, churn_deletions, ci_runs, ci_failures, stars,
    open_prs_count, open_issues_count,
    time_to_first_response, avg_issue_resolution_time, avg_pr_resolution_time,
    time_to_merge_internal, time_to_merge_external
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) UpsertDailyMetric(ctx context.Context, m model.DailyMetric) error {
	_, err := q.db.ExecContext(ctx, upsertDailyMetric,
		m.Date,
		m.Repo,
		m.PRsOpened,
		m.PRsMerged,
		m.IssuesOpened,
		m.IssuesClosed,
		m.ChurnAdditions,
		m.ChurnDeletions,
		m.CIRuns,
		m.CIFailures,
		m.Stars,
		m.OpenPRsCount,
		m.OpenIssuesCount,
		nullFloat(m.TimeToFirstResponse),
		nullFloat(m.AvgIssueResolutionTime),
		nullFloat(m.AvgPRResolutionTime),
		nullFloat(m.TimeToMergeInternal),
		nullFloat(m.TimeToMergeExternal),
	)
	return err
}

const listDailyMetrics = `-- name: ListDailyMetrics :many
SELECT date, repo, prs_opened, prs_merged, issues_opened, issues_closed,
       churn_additions, churn_deletions, ci_runs, ci_failures, stars,
       open_prs_count, open_issues_count,
       time_to_first_response, avg_issue_resolution_time, avg_pr_resolution_time,
       time_to_merge_internal, time_to_merge_external
FROM daily_metrics
WHERE repo = ? AND date >= ? AND date <= ?
ORDER BY date
`

func (q *Queries) ListDailyMetrics(ctx context.Context, repo, from, to string) ([]model.DailyMetric, error) {
	rows, err := q.db.QueryContext(ctx, listDailyMetrics, repo, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.DailyMetric
	for rows.Next() {
		var (
			m                              model.DailyMetric
			firstResponse, issueRes, prRes sql.NullFloat64
			mergeInternal, mergeExternal   sql.NullFloat64
		)
		if err := rows.Scan(
			&m.Date, &m.Repo, &m.PRsOpened, &m.PRsMerged, &m.IssuesOpened, &m.IssuesClosed,
			&m.ChurnAdditions, &m.ChurnDeletions, &m.CIRuns, &m.CIFailures, &m.Stars,
			&m.OpenPRsCount, &m.OpenIssuesCount,
			&firstResponse, &issueRes, &prRes, &mergeInternal, &mergeExternal,
		); err != nil {
			return nil, err
		}
		m.TimeToFirstResponse = floatPtr(firstResponse)
		m.AvgIssueResolutionTime = floatPtr(issueRes)
		m.AvgPRResolutionTime = floatPtr(prRes)
		m.TimeToMergeInternal = floatPtr(mergeInternal)
		m.TimeToMergeExternal = floatPtr(mergeExternal)
		items = append(items, m)
	}
	return items, rows.Err()
}
