// Package metrics derives one daily_metrics row per (date, repository) from
// the mirrored raw tables.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github-metrics/internal/config"
	"github-metrics/internal/database"
	"github-metrics/internal/model"
)

// internalAssociations are the author associations counted as internal
// contributors when splitting merge times.
var internalAssociations = map[string]bool{
	"OWNER":        true,
	"MEMBER":       true,
	"COLLABORATOR": true,
}

// Store is the storage the engine reads raw rows from and writes metrics to.
type Store interface {
	ExecTx(ctx context.Context, fn func(q database.Querier) error) error
}

// Engine recomputes daily metrics over a trailing dirty window.
type Engine struct {
	store        Store
	logger       *slog.Logger
	epoch        time.Time
	backdateDays int
	now          func() time.Time
}

func NewEngine(store Store, logger *slog.Logger, epoch time.Time, backdateDays int) *Engine {
	return &Engine{
		store:        store,
		logger:       logger,
		epoch:        epoch.UTC(),
		backdateDays: backdateDays,
		now:          time.Now,
	}
}

// Recompute deletes metric rows from the window start onwards and writes
// fresh rows for every day through today (UTC) and every active repository.
// The window starts backdateDays before the latest existing metrics date, or
// at the epoch when there is none. The whole recompute runs in one
// transaction.
func (e *Engine) Recompute(ctx context.Context) error {
	return e.store.ExecTx(ctx, func(q database.Querier) error {
		start, err := e.windowStart(ctx, q)
		if err != nil {
			return err
		}
		end := truncateDay(e.now())

		raw, err := loadRaw(ctx, q)
		if err != nil {
			return err
		}
		repos := raw.activeRepos()
		e.logger.Info("Recomputing daily metrics",
			"from", start.Format(config.DateLayout),
			"to", end.Format(config.DateLayout),
			"repositories", len(repos),
		)

		if err := q.DeleteMetricsFrom(ctx, start.Format(config.DateLayout)); err != nil {
			return fmt.Errorf("clear metrics window: %w", err)
		}

		agg := aggregate(raw)
		var written int
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			date := d.Format(config.DateLayout)
			for _, repo := range repos {
				if err := q.UpsertDailyMetric(ctx, agg.row(repo, date)); err != nil {
					return fmt.Errorf("write metrics for %s on %s: %w", repo, date, err)
				}
				written++
			}
		}
		e.logger.Info("Daily metrics recomputed", "rows", written)
		return nil
	})
}

func (e *Engine) windowStart(ctx context.Context, q database.Querier) (time.Time, error) {
	latest, ok, err := q.MaxMetricDate(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("read latest metrics date: %w", err)
	}
	if !ok {
		return truncateDay(e.epoch), nil
	}
	d, err := time.Parse(config.DateLayout, latest)
	if err != nil {
		e.logger.Warn("Unparsable metrics date, recomputing from today", "date", latest)
		return truncateDay(e.now()), nil
	}
	return d.AddDate(0, 0, -e.backdateDays), nil
}

// rawData holds every raw row the aggregates are derived from.
type rawData struct {
	prs            []model.PullRequest
	issues         []model.Issue
	issueComments  []model.IssueComment
	reviewComments []model.ReviewComment
	reviews        []model.Review
	stars          []model.Stargazer
	commits        []model.Commit
	runs           []model.WorkflowRun
}

func loadRaw(ctx context.Context, q database.Querier) (*rawData, error) {
	var (
		r   rawData
		err error
	)
	if r.prs, err = q.ListAllPullRequests(ctx); err != nil {
		return nil, fmt.Errorf("load pull requests: %w", err)
	}
	if r.issues, err = q.ListAllIssues(ctx); err != nil {
		return nil, fmt.Errorf("load issues: %w", err)
	}
	if r.issueComments, err = q.ListAllIssueComments(ctx); err != nil {
		return nil, fmt.Errorf("load issue comments: %w", err)
	}
	if r.reviewComments, err = q.ListAllReviewComments(ctx); err != nil {
		return nil, fmt.Errorf("load review comments: %w", err)
	}
	if r.reviews, err = q.ListAllReviews(ctx); err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	if r.stars, err = q.ListAllStargazers(ctx); err != nil {
		return nil, fmt.Errorf("load stargazers: %w", err)
	}
	if r.commits, err = q.ListAllCommits(ctx); err != nil {
		return nil, fmt.Errorf("load commits: %w", err)
	}
	if r.runs, err = q.ListAllWorkflowRuns(ctx); err != nil {
		return nil, fmt.Errorf("load workflow runs: %w", err)
	}
	return &r, nil
}

// activeRepos is every repository with at least one pull request, issue,
// stargazer or commit, sorted by name.
func (r *rawData) activeRepos() []string {
	set := make(map[string]struct{})
	for _, pr := range r.prs {
		set[pr.Repo] = struct{}{}
	}
	for _, i := range r.issues {
		set[i.Repo] = struct{}{}
	}
	for _, s := range r.stars {
		set[s.Repo] = struct{}{}
	}
	for _, c := range r.commits {
		set[c.Repo] = struct{}{}
	}
	repos := make([]string, 0, len(set))
	for repo := range set {
		repos = append(repos, repo)
	}
	sort.Strings(repos)
	return repos
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dateOf returns the UTC calendar date of t, or "" for the zero time.
func dateOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(config.DateLayout)
}

func hoursBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}
