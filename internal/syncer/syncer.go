package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github-metrics/internal/config"
	"github-metrics/internal/database"
	custom_errors "github-metrics/internal/errors"
	"github-metrics/internal/github"
	"github-metrics/internal/model"
)

// Remote is the subset of the GitHub client the syncer needs.
type Remote interface {
	ListOrgRepos(ctx context.Context, org string, page int) (github.Page[model.Repository], error)
	ListPullRequests(ctx context.Context, owner, repo string, page int) (github.Page[model.PullRequest], error)
	ListReviews(ctx context.Context, owner, repo string, number, page int) (github.Page[model.Review], error)
	ListIssues(ctx context.Context, owner, repo string, since time.Time, page int) (github.Page[model.Issue], error)
	ListOpenIssueNumbers(ctx context.Context, owner, repo string, page int) (github.Page[int], error)
	GetIssue(ctx context.Context, owner, repo string, number int) (model.Issue, error)
	ListIssueComments(ctx context.Context, owner, repo string, since time.Time, page int) (github.Page[model.IssueComment], error)
	ListReviewComments(ctx context.Context, owner, repo string, since time.Time, page int) (github.Page[model.ReviewComment], error)
	ListStargazers(ctx context.Context, owner, repo string, page int) (github.Page[model.Stargazer], error)
	ListCommitSHAs(ctx context.Context, owner, repo string, since time.Time, page int) (github.Page[string], error)
	GetCommit(ctx context.Context, owner, repo, sha string) (model.Commit, error)
	ListWorkflowRuns(ctx context.Context, owner, repo, created string, page int) (github.Page[model.WorkflowRun], error)
}

// Syncer mirrors an organization's repositories into the store.
type Syncer struct {
	remote         Remote
	store          database.Querier
	limiter        github.Limiter
	logger         *slog.Logger
	org            string
	excludedPrefix string
	now            func() time.Time
}

// NewSyncer creates a new Syncer instance. The limiter is consulted before
// every remote call.
func NewSyncer(remote Remote, store database.Querier, limiter github.Limiter, logger *slog.Logger, org, excludedPrefix string) *Syncer {
	return &Syncer{
		remote:         remote,
		store:          store,
		limiter:        limiter,
		logger:         logger,
		org:            org,
		excludedPrefix: excludedPrefix,
		now:            time.Now,
	}
}

// SyncOrg syncs every eligible repository in turn. The first failing
// repository aborts the run; repositories synced before it keep their
// checkpoints.
func (s *Syncer) SyncOrg(ctx context.Context) error {
	repos, err := s.eligibleRepos(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Starting sync", "org", s.org, "repositories", len(repos))

	for _, repo := range repos {
		if err := s.SyncRepo(ctx, repo); err != nil {
			return err
		}
	}
	s.logger.Info("Sync finished", "org", s.org)
	return nil
}

// SyncRepo runs every fetch stage for one repository and advances its
// checkpoint once all of them have succeeded.
func (s *Syncer) SyncRepo(ctx context.Context, repo string) error {
	logger := s.logger.With("org", s.org, "repo", repo)
	startedAt := s.now().UTC()

	since, err := s.store.GetCheckpoint(ctx, s.org, repo)
	if err != nil {
		return s.repoError(repo, StageIdle, err)
	}
	logger.Info("Syncing repository", "since", since.Format(time.RFC3339))

	stages := []struct {
		stage Stage
		run   func(ctx context.Context, logger *slog.Logger, repo string, since time.Time) error
	}{
		{StageFetchingPRs, s.syncPullRequests},
		{StageFetchingIssues, s.syncIssues},
		{StageFetchingIssueComments, s.syncIssueComments},
		{StageFetchingPRComments, s.syncReviewComments},
		{StageFetchingStars, s.syncStargazers},
		{StageFetchingCommits, s.syncCommits},
		{StageFetchingWorkflows, s.syncWorkflowRuns},
	}
	for _, st := range stages {
		logger.Debug("Entering stage", "stage", st.stage.String())
		if err := st.run(ctx, logger, repo, since); err != nil {
			return s.repoError(repo, st.stage, err)
		}
	}

	checkpoint := startedAt
	if checkpoint.Before(since) {
		checkpoint = since
	}
	if err := s.store.SetCheckpoint(ctx, s.org, repo, checkpoint); err != nil {
		return s.repoError(repo, StageCommitted, err)
	}
	logger.Info("Repository synced", "checkpoint", checkpoint.Format(time.RFC3339))
	return nil
}

func (s *Syncer) syncPullRequests(ctx context.Context, logger *slog.Logger, repo string, since time.Time) error {
	var count int
	err := fetchAll(ctx, s.limiter,
		func(ctx context.Context, page int) (github.Page[model.PullRequest], error) {
			return s.remote.ListPullRequests(ctx, s.org, repo, page)
		},
		func(pr model.PullRequest) (bool, error) {
			if olderThan(pr.UpdatedAt, since) {
				return true, nil
			}
			if err := s.store.UpsertPullRequest(ctx, pr); err != nil {
				return false, fmt.Errorf("upsert pull request #%d: %w", pr.Number, err)
			}
			count++
			if pr.UpdatedAt.IsZero() {
				return false, nil
			}
			return false, s.syncReviews(ctx, repo, pr.Number)
		},
	)
	logger.Info("Pull requests synced", "count", count)
	return err
}

func (s *Syncer) syncReviews(ctx context.Context, repo string, number int) error {
	return fetchAll(ctx, s.limiter,
		func(ctx context.Context, page int) (github.Page[model.Review], error) {
			return s.remote.ListReviews(ctx, s.org, repo, number, page)
		},
		func(r model.Review) (bool, error) {
			if err := s.store.UpsertReview(ctx, r); err != nil {
				return false, fmt.Errorf("upsert review %d on #%d: %w", r.ID, number, err)
			}
			return false, nil
		},
	)
}

func (s *Syncer) syncIssues(ctx context.Context, logger *slog.Logger, repo string, since time.Time) error {
	var count int
	err := fetchAll(ctx, s.limiter,
		func(ctx context.Context, page int) (github.Page[model.Issue], error) {
			return s.remote.ListIssues(ctx, s.org, repo, since, page)
		},
		func(issue model.Issue) (bool, error) {
			if olderThan(issue.UpdatedAt, since) {
				return true, nil
			}
			if issue.IsPullRequest {
				return false, nil
			}
			if err := s.store.UpsertIssue(ctx, issue); err != nil {
				return false, fmt.Errorf("upsert issue #%d: %w", issue.Number, err)
			}
			count++
			return false, nil
		},
	)
	logger.Info("Issues synced", "count", count)
	return err
}

func (s *Syncer) syncIssueComments(ctx context.Context, logger *slog.Logger, repo string, since time.Time) error {
	var count int
	err := fetchAll(ctx, s.limiter,
		func(ctx context.Context, page int) (github.Page[model.IssueComment], error) {
			return s.remote.ListIssueComments(ctx, s.org, repo, since, page)
		},
		func(c model.IssueComment) (bool, error) {
			if olderThan(c.UpdatedAt, since) {
				return true, nil
			}
			if err := s.store.UpsertIssueComment(ctx, c); err != nil {
				return false, fmt.Errorf("upsert issue comment %d: %w", c.ID, err)
			}
			count++
			return false, nil
		},
	)
	logger.Info("Issue comments synced", "count", count)
	return err
}

func (s *Syncer) syncReviewComments(ctx context.Context, logger *slog.Logger, repo string, since time.Time) error {
	var count int
	err := fetchAll(ctx, s.limiter,
		func(ctx context.Context, page int) (github.Page[model.ReviewComment], error) {
			return s.remote.ListReviewComments(ctx, s.org, repo, since, page)
		},
		func(c model.ReviewComment) (bool, error) {
			if olderThan(c.UpdatedAt, since) {
				return true, nil
			}
			if err := s.store.UpsertReviewComment(ctx, c); err != nil {
				return false, fmt.Errorf("upsert review comment %d: %w", c.ID, err)
			}
			count++
			return false, nil
		},
	)
	logger.Info("Review comments synced", "count", count)
	return err
}

// syncStargazers fetches the full stargazer list and removes local rows for
// users that no longer star the repository.
func (s *Syncer) syncStargazers(ctx context.Context, logger *slog.Logger, repo string, _ time.Time) error {
	remoteUsers := make(map[string]struct{})
	err := fetchAll(ctx, s.limiter,
		func(ctx context.Context, page int) (github.Page[model.Stargazer], error) {
			return s.remote.ListStargazers(ctx, s.org, repo, page)
		},
		func(star model.Stargazer) (bool, error) {
			if err := s.store.UpsertStargazer(ctx, star); err != nil {
				return false, fmt.Errorf("upsert stargazer %s: %w", star.User, err)
			}
			remoteUsers[star.User] = struct{}{}
			return false, nil
		},
	)
	if err != nil {
		return err
	}

	local, err := s.store.ListStargazerUsers(ctx, repo)
	if err != nil {
		return err
	}
	var removed int
	for _, user := range local {
		if _, ok := remoteUsers[user]; ok {
			continue
		}
		if err := s.store.DeleteStargazer(ctx, repo, user); err != nil {
			return fmt.Errorf("delete stargazer %s: %w", user, err)
		}
		removed++
	}
	logger.Info("Stargazers synced", "count", len(remoteUsers), "removed", removed)
	return nil
}

// syncCommits only fetches detail for commits not already stored; stored
// commits are never re-fetched.
func (s *Syncer) syncCommits(ctx context.Context, logger *slog.Logger, repo string, since time.Time) error {
	seen := make(map[string]struct{})
	var fetched int
	err := fetchAll(ctx, s.limiter,
		func(ctx context.Context, page int) (github.Page[string], error) {
			return s.remote.ListCommitSHAs(ctx, s.org, repo, since, page)
		},
		func(sha string) (bool, error) {
			if _, ok := seen[sha]; ok {
				return false, nil
			}
			seen[sha] = struct{}{}

			exists, err := s.store.CommitExists(ctx, sha)
			if err != nil {
				return false, err
			}
			if exists {
				return false, nil
			}

			if err := s.limiter.Check(ctx); err != nil {
				return false, err
			}
			commit, err := s.remote.GetCommit(ctx, s.org, repo, sha)
			if err != nil {
				return false, fmt.Errorf("get commit %s: %w", sha, err)
			}
			commit.Repo = repo
			if err := s.store.UpsertCommit(ctx, commit); err != nil {
				return false, fmt.Errorf("upsert commit %s: %w", sha, err)
			}
			fetched++
			return false, nil
		},
	)
	logger.Info("Commits synced", "listed", len(seen), "fetched", fetched)
	return err
}

func (s *Syncer) syncWorkflowRuns(ctx context.Context, logger *slog.Logger, repo string, since time.Time) error {
	// The filter has day granularity, so the checkpoint's own day is fetched
	// again in full.
	created := ">=" + since.UTC().Format(config.DateLayout)
	var count int
	err := fetchAll(ctx, s.limiter,
		func(ctx context.Context, page int) (github.Page[model.WorkflowRun], error) {
			return s.remote.ListWorkflowRuns(ctx, s.org, repo, created, page)
		},
		func(run model.WorkflowRun) (bool, error) {
			if err := s.store.UpsertWorkflowRun(ctx, run); err != nil {
				return false, fmt.Errorf("upsert workflow run %d: %w", run.ID, err)
			}
			count++
			return false, nil
		},
	)
	logger.Info("Workflow runs synced", "count", count)
	return err
}

// eligibleRepos lists the organization's repositories, dropping archived,
// private and prefix-excluded ones.
func (s *Syncer) eligibleRepos(ctx context.Context) ([]string, error) {
	var names []string
	err := fetchAll(ctx, s.limiter,
		func(ctx context.Context, page int) (github.Page[model.Repository], error) {
			return s.remote.ListOrgRepos(ctx, s.org, page)
		},
		func(r model.Repository) (bool, error) {
			if r.Archived || r.Private {
				return false, nil
			}
			if s.excludedPrefix != "" && strings.HasPrefix(r.Name, s.excludedPrefix) {
				return false, nil
			}
			names = append(names, r.Name)
			return false, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list repositories of %s: %w", s.org, err)
	}
	return names, nil
}

func (s *Syncer) repoError(repo string, stage Stage, err error) error {
	return &custom_errors.RepoSyncError{Org: s.org, Repo: repo, Stage: stage.String(), Err: err}
}

// fetchAll checks the limiter, then hands every item of every page to handle
// until handle asks to stop or the pages run out.
func fetchAll[T any](ctx context.Context, limiter github.Limiter, fetch github.PageFunc[T], handle func(T) (stop bool, err error)) error {
	if err := limiter.Check(ctx); err != nil {
		return err
	}
	for items, err := range github.Pages(ctx, limiter, fetch) {
		if err != nil {
			return err
		}
		for _, item := range items {
			stop, err := handle(item)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}
	}
	return nil
}

// olderThan reports whether an item updated at t lies before the watermark.
// Items without an update timestamp never end pagination.
func olderThan(t, since time.Time) bool {
	return !t.IsZero() && t.Before(since)
}
