package syncer

import (
	"context"
	"errors"
	"fmt"

	custom_errors "github-metrics/internal/errors"
	"github-metrics/internal/github"
	"github-metrics/internal/model"
)

// SweepOrg reconciles open issues for every eligible repository.
func (s *Syncer) SweepOrg(ctx context.Context) error {
	repos, err := s.eligibleRepos(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Starting sweep", "org", s.org, "repositories", len(repos))

	for _, repo := range repos {
		if err := s.SweepRepo(ctx, repo); err != nil {
			return err
		}
	}
	s.logger.Info("Sweep finished", "org", s.org)
	return nil
}

// SweepRepo finds issues open locally but missing from the remote open set
// and refreshes each of them. Issues the remote no longer knows are marked
// deleted; that state is never reversed.
func (s *Syncer) SweepRepo(ctx context.Context, repo string) error {
	logger := s.logger.With("org", s.org, "repo", repo)

	remoteOpen := make(map[int]struct{})
	err := fetchAll(ctx, s.limiter,
		func(ctx context.Context, page int) (github.Page[int], error) {
			return s.remote.ListOpenIssueNumbers(ctx, s.org, repo, page)
		},
		func(n int) (bool, error) {
			remoteOpen[n] = struct{}{}
			return false, nil
		},
	)
	if err != nil {
		return s.repoError(repo, StageSweeping, err)
	}

	localOpen, err := s.store.ListOpenIssueNumbers(ctx, repo)
	if err != nil {
		return s.repoError(repo, StageSweeping, err)
	}

	var closed, deleted int
	for _, number := range localOpen {
		if _, ok := remoteOpen[number]; ok {
			continue
		}
		if err := s.limiter.Check(ctx); err != nil {
			return s.repoError(repo, StageSweeping, err)
		}

		issue, err := s.remote.GetIssue(ctx, s.org, repo, number)
		switch {
		case errors.Is(err, custom_errors.ErrResourceGone):
			logger.Info("Issue no longer exists, marking deleted", "number", number)
			if err := s.store.MarkIssueDeleted(ctx, repo, number, s.now().UTC()); err != nil {
				return s.repoError(repo, StageSweeping, fmt.Errorf("mark issue #%d deleted: %w", number, err))
			}
			deleted++
		case err != nil:
			return s.repoError(repo, StageSweeping, fmt.Errorf("get issue #%d: %w", number, err))
		default:
			state := issue.State
			if state == "" || state == model.UnknownState {
				state = model.StateClosed
			}
			if err := s.store.UpdateIssueState(ctx, repo, number, state, issue.ClosedAt); err != nil {
				return s.repoError(repo, StageSweeping, fmt.Errorf("update issue #%d: %w", number, err))
			}
			closed++
		}
	}

	logger.Info("Sweep complete",
		"remote_open", len(remoteOpen),
		"local_open", len(localOpen),
		"closed", closed,
		"deleted", deleted,
	)
	return nil
}
