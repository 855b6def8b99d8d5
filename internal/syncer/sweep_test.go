package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-metrics/internal/database"
	custom_errors "github-metrics/internal/errors"
	"github-metrics/internal/model"
)

func seedOpenIssues(t *testing.T, store database.Querier, repo string, numbers ...int) {
	t.Helper()
	for _, n := range numbers {
		require.NoError(t, store.UpsertIssue(context.Background(), model.Issue{
			ID: int64(1000 + n), Repo: repo, Number: n, State: model.StateOpen, Author: "carol",
			CreatedAt: day(1), UpdatedAt: day(1),
		}))
	}
}

func issuesByNumber(t *testing.T, issues []model.Issue) map[int]model.Issue {
	t.Helper()
	out := make(map[int]model.Issue, len(issues))
	for _, i := range issues {
		out[i.Number] = i
	}
	return out
}

func TestSweepRepo(t *testing.T) {
	ctx := context.Background()
	closedAt := day(20)

	t.Run("closes and deletes issues missing from the remote open set", func(t *testing.T) {
		store := newTestStore(t)
		seedOpenIssues(t, store, "sdk", 1, 2, 3, 4)
		remote := newFakeRemote()
		remote.openIssues["sdk"] = []int{1}
		remote.issueDetails["sdk#2"] = model.Issue{Number: 2, State: model.StateClosed, ClosedAt: &closedAt}
		remote.issueErrors["sdk#3"] = fmt.Errorf("issue sdk#3: %w", custom_errors.ErrResourceGone)
		remote.issueDetails["sdk#4"] = model.Issue{Number: 4, State: model.UnknownState}
		s := newTestSyncer(remote, store, &countingLimiter{})

		require.NoError(t, s.SweepRepo(ctx, "sdk"))

		open, err := store.ListOpenIssueNumbers(ctx, "sdk")
		require.NoError(t, err)
		assert.Equal(t, []int{1}, open)

		all, err := store.ListAllIssues(ctx)
		require.NoError(t, err)
		byNumber := issuesByNumber(t, all)

		assert.Equal(t, model.StateClosed, byNumber[2].State)
		require.NotNil(t, byNumber[2].ClosedAt)
		assert.Equal(t, closedAt, *byNumber[2].ClosedAt)

		assert.Equal(t, model.StateDeleted, byNumber[3].State)
		require.NotNil(t, byNumber[3].DeletedAt)
		assert.Equal(t, syncTime, *byNumber[3].DeletedAt)

		assert.Equal(t, model.StateClosed, byNumber[4].State, "missing state defaults to closed")
		assert.Equal(t, 3, remote.callCount("GetIssue"))
	})

	t.Run("deleted issues stay deleted after a later sync", func(t *testing.T) {
		store := newTestStore(t)
		seedOpenIssues(t, store, "sdk", 7)
		remote := newFakeRemote()
		remote.issueErrors["sdk#7"] = custom_errors.ErrResourceGone
		s := newTestSyncer(remote, store, &countingLimiter{})
		require.NoError(t, s.SweepRepo(ctx, "sdk"))

		remote.issues["sdk"] = []model.Issue{
			{ID: 1007, Repo: "sdk", Number: 7, State: model.StateOpen, Author: "carol", CreatedAt: day(1), UpdatedAt: syncTime.Add(time.Hour)},
		}
		require.NoError(t, s.SyncRepo(ctx, "sdk"))

		all, err := store.ListAllIssues(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, model.StateDeleted, all[0].State)
		require.NotNil(t, all[0].DeletedAt)
	})

	t.Run("other remote errors abort the sweep", func(t *testing.T) {
		store := newTestStore(t)
		seedOpenIssues(t, store, "sdk", 2, 3)
		remote := newFakeRemote()
		apiErr := errors.New("500 internal server error")
		remote.issueErrors["sdk#2"] = apiErr
		remote.issueErrors["sdk#3"] = custom_errors.ErrResourceGone
		s := newTestSyncer(remote, store, &countingLimiter{})

		err := s.SweepRepo(ctx, "sdk")

		var syncErr *custom_errors.RepoSyncError
		require.ErrorAs(t, err, &syncErr)
		assert.Equal(t, "Sweeping", syncErr.Stage)
		assert.ErrorIs(t, err, apiErr)

		open, err := store.ListOpenIssueNumbers(ctx, "sdk")
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3}, open, "issue #3 is untouched once the sweep aborts")
	})
}

func TestSweepOrg_VisitsEligibleRepositories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	remote := newFakeRemote()
	remote.repos = []model.Repository{{Name: "sdk"}, {Name: "old", Archived: true}, {Name: "docs"}}
	s := newTestSyncer(remote, store, &countingLimiter{})

	require.NoError(t, s.SweepOrg(ctx))

	assert.Len(t, remote.pagesRequested["ListOpenIssueNumbers:sdk"], 1)
	assert.Len(t, remote.pagesRequested["ListOpenIssueNumbers:docs"], 1)
	assert.Empty(t, remote.pagesRequested["ListOpenIssueNumbers:old"])
}
