package github

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"

	"github-metrics/internal/model"
)

const (
	unknownReviewState = "UNKNOWN"
	inProgress         = "in_progress"
)

func toInternalRepository(r *github.Repository) model.Repository {
	return model.Repository{
		Name:     r.GetName(),
		Archived: r.GetArchived(),
		Private:  r.GetPrivate(),
	}
}

// toInternalPullRequest translates a github.PullRequest to our internal model.PullRequest.
func toInternalPullRequest(repo string, pr *github.PullRequest) model.PullRequest {
	state := pr.GetState()
	if state != model.StateOpen && state != model.StateClosed {
		state = model.UnknownState
	}
	return model.PullRequest{
		ID:                pr.GetID(),
		Repo:              repo,
		Number:            pr.GetNumber(),
		State:             state,
		Author:            loginOrUnknown(pr.GetUser()),
		AuthorAssociation: pr.GetAuthorAssociation(),
		Title:             pr.GetTitle(),
		CreatedAt:         pr.GetCreatedAt().Time.UTC(),
		UpdatedAt:         pr.GetUpdatedAt().Time.UTC(),
		MergedAt:          optionalTime(pr.MergedAt),
		ClosedAt:          optionalTime(pr.ClosedAt),
		Payload:           pr,
	}
}

func toInternalIssue(repo string, i *github.Issue) model.Issue {
	state := i.GetState()
	if state == "" {
		state = model.UnknownState
	}
	return model.Issue{
		ID:            i.GetID(),
		Repo:          repo,
		Number:        i.GetNumber(),
		State:         state,
		Author:        loginOrUnknown(i.GetUser()),
		Title:         i.GetTitle(),
		CreatedAt:     i.GetCreatedAt().Time.UTC(),
		UpdatedAt:     i.GetUpdatedAt().Time.UTC(),
		ClosedAt:      optionalTime(i.ClosedAt),
		IsPullRequest: i.IsPullRequest(),
		Payload:       i,
	}
}

// toInternalIssueComment takes the parent issue number from the last path
// segment of the comment's issue URL.
func toInternalIssueComment(repo string, c *github.IssueComment) model.IssueComment {
	return model.IssueComment{
		ID:          c.GetID(),
		Repo:        repo,
		IssueNumber: trailingNumber(c.GetIssueURL()),
		Author:      loginOrUnknown(c.GetUser()),
		CreatedAt:   c.GetCreatedAt().Time.UTC(),
		UpdatedAt:   c.GetUpdatedAt().Time.UTC(),
		Payload:     c,
	}
}

func toInternalReviewComment(repo string, c *github.PullRequestComment) model.ReviewComment {
	return model.ReviewComment{
		ID:        c.GetID(),
		Repo:      repo,
		PRNumber:  trailingNumber(c.GetPullRequestURL()),
		Author:    loginOrUnknown(c.GetUser()),
		CreatedAt: c.GetCreatedAt().Time.UTC(),
		UpdatedAt: c.GetUpdatedAt().Time.UTC(),
		Payload:   c,
	}
}

func toInternalReview(repo string, number int, r *github.PullRequestReview) model.Review {
	state := strings.ToUpper(r.GetState())
	if state == "" {
		state = unknownReviewState
	}
	return model.Review{
		ID:          r.GetID(),
		Repo:        repo,
		PRNumber:    number,
		State:       state,
		Author:      loginOrUnknown(r.GetUser()),
		SubmittedAt: r.GetSubmittedAt().Time.UTC(),
		Payload:     r,
	}
}

// toInternalCommit translates a github.RepositoryCommit to our internal model.Commit.
// Missing author or stats default to "unknown" and zero.
func toInternalCommit(repo, sha string, c *github.RepositoryCommit) model.Commit {
	author := c.GetCommit().GetAuthor().GetName()
	if author == "" {
		author = model.UnknownAuthor
	}
	if s := c.GetSHA(); s != "" {
		sha = s
	}
	return model.Commit{
		SHA:        sha,
		Repo:       repo,
		Author:     author,
		CommitDate: c.GetCommit().GetAuthor().GetDate().Time.UTC(),
		Additions:  c.GetStats().GetAdditions(),
		Deletions:  c.GetStats().GetDeletions(),
		Message:    c.GetCommit().GetMessage(),
	}
}

func toInternalWorkflowRun(repo string, r *github.WorkflowRun) model.WorkflowRun {
	conclusion := r.GetConclusion()
	if conclusion == "" {
		conclusion = inProgress
	}
	created := r.GetCreatedAt().Time.UTC()
	updated := r.GetUpdatedAt().Time.UTC()

	var duration int64
	if r.CreatedAt != nil && r.UpdatedAt != nil {
		duration = updated.Sub(created).Milliseconds()
	}
	return model.WorkflowRun{
		ID:         r.GetID(),
		Repo:       repo,
		Name:       r.GetName(),
		HeadBranch: r.GetHeadBranch(),
		Conclusion: conclusion,
		CreatedAt:  created,
		UpdatedAt:  updated,
		DurationMS: duration,
	}
}

func loginOrUnknown(u *github.User) string {
	if login := u.GetLogin(); login != "" {
		return login
	}
	return model.UnknownAuthor
}

func optionalTime(ts *github.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

// trailingNumber parses the last path segment of u, or returns 0.
func trailingNumber(u string) int {
	n, err := strconv.Atoi(path.Base(u))
	if err != nil {
		return 0
	}
	return n
}
