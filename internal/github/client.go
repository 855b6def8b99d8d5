package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "github-metrics/internal/errors"
	"github-metrics/internal/model"
)

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:     github.NewClient(tc),
		logger: logger,
	}
}

// UseEnterpriseURL points the client at a GitHub Enterprise Server API.
func (c *Client) UseEnterpriseURL(baseURL string) error {
	gh, err := c.gh.WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return fmt.Errorf("set enterprise url: %w", err)
	}
	c.gh = gh
	return nil
}

// Quota returns the remaining core request quota and its reset time.
func (c *Client) Quota(ctx context.Context) (int, time.Time, error) {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return 0, time.Time{}, err
	}
	core := limits.GetCore()
	if core == nil {
		return 0, time.Time{}, errors.New("rate limit response has no core quota")
	}
	return core.Remaining, core.Reset.Time, nil
}

// ListOrgRepos fetches one page of an organization's repositories.
func (c *Client) ListOrgRepos(ctx context.Context, org string, page int) (Page[model.Repository], error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	c.logger.Debug("Fetching repositories page", "org", org, "page", page)

	repos, resp, err := c.gh.Repositories.ListByOrg(ctx, org, opts)
	if err != nil {
		return Page[model.Repository]{}, err
	}
	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, toInternalRepository(r))
	}
	return Page[model.Repository]{Items: out, NextPage: resp.NextPage}, nil
}

// ListPullRequests fetches one page of pull requests in every state, most
// recently updated first.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, page int) (Page[model.PullRequest], error) {
	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	c.logger.Debug("Fetching pull requests page", "owner", owner, "repo", repo, "page", page)

	prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return Page[model.PullRequest]{}, err
	}
	out := make([]model.PullRequest, 0, len(prs))
	for _, pr := range prs {
		out = append(out, toInternalPullRequest(repo, pr))
	}
	return Page[model.PullRequest]{Items: out, NextPage: resp.NextPage}, nil
}

// ListReviews fetches one page of reviews for a pull request.
func (c *Client) ListReviews(ctx context.Context, owner, repo string, number, page int) (Page[model.Review], error) {
	opts := &github.ListOptions{Page: page, PerPage: perPage}

	reviews, resp, err := c.gh.PullRequests.ListReviews(ctx, owner, repo, number, opts)
	if err != nil {
		return Page[model.Review]{}, err
	}
	out := make([]model.Review, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, toInternalReview(repo, number, r))
	}
	return Page[model.Review]{Items: out, NextPage: resp.NextPage}, nil
}

// ListIssues fetches one page of issues updated since the given time, most
// recently updated first. Pull requests in the listing are marked, not dropped,
// so callers still see their update timestamps.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, since time.Time, page int) (Page[model.Issue], error) {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		Since:       since,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	c.logger.Debug("Fetching issues page", "owner", owner, "repo", repo, "page", page)

	issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, repo, opts)
	if err != nil {
		return Page[model.Issue]{}, err
	}
	out := make([]model.Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, toInternalIssue(repo, i))
	}
	return Page[model.Issue]{Items: out, NextPage: resp.NextPage}, nil
}

// ListOpenIssueNumbers fetches one page of the numbers of currently open
// issues. No watermark applies.
func (c *Client) ListOpenIssueNumbers(ctx context.Context, owner, repo string, page int) (Page[int], error) {
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}

	issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, repo, opts)
	if err != nil {
		return Page[int]{}, err
	}
	out := make([]int, 0, len(issues))
	for _, i := range issues {
		if i.Number != nil {
			out = append(out, i.GetNumber())
		}
	}
	return Page[int]{Items: out, NextPage: resp.NextPage}, nil
}

// GetIssue fetches a single issue. A 404 or 410 answer is reported as
// custom_errors.ErrResourceGone.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (model.Issue, error) {
	issue, _, err := c.gh.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		if IsMissingResource(err) {
			return model.Issue{}, fmt.Errorf("issue %s/%s#%d: %w", owner, repo, number, custom_errors.ErrResourceGone)
		}
		return model.Issue{}, err
	}
	return toInternalIssue(repo, issue), nil
}

// ListIssueComments fetches one page of the repository's issue comments
// updated since the given time, most recently updated first.
func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, since time.Time, page int) (Page[model.IssueComment], error) {
	sort, direction := "updated", "desc"
	opts := &github.IssueListCommentsOptions{
		Sort:        &sort,
		Direction:   &direction,
		Since:       &since,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}

	// Issue number 0 lists comments across the whole repository.
	comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, 0, opts)
	if err != nil {
		return Page[model.IssueComment]{}, err
	}
	out := make([]model.IssueComment, 0, len(comments))
	for _, cm := range comments {
		out = append(out, toInternalIssueComment(repo, cm))
	}
	return Page[model.IssueComment]{Items: out, NextPage: resp.NextPage}, nil
}

// ListReviewComments fetches one page of the repository's pull request review
// comments updated since the given time, most recently updated first.
func (c *Client) ListReviewComments(ctx context.Context, owner, repo string, since time.Time, page int) (Page[model.ReviewComment], error) {
	opts := &github.PullRequestListCommentsOptions{
		Sort:        "updated",
		Direction:   "desc",
		Since:       since,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}

	comments, resp, err := c.gh.PullRequests.ListComments(ctx, owner, repo, 0, opts)
	if err != nil {
		return Page[model.ReviewComment]{}, err
	}
	out := make([]model.ReviewComment, 0, len(comments))
	for _, cm := range comments {
		out = append(out, toInternalReviewComment(repo, cm))
	}
	return Page[model.ReviewComment]{Items: out, NextPage: resp.NextPage}, nil
}

// ListStargazers fetches one page of stargazers with their starred-at
// timestamps. go-github sends the star media type that carries them.
// Entries missing either the user or the timestamp are skipped.
func (c *Client) ListStargazers(ctx context.Context, owner, repo string, page int) (Page[model.Stargazer], error) {
	opts := &github.ListOptions{Page: page, PerPage: perPage}

	stars, resp, err := c.gh.Activity.ListStargazers(ctx, owner, repo, opts)
	if err != nil {
		return Page[model.Stargazer]{}, err
	}
	out := make([]model.Stargazer, 0, len(stars))
	for _, s := range stars {
		if s.StarredAt == nil || s.User == nil || s.User.GetLogin() == "" {
			continue
		}
		out = append(out, model.Stargazer{
			Repo:      repo,
			User:      s.User.GetLogin(),
			StarredAt: s.StarredAt.Time.UTC(),
		})
	}
	return Page[model.Stargazer]{Items: out, NextPage: resp.NextPage}, nil
}

// ListCommitSHAs fetches one page of commit SHAs since the given time.
func (c *Client) ListCommitSHAs(ctx context.Context, owner, repo string, since time.Time, page int) (Page[string], error) {
	opts := &github.CommitsListOptions{
		Since:       since,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	c.logger.Debug("Fetching commits page", "owner", owner, "repo", repo, "page", page)

	commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		return Page[string]{}, err
	}
	out := make([]string, 0, len(commits))
	for _, cm := range commits {
		if sha := cm.GetSHA(); sha != "" {
			out = append(out, sha)
		}
	}
	return Page[string]{Items: out, NextPage: resp.NextPage}, nil
}

// GetCommit fetches a single commit including its line stats.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (model.Commit, error) {
	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return model.Commit{}, err
	}
	return toInternalCommit(repo, sha, commit), nil
}

// ListWorkflowRuns fetches one page of workflow runs matching a created
// date-range expression such as ">2024-01-01".
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, repo, created string, page int) (Page[model.WorkflowRun], error) {
	opts := &github.ListWorkflowRunsOptions{
		Created:     created,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}

	runs, resp, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, opts)
	if err != nil {
		return Page[model.WorkflowRun]{}, err
	}
	out := make([]model.WorkflowRun, 0, len(runs.WorkflowRuns))
	for _, r := range runs.WorkflowRuns {
		out = append(out, toInternalWorkflowRun(repo, r))
	}
	return Page[model.WorkflowRun]{Items: out, NextPage: resp.NextPage}, nil
}

// IsMissingResource reports whether err is a 404 Not Found or 410 Gone answer.
func IsMissingResource(err error) bool {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) {
		return false
	}
	if ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return true
		}
	}
	msg := strings.TrimSuffix(ghErr.Message, ".")
	return strings.EqualFold(msg, "Not Found")
}
