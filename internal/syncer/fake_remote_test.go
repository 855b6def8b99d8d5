package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github-metrics/internal/github"
	"github-metrics/internal/model"
)

// fakeRemote serves canned pages and records every call it receives.
type fakeRemote struct {
	mu sync.Mutex

	repos         []model.Repository
	pullRequests  map[string][][]model.PullRequest
	reviews       map[string][]model.Review
	issues        map[string][]model.Issue
	openIssues    map[string][]int
	issueDetails  map[string]model.Issue
	issueErrors   map[string]error
	issueComments map[string][]model.IssueComment
	reviewComms   map[string][]model.ReviewComment
	stargazers    map[string][]model.Stargazer
	commitSHAs    map[string][]string
	commits       map[string]model.Commit
	workflowRuns  map[string][]model.WorkflowRun

	// failOn makes the named method return the error; failOnRepo does the
	// same for one "method:repo" key.
	failOn     map[string]error
	failOnRepo map[string]error

	calls map[string]int
	// pagesRequested records the page numbers requested per method and repo.
	pagesRequested map[string][]int
	workflowFilter []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		pullRequests:   map[string][][]model.PullRequest{},
		reviews:        map[string][]model.Review{},
		issues:         map[string][]model.Issue{},
		openIssues:     map[string][]int{},
		issueDetails:   map[string]model.Issue{},
		issueErrors:    map[string]error{},
		issueComments:  map[string][]model.IssueComment{},
		reviewComms:    map[string][]model.ReviewComment{},
		stargazers:     map[string][]model.Stargazer{},
		commitSHAs:     map[string][]string{},
		commits:        map[string]model.Commit{},
		workflowRuns:   map[string][]model.WorkflowRun{},
		failOn:         map[string]error{},
		failOnRepo:     map[string]error{},
		calls:          map[string]int{},
		pagesRequested: map[string][]int{},
	}
}

func (f *fakeRemote) record(method, repo string, page int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	key := method + ":" + repo
	f.pagesRequested[key] = append(f.pagesRequested[key], page)
	if err, ok := f.failOnRepo[key]; ok {
		return err
	}
	return f.failOn[method]
}

func (f *fakeRemote) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// single serves items as one page.
func single[T any](items []T) github.Page[T] {
	return github.Page[T]{Items: items}
}

// paged serves pages[0] for page 0 or 1 and pages[n-1] for page n.
func paged[T any](pages [][]T, page int) github.Page[T] {
	idx := page - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(pages) {
		return github.Page[T]{}
	}
	next := 0
	if idx+1 < len(pages) {
		next = idx + 2
	}
	return github.Page[T]{Items: pages[idx], NextPage: next}
}

func (f *fakeRemote) ListOrgRepos(_ context.Context, org string, page int) (github.Page[model.Repository], error) {
	if err := f.record("ListOrgRepos", org, page); err != nil {
		return github.Page[model.Repository]{}, err
	}
	return single(f.repos), nil
}

func (f *fakeRemote) ListPullRequests(_ context.Context, _, repo string, page int) (github.Page[model.PullRequest], error) {
	if err := f.record("ListPullRequests", repo, page); err != nil {
		return github.Page[model.PullRequest]{}, err
	}
	return paged(f.pullRequests[repo], page), nil
}

func (f *fakeRemote) ListReviews(_ context.Context, _, repo string, number, page int) (github.Page[model.Review], error) {
	if err := f.record("ListReviews", repo, page); err != nil {
		return github.Page[model.Review]{}, err
	}
	var out []model.Review
	for _, r := range f.reviews[repo] {
		if r.PRNumber == number {
			out = append(out, r)
		}
	}
	return single(out), nil
}

func (f *fakeRemote) ListIssues(_ context.Context, _, repo string, _ time.Time, page int) (github.Page[model.Issue], error) {
	if err := f.record("ListIssues", repo, page); err != nil {
		return github.Page[model.Issue]{}, err
	}
	return single(f.issues[repo]), nil
}

func (f *fakeRemote) ListOpenIssueNumbers(_ context.Context, _, repo string, page int) (github.Page[int], error) {
	if err := f.record("ListOpenIssueNumbers", repo, page); err != nil {
		return github.Page[int]{}, err
	}
	return single(f.openIssues[repo]), nil
}

func (f *fakeRemote) GetIssue(_ context.Context, _, repo string, number int) (model.Issue, error) {
	if err := f.record("GetIssue", repo, 0); err != nil {
		return model.Issue{}, err
	}
	key := fmt.Sprintf("%s#%d", repo, number)
	if err, ok := f.issueErrors[key]; ok {
		return model.Issue{}, err
	}
	return f.issueDetails[key], nil
}

func (f *fakeRemote) ListIssueComments(_ context.Context, _, repo string, _ time.Time, page int) (github.Page[model.IssueComment], error) {
	if err := f.record("ListIssueComments", repo, page); err != nil {
		return github.Page[model.IssueComment]{}, err
	}
	return single(f.issueComments[repo]), nil
}

func (f *fakeRemote) ListReviewComments(_ context.Context, _, repo string, _ time.Time, page int) (github.Page[model.ReviewComment], error) {
	if err := f.record("ListReviewComments", repo, page); err != nil {
		return github.Page[model.ReviewComment]{}, err
	}
	return single(f.reviewComms[repo]), nil
}

func (f *fakeRemote) ListStargazers(_ context.Context, _, repo string, page int) (github.Page[model.Stargazer], error) {
	if err := f.record("ListStargazers", repo, page); err != nil {
		return github.Page[model.Stargazer]{}, err
	}
	return single(f.stargazers[repo]), nil
}

func (f *fakeRemote) ListCommitSHAs(_ context.Context, _, repo string, _ time.Time, page int) (github.Page[string], error) {
	if err := f.record("ListCommitSHAs", repo, page); err != nil {
		return github.Page[string]{}, err
	}
	return single(f.commitSHAs[repo]), nil
}

func (f *fakeRemote) GetCommit(_ context.Context, _, repo, sha string) (model.Commit, error) {
	if err := f.record("GetCommit", repo, 0); err != nil {
		return model.Commit{}, err
	}
	return f.commits[sha], nil
}

func (f *fakeRemote) ListWorkflowRuns(_ context.Context, _, repo, created string, page int) (github.Page[model.WorkflowRun], error) {
	if err := f.record("ListWorkflowRuns", repo, page); err != nil {
		return github.Page[model.WorkflowRun]{}, err
	}
	f.mu.Lock()
	f.workflowFilter = append(f.workflowFilter, created)
	f.mu.Unlock()

	var runs []model.WorkflowRun
	for _, r := range f.workflowRuns[repo] {
		if createdMatches(created, r.CreatedAt) {
			runs = append(runs, r)
		}
	}
	return single(runs), nil
}

// createdMatches applies a ">DATE" or ">=DATE" filter to the UTC calendar
// day of t, the way the remote does.
func createdMatches(filter string, t time.Time) bool {
	date := t.UTC().Format("2006-01-02")
	switch {
	case strings.HasPrefix(filter, ">="):
		return date >= strings.TrimPrefix(filter, ">=")
	case strings.HasPrefix(filter, ">"):
		return date > strings.TrimPrefix(filter, ">")
	default:
		return true
	}
}

// countingLimiter allows every call and counts them.
type countingLimiter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *countingLimiter) Check(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.err
}
