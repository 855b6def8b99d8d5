package metrics

import (
	"sort"
	"time"

	"github-metrics/internal/model"
)

type dayKey struct {
	repo string
	date string
}

type itemKey struct {
	repo   string
	number int
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

// timeline counts items alive on each day via start/end deltas, so the value
// for a date is the running sum of every delta on or before it.
type timeline struct {
	deltas map[string]map[string]int64
	totals map[string]runningTotal
}

type runningTotal struct {
	dates  []string
	totals []int64
}

func newTimeline() *timeline {
	return &timeline{
		deltas: map[string]map[string]int64{},
		totals: map[string]runningTotal{},
	}
}

// span records an item alive from start (inclusive) until end (exclusive).
// An empty end means it is still alive.
func (t *timeline) span(repo, start, end string) {
	if start == "" {
		return
	}
	if end != "" && end <= start {
		return
	}
	t.add(repo, start, 1)
	if end != "" {
		t.add(repo, end, -1)
	}
}

func (t *timeline) add(repo, date string, v int64) {
	byDate, ok := t.deltas[repo]
	if !ok {
		byDate = map[string]int64{}
		t.deltas[repo] = byDate
	}
	byDate[date] += v
}

// at returns the running total for repo on date. Deltas must not be added
// after the first call.
func (t *timeline) at(repo, date string) int64 {
	rt, ok := t.totals[repo]
	if !ok {
		rt = t.build(repo)
		t.totals[repo] = rt
	}
	i := sort.SearchStrings(rt.dates, date)
	if i < len(rt.dates) && rt.dates[i] == date {
		return rt.totals[i]
	}
	if i == 0 {
		return 0
	}
	return rt.totals[i-1]
}

func (t *timeline) build(repo string) runningTotal {
	byDate := t.deltas[repo]
	rt := runningTotal{dates: make([]string, 0, len(byDate))}
	for d := range byDate {
		rt.dates = append(rt.dates, d)
	}
	sort.Strings(rt.dates)

	var total int64
	rt.totals = make([]int64, len(rt.dates))
	for i, d := range rt.dates {
		total += byDate[d]
		rt.totals[i] = total
	}
	return rt
}

// aggregates holds every per-(repo, date) value derived from the raw rows.
type aggregates struct {
	prsOpened      map[dayKey]int64
	prsMerged      map[dayKey]int64
	issuesOpened   map[dayKey]int64
	issuesClosed   map[dayKey]int64
	churnAdditions map[dayKey]int64
	churnDeletions map[dayKey]int64
	ciRuns         map[dayKey]int64
	ciFailures     map[dayKey]int64

	stars      *timeline
	openPRs    *timeline
	openIssues *timeline

	firstResponse   map[dayKey]*mean
	issueResolution map[dayKey]*mean
	prResolution    map[dayKey]*mean
	mergeInternal   map[dayKey]*mean
	mergeExternal   map[dayKey]*mean
}

func aggregate(raw *rawData) *aggregates {
	a := &aggregates{
		prsOpened:       map[dayKey]int64{},
		prsMerged:       map[dayKey]int64{},
		issuesOpened:    map[dayKey]int64{},
		issuesClosed:    map[dayKey]int64{},
		churnAdditions:  map[dayKey]int64{},
		churnDeletions:  map[dayKey]int64{},
		ciRuns:          map[dayKey]int64{},
		ciFailures:      map[dayKey]int64{},
		stars:           newTimeline(),
		openPRs:         newTimeline(),
		openIssues:      newTimeline(),
		firstResponse:   map[dayKey]*mean{},
		issueResolution: map[dayKey]*mean{},
		prResolution:    map[dayKey]*mean{},
		mergeInternal:   map[dayKey]*mean{},
		mergeExternal:   map[dayKey]*mean{},
	}

	for _, pr := range raw.prs {
		created := dateOf(pr.CreatedAt)
		if created != "" {
			a.prsOpened[dayKey{pr.Repo, created}]++
		}
		a.openPRs.span(pr.Repo, created, dateOfPtr(pr.ClosedAt))

		if pr.MergedAt != nil {
			merged := dayKey{pr.Repo, dateOf(*pr.MergedAt)}
			a.prsMerged[merged]++
			if !pr.CreatedAt.IsZero() {
				hours := hoursBetween(pr.CreatedAt, *pr.MergedAt)
				if internalAssociations[pr.AuthorAssociation] {
					addMean(a.mergeInternal, merged, hours)
				} else {
					addMean(a.mergeExternal, merged, hours)
				}
			}
		}

		resolved := pr.MergedAt
		if resolved == nil {
			resolved = pr.ClosedAt
		}
		if resolved != nil && !pr.CreatedAt.IsZero() {
			addMean(a.prResolution, dayKey{pr.Repo, dateOf(*resolved)}, hoursBetween(pr.CreatedAt, *resolved))
		}
	}

	for _, i := range raw.issues {
		created := dateOf(i.CreatedAt)
		if created != "" {
			a.issuesOpened[dayKey{i.Repo, created}]++
		}
		a.openIssues.span(i.Repo, created, earliestDate(i.ClosedAt, i.DeletedAt))

		if i.ClosedAt != nil {
			closed := dayKey{i.Repo, dateOf(*i.ClosedAt)}
			a.issuesClosed[closed]++
			if !i.CreatedAt.IsZero() {
				addMean(a.issueResolution, closed, hoursBetween(i.CreatedAt, *i.ClosedAt))
			}
		}
	}

	for _, c := range raw.commits {
		key := dayKey{c.Repo, dateOf(c.CommitDate)}
		a.churnAdditions[key] += int64(c.Additions)
		a.churnDeletions[key] += int64(c.Deletions)
	}

	for _, r := range raw.runs {
		key := dayKey{r.Repo, dateOf(r.CreatedAt)}
		a.ciRuns[key]++
		if r.Conclusion == "failure" {
			a.ciFailures[key]++
		}
	}

	for _, s := range raw.stars {
		a.stars.span(s.Repo, dateOf(s.StarredAt), "")
	}

	a.indexFirstResponses(raw)
	return a
}

type parent struct {
	key     itemKey
	author  string
	created time.Time
}

// indexFirstResponses finds, for every issue and pull request, the earliest
// comment, review or review comment by someone other than its author made
// after it was opened, and averages the latency by the item's creation date.
func (a *aggregates) indexFirstResponses(raw *rawData) {
	var parents []parent
	byKey := make(map[itemKey]int)
	addParent := func(repo string, number int, author string, created time.Time) {
		if created.IsZero() {
			return
		}
		key := itemKey{repo, number}
		if _, ok := byKey[key]; ok {
			return
		}
		byKey[key] = len(parents)
		parents = append(parents, parent{key: key, author: author, created: created})
	}
	for _, i := range raw.issues {
		addParent(i.Repo, i.Number, i.Author, i.CreatedAt)
	}
	for _, pr := range raw.prs {
		addParent(pr.Repo, pr.Number, pr.Author, pr.CreatedAt)
	}

	earliest := make([]time.Time, len(parents))
	consider := func(repo string, number int, author string, at time.Time) {
		idx, ok := byKey[itemKey{repo, number}]
		if !ok {
			return
		}
		p := parents[idx]
		if !at.After(p.created) || author == p.author {
			return
		}
		if earliest[idx].IsZero() || at.Before(earliest[idx]) {
			earliest[idx] = at
		}
	}
	for _, c := range raw.issueComments {
		consider(c.Repo, c.IssueNumber, c.Author, c.CreatedAt)
	}
	for _, r := range raw.reviews {
		consider(r.Repo, r.PRNumber, r.Author, r.SubmittedAt)
	}
	for _, c := range raw.reviewComments {
		consider(c.Repo, c.PRNumber, c.Author, c.CreatedAt)
	}

	for idx, p := range parents {
		if earliest[idx].IsZero() {
			continue
		}
		addMean(a.firstResponse, dayKey{p.key.repo, dateOf(p.created)}, hoursBetween(p.created, earliest[idx]))
	}
}

// row assembles the metrics for one repository on one date.
func (a *aggregates) row(repo, date string) model.DailyMetric {
	key := dayKey{repo, date}
	return model.DailyMetric{
		Date:                   date,
		Repo:                   repo,
		PRsOpened:              a.prsOpened[key],
		PRsMerged:              a.prsMerged[key],
		IssuesOpened:           a.issuesOpened[key],
		IssuesClosed:           a.issuesClosed[key],
		ChurnAdditions:         a.churnAdditions[key],
		ChurnDeletions:         a.churnDeletions[key],
		CIRuns:                 a.ciRuns[key],
		CIFailures:             a.ciFailures[key],
		Stars:                  a.stars.at(repo, date),
		OpenPRsCount:           a.openPRs.at(repo, date),
		OpenIssuesCount:        a.openIssues.at(repo, date),
		TimeToFirstResponse:    average(a.firstResponse[key]),
		AvgIssueResolutionTime: average(a.issueResolution[key]),
		AvgPRResolutionTime:    average(a.prResolution[key]),
		TimeToMergeInternal:    average(a.mergeInternal[key]),
		TimeToMergeExternal:    average(a.mergeExternal[key]),
	}
}

func addMean(m map[dayKey]*mean, key dayKey, v float64) {
	acc, ok := m[key]
	if !ok {
		acc = &mean{}
		m[key] = acc
	}
	acc.add(v)
}

func average(m *mean) *float64 {
	if m == nil || m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

func dateOfPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return dateOf(*t)
}

// earliestDate returns the earlier non-empty date of a and b.
func earliestDate(a, b *time.Time) string {
	da, db := dateOfPtr(a), dateOfPtr(b)
	switch {
	case da == "":
		return db
	case db == "":
		return da
	case db < da:
		return db
	default:
		return da
	}
}
