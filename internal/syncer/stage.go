package syncer

// Stage is a step of the per-repository sync state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageFetchingPRs
	StageFetchingIssues
	StageFetchingIssueComments
	StageFetchingPRComments
	StageFetchingStars
	StageFetchingCommits
	StageFetchingWorkflows
	StageCommitted

	// StageSweeping is used by the open-issue reconciler, which runs outside
	// the sync machine.
	StageSweeping
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageFetchingPRs:
		return "FetchingPRs"
	case StageFetchingIssues:
		return "FetchingIssues"
	case StageFetchingIssueComments:
		return "FetchingIssueComments"
	case StageFetchingPRComments:
		return "FetchingPRComments"
	case StageFetchingStars:
		return "FetchingStars"
	case StageFetchingCommits:
		return "FetchingCommits"
	case StageFetchingWorkflows:
		return "FetchingWorkflows"
	case StageCommitted:
		return "Committed"
	case StageSweeping:
		return "Sweeping"
	default:
		return "Unknown"
	}
}
