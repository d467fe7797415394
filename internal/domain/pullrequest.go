package domain

import (
	"strings"
	"time"
)

// PRState is the lifecycle state reported by GitHub.
type PRState string

const (
	PRStateOpen   PRState = "OPEN"
	PRStateMerged PRState = "MERGED"
	PRStateClosed PRState = "CLOSED"
)

// ReviewState mirrors the GitHub review states. Unknown states are kept verbatim.
type ReviewState string

const (
	ReviewApproved         ReviewState = "APPROVED"
	ReviewChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewCommented        ReviewState = "COMMENTED"
)

// RollupSuccess is the status check rollup state of a green commit.
const RollupSuccess = "SUCCESS"

// UnknownAuthor replaces a missing author login (deleted accounts, bots without a login).
const UnknownAuthor = "unknown"

// PullRequest is the normalized pull request record. It is built once from the API
// payload and never mutated afterwards; a newer observation replaces it wholesale.
type PullRequest struct {
	URL          string      `json:"url"`
	State        PRState     `json:"state"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	MergedAt     *time.Time  `json:"merged_at,omitempty"`
	ClosedAt     *time.Time  `json:"closed_at,omitempty"`
	Additions    int         `json:"additions"`
	Deletions    int         `json:"deletions"`
	ChangedFiles int         `json:"changed_files"`
	Author       string      `json:"author"`
	Repository   string      `json:"repository"`
	Reviews      []Review    `json:"reviews"`
	ReviewCount  int         `json:"review_count"`
	CommentCount int         `json:"comment_count"`
	Commits      []Commit    `json:"commits"`
	CommitCount  int         `json:"commit_count"`
	LastCommit   *LastCommit `json:"last_commit,omitempty"`
}

// Review is a single submitted review.
type Review struct {
	State     ReviewState `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	Author    string      `json:"author"`
}

// Commit carries the timestamp of one commit of the pull request.
type Commit struct {
	CommittedAt time.Time `json:"committed_at"`
}

// LastCommit is the head commit with its CI outcome.
type LastCommit struct {
	CommittedAt time.Time    `json:"committed_at"`
	RollupState string       `json:"rollup_state"`
	CheckSuites []CheckSuite `json:"check_suites"`
}

// CheckSuite is the outcome of one check suite run on the last commit.
type CheckSuite struct {
	Conclusion string    `json:"conclusion"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Release is a published repository release.
type Release struct {
	Name       string    `json:"name"`
	Tag        string    `json:"tag"`
	CreatedAt  time.Time `json:"created_at"`
	Repository string    `json:"repository"`
}

// IsHotfix reports whether the release name or tag mentions a hotfix.
func (r Release) IsHotfix() bool {
	return strings.Contains(strings.ToLower(r.Name), "hotfix") ||
		strings.Contains(strings.ToLower(r.Tag), "hotfix")
}

// IsMerged reports whether the pull request was merged.
func (pr PullRequest) IsMerged() bool {
	return pr.State == PRStateMerged && pr.MergedAt != nil
}

// IsClosed reports whether the pull request was closed without being merged.
func (pr PullRequest) IsClosed() bool {
	return pr.State == PRStateClosed
}

// IsOpen reports whether the pull request is still open.
func (pr PullRequest) IsOpen() bool {
	return pr.State == PRStateOpen
}

// CreatedDate returns the ISO creation date used for bucketing.
func (pr PullRequest) CreatedDate() string {
	return ISODate(pr.CreatedAt)
}

// TimeToMerge returns MergedAt - CreatedAt for merged pull requests.
func (pr PullRequest) TimeToMerge() (time.Duration, bool) {
	if !pr.IsMerged() {
		return 0, false
	}
	return pr.MergedAt.Sub(pr.CreatedAt), true
}

// TimeToFirstReview returns the delay between creation and the earliest review.
func (pr PullRequest) TimeToFirstReview() (time.Duration, bool) {
	first, ok := pr.earliestReview(func(Review) bool { return true })
	if !ok {
		return 0, false
	}
	return first.Sub(pr.CreatedAt), true
}

// TimeToApproval returns the delay between creation and the earliest approval.
func (pr PullRequest) TimeToApproval() (time.Duration, bool) {
	first, ok := pr.earliestReview(func(r Review) bool { return r.State == ReviewApproved })
	if !ok {
		return 0, false
	}
	return first.Sub(pr.CreatedAt), true
}

func (pr PullRequest) earliestReview(keep func(Review) bool) (time.Time, bool) {
	var first time.Time
	found := false
	for _, r := range pr.Reviews {
		if !keep(r) {
			continue
		}
		if !found || r.CreatedAt.Before(first) {
			first = r.CreatedAt
			found = true
		}
	}
	return first, found
}

// ReworkCycles counts the CHANGES_REQUESTED reviews.
func (pr PullRequest) ReworkCycles() int {
	n := 0
	for _, r := range pr.Reviews {
		if r.State == ReviewChangesRequested {
			n++
		}
	}
	return n
}

// CIPassed reports whether the last commit's status rollup is SUCCESS.
func (pr PullRequest) CIPassed() bool {
	return pr.LastCommit != nil && pr.LastCommit.RollupState == RollupSuccess
}

// TimeToGreen returns the delay between the last commit and its latest successful
// check suite.
func (pr PullRequest) TimeToGreen() (time.Duration, bool) {
	if pr.LastCommit == nil || pr.LastCommit.CommittedAt.IsZero() {
		return 0, false
	}
	var latest time.Time
	for _, cs := range pr.LastCommit.CheckSuites {
		if cs.Conclusion == RollupSuccess && cs.UpdatedAt.After(latest) {
			latest = cs.UpdatedAt
		}
	}
	if latest.IsZero() {
		return 0, false
	}
	return latest.Sub(pr.LastCommit.CommittedAt), true
}
