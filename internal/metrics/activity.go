package metrics

import (
	"fmt"
	"sort"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// ActivityKey groups pull requests by creation date and a name (repository or author).
type ActivityKey struct {
	Date string
	Name string
}

// RepositoryActivity counts pull requests per creation date and repository.
type RepositoryActivity struct {
	prs []domain.PullRequest
}

// NewRepositoryActivity returns a per-repository daily pull request counter.
func NewRepositoryActivity(prs []domain.PullRequest) *RepositoryActivity {
	return &RepositoryActivity{prs: prs}
}

// Calculate counts pull requests per repository and creation date.
func (a *RepositoryActivity) Calculate() map[ActivityKey]int {
	return countBy(a.prs, func(pr domain.PullRequest) string { return pr.Repository })
}

// ToRows emits one row per (date, repository). Rows are dated with the pull request
// creation date, not the collection date.
func (a *RepositoryActivity) ToRows(_, category string) []domain.MetricRow {
	return activityRows(a.Calculate(), category)
}

// ContributorActivity counts pull requests per creation date and author.
type ContributorActivity struct {
	prs []domain.PullRequest
}

// NewContributorActivity returns a per-author daily pull request counter.
func NewContributorActivity(prs []domain.PullRequest) *ContributorActivity {
	return &ContributorActivity{prs: prs}
}

// Calculate counts pull requests per author and creation date.
func (a *ContributorActivity) Calculate() map[ActivityKey]int {
	return countBy(a.prs, func(pr domain.PullRequest) string {
		if pr.Author == "" {
			return domain.UnknownAuthor
		}
		return pr.Author
	})
}

// ToRows emits one row per author and day, dated with the creation date.
func (a *ContributorActivity) ToRows(_, category string) []domain.MetricRow {
	return activityRows(a.Calculate(), category)
}

func countBy(prs []domain.PullRequest, name func(domain.PullRequest) string) map[ActivityKey]int {
	counts := make(map[ActivityKey]int)
	for _, pr := range prs {
		counts[ActivityKey{Date: pr.CreatedDate(), Name: name(pr)}]++
	}
	return counts
}

func activityRows(counts map[ActivityKey]int, category string) []domain.MetricRow {
	keys := make([]ActivityKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].Name < keys[j].Name
	})

	rows := make([]domain.MetricRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, domain.NewRow(k.Date, category, k.Name, float64(counts[k])))
	}
	return rows
}

// CommitSlot is a weekday (0 = Sunday) and an hour of the day, in UTC.
type CommitSlot struct {
	Weekday int
	Hour    int
}

// String renders the slot as the metric name, e.g. "1_09" for Monday 09:00.
func (s CommitSlot) String() string {
	return fmt.Sprintf("%d_%02d", s.Weekday, s.Hour)
}

// CommitActivity counts commits per weekday and hour across all pull requests.
type CommitActivity struct {
	prs []domain.PullRequest
}

// NewCommitActivity returns a commit counter by weekday and hour.
func NewCommitActivity(prs []domain.PullRequest) *CommitActivity {
	return &CommitActivity{prs: prs}
}

// Calculate counts commits per weekday and hour slot.
func (a *CommitActivity) Calculate() map[CommitSlot]int {
	counts := make(map[CommitSlot]int)
	for _, pr := range a.prs {
		for _, c := range pr.Commits {
			if c.CommittedAt.IsZero() {
				continue
			}
			t := c.CommittedAt.UTC()
			counts[CommitSlot{Weekday: int(t.Weekday()), Hour: t.Hour()}]++
		}
	}
	return counts
}

// ToRows emits one row per populated slot, dated with the collection date.
func (a *CommitActivity) ToRows(date, category string) []domain.MetricRow {
	counts := a.Calculate()
	slots := make([]CommitSlot, 0, len(counts))
	for s := range counts {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Weekday != slots[j].Weekday {
			return slots[i].Weekday < slots[j].Weekday
		}
		return slots[i].Hour < slots[j].Hour
	})

	rows := make([]domain.MetricRow, 0, len(slots))
	for _, s := range slots {
		rows = append(rows, domain.NewRow(date, category, s.String(), float64(counts[s])))
	}
	return rows
}
