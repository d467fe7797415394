package metrics

import (
	"sort"
	"time"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// prActivity accumulates pull request lifecycle counts of one day.
type prActivity struct {
	Created       int
	Merged        int
	Closed        int
	Open          int
	MergeDuration time.Duration
}

func (a *prActivity) record(pr domain.PullRequest) {
	a.Created++
	switch {
	case pr.IsMerged():
		a.Merged++
		if d, ok := pr.TimeToMerge(); ok {
			a.MergeDuration += d
		}
	case pr.IsClosed():
		a.Closed++
	case pr.IsOpen():
		a.Open++
	}
}

// MergeRate is merged/(merged+closed)*100, 0 when nothing was merged or closed.
func (a prActivity) MergeRate() float64 {
	return percent(a.Merged, a.Merged+a.Closed)
}

func (a prActivity) metrics() map[string]float64 {
	avgMerge := 0.0
	if a.Merged > 0 {
		avgMerge = round(days(a.MergeDuration)/float64(a.Merged), 4)
	}
	return map[string]float64{
		"prs_created":            float64(a.Created),
		"prs_merged":             float64(a.Merged),
		"prs_closed":             float64(a.Closed),
		"prs_open":               float64(a.Open),
		"merge_rate":             a.MergeRate(),
		"avg_time_to_merge_days": avgMerge,
	}
}

// reviewActivity accumulates review counts and timings of one day.
type reviewActivity struct {
	Reviews          int
	Comments         int
	ReworkCycles     int
	Unreviewed       int
	FirstReviewSum   time.Duration
	FirstReviewCount int
	ApprovalSum      time.Duration
	ApprovalCount    int
}

func (a *reviewActivity) record(pr domain.PullRequest) {
	a.Reviews += pr.ReviewCount
	a.Comments += pr.CommentCount
	a.ReworkCycles += pr.ReworkCycles()
	if pr.ReviewCount == 0 {
		a.Unreviewed++
	}
	if d, ok := pr.TimeToFirstReview(); ok {
		a.FirstReviewSum += d
		a.FirstReviewCount++
	}
	if d, ok := pr.TimeToApproval(); ok {
		a.ApprovalSum += d
		a.ApprovalCount++
	}
}

func (a reviewActivity) metrics() map[string]float64 {
	return map[string]float64{
		"reviews":                       float64(a.Reviews),
		"comments":                      float64(a.Comments),
		"rework_cycles":                 float64(a.ReworkCycles),
		"prs_without_review":            float64(a.Unreviewed),
		"avg_time_to_first_review_days": avgDuration(a.FirstReviewSum, a.FirstReviewCount),
		"avg_time_to_approval_days":     avgDuration(a.ApprovalSum, a.ApprovalCount),
	}
}

// churnActivity accumulates code churn of one day.
type churnActivity struct {
	Additions int
	Deletions int
}

func (a *churnActivity) record(pr domain.PullRequest) {
	a.Additions += pr.Additions
	a.Deletions += pr.Deletions
}

func (a churnActivity) metrics() map[string]float64 {
	return map[string]float64{
		"additions": float64(a.Additions),
		"deletions": float64(a.Deletions),
	}
}

// ciActivity accumulates CI outcomes of the merged pull requests of one day.
type ciActivity struct {
	Merged       int
	Success      int
	ToGreenSum   time.Duration
	ToGreenCount int
}

func (a *ciActivity) record(pr domain.PullRequest) {
	if !pr.IsMerged() {
		return
	}
	a.Merged++
	if pr.CIPassed() {
		a.Success++
	}
	if d, ok := pr.TimeToGreen(); ok {
		a.ToGreenSum += d
		a.ToGreenCount++
	}
}

func (a ciActivity) metrics() map[string]float64 {
	toGreen := 0.0
	if a.ToGreenCount > 0 {
		toGreen = round(a.ToGreenSum.Hours()/float64(a.ToGreenCount), 2)
	}
	return map[string]float64{
		"ci_success":          float64(a.Success),
		"ci_success_rate":     percent(a.Success, a.Merged),
		"time_to_green_hours": toGreen,
	}
}

// releaseActivity accumulates releases of one day.
type releaseActivity struct {
	Releases int
	Hotfixes int
}

func (a *releaseActivity) record(r domain.Release) {
	a.Releases++
	if r.IsHotfix() {
		a.Hotfixes++
	}
}

func (a releaseActivity) metrics() map[string]float64 {
	return map[string]float64{
		"releases": float64(a.Releases),
		"hotfixes": float64(a.Hotfixes),
	}
}

func avgDuration(sum time.Duration, n int) float64 {
	if n == 0 {
		return 0
	}
	return round(days(sum)/float64(n), 4)
}

// DayStats is the accumulator set of one calendar date.
type DayStats struct {
	PRs      prActivity
	Reviews  reviewActivity
	Churn    churnActivity
	CI       ciActivity
	Releases releaseActivity
}

func (s *DayStats) metrics() map[string]float64 {
	all := make(map[string]float64)
	for _, family := range []map[string]float64{
		s.PRs.metrics(), s.Reviews.metrics(), s.Churn.metrics(), s.CI.metrics(), s.Releases.metrics(),
	} {
		for k, v := range family {
			all[k] = v
		}
	}
	return all
}

// DailyAggregator folds pull requests and releases into per-date accumulators in a
// single pass. Buckets are created on first use and keyed by ISO creation date.
type DailyAggregator struct {
	days map[string]*DayStats
}

// NewDailyAggregator returns an empty aggregator.
func NewDailyAggregator() *DailyAggregator {
	return &DailyAggregator{days: make(map[string]*DayStats)}
}

func (d *DailyAggregator) bucket(date string) *DayStats {
	s, ok := d.days[date]
	if !ok {
		s = &DayStats{}
		d.days[date] = s
	}
	return s
}

// RecordPullRequest updates the bucket of the pull request creation date.
func (d *DailyAggregator) RecordPullRequest(pr domain.PullRequest) {
	s := d.bucket(pr.CreatedDate())
	s.PRs.record(pr)
	s.Reviews.record(pr)
	s.Churn.record(pr)
	s.CI.record(pr)
}

// RecordRelease updates the bucket of the release creation date.
func (d *DailyAggregator) RecordRelease(r domain.Release) {
	d.bucket(domain.ISODate(r.CreatedAt)).Releases.record(r)
}

// Day returns the accumulators of a date, if any record fell on it.
func (d *DailyAggregator) Day(date string) (DayStats, bool) {
	s, ok := d.days[date]
	if !ok {
		return DayStats{}, false
	}
	return *s, true
}

// Dates returns the populated dates in ascending order.
func (d *DailyAggregator) Dates() []string {
	dates := make([]string, 0, len(d.days))
	for date := range d.days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// ToRows reads the accumulated totals; every family is emitted for every date.
func (d *DailyAggregator) ToRows(category string) []domain.MetricRow {
	var rows []domain.MetricRow
	for _, date := range d.Dates() {
		rows = append(rows, summaryRows(d.days[date].metrics(), date, category)...)
	}
	return rows
}
