package metrics

import (
	"math"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// Quality combines CI health of merged pull requests with release cadence.
type Quality struct {
	prs      []domain.PullRequest
	releases []domain.Release
}

// NewQuality returns a Quality calculator over merged pull requests and releases.
func NewQuality(prs []domain.PullRequest, releases []domain.Release) *Quality {
	return &Quality{prs: prs, releases: releases}
}

// Calculate returns the CI metrics when there are pull requests and the release
// metrics when there are releases.
func (q *Quality) Calculate() map[string]float64 {
	result := map[string]float64{}
	if len(q.prs) > 0 {
		q.addCIMetrics(result)
	}
	if len(q.releases) > 0 {
		q.addReleaseMetrics(result)
	}
	return result
}

func (q *Quality) addCIMetrics(result map[string]float64) {
	merged := mergedOnly(q.prs)
	passed := 0
	var toGreen []float64
	for _, pr := range merged {
		if pr.CIPassed() {
			passed++
		}
		if d, ok := pr.TimeToGreen(); ok {
			toGreen = append(toGreen, d.Hours())
		}
	}
	result["ci_success_rate"] = percent(passed, len(merged))
	result["time_to_green_hours"] = round(mean(toGreen), 2)
}

func (q *Quality) addReleaseMetrics(result map[string]float64) {
	hotfixes := 0
	for _, r := range q.releases {
		if r.IsHotfix() {
			hotfixes++
		}
	}
	elapsed := q.releaseSpanDays()
	n := float64(len(q.releases))

	result["deploy_frequency_weekly"] = round(n/math.Max(1, elapsed/7), 2)
	result["deploy_frequency_daily"] = round(n/math.Max(1, elapsed), 2)
	result["hotfix_rate"] = percent(hotfixes, len(q.releases))
}

// releaseSpanDays is the number of days between the first and the last release.
func (q *Quality) releaseSpanDays() float64 {
	if len(q.releases) == 0 {
		return 0
	}
	first, last := q.releases[0].CreatedAt, q.releases[0].CreatedAt
	for _, r := range q.releases[1:] {
		if r.CreatedAt.Before(first) {
			first = r.CreatedAt
		}
		if r.CreatedAt.After(last) {
			last = r.CreatedAt
		}
	}
	return days(last.Sub(first))
}

// ToRows renders Calculate as summary rows.
func (q *Quality) ToRows(date, category string) []domain.MetricRow {
	return summaryRows(q.Calculate(), date, category)
}
