package metrics

import "github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"

// Velocity measures how fast merged pull requests move from creation to merge.
type Velocity struct {
	prs []domain.PullRequest
}

// NewVelocity creates a Velocity calculator over all pull requests of the window.
// Timings are computed on merged pull requests only; merge_rate uses the
// merged and closed ones.
func NewVelocity(prs []domain.PullRequest) *Velocity {
	return &Velocity{prs: prs}
}

// Calculate returns the merge timings and counts of the pull requests.
func (v *Velocity) Calculate() map[string]float64 {
	if len(v.prs) == 0 {
		return map[string]float64{}
	}

	merged := mergedOnly(v.prs)
	closed := 0
	var toMerge, toFirstReview, toApproval []float64
	for _, pr := range v.prs {
		if pr.IsClosed() {
			closed++
		}
	}
	for _, pr := range merged {
		if d, ok := pr.TimeToMerge(); ok {
			toMerge = append(toMerge, days(d))
		}
		if d, ok := pr.TimeToFirstReview(); ok {
			toFirstReview = append(toFirstReview, days(d))
		}
		if d, ok := pr.TimeToApproval(); ok {
			toApproval = append(toApproval, days(d))
		}
	}

	return map[string]float64{
		"avg_time_to_merge_days":        avgDays(toMerge),
		"total_merged":                  float64(len(merged)),
		"avg_time_to_first_review_days": avgDays(toFirstReview),
		"merge_rate":                    percent(len(merged), len(merged)+closed),
		"avg_time_to_approval_days":     avgDays(toApproval),
	}
}

// ToRows renders Calculate as summary rows.
func (v *Velocity) ToRows(date, category string) []domain.MetricRow {
	return summaryRows(v.Calculate(), date, category)
}
