package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

func rowsByMetric(rows []domain.MetricRow, date string) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range rows {
		if r.Date == date {
			out[r.Metric] = r.Value.Float()
		}
	}
	return out
}

func TestDailyAggregator_BucketsByCreationDate(t *testing.T) {
	agg := NewDailyAggregator()

	merged := mergedPR("u1", 36*time.Hour, review(domain.ReviewApproved, 2*time.Hour))
	merged.Additions, merged.Deletions = 10, 3
	merged.LastCommit = &domain.LastCommit{RollupState: domain.RollupSuccess}
	agg.RecordPullRequest(merged)
	agg.RecordPullRequest(domain.PullRequest{URL: "u2", State: domain.PRStateClosed, CreatedAt: base.Add(time.Hour)})
	agg.RecordPullRequest(domain.PullRequest{URL: "u3", State: domain.PRStateOpen, CreatedAt: base.Add(24 * time.Hour)})
	agg.RecordRelease(domain.Release{Name: "v1", CreatedAt: base.Add(24 * time.Hour)})
	agg.RecordRelease(domain.Release{Name: "hotfix", CreatedAt: base.Add(24 * time.Hour)})

	assert.Equal(t, []string{"2024-03-04", "2024-03-05"}, agg.Dates())

	day, ok := agg.Day("2024-03-04")
	require.True(t, ok)
	assert.Equal(t, 2, day.PRs.Created)
	assert.Equal(t, 1, day.PRs.Merged)
	assert.Equal(t, 1, day.PRs.Closed)
	assert.Equal(t, 0, day.Releases.Releases)

	rows := agg.ToRows(CategoryDaily)
	first := rowsByMetric(rows, "2024-03-04")
	assert.Equal(t, 50.0, first["merge_rate"])
	assert.Equal(t, 1.5, first["avg_time_to_merge_days"])
	assert.Equal(t, 0.0833, first["avg_time_to_first_review_days"])
	assert.Equal(t, 1.0, first["prs_without_review"])
	assert.Equal(t, 10.0, first["additions"])
	assert.Equal(t, 3.0, first["deletions"])
	assert.Equal(t, 100.0, first["ci_success_rate"])

	second := rowsByMetric(rows, "2024-03-05")
	assert.Equal(t, 1.0, second["prs_open"])
	assert.Equal(t, 2.0, second["releases"])
	assert.Equal(t, 1.0, second["hotfixes"])

	for _, r := range rows {
		assert.Equal(t, CategoryDaily, r.Category)
	}
}

func TestDailyAggregator_MergeRateZeroDenominator(t *testing.T) {
	agg := NewDailyAggregator()
	agg.RecordPullRequest(domain.PullRequest{URL: "u1", State: domain.PRStateOpen, CreatedAt: base})
	agg.RecordRelease(domain.Release{Name: "v1", CreatedAt: base.Add(48 * time.Hour)})

	rows := agg.ToRows(CategoryDaily)

	assert.Equal(t, 0.0, rowsByMetric(rows, "2024-03-04")["merge_rate"])
	assert.Equal(t, 0.0, rowsByMetric(rows, "2024-03-06")["merge_rate"])
}

func TestDailyAggregator_ToRowsIsPure(t *testing.T) {
	agg := NewDailyAggregator()
	agg.RecordPullRequest(mergedPR("u1", time.Hour))

	assert.Equal(t, agg.ToRows(CategoryDaily), agg.ToRows(CategoryDaily))
}
