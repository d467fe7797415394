// Package metrics turns reconciled pull requests and releases into metric rows.
//
// Every calculator is built over a fixed input and never mutates it. Ratios and
// percentages are rounded to 2 decimals, durations in days to 4 decimals and
// durations in hours to 2 decimals, so that successive runs produce diffable output.
package metrics

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// Categories of the rows produced outside the per-team summary namespace.
const (
	CategoryGitHub              = "github"
	CategoryDaily               = "github_daily"
	CategoryRepositoryActivity  = "github_repo_activity"
	CategoryContributorActivity = "github_contributor_activity"
	CategoryCommitActivity      = "github_commit_activity"
)

// TeamCategory returns the summary category of a team.
func TeamCategory(team string) string {
	return CategoryGitHub + ":" + team
}

// Calculator produces metric rows for a category. date is the collection date.
type Calculator interface {
	ToRows(date, category string) []domain.MetricRow
}

// Summary is a calculator reducing its input to named numbers.
type Summary interface {
	Calculator
	Calculate() map[string]float64
}

// summaryRows turns a Calculate result into rows sorted by metric name.
func summaryRows(values map[string]float64, date, category string) []domain.MetricRow {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]domain.MetricRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, domain.NewRow(date, category, name, values[name]))
	}
	return rows
}

func round(v float64, places int) float64 {
	r, err := stats.Round(v, places)
	if err != nil {
		return 0
	}
	return r
}

// mean returns 0 for an empty input.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}

// percent returns part/whole*100 rounded to 2 decimals, 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round(float64(part)/float64(whole)*100, 2)
}

func days(d time.Duration) float64 {
	return d.Hours() / 24
}

func avgDays(durations []float64) float64 {
	return round(mean(durations), 4)
}

func avgInts(values []int) float64 {
	floats := make([]float64, len(values))
	for i, v := range values {
		floats[i] = float64(v)
	}
	return round(mean(floats), 2)
}

func mergedOnly(prs []domain.PullRequest) []domain.PullRequest {
	merged := make([]domain.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if pr.IsMerged() {
			merged = append(merged, pr)
		}
	}
	return merged
}
