package metrics

import "github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"

// PRSize reports the average size of pull requests.
type PRSize struct {
	prs []domain.PullRequest
}

// NewPRSize returns a PRSize calculator over prs.
func NewPRSize(prs []domain.PullRequest) *PRSize {
	return &PRSize{prs: prs}
}

// Calculate returns the average size of the pull requests.
func (s *PRSize) Calculate() map[string]float64 {
	if len(s.prs) == 0 {
		return map[string]float64{}
	}

	additions := make([]int, len(s.prs))
	deletions := make([]int, len(s.prs))
	files := make([]int, len(s.prs))
	commits := make([]int, len(s.prs))
	for i, pr := range s.prs {
		additions[i] = pr.Additions
		deletions[i] = pr.Deletions
		files[i] = pr.ChangedFiles
		commits[i] = pr.CommitCount
	}

	return map[string]float64{
		"avg_additions":     avgInts(additions),
		"avg_deletions":     avgInts(deletions),
		"avg_changed_files": avgInts(files),
		"avg_commits":       avgInts(commits),
	}
}

// ToRows renders Calculate as summary rows.
func (s *PRSize) ToRows(date, category string) []domain.MetricRow {
	return summaryRows(s.Calculate(), date, category)
}
