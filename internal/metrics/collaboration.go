package metrics

import "github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"

// Collaboration measures review and discussion activity around pull requests.
type Collaboration struct {
	prs []domain.PullRequest
}

// NewCollaboration returns a Collaboration calculator over prs.
func NewCollaboration(prs []domain.PullRequest) *Collaboration {
	return &Collaboration{prs: prs}
}

// Calculate returns the review and comment averages.
func (c *Collaboration) Calculate() map[string]float64 {
	if len(c.prs) == 0 {
		return map[string]float64{}
	}

	reviews := make([]int, 0, len(c.prs))
	comments := make([]int, 0, len(c.prs))
	rework := make([]int, 0, len(c.prs))
	unreviewed := 0
	for _, pr := range c.prs {
		reviews = append(reviews, pr.ReviewCount)
		comments = append(comments, pr.CommentCount)
		rework = append(rework, pr.ReworkCycles())
		if pr.ReviewCount == 0 {
			unreviewed++
		}
	}

	return map[string]float64{
		"avg_reviews_per_pr":  avgInts(reviews),
		"avg_comments_per_pr": avgInts(comments),
		"avg_rework_cycles":   avgInts(rework),
		"unreviewed_pr_rate":  percent(unreviewed, len(c.prs)),
	}
}

// ToRows renders Calculate as summary rows.
func (c *Collaboration) ToRows(date, category string) []domain.MetricRow {
	return summaryRows(c.Calculate(), date, category)
}
