package gateway

import (
	"time"

	"github.com/google/go-github/v69/github"
	"github.com/shurcooL/githubv4"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// newPullRequest maps a GraphQL search node onto the domain record. This is the only
// place that knows the payload shape.
func newPullRequest(n pullRequestNode) domain.PullRequest {
	author := n.Author.Login
	if author == "" {
		author = domain.UnknownAuthor
	}

	reviews := make([]domain.Review, 0, len(n.Reviews.Nodes))
	for _, r := range n.Reviews.Nodes {
		reviewer := r.Author.Login
		if reviewer == "" {
			reviewer = domain.UnknownAuthor
		}
		reviews = append(reviews, domain.Review{
			State:     domain.ReviewState(r.State),
			CreatedAt: r.CreatedAt.UTC(),
			Author:    reviewer,
		})
	}

	commits := make([]domain.Commit, 0, len(n.Commits.Nodes))
	for _, c := range n.Commits.Nodes {
		commits = append(commits, domain.Commit{CommittedAt: c.Commit.CommittedDate.UTC()})
	}

	var last *domain.LastCommit
	if len(n.LastCommit.Nodes) > 0 {
		c := n.LastCommit.Nodes[0].Commit
		suites := make([]domain.CheckSuite, 0, len(c.CheckSuites.Nodes))
		for _, cs := range c.CheckSuites.Nodes {
			suites = append(suites, domain.CheckSuite{Conclusion: cs.Conclusion, UpdatedAt: cs.UpdatedAt.UTC()})
		}
		last = &domain.LastCommit{
			CommittedAt: c.CommittedDate.UTC(),
			RollupState: c.StatusCheckRollup.State,
			CheckSuites: suites,
		}
	}

	return domain.PullRequest{
		URL:          n.URL,
		State:        domain.PRState(n.State),
		CreatedAt:    n.CreatedAt.UTC(),
		UpdatedAt:    n.UpdatedAt.UTC(),
		MergedAt:     optionalTime(n.MergedAt),
		ClosedAt:     optionalTime(n.ClosedAt),
		Additions:    n.Additions,
		Deletions:    n.Deletions,
		ChangedFiles: n.ChangedFiles,
		Author:       author,
		Repository:   n.Repository.Name,
		Reviews:      reviews,
		ReviewCount:  n.Reviews.TotalCount,
		CommentCount: n.Comments.TotalCount,
		Commits:      commits,
		CommitCount:  n.Commits.TotalCount,
		LastCommit:   last,
	}
}

func optionalTime(t *githubv4.DateTime) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func newRelease(r *github.RepositoryRelease, repo string) domain.Release {
	return domain.Release{
		Name:       r.GetName(),
		Tag:        r.GetTagName(),
		CreatedAt:  r.GetCreatedAt().UTC(),
		Repository: repo,
	}
}
