package gateway

import "github.com/shurcooL/githubv4"

// rateLimitInfo is selected by every query. GitHub always returns it alongside
// data, so a zero Limit means the response had no data at all.
type rateLimitInfo struct {
	Limit     int
	Remaining int
	Cost      int
	ResetAt   githubv4.DateTime
}

// countQuery only asks for the number of matching issues.
type countQuery struct {
	RateLimit rateLimitInfo
	Search    struct {
		IssueCount int
	} `graphql:"search(query: $query, type: ISSUE, first: 1)"`
}

// searchQuery fetches one page of pull requests with every field the calculators need.
// The page size is kept small because every node carries reviews, commits and check suites.
type searchQuery struct {
	RateLimit rateLimitInfo
	Search    struct {
		IssueCount int
		PageInfo   struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Nodes []struct {
			Typename    string          `graphql:"__typename"`
			PullRequest pullRequestNode `graphql:"... on PullRequest"`
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 50, after: $cursor)"`
}

type pullRequestNode struct {
	URL          string
	State        string
	CreatedAt    githubv4.DateTime
	UpdatedAt    githubv4.DateTime
	MergedAt     *githubv4.DateTime
	ClosedAt     *githubv4.DateTime
	Additions    int
	Deletions    int
	ChangedFiles int
	Author       struct {
		Login string
	}
	Repository struct {
		Name string
	}
	Reviews struct {
		TotalCount int
		Nodes      []struct {
			State     string
			CreatedAt githubv4.DateTime
			Author    struct {
				Login string
			}
		}
	} `graphql:"reviews(first: 50)"`
	Comments struct {
		TotalCount int
	}
	Commits struct {
		TotalCount int
		Nodes      []struct {
			Commit struct {
				CommittedDate githubv4.DateTime
			}
		}
	} `graphql:"commits(first: 100)"`
	LastCommit struct {
		Nodes []struct {
			Commit struct {
				CommittedDate     githubv4.DateTime
				StatusCheckRollup struct {
					State string
				}
				CheckSuites struct {
					Nodes []struct {
						Conclusion string
						UpdatedAt  githubv4.DateTime
					}
				} `graphql:"checkSuites(first: 20)"`
			}
		}
	} `graphql:"lastCommit: commits(last: 1)"`
}
