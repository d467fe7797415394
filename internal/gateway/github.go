// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/go-github/v69/github"
	"github.com/gregjones/httpcache"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// SearchClient runs the pull request search queries used by the partition fetcher.
type SearchClient interface {
	// CountPullRequests returns the number of pull requests matching the range without fetching them.
	CountPullRequests(ctx context.Context, org string, r domain.DateRange, field domain.DateField) (int, error)
	// SearchPullRequests pages through every pull request matching the range.
	SearchPullRequests(ctx context.Context, org string, r domain.DateRange, field domain.DateField) ([]domain.PullRequest, error)
}

// ReleaseClient lists repositories and their releases.
type ReleaseClient interface {
	ListRepositories(ctx context.Context, org string) ([]string, error)
	ListReleases(ctx context.Context, org, repo string, since time.Time) ([]domain.Release, error)
}

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	SearchClient
	ReleaseClient
}

// Compile-time interface satisfaction check.
var _ Fetcher = (*GitHubGateway)(nil)

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	retry         retryPolicy
	logger        *slog.Logger
	requests      atomic.Int64
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
//
// Both clients share the same transport stack, outermost first:
//  1. oauth2 (token)
//  2. statusTransport (401/403/429/5xx to typed errors for the retry policy)
//  3. go-github-ratelimit (sleeps through short secondary rate limits)
//
// The REST client additionally caches conditional GETs with httpcache.
func NewGitHubGateway(token string, logger *slog.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(time.Minute, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	graphqlHTTP := &http.Client{
		Transport: &oauth2.Transport{
			Base:   newStatusTransport(rateLimitWaiter),
			Source: ts,
		},
	}

	cache := httpcache.NewMemoryCacheTransport()
	cache.Transport = rateLimitWaiter
	restHTTP := &http.Client{
		Transport: &oauth2.Transport{
			Base:   newStatusTransport(cache),
			Source: ts,
		},
	}

	return &GitHubGateway{
		restClient:    github.NewClient(restHTTP),
		graphqlClient: githubv4.NewClient(graphqlHTTP),
		retry:         newRetryPolicy(logger),
		logger:        logger,
	}, nil
}

// Requests returns the number of API requests issued so far, retries included.
func (g *GitHubGateway) Requests() int64 {
	return g.requests.Load()
}

func searchString(org string, r domain.DateRange, field domain.DateField) string {
	return fmt.Sprintf("org:%s is:pr %s", org, r.Qualifier(field))
}

// CountPullRequests reads the issue count of the search without fetching any node.
func (g *GitHubGateway) CountPullRequests(ctx context.Context, org string, r domain.DateRange, field domain.DateField) (int, error) {
	variables := map[string]interface{}{"query": githubv4.String(searchString(org, r, field))}
	var q countQuery
	err := g.retry.do(ctx, func() error {
		q = countQuery{}
		return g.runQuery(ctx, &q, &q.RateLimit, variables)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count pull requests for %s: %w", r, err)
	}
	return q.Search.IssueCount, nil
}

// SearchPullRequests follows the search cursor until the last page.
func (g *GitHubGateway) SearchPullRequests(ctx context.Context, org string, r domain.DateRange, field domain.DateField) ([]domain.PullRequest, error) {
	query := searchString(org, r, field)
	variables := map[string]interface{}{"query": githubv4.String(query), "cursor": (*githubv4.String)(nil)}
	prs := make([]domain.PullRequest, 0)
	for page := 1; ; page++ {
		var q searchQuery
		err := g.retry.do(ctx, func() error {
			q = searchQuery{}
			return g.runQuery(ctx, &q, &q.RateLimit, variables)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search pull requests for %s (page %d): %w", r, page, err)
		}
		for _, node := range q.Search.Nodes {
			if node.Typename != "PullRequest" {
				continue
			}
			prs = append(prs, newPullRequest(node.PullRequest))
		}
		if !q.Search.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Search.PageInfo.EndCursor)
		g.logger.Debug("fetching next page of pull requests", "query", query, "page", page+1)
	}
	return prs, nil
}

// runQuery executes one GraphQL request and classifies its failure.
func (g *GitHubGateway) runQuery(ctx context.Context, q interface{}, rl *rateLimitInfo, variables map[string]interface{}) error {
	g.requests.Add(1)
	if err := g.graphqlClient.Query(ctx, q, variables); err != nil {
		return classify(ctx, err)
	}
	if rl.Limit == 0 {
		return &UpstreamError{Err: errMissingData}
	}
	g.logRateLimit(rl.Remaining, rl.Limit, rl.ResetAt.Time)
	return nil
}

// classify keeps errors raised by statusTransport and treats anything else coming
// back from the GraphQL client as a logical failure of the response.
func classify(ctx context.Context, err error) error {
	var rateLimited *RateLimitError
	var transient *TransientError
	switch {
	case errors.Is(err, ErrAuthentication), errors.As(err, &rateLimited), errors.As(err, &transient):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return &UpstreamError{Err: err}
	}
}

// ListRepositories returns the names of the non-archived repositories of org.
func (g *GitHubGateway) ListRepositories(ctx context.Context, org string) ([]string, error) {
	opts := &github.RepositoryListByOrgOptions{Type: "all", ListOptions: github.ListOptions{PerPage: 100}}
	var names []string
	for {
		var repos []*github.Repository
		resp, err := g.restCall(ctx, func(ctx context.Context) (*github.Response, error) {
			var resp *github.Response
			var err error
			repos, resp, err = g.restClient.Repositories.ListByOrg(ctx, org, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s: %w", org, err)
		}
		for _, repo := range repos {
			if repo.GetArchived() {
				continue
			}
			names = append(names, repo.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// ListReleases returns the releases of a repository created at or after since.
// A repository GitHub reports as not found has no releases.
func (g *GitHubGateway) ListReleases(ctx context.Context, org, repo string, since time.Time) ([]domain.Release, error) {
	opts := &github.ListOptions{PerPage: 100}
	releases := make([]domain.Release, 0)
	for {
		var page []*github.RepositoryRelease
		resp, err := g.restCall(ctx, func(ctx context.Context) (*github.Response, error) {
			var resp *github.Response
			var err error
			page, resp, err = g.restClient.Repositories.ListReleases(ctx, org, repo, opts)
			return resp, err
		})
		if err != nil {
			if isNotFound(err) {
				g.logger.Debug("no releases", "repo", repo)
				return releases, nil
			}
			return nil, fmt.Errorf("failed to list releases of %s/%s: %w", org, repo, err)
		}
		reachedCutoff := false
		for _, rel := range page {
			r := newRelease(rel, repo)
			if r.CreatedAt.Before(since) {
				reachedCutoff = true
				continue
			}
			releases = append(releases, r)
		}
		// Releases are listed newest first, later pages are older still.
		if reachedCutoff || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return releases, nil
}

// restCall runs one REST request under the retry policy. Attempts after the first
// skip go-github's local rate limit check, the policy having already waited for the reset.
func (g *GitHubGateway) restCall(ctx context.Context, call func(context.Context) (*github.Response, error)) (*github.Response, error) {
	var resp *github.Response
	attempt := 0
	err := g.retry.do(ctx, func() error {
		callCtx := ctx
		if attempt > 0 {
			callCtx = context.WithValue(ctx, github.BypassRateLimitCheck, true)
		}
		attempt++
		g.requests.Add(1)
		var err error
		resp, err = call(callCtx)
		return classifyREST(err)
	})
	return resp, err
}

// classifyREST maps the rate limit errors go-github raises on its own, before or
// instead of a request, to a RateLimitError the retry policy waits on.
func classifyREST(err error) error {
	var primary *github.RateLimitError
	if errors.As(err, &primary) {
		return &RateLimitError{RetryAfter: time.Until(primary.Rate.Reset.Time)}
	}
	var secondary *github.AbuseRateLimitError
	if errors.As(err, &secondary) {
		return &RateLimitError{RetryAfter: secondary.GetRetryAfter()}
	}
	return err
}

func isNotFound(err error) bool {
	var errResp *github.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound
}

// logRateLimit logs the GitHub API rate limit status after each call.
func (g *GitHubGateway) logRateLimit(remaining, limit int, reset time.Time) {
	g.logger.Debug("github api call", "rate_remaining", remaining, "rate_limit", limit)
	if remaining < 100 {
		g.logger.Warn("github rate limit low",
			"remaining", remaining,
			"reset_in", time.Until(reset).Round(time.Second),
		)
	}
}
