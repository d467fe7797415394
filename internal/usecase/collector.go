// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/gateway"
	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/metrics"
)

// releaseConcurrency bounds the number of repositories whose releases are listed at once.
const releaseConcurrency = 4

// PullRequestSource returns the reconciled pull requests of an organization.
type PullRequestSource interface {
	Sync(ctx context.Context, org string) (SyncResult, error)
	WindowStart() time.Time
}

// CollectResult is the outcome of one collection run.
type CollectResult struct {
	RunID        string
	Date         string
	Mode         SyncMode
	PullRequests int
	Releases     int
	Rows         []domain.MetricRow
}

// Collector is the use case producing the metric rows of an organization.
// It orchestrates the fetching of pull requests and releases and runs every
// calculator over them.
type Collector struct {
	prs      PullRequestSource
	releases gateway.ReleaseClient
	teams    map[string][]string
	now      func() time.Time
	logger   *slog.Logger
}

// NewCollector creates a new Collector instance. teams maps a team name to the
// logins of its members; each team gets its own summary category.
func NewCollector(prs PullRequestSource, releases gateway.ReleaseClient, teams map[string][]string, logger *slog.Logger) *Collector {
	return &Collector{
		prs:      prs,
		releases: releases,
		teams:    teams,
		now:      time.Now,
		logger:   logger,
	}
}

// Collect fetches both sources concurrently and reduces them to metric rows.
//
// A failing source is logged and contributes nothing; the other one still produces
// its rows. Authentication failures are the exception and abort the run.
func (c *Collector) Collect(ctx context.Context, org string) (CollectResult, error) {
	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID, "org", org)
	logger.Info("starting collection")

	since := c.prs.WindowStart()
	var (
		synced   SyncResult
		releases []domain.Release
	)

	// Use an errgroup to fetch both sources concurrently. Goroutines only return
	// errors that must abort the run.
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		res, err := c.prs.Sync(egCtx, org)
		if err != nil {
			if fatal(err) {
				return fmt.Errorf("failed to sync pull requests: %w", err)
			}
			logger.Error("pull request source failed, continuing without it", "error", err)
			return nil
		}
		synced = res
		return nil
	})

	eg.Go(func() error {
		res, err := c.fetchReleases(egCtx, org, since)
		if err != nil {
			if fatal(err) {
				return fmt.Errorf("failed to fetch releases: %w", err)
			}
			logger.Error("release source failed, continuing without it", "error", err)
			return nil
		}
		releases = res
		return nil
	})

	if err := eg.Wait(); err != nil {
		return CollectResult{}, err
	}

	prs := inWindow(synced.PullRequests, since)
	date := domain.ISODate(c.now())
	rows := c.rows(date, prs, releases)

	logger.Info("collection complete",
		"mode", synced.Mode, "count", len(prs), "releases", len(releases), "rows", len(rows))

	return CollectResult{
		RunID:        runID,
		Date:         date,
		Mode:         synced.Mode,
		PullRequests: len(prs),
		Releases:     len(releases),
		Rows:         rows,
	}, nil
}

// fetchReleases lists the releases of every repository of org created since the cutoff.
func (c *Collector) fetchReleases(ctx context.Context, org string, since time.Time) ([]domain.Release, error) {
	repos, err := c.releases.ListRepositories(ctx, org)
	if err != nil {
		return nil, err
	}

	perRepo := make([][]domain.Release, len(repos))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(releaseConcurrency)
	for i, repo := range repos {
		eg.Go(func() error {
			res, err := c.releases.ListReleases(egCtx, org, repo, since)
			if err != nil {
				return fmt.Errorf("failed to list releases for %s: %w", repo, err)
			}
			perRepo[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	releases := make([]domain.Release, 0)
	for _, res := range perRepo {
		releases = append(releases, res...)
	}
	sort.Slice(releases, func(i, j int) bool {
		if !releases[i].CreatedAt.Equal(releases[j].CreatedAt) {
			return releases[i].CreatedAt.Before(releases[j].CreatedAt)
		}
		return releases[i].Repository < releases[j].Repository
	})
	return releases, nil
}

func (c *Collector) rows(date string, prs []domain.PullRequest, releases []domain.Release) []domain.MetricRow {
	var rows []domain.MetricRow
	add := func(category string, calcs ...metrics.Calculator) {
		for _, calc := range calcs {
			rows = append(rows, calc.ToRows(date, category)...)
		}
	}

	add(metrics.CategoryGitHub,
		metrics.NewVelocity(prs),
		metrics.NewCollaboration(prs),
		metrics.NewPRSize(prs),
		metrics.NewQuality(prs, releases),
	)

	for _, team := range sortedKeys(c.teams) {
		members := byAuthor(prs, c.teams[team])
		add(metrics.TeamCategory(team),
			metrics.NewVelocity(members),
			metrics.NewCollaboration(members),
			metrics.NewPRSize(members),
		)
	}

	add(metrics.CategoryRepositoryActivity, metrics.NewRepositoryActivity(prs))
	add(metrics.CategoryContributorActivity, metrics.NewContributorActivity(prs))
	add(metrics.CategoryCommitActivity, metrics.NewCommitActivity(prs))

	daily := metrics.NewDailyAggregator()
	for _, pr := range prs {
		daily.RecordPullRequest(pr)
	}
	for _, r := range releases {
		daily.RecordRelease(r)
	}
	rows = append(rows, daily.ToRows(metrics.CategoryDaily)...)

	return rows
}

// fatal reports whether err must abort the whole run instead of degrading a source.
func fatal(err error) bool {
	return errors.Is(err, gateway.ErrAuthentication) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func inWindow(prs []domain.PullRequest, since time.Time) []domain.PullRequest {
	kept := make([]domain.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if !pr.CreatedAt.Before(since) {
			kept = append(kept, pr)
		}
	}
	return kept
}

func byAuthor(prs []domain.PullRequest, logins []string) []domain.PullRequest {
	members := make(map[string]struct{}, len(logins))
	for _, l := range logins {
		members[l] = struct{}{}
	}
	kept := make([]domain.PullRequest, 0)
	for _, pr := range prs {
		if _, ok := members[pr.Author]; ok {
			kept = append(kept, pr)
		}
	}
	return kept
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
