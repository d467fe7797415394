package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// SyncMode is the strategy chosen for one synchronization.
type SyncMode string

const (
	SyncFresh       SyncMode = "fresh"
	SyncIncremental SyncMode = "incremental"
	SyncFull        SyncMode = "full"
)

// DefaultMaxAge is the snapshot age under which no network call is made.
const DefaultMaxAge = 24 * time.Hour

// RangeFetcher fetches every pull request of a date range.
type RangeFetcher interface {
	Fetch(ctx context.Context, org string, r domain.DateRange, field domain.DateField) ([]domain.PullRequest, error)
}

// SnapshotStore persists the pull request snapshot of an organization.
// Load returns an error wrapping fs.ErrNotExist when there is no snapshot, and the
// snapshot modification time otherwise.
type SnapshotStore interface {
	Load(key string) ([]domain.PullRequest, time.Time, error)
	Save(key string, prs []domain.PullRequest) error
}

// SyncResult is the reconciled pull request list and how it was obtained.
type SyncResult struct {
	Mode         SyncMode
	PullRequests []domain.PullRequest
	Fetched      int
}

// Syncer keeps the local snapshot in line with GitHub, refetching as little history
// as possible.
type Syncer struct {
	fetcher  RangeFetcher
	store    SnapshotStore
	lookback int
	maxAge   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewSyncer creates a Syncer. lookback is the number of days a full fetch covers.
func NewSyncer(fetcher RangeFetcher, store SnapshotStore, lookback int, maxAge time.Duration, logger *slog.Logger) *Syncer {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Syncer{
		fetcher:  fetcher,
		store:    store,
		lookback: lookback,
		maxAge:   maxAge,
		now:      time.Now,
		logger:   logger,
	}
}

// WindowStart is the first day covered by a full fetch.
func (s *Syncer) WindowStart() time.Time {
	return domain.Day(s.now()).AddDate(0, 0, -s.lookback)
}

// Sync returns the reconciled pull requests of org.
func (s *Syncer) Sync(ctx context.Context, org string) (SyncResult, error) {
	cached, modTime, err := s.store.Load(org)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s.full(ctx, org)
	case err != nil:
		return SyncResult{}, fmt.Errorf("failed to load snapshot for %s: %w", org, err)
	}

	age := s.now().Sub(modTime)
	if age < s.maxAge {
		s.logger.Info("using fresh snapshot", "org", org, "age", age.Round(time.Second), "count", len(cached))
		return SyncResult{Mode: SyncFresh, PullRequests: cached}, nil
	}
	return s.incremental(ctx, org, cached)
}

func (s *Syncer) full(ctx context.Context, org string) (SyncResult, error) {
	r := domain.NewDateRange(s.WindowStart(), s.now())
	s.logger.Info("no snapshot, fetching full window", "org", org, "range", r.String())

	fetched, err := s.fetcher.Fetch(ctx, org, r, domain.DateFieldCreated)
	if err != nil {
		return SyncResult{}, fmt.Errorf("full fetch for %s: %w", org, err)
	}
	merged := MergePullRequests(nil, fetched)
	if err := s.store.Save(org, merged); err != nil {
		return SyncResult{}, fmt.Errorf("failed to save snapshot for %s: %w", org, err)
	}
	return SyncResult{Mode: SyncFull, PullRequests: merged, Fetched: len(fetched)}, nil
}

func (s *Syncer) incremental(ctx context.Context, org string, cached []domain.PullRequest) (SyncResult, error) {
	watermark := Watermark(cached, s.WindowStart())
	r := domain.NewDateRange(watermark, s.now())
	s.logger.Info("stale snapshot, fetching updates", "org", org, "watermark", watermark, "range", r.String())

	fetched, err := s.fetcher.Fetch(ctx, org, r, domain.DateFieldUpdated)
	if err != nil {
		return SyncResult{}, fmt.Errorf("incremental fetch for %s: %w", org, err)
	}
	older, err := s.backfill(ctx, org, cached)
	if err != nil {
		return SyncResult{}, err
	}
	fetched = append(fetched, older...)
	merged := MergePullRequests(cached, fetched)
	if err := s.store.Save(org, merged); err != nil {
		return SyncResult{}, fmt.Errorf("failed to save snapshot for %s: %w", org, err)
	}
	return SyncResult{Mode: SyncIncremental, PullRequests: merged, Fetched: len(fetched)}, nil
}

// backfill fetches, by creation date, the part of the window older than the oldest
// cached record. It is empty unless the lookback grew since the snapshot was taken,
// or the first days of the window had no pull requests.
func (s *Syncer) backfill(ctx context.Context, org string, cached []domain.PullRequest) ([]domain.PullRequest, error) {
	if len(cached) == 0 {
		return nil, nil
	}
	oldest := domain.Day(cached[0].CreatedAt)
	for _, pr := range cached[1:] {
		if day := domain.Day(pr.CreatedAt); day.Before(oldest) {
			oldest = day
		}
	}
	start := s.WindowStart()
	if !start.Before(oldest) {
		return nil, nil
	}

	r := domain.NewDateRange(start, oldest.AddDate(0, 0, -1))
	s.logger.Info("window extends past snapshot, backfilling", "org", org, "range", r.String())
	fetched, err := s.fetcher.Fetch(ctx, org, r, domain.DateFieldCreated)
	if err != nil {
		return nil, fmt.Errorf("backfill fetch for %s: %w", org, err)
	}
	return fetched, nil
}

// Watermark returns the most recent UpdatedAt of prs, or fallback when prs is empty.
func Watermark(prs []domain.PullRequest, fallback time.Time) time.Time {
	if len(prs) == 0 {
		return fallback
	}
	latest := prs[0].UpdatedAt
	for _, pr := range prs[1:] {
		if pr.UpdatedAt.After(latest) {
			latest = pr.UpdatedAt
		}
	}
	return latest
}

// MergePullRequests returns one record per URL: every cached record, replaced
// wholesale by the fetched record with the same URL. The result is ordered by
// creation time, then URL.
func MergePullRequests(cached, fetched []domain.PullRequest) []domain.PullRequest {
	byURL := make(map[string]domain.PullRequest, len(cached)+len(fetched))
	for _, pr := range cached {
		byURL[pr.URL] = pr
	}
	for _, pr := range fetched {
		byURL[pr.URL] = pr
	}

	merged := make([]domain.PullRequest, 0, len(byURL))
	for _, pr := range byURL {
		merged = append(merged, pr)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.Before(merged[j].CreatedAt)
		}
		return merged[i].URL < merged[j].URL
	})
	return merged
}
