package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/gateway"
)

// SearchResultCap is the maximum number of results the GitHub search API returns
// for a single query.
const SearchResultCap = 1000

// Progress is a snapshot of the fetcher counters.
type Progress struct {
	CountQueries  int64
	SearchQueries int64
	Splits        int64
	Records       int64
	Truncated     int64
}

// PartitionFetcher retrieves every pull request of a date window by splitting the
// window until each piece fits under the search result cap.
type PartitionFetcher struct {
	client gateway.SearchClient
	logger *slog.Logger

	countQueries  atomic.Int64
	searchQueries atomic.Int64
	splits        atomic.Int64
	records       atomic.Int64
	truncated     atomic.Int64
}

// NewPartitionFetcher creates a new PartitionFetcher instance.
func NewPartitionFetcher(client gateway.SearchClient, logger *slog.Logger) *PartitionFetcher {
	return &PartitionFetcher{client: client, logger: logger}
}

// Fetch returns the pull requests whose field falls within r. Ranges are processed
// sequentially from a worklist, oldest first. Sub-ranges are disjoint, so no
// deduplication happens here.
//
// A single day that still matches more than SearchResultCap pull requests cannot be
// split further; its search is run anyway and GitHub truncates it. This is logged
// and counted, not corrected.
func (f *PartitionFetcher) Fetch(ctx context.Context, org string, r domain.DateRange, field domain.DateField) ([]domain.PullRequest, error) {
	prs := make([]domain.PullRequest, 0)
	pending := []domain.DateRange{r}

	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		count, err := f.client.CountPullRequests(ctx, org, current, field)
		if err != nil {
			return nil, err
		}
		f.countQueries.Add(1)

		if count > SearchResultCap {
			if left, right, ok := current.Split(); ok {
				f.splits.Add(1)
				f.logger.Debug("splitting range over the search cap",
					"org", org, "range", current.String(), "field", field, "count", count)
				pending = append(pending, right, left)
				continue
			}
			f.truncated.Add(1)
			f.logger.Warn("single day exceeds the search cap, results will be truncated",
				"org", org, "range", current.String(), "field", field, "count", count)
		}

		page, err := f.client.SearchPullRequests(ctx, org, current, field)
		if err != nil {
			return nil, err
		}
		f.searchQueries.Add(1)
		f.records.Add(int64(len(page)))
		prs = append(prs, page...)
		f.logger.Info("fetched pull requests",
			"org", org, "range", current.String(), "field", field, "count", len(page), "total", len(prs))
	}

	return prs, nil
}

// Progress returns the counters accumulated since the fetcher was created.
func (f *PartitionFetcher) Progress() Progress {
	return Progress{
		CountQueries:  f.countQueries.Load(),
		SearchQueries: f.searchQueries.Load(),
		Splits:        f.splits.Load(),
		Records:       f.records.Load(),
		Truncated:     f.truncated.Load(),
	}
}

func (p Progress) String() string {
	return fmt.Sprintf("count=%d search=%d splits=%d records=%d truncated=%d",
		p.CountQueries, p.SearchQueries, p.Splits, p.Records, p.Truncated)
}
