package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/gateway"
	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/metrics"
)

// mockSource is a mock implementation of the PullRequestSource interface.
type mockSource struct {
	mock.Mock
	windowStart time.Time
}

func (m *mockSource) Sync(ctx context.Context, org string) (SyncResult, error) {
	args := m.Called(ctx, org)
	return args.Get(0).(SyncResult), args.Error(1)
}

func (m *mockSource) WindowStart() time.Time {
	return m.windowStart
}

// mockReleaseClient is a mock implementation of the gateway.ReleaseClient interface.
type mockReleaseClient struct {
	mock.Mock
}

func (m *mockReleaseClient) ListRepositories(ctx context.Context, org string) ([]string, error) {
	args := m.Called(ctx, org)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockReleaseClient) ListReleases(ctx context.Context, org, repo string, since time.Time) ([]domain.Release, error) {
	args := m.Called(ctx, org, repo, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Release), args.Error(1)
}

var (
	collectNow  = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	windowStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

func collectorPRs() []domain.PullRequest {
	merged := windowStart.Add(50 * time.Hour)
	return []domain.PullRequest{
		{URL: "old", State: domain.PRStateOpen, CreatedAt: windowStart.Add(-time.Hour), Author: "alice", Repository: "api"},
		{URL: "p1", State: domain.PRStateMerged, CreatedAt: windowStart.Add(2 * time.Hour), MergedAt: &merged, Author: "alice", Repository: "api"},
		{URL: "p2", State: domain.PRStateOpen, CreatedAt: windowStart.Add(26 * time.Hour), Author: "carol", Repository: "web"},
	}
}

func categories(rows []domain.MetricRow) map[string]int {
	out := make(map[string]int)
	for _, r := range rows {
		out[r.Category]++
	}
	return out
}

// TestCollector_Collect uses a table-driven approach to test the collector.
func TestCollector_Collect(t *testing.T) {
	apiReleases := []domain.Release{{Name: "v1", Tag: "v1", CreatedAt: windowStart.Add(72 * time.Hour), Repository: "api"}}

	testCases := []struct {
		name           string
		syncErr        error
		reposErr       error
		releasesErr    error
		expectError    bool
		expectPRs      int
		expectReleases int
		expectCats     []string
		absentCats     []string
	}{
		{
			name:           "happy path - both sources produce rows",
			expectPRs:      2,
			expectReleases: 1,
			expectCats: []string{
				metrics.CategoryGitHub, metrics.TeamCategory("core"), metrics.CategoryDaily,
				metrics.CategoryRepositoryActivity, metrics.CategoryContributorActivity,
			},
		},
		{
			name:           "pull request source fails - releases still produce rows",
			syncErr:        &gateway.TransientError{StatusCode: 502, Err: errors.New("bad gateway")},
			expectPRs:      0,
			expectReleases: 1,
			expectCats:     []string{metrics.CategoryGitHub, metrics.CategoryDaily},
			absentCats:     []string{metrics.CategoryRepositoryActivity},
		},
		{
			name:           "repository listing fails - pull requests still produce rows",
			reposErr:       errors.New("boom"),
			expectPRs:      2,
			expectReleases: 0,
			expectCats:     []string{metrics.CategoryGitHub, metrics.CategoryDaily},
		},
		{
			name:           "one repository fails - release source degrades as a whole",
			releasesErr:    &gateway.UpstreamError{Err: errors.New("boom")},
			expectPRs:      2,
			expectReleases: 0,
			expectCats:     []string{metrics.CategoryGitHub},
		},
		{
			name:        "authentication failure aborts the run",
			syncErr:     fmt.Errorf("full fetch for acme: %w", gateway.ErrAuthentication),
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			source := &mockSource{windowStart: windowStart}
			releases := new(mockReleaseClient)

			syncResult := SyncResult{Mode: SyncFull, PullRequests: collectorPRs()}
			if tc.syncErr != nil {
				syncResult = SyncResult{}
			}
			source.On("Sync", mock.Anything, "acme").Return(syncResult, tc.syncErr)

			if tc.reposErr != nil {
				releases.On("ListRepositories", mock.Anything, "acme").Return(nil, tc.reposErr)
			} else {
				releases.On("ListRepositories", mock.Anything, "acme").Return([]string{"api", "web"}, nil)
			}
			releases.On("ListReleases", mock.Anything, "acme", "api", windowStart).Return(apiReleases, nil).Maybe()
			if tc.releasesErr != nil {
				releases.On("ListReleases", mock.Anything, "acme", "web", windowStart).Return(nil, tc.releasesErr).Maybe()
			} else {
				releases.On("ListReleases", mock.Anything, "acme", "web", windowStart).Return([]domain.Release{}, nil).Maybe()
			}

			c := NewCollector(source, releases, map[string][]string{"core": {"alice"}}, discardLogger())
			c.now = func() time.Time { return collectNow }

			res, err := c.Collect(context.Background(), "acme")

			if tc.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, gateway.ErrAuthentication)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.RunID)
			assert.Equal(t, "2024-06-30", res.Date)
			assert.Equal(t, tc.expectPRs, res.PullRequests)
			assert.Equal(t, tc.expectReleases, res.Releases)

			cats := categories(res.Rows)
			for _, cat := range tc.expectCats {
				assert.Contains(t, cats, cat)
			}
			for _, cat := range tc.absentCats {
				assert.NotContains(t, cats, cat)
			}
			source.AssertExpectations(t)
		})
	}
}

func TestCollector_TeamRowsOnlyCountMembers(t *testing.T) {
	source := &mockSource{windowStart: windowStart}
	source.On("Sync", mock.Anything, "acme").Return(SyncResult{Mode: SyncFresh, PullRequests: collectorPRs()}, nil)
	releases := new(mockReleaseClient)
	releases.On("ListRepositories", mock.Anything, "acme").Return([]string{}, nil)

	c := NewCollector(source, releases, map[string][]string{"core": {"carol"}}, discardLogger())
	c.now = func() time.Time { return collectNow }

	res, err := c.Collect(context.Background(), "acme")
	require.NoError(t, err)

	var teamMerged float64
	for _, r := range res.Rows {
		if r.Category == metrics.TeamCategory("core") && r.Metric == "total_merged" {
			teamMerged = r.Value.Float()
		}
	}
	assert.Equal(t, 0.0, teamMerged)
	assert.Equal(t, SyncFresh, res.Mode)

	var repoRows []string
	for _, r := range res.Rows {
		if r.Category == metrics.CategoryRepositoryActivity {
			repoRows = append(repoRows, r.Date+"/"+r.Metric)
		}
	}
	assert.Equal(t, []string{"2024-06-01/api", "2024-06-02/web"}, repoRows)
	releases.AssertNotCalled(t, "ListReleases", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
