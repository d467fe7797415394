package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// mockSearchClient is a mock implementation of the gateway.SearchClient interface.
// It records the order of COUNT and SEARCH calls.
type mockSearchClient struct {
	mock.Mock
	calls []string
}

func (m *mockSearchClient) CountPullRequests(ctx context.Context, org string, r domain.DateRange, field domain.DateField) (int, error) {
	m.calls = append(m.calls, "count "+r.String())
	args := m.Called(ctx, org, r, field)
	return args.Int(0), args.Error(1)
}

func (m *mockSearchClient) SearchPullRequests(ctx context.Context, org string, r domain.DateRange, field domain.DateField) ([]domain.PullRequest, error) {
	m.calls = append(m.calls, "search "+r.String())
	args := m.Called(ctx, org, r, field)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PullRequest), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dr(start, end string) domain.DateRange {
	return domain.NewDateRange(day(start), day(end))
}

func TestPartitionFetcher_SplitsBeforeSearching(t *testing.T) {
	client := new(mockSearchClient)
	ctx := context.Background()
	whole := dr("2024-01-01", "2024-01-10")
	left := dr("2024-01-01", "2024-01-05")
	right := dr("2024-01-06", "2024-01-10")

	client.On("CountPullRequests", ctx, "acme", whole, domain.DateFieldCreated).Return(1500, nil).Once()
	client.On("CountPullRequests", ctx, "acme", left, domain.DateFieldCreated).Return(700, nil).Once()
	client.On("CountPullRequests", ctx, "acme", right, domain.DateFieldCreated).Return(800, nil).Once()
	client.On("SearchPullRequests", ctx, "acme", left, domain.DateFieldCreated).
		Return([]domain.PullRequest{{URL: "a"}, {URL: "b"}}, nil).Once()
	client.On("SearchPullRequests", ctx, "acme", right, domain.DateFieldCreated).
		Return([]domain.PullRequest{{URL: "c"}}, nil).Once()

	f := NewPartitionFetcher(client, discardLogger())
	prs, err := f.Fetch(ctx, "acme", whole, domain.DateFieldCreated)

	require.NoError(t, err)
	assert.Equal(t, []domain.PullRequest{{URL: "a"}, {URL: "b"}, {URL: "c"}}, prs)
	assert.Equal(t, []string{
		"count " + whole.String(),
		"count " + left.String(),
		"search " + left.String(),
		"count " + right.String(),
		"search " + right.String(),
	}, client.calls)
	client.AssertNotCalled(t, "SearchPullRequests", ctx, "acme", whole, domain.DateFieldCreated)
	client.AssertExpectations(t)

	assert.Equal(t, Progress{CountQueries: 3, SearchQueries: 2, Splits: 1, Records: 3}, f.Progress())
}

func TestPartitionFetcher_SingleDayOverCap(t *testing.T) {
	client := new(mockSearchClient)
	ctx := context.Background()
	single := dr("2024-01-01", "2024-01-01")

	client.On("CountPullRequests", ctx, "acme", single, domain.DateFieldUpdated).Return(2500, nil).Once()
	client.On("SearchPullRequests", ctx, "acme", single, domain.DateFieldUpdated).
		Return([]domain.PullRequest{{URL: "a"}}, nil).Once()

	f := NewPartitionFetcher(client, discardLogger())
	prs, err := f.Fetch(ctx, "acme", single, domain.DateFieldUpdated)

	require.NoError(t, err)
	assert.Len(t, prs, 1)
	assert.Equal(t, int64(1), f.Progress().Truncated)
	assert.Equal(t, int64(0), f.Progress().Splits)
	client.AssertExpectations(t)
}

func TestPartitionFetcher_EmptyRangeStillSearches(t *testing.T) {
	client := new(mockSearchClient)
	ctx := context.Background()
	r := dr("2024-02-01", "2024-02-03")

	client.On("CountPullRequests", ctx, "acme", r, domain.DateFieldCreated).Return(0, nil).Once()
	client.On("SearchPullRequests", ctx, "acme", r, domain.DateFieldCreated).Return([]domain.PullRequest{}, nil).Once()

	prs, err := NewPartitionFetcher(client, discardLogger()).Fetch(ctx, "acme", r, domain.DateFieldCreated)

	require.NoError(t, err)
	assert.NotNil(t, prs)
	assert.Empty(t, prs)
	client.AssertExpectations(t)
}

func TestPartitionFetcher_Errors(t *testing.T) {
	ctx := context.Background()
	r := dr("2024-02-01", "2024-02-03")
	boom := errors.New("github api error")

	t.Run("count fails", func(t *testing.T) {
		client := new(mockSearchClient)
		client.On("CountPullRequests", ctx, "acme", r, domain.DateFieldCreated).Return(0, boom).Once()

		prs, err := NewPartitionFetcher(client, discardLogger()).Fetch(ctx, "acme", r, domain.DateFieldCreated)

		assert.ErrorIs(t, err, boom)
		assert.Nil(t, prs)
		client.AssertNotCalled(t, "SearchPullRequests", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("search fails", func(t *testing.T) {
		client := new(mockSearchClient)
		client.On("CountPullRequests", ctx, "acme", r, domain.DateFieldCreated).Return(10, nil).Once()
		client.On("SearchPullRequests", ctx, "acme", r, domain.DateFieldCreated).Return(nil, boom).Once()

		prs, err := NewPartitionFetcher(client, discardLogger()).Fetch(ctx, "acme", r, domain.DateFieldCreated)

		assert.ErrorIs(t, err, boom)
		assert.Nil(t, prs)
	})
}

func TestPartitionFetcher_DeepSplitTerminates(t *testing.T) {
	client := new(mockSearchClient)
	ctx := context.Background()
	r := dr("2024-03-01", "2024-03-31")

	client.On("CountPullRequests", ctx, "acme", mock.Anything, domain.DateFieldCreated).Return(5000, nil)
	client.On("SearchPullRequests", ctx, "acme", mock.Anything, domain.DateFieldCreated).
		Return([]domain.PullRequest{{URL: "x"}}, nil)

	f := NewPartitionFetcher(client, discardLogger())
	prs, err := f.Fetch(ctx, "acme", r, domain.DateFieldCreated)

	require.NoError(t, err)
	p := f.Progress()
	assert.Equal(t, int64(31), p.SearchQueries)
	assert.Equal(t, int64(31), p.Truncated)
	assert.Equal(t, int64(30), p.Splits)
	assert.Equal(t, int64(61), p.CountQueries)
	assert.Len(t, prs, 31)
}
