package scheduler

import (
	"context"
	"errors"
	"testing"

	"cragflow/internal/index"
	"cragflow/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTarget struct {
	mock.Mock
}

func (m *mockTarget) Sources(ctx context.Context) ([]models.Source, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Source), args.Error(1)
}

func (m *mockTarget) IngestURL(ctx context.Context, rawURL string) (index.Report, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(index.Report), args.Error(1)
}

func (m *mockTarget) Reingest(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestStartSeedsOnlyUnknownURLs(t *testing.T) {
	target := &mockTarget{}
	target.On("Sources", mock.Anything).Return([]models.Source{{URL: "https://app.clickup.com/1/v/dc/a"}}, nil)
	target.On("IngestURL", mock.Anything, "https://app.clickup.com/1/v/dc/b").Return(index.Report{Added: 2}, nil).Once()

	s := New(target)
	err := s.Start(context.Background(), "", []string{
		"https://app.clickup.com/1/v/dc/a",
		"https://app.clickup.com/1/v/dc/b",
		" https://app.clickup.com/1/v/dc/b ",
		"",
	})
	require.NoError(t, err)
	target.AssertExpectations(t)
	target.AssertNumberOfCalls(t, "IngestURL", 1)
}

func TestStartKeepsSeedingAfterIngestError(t *testing.T) {
	target := &mockTarget{}
	target.On("Sources", mock.Anything).Return([]models.Source{}, nil)
	target.On("IngestURL", mock.Anything, "bad").Return(index.Report{}, errors.New("not a clickup doc url"))
	target.On("IngestURL", mock.Anything, "https://app.clickup.com/1/v/dc/c").Return(index.Report{Added: 1}, nil)

	require.NoError(t, New(target).Start(context.Background(), "", []string{"bad", "https://app.clickup.com/1/v/dc/c"}))
	target.AssertNumberOfCalls(t, "IngestURL", 2)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	err := New(&mockTarget{}).Start(context.Background(), "not a cron", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid reingest schedule")
}

func TestRunOnceRecordsOutcome(t *testing.T) {
	target := &mockTarget{}
	target.On("Reingest", mock.Anything).Return(3, nil).Once()
	target.On("Reingest", mock.Anything).Return(0, errors.New("boom")).Once()

	s := New(target)
	s.RunOnce()
	at, err := s.LastRun()
	require.NoError(t, err)
	require.False(t, at.IsZero())

	s.RunOnce()
	_, err = s.LastRun()
	require.EqualError(t, err, "boom")
	target.AssertExpectations(t)
}

func TestStartAndStop(t *testing.T) {
	s := New(&mockTarget{})
	require.NoError(t, s.Start(context.Background(), "@every 1h", nil))
	require.Len(t, s.cron.Entries(), 1)
	s.Stop()
}
