package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/models"
)

type memoryRepository struct {
	mu      sync.Mutex
	reports []*backtest.WalkForwardReport
	saveErr error
}

func (m *memoryRepository) SaveReport(_ context.Context, report *backtest.WalkForwardReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.reports = append(m.reports, report)
	return nil
}

func (m *memoryRepository) GetRun(_ context.Context, id uuid.UUID) (*models.WalkForwardRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.RunID == id {
			return toRun(r), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryRepository) GetLatest(_ context.Context, strategy string) (*models.WalkForwardRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.reports) - 1; i >= 0; i-- {
		if m.reports[i].Strategy.Name == strategy {
			return toRun(m.reports[i]), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryRepository) GetWindows(context.Context, uuid.UUID) ([]*models.WalkForwardWindow, error) {
	return nil, nil
}

func (m *memoryRepository) ListRuns(context.Context, string, int) ([]*models.WalkForwardRun, error) {
	return nil, nil
}

func (m *memoryRepository) LoadReport(_ context.Context, id uuid.UUID) (*backtest.WalkForwardReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.RunID == id {
			return r, nil
		}
	}
	return nil, models.ErrNotFound
}

func toRun(r *backtest.WalkForwardReport) *models.WalkForwardRun {
	return &models.WalkForwardRun{ID: r.RunID, Strategy: r.Strategy.Name, Verdict: string(r.Verdict)}
}

func reportWith(verdict backtest.Verdict) *backtest.WalkForwardReport {
	return &backtest.WalkForwardReport{
		RunID:       uuid.New(),
		Strategy:    backtest.StrategyTemplate{Name: "ma_cross"},
		Summary:     backtest.Summary{Verdict: verdict, WalkForwardEfficiency: 0.4},
		CompletedAt: time.Now().UTC(),
	}
}

// sequence returns reports with the given verdicts in order, repeating the last one
func sequence(verdicts ...backtest.Verdict) (RunFunc, *int32) {
	var calls int32
	return func(context.Context) (*backtest.WalkForwardReport, error) {
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n >= len(verdicts) {
			n = len(verdicts) - 1
		}
		return reportWith(verdicts[n]), nil
	}, &calls
}

func verdictChanges(hook *test.Hook) int {
	count := 0
	for _, e := range hook.AllEntries() {
		if _, ok := e.Data["new_verdict"]; ok {
			count++
		}
	}
	return count
}

func TestNewSchedulerRequiresRunFunc(t *testing.T) {
	_, err := NewScheduler(nil, nil)
	assert.Error(t, err)
}

func TestRunNowPersistsAndAuditsVerdictChange(t *testing.T) {
	log, hook := test.NewNullLogger()
	repo := &memoryRepository{}
	run, _ := sequence(backtest.VerdictRobust, backtest.VerdictRobust, backtest.VerdictOverfit)

	s, err := NewScheduler(run, log, WithRepository(repo))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.RunNow(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, repo.reports, 3)
	assert.Equal(t, 1, verdictChanges(hook))
}

func TestRunNowWithoutRepositoryTracksVerdictsInMemory(t *testing.T) {
	log, hook := test.NewNullLogger()
	run, _ := sequence(backtest.VerdictMarginal, backtest.VerdictRobust)

	s, err := NewScheduler(run, log)
	require.NoError(t, err)

	first, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, backtest.VerdictMarginal, first.Verdict)
	assert.Equal(t, 0, verdictChanges(hook))

	_, err = s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, verdictChanges(hook))
}

func TestRunNowErrors(t *testing.T) {
	log, _ := test.NewNullLogger()
	boom := errors.New("runner down")

	s, err := NewScheduler(func(context.Context) (*backtest.WalkForwardReport, error) { return nil, boom }, log)
	require.NoError(t, err)
	_, err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, boom)

	repo := &memoryRepository{saveErr: errors.New("disk full")}
	run, _ := sequence(backtest.VerdictRobust)
	s, err = NewScheduler(run, log, WithRepository(repo))
	require.NoError(t, err)
	report, err := s.RunNow(context.Background())
	assert.Error(t, err)
	assert.NotNil(t, report)
}

func TestScheduleRevalidation(t *testing.T) {
	log, _ := test.NewNullLogger()
	run, _ := sequence(backtest.VerdictRobust)
	s, err := NewScheduler(run, log)
	require.NoError(t, err)

	_, err = s.ScheduleRevalidation("not a cron")
	assert.Error(t, err)

	assert.Error(t, s.Start(), "start without jobs")

	_, err = s.ScheduleRevalidation("0 6 * * 1")
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.GetNextRun().IsZero())
	assert.Error(t, s.Start())

	_, err = s.ScheduleRevalidation("@daily")
	assert.Error(t, err, "scheduling while running")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.True(t, s.GetNextRun().IsZero())
	require.NoError(t, s.Stop())
}

func TestScheduledJobRuns(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	run, calls := sequence(backtest.VerdictRobust)

	s, err := NewScheduler(run, log, WithJobTimeout(time.Second))
	require.NoError(t, err)
	_, err = s.ScheduleRevalidation("@every 1s")
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(calls) > 0 }, 3*time.Second, 50*time.Millisecond)
}
