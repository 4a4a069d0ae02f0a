package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/payment_ledger/internal/advisorylock"
	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var jobNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingJob struct {
	name string
	lock *LockConfig
	runs int
	run  func(ctx context.Context) error
}

func (j *recordingJob) Name() string              { return j.name }
func (j *recordingJob) AdvisoryLock() *LockConfig { return j.lock }

func (j *recordingJob) Run(ctx context.Context) error {
	j.runs++
	if j.run != nil {
		return j.run(ctx)
	}
	return nil
}

func newTestRunner() (*Runner, *advisorylock.Locker, *MemoryScheduler) {
	locker := advisorylock.NewLocker(advisorylock.NewMemory())
	scheduler := NewMemoryScheduler()
	scheduler.now = func() time.Time { return jobNow }
	runner := NewRunner(locker, scheduler)
	runner.now = func() time.Time { return jobNow }
	return runner, locker, scheduler
}

func TestRunner_RunsUnlockedJob(t *testing.T) {
	runner, _, _ := newTestRunner()
	job := &recordingJob{name: "plain"}

	require.NoError(t, runner.Run(context.Background(), job))

	assert.Equal(t, 1, job.runs)
}

func TestRunner_WrapsJobError(t *testing.T) {
	runner, _, _ := newTestRunner()
	boom := errors.New("boom")
	job := &recordingJob{name: "failing", run: func(context.Context) error { return boom }}

	err := runner.Run(context.Background(), job)

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "job failing")
}

func TestRunner_ReschedulesOnContention(t *testing.T) {
	ctx := context.Background()
	runner, locker, scheduler := newTestRunner()
	job := &recordingJob{name: "sync", lock: &LockConfig{Backoff: Backoff(time.Minute)}}
	runner.Register(job)

	require.NoError(t, locker.WithLock(ctx, "sync", func(ctx context.Context) error {
		return runner.Run(ctx, job)
	}))
	assert.Equal(t, 0, job.runs)
	assert.Equal(t, jobNow.Add(time.Minute), scheduler.due["sync"])

	// not due yet
	require.NoError(t, runner.RunDue(ctx))
	assert.Equal(t, 0, job.runs)

	runner.now = func() time.Time { return jobNow.Add(time.Minute) }
	require.NoError(t, runner.RunDue(ctx))
	assert.Equal(t, 1, job.runs)
	assert.Empty(t, scheduler.due)
}

func TestRunner_NilBackoffDropsRun(t *testing.T) {
	ctx := context.Background()
	runner, locker, scheduler := newTestRunner()
	job := &recordingJob{name: "sync", lock: &LockConfig{}}

	require.NoError(t, locker.WithLock(ctx, "sync", func(ctx context.Context) error {
		return runner.Run(ctx, job)
	}))

	assert.Equal(t, 0, job.runs)
	assert.Empty(t, scheduler.due)
}

func TestRunner_JobsSharingAKeyNeverOverlap(t *testing.T) {
	ctx := context.Background()
	runner, _, scheduler := newTestRunner()
	second := &recordingJob{name: "payouts", lock: &LockConfig{Key: "settlement", Backoff: Backoff(30 * time.Second)}}
	first := &recordingJob{name: "funding", lock: &LockConfig{Key: "settlement", Backoff: Backoff(30 * time.Second)}}
	first.run = func(ctx context.Context) error {
		return runner.Run(ctx, second)
	}

	require.NoError(t, runner.Run(ctx, first))

	assert.Equal(t, 1, first.runs)
	assert.Equal(t, 0, second.runs)
	assert.Equal(t, jobNow.Add(30*time.Second), scheduler.due["payouts"])

	// the lock is free again once the first job returns
	require.NoError(t, runner.Run(ctx, second))
	assert.Equal(t, 1, second.runs)
}

func TestRunner_RunDueSkipsUnknownJobs(t *testing.T) {
	ctx := context.Background()
	runner, _, scheduler := newTestRunner()
	require.NoError(t, scheduler.ScheduleIn(ctx, "retired_job", 0))

	assert.NoError(t, runner.RunDue(ctx))
	assert.Empty(t, scheduler.due)
}

func TestWorker_TickRunsPeriodicThenDue(t *testing.T) {
	ctx := context.Background()
	runner, _, scheduler := newTestRunner()
	periodic := &recordingJob{name: "periodic"}
	rerun := &recordingJob{name: "rerun"}
	runner.Register(rerun)
	worker := NewWorker(runner, time.Second, periodic)
	require.NoError(t, scheduler.ScheduleIn(ctx, "rerun", 0))

	worker.Tick(ctx)

	assert.Equal(t, 1, periodic.runs)
	assert.Equal(t, 1, rerun.runs)
}

func TestWorker_StartStopsWithContext(t *testing.T) {
	runner, _, _ := newTestRunner()
	periodic := &recordingJob{name: "periodic"}
	worker := NewWorker(runner, time.Hour, periodic)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, worker.Start(ctx))
	assert.Equal(t, 0, periodic.runs)
}

func TestRedisScheduler_ScheduleIn(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisScheduler(client)
	s.now = func() time.Time { return jobNow }

	mock.ExpectZAdd("jobs:scheduled", &redis.Z{Score: float64(jobNow.Add(time.Minute).Unix()), Member: "sync"}).SetVal(1)

	require.NoError(t, s.ScheduleIn(context.Background(), "sync", time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisScheduler_DueClaimsEachMemberOnce(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisScheduler(client)

	mock.ExpectZRangeByScore("jobs:scheduled", &redis.ZRangeBy{Min: "-inf", Max: "1772366400"}).
		SetVal([]string{"sync", "payouts"})
	mock.ExpectZRem("jobs:scheduled", "sync").SetVal(1)
	// another worker claimed it first
	mock.ExpectZRem("jobs:scheduled", "payouts").SetVal(0)

	names, err := s.Due(context.Background(), jobNow)

	require.NoError(t, err)
	assert.Equal(t, []string{"sync"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Mock processors ---
type MockFundingProcessor struct {
	mock.Mock
}

func (m *MockFundingProcessor) ListProcessable(ctx context.Context, statuses []domain.FundingStatus, limit int) ([]string, error) {
	args := m.Called(ctx, statuses, limit)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockFundingProcessor) Process(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockPayoutProcessor struct {
	mock.Mock
}

func (m *MockPayoutProcessor) ListProcessable(ctx context.Context, statuses []domain.PayoutStatus, limit int) ([]string, error) {
	args := m.Called(ctx, statuses, limit)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockPayoutProcessor) Process(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func TestProcessFundingTransactions_ContinuesPastFailures(t *testing.T) {
	funding := new(MockFundingProcessor)
	job := &ProcessFundingTransactions{Settlement: Settlement{BatchSize: 10}, Funding: funding}

	funding.On("ListProcessable", mock.Anything, []domain.FundingStatus{domain.FundingCreated, domain.FundingCollecting}, 10).
		Return([]string{"ft-1", "ft-2", "ft-3"}, nil)
	funding.On("Process", mock.Anything, "ft-1").Return(&apperrors.ProviderError{Recoverable: true, StatusCode: 503})
	funding.On("Process", mock.Anything, "ft-2").Return(errors.New("db down"))
	funding.On("Process", mock.Anything, "ft-3").Return(nil)

	require.NoError(t, job.Run(context.Background()))
	funding.AssertExpectations(t)
}

func TestReconcileClearedFunding_PollsCleared(t *testing.T) {
	funding := new(MockFundingProcessor)
	job := &ReconcileClearedFunding{Settlement: Settlement{BatchSize: 5}, Funding: funding}

	funding.On("ListProcessable", mock.Anything, []domain.FundingStatus{domain.FundingCleared}, 5).Return([]string{"ft-9"}, nil)
	funding.On("Process", mock.Anything, "ft-9").Return(nil)

	require.NoError(t, job.Run(context.Background()))
	funding.AssertExpectations(t)
}

func TestProcessPayoutTransactions_ListErrorIsReturned(t *testing.T) {
	payouts := new(MockPayoutProcessor)
	job := &ProcessPayoutTransactions{Settlement: Settlement{BatchSize: 5}, Payouts: payouts}

	payouts.On("ListProcessable", mock.Anything, []domain.PayoutStatus{domain.PayoutCreated, domain.PayoutSending}, 5).
		Return([]string(nil), errors.New("db down"))

	assert.Error(t, job.Run(context.Background()))
	payouts.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestSettlementJobs_LockOnTheirOwnName(t *testing.T) {
	jobs := SettlementJobs(Settlement{Backoff: Backoff(time.Minute)}, new(MockFundingProcessor), new(MockPayoutProcessor))
	for _, j := range jobs {
		cfg := j.(Lockable).AdvisoryLock()
		assert.Empty(t, cfg.Key, j.Name())
		assert.Equal(t, time.Minute, *cfg.Backoff, j.Name())
	}
}

func TestSettlementJobs_WireEachProcessor(t *testing.T) {
	funding := new(MockFundingProcessor)
	payouts := new(MockPayoutProcessor)
	jobs := SettlementJobs(Settlement{BatchSize: 2}, funding, payouts)
	require.Len(t, jobs, 3)

	funding.On("ListProcessable", mock.Anything, []domain.FundingStatus{domain.FundingCreated, domain.FundingCollecting}, 2).
		Return([]string{"ft-1"}, nil)
	funding.On("ListProcessable", mock.Anything, []domain.FundingStatus{domain.FundingCleared}, 2).Return([]string{"ft-2"}, nil)
	funding.On("Process", mock.Anything, "ft-1").Return(nil)
	funding.On("Process", mock.Anything, "ft-2").Return(nil)
	payouts.On("ListProcessable", mock.Anything, []domain.PayoutStatus{domain.PayoutCreated, domain.PayoutSending}, 2).
		Return([]string{"po-1"}, nil)
	payouts.On("Process", mock.Anything, "po-1").Return(nil)

	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
		require.NoError(t, j.Run(context.Background()))
	}

	assert.Equal(t, []string{"process_funding_transactions", "reconcile_cleared_funding", "process_payout_transactions"}, names)
	funding.AssertExpectations(t)
	payouts.AssertExpectations(t)
}
