package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	feedomain "github.com/railzwaylabs/paycore/internal/fee/domain"
	installmentdomain "github.com/railzwaylabs/paycore/internal/installment/domain"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/locker"
	subscriptiondomain "github.com/railzwaylabs/paycore/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type installments struct {
	installmentdomain.Service
	mock.Mock
}

func (m *installments) ListDue(ctx context.Context, now time.Time, limit int) ([]installmentdomain.Installment, error) {
	args := m.Called(now, limit)
	return args.Get(0).([]installmentdomain.Installment), args.Error(1)
}

func (m *installments) ListPending(ctx context.Context, limit int) ([]installmentdomain.Installment, error) {
	args := m.Called(limit)
	return args.Get(0).([]installmentdomain.Installment), args.Error(1)
}

type subscriptions struct {
	subscriptiondomain.Service
	mu      sync.Mutex
	charged []string
	settled []string
	fail    map[string]error
}

func (m *subscriptions) ChargeInstallment(_ context.Context, id string) (*ledgerdomain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charged = append(m.charged, id)
	if err := m.fail[id]; err != nil {
		return nil, err
	}
	return &ledgerdomain.Transaction{}, nil
}

func (m *subscriptions) SettleInstallment(_ context.Context, id string) (*installmentdomain.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled = append(m.settled, id)
	return &installmentdomain.Installment{}, nil
}

type ledger struct {
	ledgerdomain.Service
	mock.Mock
}

func (m *ledger) Reconcile(ctx context.Context, olderThan time.Duration) (ledgerdomain.ReconcileResult, error) {
	args := m.Called(olderThan)
	return args.Get(0).(ledgerdomain.ReconcileResult), args.Error(1)
}

type fees struct {
	feedomain.Service
	mock.Mock
}

func (m *fees) SyncRecent(ctx context.Context, limit int) (*feedomain.SyncResult, error) {
	args := m.Called(limit)
	return args.Get(0).(*feedomain.SyncResult), args.Error(1)
}

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	s    *Scheduler
	inst *installments
	subs *subscriptions
	led  *ledger
	fee  *fees
	lock *locker.MemoryLocker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		inst: &installments{},
		subs: &subscriptions{fail: map[string]error{}},
		led:  &ledger{},
		fee:  &fees{},
		lock: locker.NewMemoryLocker(),
	}
	f.s = New(Params{
		Log: zap.NewNop(),
		Config: config.Config{
			Scheduler: config.SchedulerConfig{
				ChargeSpec: "@every 1m", SettleSpec: "@every 5m", ReconcileSpec: "@every 10m",
				Concurrency: 2, BatchSize: 50,
			},
			Ledger: config.LedgerConfig{ReconcileAfter: 15 * time.Minute},
		},
		Clock:         clock.NewFixed(now),
		Locker:        f.lock,
		Installments:  f.inst,
		Subscriptions: f.subs,
		Ledger:        f.led,
		Fees:          f.fee,
	})
	return f
}

func batch(ids ...int64) []installmentdomain.Installment {
	out := make([]installmentdomain.Installment, 0, len(ids))
	for _, id := range ids {
		out = append(out, installmentdomain.Installment{ID: snowflake.ID(id), SubscriptionID: 1})
	}
	return out
}

func TestChargeDueChargesEveryInstallment(t *testing.T) {
	f := newFixture(t)
	f.inst.On("ListDue", now, 50).Return(batch(11, 12, 13), nil).Once()
	f.subs.fail["12"] = apperr.Conflict("installment", "not payable")

	require.NoError(t, f.s.Run(context.Background(), JobCharge))
	assert.ElementsMatch(t, []string{"11", "12", "13"}, f.subs.charged)
	f.inst.AssertExpectations(t)
}

func TestSettlePending(t *testing.T) {
	f := newFixture(t)
	f.inst.On("ListPending", 50).Return(batch(21, 22), nil).Once()

	require.NoError(t, f.s.Run(context.Background(), JobSettle))
	assert.ElementsMatch(t, []string{"21", "22"}, f.subs.settled)
}

func TestListFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.inst.On("ListDue", now, 50).Return([]installmentdomain.Installment(nil), errors.New("db down")).Once()
	assert.EqualError(t, f.s.Run(context.Background(), JobCharge), "db down")
	assert.Empty(t, f.subs.charged)
}

func TestReconcileUsesGracePeriod(t *testing.T) {
	f := newFixture(t)
	f.led.On("Reconcile", 15*time.Minute).Return(ledgerdomain.ReconcileResult{Checked: 3, Recovered: 1, Failed: 1, Unresolved: 1}, nil).Once()
	require.NoError(t, f.s.Run(context.Background(), JobReconcile))
	f.led.AssertExpectations(t)
}

func TestSyncFees(t *testing.T) {
	f := newFixture(t)
	f.fee.On("SyncRecent", 50).Return(&feedomain.SyncResult{Created: 2}, nil).Once()
	require.NoError(t, f.s.Run(context.Background(), JobFees))
	f.fee.AssertExpectations(t)
}

func TestRunSkipsJobHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	lease, err := f.lock.Acquire(context.Background(), locker.Key("job", JobCharge), time.Minute, 0)
	require.NoError(t, err)
	defer lease.Release(context.Background())

	require.NoError(t, f.s.Run(context.Background(), JobCharge))
	f.inst.AssertNotCalled(t, "ListDue", mock.Anything, mock.Anything)
}

func TestRunUnknownJob(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.s.Run(context.Background(), "nope"))
}

func TestStartSkipsDisabledJobsAndRejectsBadSpecs(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Start(context.Background()))
	assert.Len(t, f.s.cron.Entries(), 3)
	require.NoError(t, f.s.Stop(context.Background()))

	f.s.cfg.FeeSpec = "not a spec"
	assert.Error(t, f.s.Start(context.Background()))
}
