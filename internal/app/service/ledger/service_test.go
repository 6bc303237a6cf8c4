package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/metrics"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, *repository.MemoryStore, string) {
	t.Helper()
	repo := repository.NewMemoryStore()
	c := &models.Customer{Email: "fan@example.com", Name: "Fan", Active: true}
	require.NoError(t, repo.CreateCustomer(context.Background(), c))
	m, err := metrics.NewBusiness(prometheus.NewRegistry(), "test")
	require.NoError(t, err)
	return NewService(repo, m, zap.NewNop().Sugar()), repo, c.ID
}

func TestAppend_ChainsBalances(t *testing.T) {
	ctx := context.Background()
	s, _, cid := newService(t)

	e1, err := s.Append(ctx, AppendRequest{CustomerID: cid, Delta: 10, Kind: types.LedgerEntryKindPurchase, Reason: "Purchase: Credits"})
	require.NoError(t, err)
	require.EqualValues(t, 1, e1.Seq)
	require.EqualValues(t, 10, e1.BalanceAfter)

	e2, err := s.Adjust(ctx, cid, -3, "correction")
	require.NoError(t, err)
	require.EqualValues(t, 2, e2.Seq)
	require.EqualValues(t, 7, e2.BalanceAfter)
	require.Equal(t, types.LedgerEntryKindAdjustment, e2.Kind)

	bal, err := s.CurrentBalance(ctx, cid)
	require.NoError(t, err)
	require.EqualValues(t, 7, bal)
}

func TestAppend_ZeroDelta(t *testing.T) {
	s, repo, cid := newService(t)
	_, err := s.Adjust(context.Background(), cid, 0, "noop")
	require.ErrorIs(t, err, ErrZeroDelta)
	require.Zero(t, repo.Counts()["ledger"])
}

func TestAppend_UnknownCustomer(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Adjust(context.Background(), "missing", 5, "x")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeduct_Insufficient(t *testing.T) {
	ctx := context.Background()
	s, repo, cid := newService(t)

	_, err := s.Adjust(ctx, cid, 5, "grant")
	require.NoError(t, err)

	_, err = s.Deduct(ctx, cid, 6, "live review", nil)
	require.ErrorIs(t, err, ErrInsufficientCredits)
	require.Equal(t, 1, repo.Counts()["ledger"])

	_, err = s.Deduct(ctx, cid, 0, "nothing", nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	e, err := s.Deduct(ctx, cid, 5, "live review", nil)
	require.NoError(t, err)
	require.Zero(t, e.BalanceAfter)
	require.Equal(t, types.LedgerEntryKindDeduction, e.Kind)
}

func TestAppend_InsertFailureLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	s, repo, cid := newService(t)
	_, err := s.Adjust(ctx, cid, 5, "grant")
	require.NoError(t, err)

	repo.InjectFault("InsertLedgerEntry", errors.New("disk full"))
	_, err = s.Adjust(ctx, cid, 5, "grant")
	require.Error(t, err)

	bal, err := s.CurrentBalance(ctx, cid)
	require.NoError(t, err)
	require.EqualValues(t, 5, bal)
}

func TestAppend_Concurrent(t *testing.T) {
	ctx := context.Background()
	s, _, cid := newService(t)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Adjust(ctx, cid, 2, "bulk")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	history, err := s.History(ctx, cid)
	require.NoError(t, err)
	require.Len(t, history, n)
	for i, e := range history {
		require.EqualValues(t, i+1, e.Seq)
		require.EqualValues(t, 2*(i+1), e.BalanceAfter)
	}

	report, err := s.Verify(ctx, cid)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.EqualValues(t, 2*n, report.Balance)
}

func TestVerify_DetectsBrokenChain(t *testing.T) {
	ctx := context.Background()
	s, repo, cid := newService(t)
	_, err := s.Adjust(ctx, cid, 4, "grant")
	require.NoError(t, err)
	require.NoError(t, repo.InsertLedgerEntry(ctx, &models.CreditsLedgerEntry{
		CustomerID: cid, Seq: 2, Delta: 1, BalanceAfter: 9, Kind: types.LedgerEntryKindAdjustment,
	}))

	report, err := s.Verify(ctx, cid)
	require.NoError(t, err)
	require.False(t, report.Consistent)
	require.EqualValues(t, 2, report.BrokenSeq)
	require.EqualValues(t, 5, report.Expected)
	require.EqualValues(t, 9, report.Actual)
}

func TestCurrentBalance_Empty(t *testing.T) {
	s, _, cid := newService(t)
	bal, err := s.CurrentBalance(context.Background(), cid)
	require.NoError(t, err)
	require.Zero(t, bal)

	_, err = s.CurrentBalance(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
