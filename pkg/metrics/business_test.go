package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestBusiness_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	b, err := NewBusiness(reg, "test")
	require.NoError(t, err)

	b.Charge("card", "approved")
	b.Charge("card", "approved")
	b.Charge("ach", "declined")
	b.Reconciled("imported", 3)
	b.Reconciled("matched", 0)
	b.LedgerAppend("purchase")
	b.ObserveProcess("charge", "card", time.Now())

	require.Equal(t, 2.0, testutil.ToFloat64(b.charges.WithLabelValues("card", "approved")))
	require.Equal(t, 1.0, testutil.ToFloat64(b.charges.WithLabelValues("ach", "declined")))
	require.Equal(t, 3.0, testutil.ToFloat64(b.reconciled.WithLabelValues("imported")))
	require.Equal(t, 1.0, testutil.ToFloat64(b.ledgerWrite.WithLabelValues("purchase")))

	// second registration on the same registry reuses the collectors
	again, err := NewBusiness(reg, "test")
	require.NoError(t, err)
	again.LedgerAppend("purchase")
	require.Equal(t, 2.0, testutil.ToFloat64(b.ledgerWrite.WithLabelValues("purchase")))
}

func TestBusiness_NilIsNoop(t *testing.T) {
	var b *Business
	require.NotPanics(t, func() {
		b.Charge("card", "approved")
		b.Reconciled("imported", 1)
		b.LedgerAppend("purchase")
		b.ObserveProcess("a", "b", time.Now())
	})
}
