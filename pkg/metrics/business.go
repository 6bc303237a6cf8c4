package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	processDuration = &Metric{
		Name:   "bp_dur",
		Help:   "Business process latency in milliseconds.",
		Kind:   KindHistogramVec,
		Labels: []string{"type", "subtype"},
	}
	chargeTotal = &Metric{
		Name:   "charge_total",
		Help:   "Charge attempts partitioned by payment method and outcome.",
		Kind:   KindCounterVec,
		Labels: []string{"method", "outcome"},
	}
	reconcileTxnTotal = &Metric{
		Name:   "reconcile_txn_total",
		Help:   "Gateway transactions seen by reconciliation, partitioned by result.",
		Kind:   KindCounterVec,
		Labels: []string{"result"},
	}
	ledgerAppendTotal = &Metric{
		Name:   "ledger_append_total",
		Help:   "Credits ledger entries written, partitioned by kind.",
		Kind:   KindCounterVec,
		Labels: []string{"kind"},
	}
)

// Business holds the domain counters. A nil *Business is a no-op, which keeps
// services usable in tests without a registry.
type Business struct {
	bpDur       *prometheus.HistogramVec
	charges     *prometheus.CounterVec
	reconciled  *prometheus.CounterVec
	ledgerWrite *prometheus.CounterVec
}

// NewBusiness registers the business metrics on reg. Collectors that are
// already registered are reused.
func NewBusiness(reg prometheus.Registerer, subsystem string) (*Business, error) {
	collectors := make(map[*Metric]prometheus.Collector, 4)
	for _, def := range []*Metric{processDuration, chargeTotal, reconcileTxnTotal, ledgerAppendTotal} {
		c, err := register(reg, def, subsystem)
		if err != nil {
			return nil, err
		}
		collectors[def] = c
	}
	return &Business{
		bpDur:       collectors[processDuration].(*prometheus.HistogramVec),
		charges:     collectors[chargeTotal].(*prometheus.CounterVec),
		reconciled:  collectors[reconcileTxnTotal].(*prometheus.CounterVec),
		ledgerWrite: collectors[ledgerAppendTotal].(*prometheus.CounterVec),
	}, nil
}

func (b *Business) ObserveProcess(typ, subtype string, start time.Time) {
	if b == nil {
		return
	}
	b.bpDur.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

func (b *Business) Charge(method, outcome string) {
	if b == nil {
		return
	}
	b.charges.WithLabelValues(method, outcome).Inc()
}

func (b *Business) Reconciled(result string, n int) {
	if b == nil || n <= 0 {
		return
	}
	b.reconciled.WithLabelValues(result).Add(float64(n))
}

func (b *Business) LedgerAppend(kind string) {
	if b == nil {
		return
	}
	b.ledgerWrite.WithLabelValues(kind).Inc()
}
