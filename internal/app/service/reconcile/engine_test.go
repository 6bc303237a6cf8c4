package reconcile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/app/service/catalog"
	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/app/service/customer"
	"github.com/fatflowers/creator-cashier/internal/app/service/ledger"
	"github.com/fatflowers/creator-cashier/internal/app/service/recon_event"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/internal/platform/lock"
	"github.com/fatflowers/creator-cashier/internal/platform/nmi"
	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// reportStub answers report queries through respond and records every query.
type reportStub struct {
	mu      sync.Mutex
	queries []url.Values
	respond func(q url.Values) (int, string)
}

func (s *reportStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.queries = append(s.queries, r.PostForm)
	respond := s.respond
	s.mu.Unlock()
	status, body := respond(r.PostForm)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (s *reportStub) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

func always(body string) func(url.Values) (int, string) {
	return func(url.Values) (int, string) { return http.StatusOK, body }
}

type fixture struct {
	engine   *Engine
	repo     *repository.MemoryStore
	checkout *checkout.Service
	events   *recon_event.Service
	locker   *lock.LocalLocker
	stub     *reportStub
}

var testNow = time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, seeds ...types.OfferSeed) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	stub := &reportStub{respond: always(`<nm_response></nm_response>`)}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		NMI: config.NMIConfig{
			SecurityKey: "sk_test",
			QueryHosts:  []string{srv.URL},
			QueryPath:   "/api/query.php",
			Timeout:     2 * time.Second,
		},
		Checkout:  config.CheckoutConfig{Currency: "USD", DefaultOfferSKU: "uncatalogued-purchase"},
		Reconcile: config.ReconcileConfig{DefaultDays: 30, LockTTL: time.Minute},
	}
	repo := repository.NewMemoryStore()
	cat := catalog.NewService(repo, cfg, log)
	require.NoError(t, cat.Seed(context.Background(), seeds))
	co := checkout.NewService(repo, customer.NewService(repo, log), cat, ledger.NewService(repo, nil, log), cfg, nil, log)
	events := recon_event.NewService(repo, log)
	locker := lock.NewLocalLocker()

	e := NewEngine(cfg, nmi.NewClient(cfg, log, nil), repo, co, events, locker, nil, log)
	e.now = func() time.Time { return testNow }
	return &fixture{engine: e, repo: repo, checkout: co, events: events, locker: locker, stub: stub}
}

var passSeed = types.OfferSeed{SKU: "monthly-creator-pass", Name: "Monthly Creator Pass", Category: types.OfferCategorySubscription,
	PriceCents: 100000, IsSubscription: true, CreditsValue: 1, IsCreditEligible: true, DisplayOrder: 1}

const batchTXN1 = `<nm_response><transaction>
  <transaction_id>TXN1</transaction_id>
  <condition>complete</condition>
  <amount>1000.00</amount>
  <timestamp>2025-01-05T10:00:00Z</timestamp>
</transaction></nm_response>`

const batchTXN2 = `<nm_response><transaction>
  <transaction_id>TXN2</transaction_id>
  <order_id>ORD-2</order_id>
  <condition>complete</condition>
  <email>bob@example.com</email>
  <first_name>Bob</first_name>
  <action><amount>1000.00</amount><action_type>sale</action_type><date>20250110093000</date></action>
</transaction></nm_response>`

func TestSync_BackfillsCapturedAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, passSeed)

	c := &models.Customer{Email: "jane@example.com", Name: "Jane Doe", Active: true}
	require.NoError(t, f.repo.CreateCustomer(ctx, c))
	offer, err := f.repo.GetOffer(ctx, "monthly-creator-pass")
	require.NoError(t, err)
	order := &models.Order{CustomerID: c.ID, TotalCents: 100000, Currency: "USD", Status: types.OrderStatusPaid,
		Source: types.PaymentSourceDirectCharge, Items: []*models.OrderItem{{OfferID: offer.ID, Quantity: 1, UnitPriceCents: 100000}}}
	require.NoError(t, f.repo.CreateOrder(ctx, order))
	require.NoError(t, f.repo.CreatePayment(ctx, &models.Payment{OrderID: order.ID, AmountCents: 100000, Currency: "USD",
		Status: types.PaymentStatusCompleted, Source: types.PaymentSourceDirectCharge, ExternalTransactionID: "TXN1"}))

	f.stub.respond = always(batchTXN1)
	sum, err := f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Total)
	require.Equal(t, 1, sum.Reconciled)
	require.Equal(t, 1, sum.UpdatedCapturedAt)
	require.Zero(t, sum.Imported)

	got, err := f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CapturedAt)
	require.True(t, got.CapturedAt.Equal(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)))
	require.Len(t, f.repo.OrderStatusLogs(order.ID), 1)

	// The capture time is only filled once.
	sum, err = f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Reconciled)
	require.Zero(t, sum.UpdatedCapturedAt)
}

func TestSync_ImportsUnknownTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, passSeed)
	f.stub.respond = always(batchTXN2)

	sum, err := f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Imported)
	require.Zero(t, sum.Reconciled)

	bob, err := f.repo.FindCustomerByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	payment, err := f.repo.GetPaymentByExternalID(ctx, "TXN2")
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCompleted, payment.Status)
	require.Equal(t, types.PaymentSourceReconcile, payment.Source)
	order, err := f.repo.GetOrder(ctx, payment.OrderID)
	require.NoError(t, err)
	require.Equal(t, bob.ID, order.CustomerID)
	require.Equal(t, types.OrderStatusPaid, order.Status)
	require.EqualValues(t, 100000, order.TotalCents)
	require.Equal(t, "ORD-2", order.OrderRef)
	require.True(t, order.CapturedAt.Equal(time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)))

	sum, err = f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Reconciled)
	require.Zero(t, sum.Imported)

	counts := f.repo.Counts()
	require.Equal(t, 1, counts["customer"])
	require.Equal(t, 1, counts["order"])
	require.Equal(t, 1, counts["payment"])
	require.Equal(t, 1, counts["ledger"])
}

func TestSync_AfterChargeNoDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, passSeed)
	_, err := f.checkout.Commit(ctx, &checkout.Request{
		Transaction: types.GatewayTransaction{TransactionID: "TXN1", AmountCents: 100000},
		Customer:    customer.Info{Name: "Jane Doe", Email: "jane@example.com"},
		OfferRef:    "monthly-creator-pass",
		Method:      types.PaymentMethodCard,
		Source:      types.PaymentSourceDirectCharge,
	})
	require.NoError(t, err)

	f.stub.respond = always(batchTXN1)
	sum, err := f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Reconciled)
	require.Zero(t, sum.UpdatedCapturedAt)
	require.Equal(t, 1, f.repo.Counts()["payment"])
	require.Equal(t, 1, f.repo.Counts()["ledger"])
}

func TestSync_PlaceholderCustomerAndUnmatched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	batch := `<nm_response>
	  <transaction><transaction_id>TXN3</transaction_id><amount>12.00</amount></transaction>
	  <transaction><amount>5.00</amount></transaction>
	  <transaction><transaction_id>TXN4</transaction_id><condition>failed</condition><amount>9.00</amount></transaction>
	</nm_response>`
	f.stub.respond = always(batch)

	// Empty catalog: nothing can be imported.
	sum, err := f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 3, sum.Total)
	require.Equal(t, 1, sum.Unmatched)
	require.Equal(t, 2, sum.Skipped)
	require.Zero(t, f.repo.Counts()["customer"])

	require.NoError(t, f.repo.CreateOffer(ctx, &models.Offer{SKU: "misc", Name: "Misc", Category: types.OfferCategoryGeneral, PriceCents: 500, Active: true}))
	sum, err = f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Imported)

	c, err := f.repo.FindCustomerByEmail(ctx, PlaceholderEmail("TXN3"))
	require.NoError(t, err)
	require.Equal(t, "txn-txn3@reconciled.invalid", c.Email)
}

func TestSync_MalformedEmailUsesPlaceholder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, passSeed)
	f.stub.respond = always(`<nm_response><transaction>
  <transaction_id>TXN5</transaction_id>
  <condition>complete</condition>
  <email>bob at example</email>
  <amount>1000.00</amount>
</transaction></nm_response>`)

	sum, err := f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Imported)
	require.Zero(t, sum.Unmatched)

	c, err := f.repo.FindCustomerByEmail(ctx, PlaceholderEmail("TXN5"))
	require.NoError(t, err)
	p, err := f.repo.GetPaymentByExternalID(ctx, "TXN5")
	require.NoError(t, err)
	require.Equal(t, "bob at example", p.Raw["gateway_email"])
	order, err := f.repo.GetOrder(ctx, p.OrderID)
	require.NoError(t, err)
	require.Equal(t, c.ID, order.CustomerID)

	sum, err = f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Reconciled)
	require.Zero(t, sum.Imported)
	require.Equal(t, 1, f.repo.Counts()["payment"])
}

// staleLookupRepo hides existing payments from the first lookups, the way a
// charge committing between reconciliation's lookup and insert would.
type staleLookupRepo struct {
	*repository.MemoryStore
	misses int
}

func (r *staleLookupRepo) WithTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	return r.MemoryStore.WithTx(ctx, func(tx repository.Repository) error {
		return fn(&staleLookupTx{Repository: tx, parent: r})
	})
}

type staleLookupTx struct {
	repository.Repository
	parent *staleLookupRepo
}

func (t *staleLookupTx) GetPaymentByExternalID(ctx context.Context, transactionID string) (*models.Payment, error) {
	if t.parent.misses > 0 {
		t.parent.misses--
		return nil, repository.ErrNotFound
	}
	return t.Repository.GetPaymentByExternalID(ctx, transactionID)
}

func TestSync_ImportRaceRepairsExistingPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, passSeed)

	c := &models.Customer{Email: "jane@example.com", Name: "Jane Doe", Active: true}
	require.NoError(t, f.repo.CreateCustomer(ctx, c))
	offer, err := f.repo.GetOffer(ctx, "monthly-creator-pass")
	require.NoError(t, err)
	order := &models.Order{CustomerID: c.ID, TotalCents: 100000, Currency: "USD", Status: types.OrderStatusPaid,
		Source: types.PaymentSourceDirectCharge, Items: []*models.OrderItem{{OfferID: offer.ID, Quantity: 1, UnitPriceCents: 100000}}}
	require.NoError(t, f.repo.CreateOrder(ctx, order))
	require.NoError(t, f.repo.CreatePayment(ctx, &models.Payment{OrderID: order.ID, AmountCents: 100000, Currency: "USD",
		Status: types.PaymentStatusCompleted, Source: types.PaymentSourceDirectCharge, ExternalTransactionID: "TXN1"}))

	// Both the engine's and the checkout's lookup miss; the insert then collides.
	f.engine.repo = &staleLookupRepo{MemoryStore: f.repo, misses: 2}
	f.stub.respond = always(batchTXN1)

	sum, err := f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Reconciled)
	require.Equal(t, 1, sum.UpdatedCapturedAt)
	require.Zero(t, sum.Imported)
	require.Zero(t, sum.Unmatched)

	got, err := f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CapturedAt)
	require.Equal(t, 1, f.repo.Counts()["order"])
	require.Equal(t, 1, f.repo.Counts()["payment"])
}

func TestSync_CandidateFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, passSeed)
	f.stub.respond = func(q url.Values) (int, string) {
		if q.Get("query_by") == "settlement_date" {
			return http.StatusOK, batchTXN2
		}
		return http.StatusOK, `<nm_response></nm_response>`
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	sum, err := f.engine.SyncGatewayTransactions(ctx, Request{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Imported)
	require.Contains(t, sum.Candidate, "iso_settlement_date")

	queries := f.stub.Queries()
	require.Len(t, queries, 4)
	require.Equal(t, "20250101000000", queries[0].Get("start_date"))
	require.Equal(t, "transaction_date", queries[0].Get("query_by"))
	require.Equal(t, "complete", queries[0].Get("condition"))
	require.Equal(t, "01/01/2025", queries[1].Get("start_date"))
	require.Equal(t, "2025-01-01", queries[2].Get("start_date"))
	require.Equal(t, "transaction_create_date", queries[2].Get("query_by"))
	require.Equal(t, "2025-01-15", queries[3].Get("end_date"))
	for _, q := range queries {
		require.Equal(t, "transaction", q.Get("report_type"))
		require.Equal(t, "sk_test", q.Get("security_key"))
	}

	// An account that only reports closed transactions.
	f = newFixture(t, passSeed)
	f.stub.respond = func(q url.Values) (int, string) {
		if q.Get("condition") == "closed" {
			return http.StatusOK, batchTXN2
		}
		return http.StatusOK, `<nm_response></nm_response>`
	}
	sum, err = f.engine.SyncGatewayTransactions(ctx, Request{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Imported)
	require.Contains(t, sum.Candidate, "iso_settlement_date_closed")
	queries = f.stub.Queries()
	require.Len(t, queries, 5)
	require.Equal(t, "settlement_date", queries[4].Get("query_by"))
}

func TestSync_DefaultRange(t *testing.T) {
	f := newFixture(t)
	sum, err := f.engine.SyncGatewayTransactions(context.Background(), Request{})
	require.NoError(t, err)
	require.Zero(t, sum.Total)
	require.Equal(t, "No gateway transactions found in range", sum.Message)
	require.Len(t, f.stub.Queries(), len(paramSets))
	require.Equal(t, "20250101120000", f.stub.Queries()[0].Get("start_date"))
	require.Equal(t, "20250131120000", f.stub.Queries()[0].Get("end_date"))

	start := testNow.Add(time.Hour)
	_, err = f.engine.SyncGatewayTransactions(context.Background(), Request{StartDate: &start})
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestSync_GatewayUnreachable(t *testing.T) {
	f := newFixture(t, passSeed)
	f.stub.respond = func(url.Values) (int, string) { return http.StatusInternalServerError, "" }

	_, err := f.engine.SyncGatewayTransactions(context.Background(), Request{})
	require.ErrorIs(t, err, ErrGatewayUnreachable)
	// The dead host is not retried for every parameter set.
	require.Len(t, f.stub.Queries(), 1)

	f.stub.respond = always(`<nm_response><error_response>Invalid query_by</error_response></nm_response>`)
	_, err = f.engine.SyncGatewayTransactions(context.Background(), Request{})
	require.ErrorIs(t, err, ErrGatewayUnreachable)
}

func TestSync_RunLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, passSeed)
	release, err := f.locker.Acquire(ctx, lockKey, time.Minute)
	require.NoError(t, err)

	_, err = f.engine.SyncGatewayTransactions(ctx, Request{})
	require.ErrorIs(t, err, ErrRunInProgress)
	require.Empty(t, f.stub.Queries())

	require.NoError(t, release(ctx))
	_, err = f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)
}

func TestSync_ResolvesEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, passSeed)
	_, err := f.events.Record(ctx, recon_event.Event{Kind: models.ReconciliationEventBookkeepingFailed, TransactionID: "TXN2", AmountCents: 100000})
	require.NoError(t, err)
	_, err = f.events.Record(ctx, recon_event.Event{Kind: models.ReconciliationEventGatewayUnreachable, OrderRef: "ORD-2"})
	require.NoError(t, err)

	f.stub.respond = always(batchTXN2)
	_, err = f.engine.SyncGatewayTransactions(ctx, Request{})
	require.NoError(t, err)

	open, err := f.events.ListOpen(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, open)
}
