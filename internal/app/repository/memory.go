package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/tool"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/samber/lo"
)

type memData struct {
	customers     map[string]models.Customer
	offers        map[string]models.Offer
	orders        map[string]models.Order
	items         map[string]models.OrderItem
	orderLogs     []models.OrderStatusLog
	payments      map[string]models.Payment
	ledger        map[string][]models.CreditsLedgerEntry
	subscriptions map[string]models.Subscription
	shoutouts     map[string]models.Shoutout
	liveReviews   map[string]models.LiveReview
	events        map[string]models.ReconciliationEvent
	callLogs      map[string]models.GatewayCallLog
}

func newMemData() *memData {
	return &memData{
		customers:     map[string]models.Customer{},
		offers:        map[string]models.Offer{},
		orders:        map[string]models.Order{},
		items:         map[string]models.OrderItem{},
		payments:      map[string]models.Payment{},
		ledger:        map[string][]models.CreditsLedgerEntry{},
		subscriptions: map[string]models.Subscription{},
		shoutouts:     map[string]models.Shoutout{},
		liveReviews:   map[string]models.LiveReview{},
		events:        map[string]models.ReconciliationEvent{},
		callLogs:      map[string]models.GatewayCallLog{},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		customers:     cloneMap(d.customers),
		offers:        cloneMap(d.offers),
		orders:        cloneMap(d.orders),
		items:         cloneMap(d.items),
		orderLogs:     append([]models.OrderStatusLog(nil), d.orderLogs...),
		payments:      cloneMap(d.payments),
		ledger:        make(map[string][]models.CreditsLedgerEntry, len(d.ledger)),
		subscriptions: cloneMap(d.subscriptions),
		shoutouts:     cloneMap(d.shoutouts),
		liveReviews:   cloneMap(d.liveReviews),
		events:        cloneMap(d.events),
		callLogs:      cloneMap(d.callLogs),
	}
	for k, v := range d.ledger {
		c.ledger[k] = append([]models.CreditsLedgerEntry(nil), v...)
	}
	return c
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memState struct {
	mu     sync.Mutex
	data   *memData
	faults map[string]error
	now    func() time.Time
}

// MemoryStore is an in-process Repository for tests and local tooling.
// Transactions are serialized and rolled back by restoring a snapshot.
type MemoryStore struct {
	st   *memState
	inTx bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: &memState{data: newMemData(), faults: map[string]error{}, now: time.Now}}
}

// InjectFault makes the next call of the named method fail with err.
func (s *MemoryStore) InjectFault(method string, err error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.faults[method] = err
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.st.mu.Lock()
	return s.st.mu.Unlock
}

func (s *MemoryStore) fault(method string) error {
	if err, ok := s.st.faults[method]; ok {
		delete(s.st.faults, method)
		return err
	}
	return nil
}

func (s *MemoryStore) stamp() time.Time { return s.st.now() }

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.data.clone()
	if err := fn(&MemoryStore{st: s.st, inTx: true}); err != nil {
		s.st.data = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) FindCustomerByEmail(_ context.Context, email string) (*models.Customer, error) {
	defer s.lock()()
	for _, c := range s.st.data.customers {
		if c.Email == email {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	defer s.lock()()
	c, ok := s.st.data.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) CreateCustomer(_ context.Context, c *models.Customer) error {
	defer s.lock()()
	if err := s.fault("CreateCustomer"); err != nil {
		return err
	}
	for _, existing := range s.st.data.customers {
		if existing.Email == c.Email {
			return fmt.Errorf("%w: customer email %s", ErrDuplicate, c.Email)
		}
	}
	if c.ID == "" {
		c.ID = tool.GenerateUUIDV7()
	}
	c.CreatedAt, c.UpdatedAt = s.stamp(), s.stamp()
	s.st.data.customers[c.ID] = *c
	return nil
}

func (s *MemoryStore) UpdateCustomer(_ context.Context, c *models.Customer) error {
	defer s.lock()()
	if _, ok := s.st.data.customers[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = s.stamp()
	s.st.data.customers[c.ID] = *c
	return nil
}

func (s *MemoryStore) DeleteCustomer(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.st.data.customers[id]; !ok {
		return ErrNotFound
	}
	delete(s.st.data.customers, id)
	return nil
}

func (s *MemoryStore) CustomerHasHistory(_ context.Context, id string) (bool, error) {
	defer s.lock()()
	if len(s.st.data.ledger[id]) > 0 {
		return true, nil
	}
	for _, o := range s.st.data.orders {
		if o.CustomerID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) LockCustomer(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.st.data.customers[id]; !ok {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) ListOffers(_ context.Context, activeOnly bool) ([]*models.Offer, error) {
	defer s.lock()()
	var out []*models.Offer
	for _, o := range s.st.data.offers {
		if activeOnly && !o.Active {
			continue
		}
		o := o
		out = append(out, &o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetOffer(_ context.Context, idOrSKU string) (*models.Offer, error) {
	defer s.lock()()
	if o, ok := s.st.data.offers[idOrSKU]; ok {
		return &o, nil
	}
	for _, o := range s.st.data.offers {
		if o.SKU == idOrSKU {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateOffer(_ context.Context, o *models.Offer) error {
	defer s.lock()()
	for _, existing := range s.st.data.offers {
		if existing.SKU == o.SKU {
			return fmt.Errorf("%w: offer sku %s", ErrDuplicate, o.SKU)
		}
	}
	if o.ID == "" {
		o.ID = tool.GenerateUUIDV7()
	}
	o.CreatedAt, o.UpdatedAt = s.stamp(), s.stamp()
	s.st.data.offers[o.ID] = *o
	return nil
}

func (s *MemoryStore) UpdateOffer(_ context.Context, o *models.Offer) error {
	defer s.lock()()
	if _, ok := s.st.data.offers[o.ID]; !ok {
		return ErrNotFound
	}
	o.UpdatedAt = s.stamp()
	s.st.data.offers[o.ID] = *o
	return nil
}

func (s *MemoryStore) DeleteOffer(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.st.data.offers[id]; !ok {
		return ErrNotFound
	}
	delete(s.st.data.offers, id)
	return nil
}

func (s *MemoryStore) OfferReferenced(_ context.Context, id string) (bool, error) {
	defer s.lock()()
	for _, it := range s.st.data.items {
		if it.OfferID == id {
			return true, nil
		}
	}
	for _, sub := range s.st.data.subscriptions {
		if sub.OfferID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, o *models.Order) error {
	defer s.lock()()
	if err := s.fault("CreateOrder"); err != nil {
		return err
	}
	if err := types.ValidateOrderTransition(types.OrderStatusCreated, o.Status); err != nil {
		return err
	}
	prepareOrder(o)
	if _, ok := s.st.data.orders[o.ID]; ok {
		return fmt.Errorf("%w: order %s", ErrDuplicate, o.ID)
	}
	now := s.stamp()
	o.CreatedAt, o.UpdatedAt = now, now
	row := *o
	row.Items = nil
	s.st.data.orders[o.ID] = row
	for _, it := range o.Items {
		it.CreatedAt = now
		s.st.data.items[it.ID] = *it
	}
	return nil
}

func (s *MemoryStore) orderWithItems(o models.Order) *models.Order {
	var items []*models.OrderItem
	for _, it := range s.st.data.items {
		if it.OrderID == o.ID {
			it := it
			items = append(items, &it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	o.Items = items
	return &o
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	defer s.lock()()
	o, ok := s.st.data.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.orderWithItems(o), nil
}

func (s *MemoryStore) UpdateOrder(_ context.Context, o *models.Order) error {
	defer s.lock()()
	if err := s.fault("UpdateOrder"); err != nil {
		return err
	}
	cur, ok := s.st.data.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	if err := types.ValidateOrderTransition(cur.Status, o.Status); err != nil {
		return err
	}
	o.UpdatedAt = s.stamp()
	row := *o
	row.Items = nil
	s.st.data.orders[o.ID] = row
	return nil
}

func (s *MemoryStore) ScanOrders(_ context.Context, q *OrderScan) ([]*models.Order, int64, error) {
	if err := normalizeScan(q); err != nil {
		return nil, 0, err
	}
	defer s.lock()()
	var matched []*models.Order
	for _, o := range s.st.data.orders {
		fields := orderFields(&o)
		if lo.EveryBy(q.Filters, func(f *types.CommonFilter) bool { return matchFilter(f, fields) }) {
			matched = append(matched, s.orderWithItems(o))
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareValues(orderFields(matched[i])[q.SortBy], orderFields(matched[j])[q.SortBy])
		if c == 0 {
			c = strings.Compare(matched[i].ID, matched[j].ID)
		}
		if q.SortOrder == "asc" {
			return c < 0
		}
		return c > 0
	})
	total := int64(len(matched))
	if q.From >= len(matched) {
		return []*models.Order{}, total, nil
	}
	end := min(q.From+q.Size, len(matched))
	return matched[q.From:end], total, nil
}

func (s *MemoryStore) CreateOrderStatusLog(_ context.Context, l *models.OrderStatusLog) error {
	defer s.lock()()
	if l.ID == "" {
		l.ID = tool.GenerateUUIDV7()
	}
	l.CreatedAt = s.stamp()
	s.st.data.orderLogs = append(s.st.data.orderLogs, *l)
	return nil
}

// OrderStatusLogs returns the logs written for an order, oldest first.
func (s *MemoryStore) OrderStatusLogs(orderID string) []models.OrderStatusLog {
	defer s.lock()()
	return lo.Filter(s.st.data.orderLogs, func(l models.OrderStatusLog, _ int) bool { return l.OrderID == orderID })
}

func (s *MemoryStore) CreatePayment(_ context.Context, p *models.Payment) error {
	defer s.lock()()
	if err := s.fault("CreatePayment"); err != nil {
		return err
	}
	if err := types.ValidatePaymentTransition(types.PaymentStatusNone, p.Status); err != nil {
		return err
	}
	for _, existing := range s.st.data.payments {
		if existing.ExternalTransactionID == p.ExternalTransactionID {
			return fmt.Errorf("%w: payment %s", ErrDuplicate, p.ExternalTransactionID)
		}
	}
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	p.CreatedAt, p.UpdatedAt = s.stamp(), s.stamp()
	s.st.data.payments[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetPaymentByExternalID(_ context.Context, transactionID string) (*models.Payment, error) {
	defer s.lock()()
	for _, p := range s.st.data.payments {
		if p.ExternalTransactionID == transactionID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListPaymentsByOrder(_ context.Context, orderID string) ([]*models.Payment, error) {
	defer s.lock()()
	var out []*models.Payment
	for _, p := range s.st.data.payments {
		if p.OrderID == orderID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdatePayment(_ context.Context, p *models.Payment) error {
	defer s.lock()()
	cur, ok := s.st.data.payments[p.ID]
	if !ok {
		return ErrNotFound
	}
	if err := types.ValidatePaymentTransition(cur.Status, p.Status); err != nil {
		return err
	}
	p.UpdatedAt = s.stamp()
	s.st.data.payments[p.ID] = *p
	return nil
}

func (s *MemoryStore) LatestLedgerEntry(_ context.Context, customerID string) (*models.CreditsLedgerEntry, error) {
	defer s.lock()()
	entries := s.st.data.ledger[customerID]
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	e := entries[len(entries)-1]
	return &e, nil
}

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, e *models.CreditsLedgerEntry) error {
	defer s.lock()()
	if err := s.fault("InsertLedgerEntry"); err != nil {
		return err
	}
	entries := s.st.data.ledger[e.CustomerID]
	for _, existing := range entries {
		if existing.Seq == e.Seq {
			return fmt.Errorf("%w: ledger seq %d for customer %s", ErrDuplicate, e.Seq, e.CustomerID)
		}
	}
	if e.ID == "" {
		e.ID = tool.GenerateUUIDV7()
	}
	e.CreatedAt = s.stamp()
	entries = append(entries, *e)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	s.st.data.ledger[e.CustomerID] = entries
	return nil
}

func (s *MemoryStore) ListLedgerEntries(_ context.Context, customerID string) ([]*models.CreditsLedgerEntry, error) {
	defer s.lock()()
	entries := s.st.data.ledger[customerID]
	out := make([]*models.CreditsLedgerEntry, 0, len(entries))
	for _, e := range entries {
		e := e
		out = append(out, &e)
	}
	return out, nil
}

func (s *MemoryStore) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	defer s.lock()()
	if err := s.fault("CreateSubscription"); err != nil {
		return err
	}
	if sub.ID == "" {
		sub.ID = tool.GenerateUUIDV7()
	}
	sub.CreatedAt, sub.UpdatedAt = s.stamp(), s.stamp()
	s.st.data.subscriptions[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) ListSubscriptions(_ context.Context, customerID string) ([]*models.Subscription, error) {
	defer s.lock()()
	var out []*models.Subscription
	for _, sub := range s.st.data.subscriptions {
		if sub.CustomerID == customerID {
			sub := sub
			out = append(out, &sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateSubscription(_ context.Context, sub *models.Subscription) error {
	defer s.lock()()
	if _, ok := s.st.data.subscriptions[sub.ID]; !ok {
		return ErrNotFound
	}
	sub.UpdatedAt = s.stamp()
	s.st.data.subscriptions[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) CreateShoutout(_ context.Context, so *models.Shoutout) error {
	defer s.lock()()
	if so.ID == "" {
		so.ID = tool.GenerateUUIDV7()
	}
	so.CreatedAt, so.UpdatedAt = s.stamp(), s.stamp()
	s.st.data.shoutouts[so.ID] = *so
	return nil
}

func (s *MemoryStore) ListShoutouts(_ context.Context, customerID string) ([]*models.Shoutout, error) {
	defer s.lock()()
	var out []*models.Shoutout
	for _, so := range s.st.data.shoutouts {
		if so.CustomerID == customerID {
			so := so
			out = append(out, &so)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateLiveReview(_ context.Context, r *models.LiveReview) error {
	defer s.lock()()
	if r.ID == "" {
		r.ID = tool.GenerateUUIDV7()
	}
	r.CreatedAt, r.UpdatedAt = s.stamp(), s.stamp()
	s.st.data.liveReviews[r.ID] = *r
	return nil
}

func (s *MemoryStore) FindLiveReviewByOrder(_ context.Context, orderID string) (*models.LiveReview, error) {
	defer s.lock()()
	for _, r := range s.st.data.liveReviews {
		if r.OrderID != nil && *r.OrderID == orderID {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindPendingUnlinkedLiveReview(_ context.Context, customerID string) (*models.LiveReview, error) {
	defer s.lock()()
	var found *models.LiveReview
	for _, r := range s.st.data.liveReviews {
		if r.CustomerID != customerID || r.OrderID != nil || r.Status != types.FulfillmentStatusPending {
			continue
		}
		if found == nil || r.CreatedAt.Before(found.CreatedAt) {
			r := r
			found = &r
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) UpdateLiveReview(_ context.Context, r *models.LiveReview) error {
	defer s.lock()()
	if _, ok := s.st.data.liveReviews[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = s.stamp()
	s.st.data.liveReviews[r.ID] = *r
	return nil
}

func (s *MemoryStore) CreateReconciliationEvent(_ context.Context, e *models.ReconciliationEvent) error {
	defer s.lock()()
	if e.ID == "" {
		e.ID = tool.GenerateUUIDV7()
	}
	e.CreatedAt, e.UpdatedAt = s.stamp(), s.stamp()
	s.st.data.events[e.ID] = *e
	return nil
}

func (s *MemoryStore) ListReconciliationEvents(_ context.Context, status models.ReconciliationEventStatus, limit int) ([]*models.ReconciliationEvent, error) {
	defer s.lock()()
	var out []*models.ReconciliationEvent
	for _, e := range s.st.data.events {
		if status != "" && e.Status != status {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ResolveReconciliationEvents(_ context.Context, transactionID, orderRef string, at time.Time) (int64, error) {
	defer s.lock()()
	if transactionID == "" && orderRef == "" {
		return 0, nil
	}
	var n int64
	for id, e := range s.st.data.events {
		if e.Status != models.ReconciliationEventOpen {
			continue
		}
		if (transactionID != "" && e.TransactionID == transactionID) || (orderRef != "" && e.OrderRef == orderRef) {
			e.Status = models.ReconciliationEventResolved
			e.ResolvedAt = &at
			e.UpdatedAt = s.stamp()
			s.st.data.events[id] = e
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SaveGatewayCallLog(_ context.Context, l *models.GatewayCallLog) error {
	defer s.lock()()
	if l.ID == "" {
		l.ID = tool.GenerateUUIDV7()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.stamp()
	}
	l.UpdatedAt = s.stamp()
	s.st.data.callLogs[l.ID] = *l
	return nil
}

// GatewayCallLogs returns every stored call log.
func (s *MemoryStore) GatewayCallLogs() []models.GatewayCallLog {
	defer s.lock()()
	return lo.Values(s.st.data.callLogs)
}

// Counts reports row counts per table, for assertions in tests.
func (s *MemoryStore) Counts() map[string]int {
	defer s.lock()()
	ledger := 0
	for _, v := range s.st.data.ledger {
		ledger += len(v)
	}
	return map[string]int{
		"customer":     len(s.st.data.customers),
		"offer":        len(s.st.data.offers),
		"order":        len(s.st.data.orders),
		"order_item":   len(s.st.data.items),
		"payment":      len(s.st.data.payments),
		"ledger":       ledger,
		"subscription": len(s.st.data.subscriptions),
		"shoutout":     len(s.st.data.shoutouts),
		"live_review":  len(s.st.data.liveReviews),
		"event":        len(s.st.data.events),
	}
}
