package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/tool"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Repository on a relational database. The *gorm.DB must
// be opened with TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

func NewGormStore(db *gorm.DB) Repository {
	return &GormStore{db: db}
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, inTx: true})
	})
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func (s *GormStore) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var c models.Customer
	if err := s.conn(ctx).Where("email = ?", email).Take(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	if err := s.conn(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if c.ID == "" {
		c.ID = tool.GenerateUUIDV7()
	}
	// DO NOTHING keeps an enclosing postgres transaction usable after a
	// concurrent insert of the same email.
	res := s.conn(ctx).Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).Create(c)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: customer email %s", ErrDuplicate, c.Email)
	}
	return nil
}

func (s *GormStore) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	return translate(s.conn(ctx).Save(c).Error)
}

func (s *GormStore) DeleteCustomer(ctx context.Context, id string) error {
	res := s.conn(ctx).Where("id = ?", id).Delete(&models.Customer{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CustomerHasHistory(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := s.conn(ctx).Model(&models.Order{}).Where("customer_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := s.conn(ctx).Model(&models.CreditsLedgerEntry{}).Where("customer_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *GormStore) LockCustomer(ctx context.Context, id string) error {
	var c models.Customer
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", id).Take(&c).Error
	return translate(err)
}

func (s *GormStore) ListOffers(ctx context.Context, activeOnly bool) ([]*models.Offer, error) {
	q := s.conn(ctx).Model(&models.Offer{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rows []*models.Offer
	if err := q.Order("display_order asc").Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) GetOffer(ctx context.Context, idOrSKU string) (*models.Offer, error) {
	var o models.Offer
	if err := s.conn(ctx).Where("id = ? OR sku = ?", idOrSKU, idOrSKU).Take(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *GormStore) CreateOffer(ctx context.Context, o *models.Offer) error {
	if o.ID == "" {
		o.ID = tool.GenerateUUIDV7()
	}
	res := s.conn(ctx).Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sku"}}, DoNothing: true}).Create(o)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: offer sku %s", ErrDuplicate, o.SKU)
	}
	return nil
}

func (s *GormStore) UpdateOffer(ctx context.Context, o *models.Offer) error {
	return translate(s.conn(ctx).Save(o).Error)
}

func (s *GormStore) DeleteOffer(ctx context.Context, id string) error {
	res := s.conn(ctx).Where("id = ?", id).Delete(&models.Offer{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) OfferReferenced(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := s.conn(ctx).Model(&models.OrderItem{}).Where("offer_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := s.conn(ctx).Model(&models.Subscription{}).Where("offer_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *GormStore) CreateOrder(ctx context.Context, o *models.Order) error {
	if err := types.ValidateOrderTransition(types.OrderStatusCreated, o.Status); err != nil {
		return err
	}
	prepareOrder(o)
	return translate(s.conn(ctx).Create(o).Error)
}

func (s *GormStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := s.conn(ctx).Preload("Items").Where("id = ?", id).Take(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *GormStore) UpdateOrder(ctx context.Context, o *models.Order) error {
	var cur models.Order
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "status").Where("id = ?", o.ID).Take(&cur).Error
	if err != nil {
		return translate(err)
	}
	if err := types.ValidateOrderTransition(cur.Status, o.Status); err != nil {
		return err
	}
	return translate(s.conn(ctx).Omit(clause.Associations).Save(o).Error)
}

// filtersAnd is a helper to combine multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func (s *GormStore) ScanOrders(ctx context.Context, q *OrderScan) ([]*models.Order, int64, error) {
	if err := normalizeScan(q); err != nil {
		return nil, 0, err
	}
	tx := s.conn(ctx).Model(&models.Order{})
	if len(q.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: q.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var rows []*models.Order
	page := tx.Preload("Items").Limit(q.Size).Offset(q.From).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: q.SortBy}, Desc: q.SortOrder != "asc"}}})
	if err := page.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return rows, total, nil
}

func (s *GormStore) CreateOrderStatusLog(ctx context.Context, l *models.OrderStatusLog) error {
	if l.ID == "" {
		l.ID = tool.GenerateUUIDV7()
	}
	return translate(s.conn(ctx).Create(l).Error)
}

func (s *GormStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	if err := types.ValidatePaymentTransition(types.PaymentStatusNone, p.Status); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	res := s.conn(ctx).Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_transaction_id"}}, DoNothing: true}).Create(p)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: payment %s", ErrDuplicate, p.ExternalTransactionID)
	}
	return nil
}

func (s *GormStore) GetPaymentByExternalID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var p models.Payment
	if err := s.conn(ctx).Where("external_transaction_id = ?", transactionID).Take(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) ListPaymentsByOrder(ctx context.Context, orderID string) ([]*models.Payment, error) {
	var rows []*models.Payment
	if err := s.conn(ctx).Where("order_id = ?", orderID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) UpdatePayment(ctx context.Context, p *models.Payment) error {
	var cur models.Payment
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "status").Where("id = ?", p.ID).Take(&cur).Error
	if err != nil {
		return translate(err)
	}
	if err := types.ValidatePaymentTransition(cur.Status, p.Status); err != nil {
		return err
	}
	return translate(s.conn(ctx).Save(p).Error)
}

func (s *GormStore) LatestLedgerEntry(ctx context.Context, customerID string) (*models.CreditsLedgerEntry, error) {
	var e models.CreditsLedgerEntry
	if err := s.conn(ctx).Where("customer_id = ?", customerID).Order("seq desc").Take(&e).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *GormStore) InsertLedgerEntry(ctx context.Context, e *models.CreditsLedgerEntry) error {
	if e.ID == "" {
		e.ID = tool.GenerateUUIDV7()
	}
	return translate(s.conn(ctx).Create(e).Error)
}

func (s *GormStore) ListLedgerEntries(ctx context.Context, customerID string) ([]*models.CreditsLedgerEntry, error) {
	var rows []*models.CreditsLedgerEntry
	if err := s.conn(ctx).Where("customer_id = ?", customerID).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = tool.GenerateUUIDV7()
	}
	return translate(s.conn(ctx).Create(sub).Error)
}

func (s *GormStore) ListSubscriptions(ctx context.Context, customerID string) ([]*models.Subscription, error) {
	var rows []*models.Subscription
	if err := s.conn(ctx).Where("customer_id = ?", customerID).Order("started_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	return s.conn(ctx).Save(sub).Error
}

func (s *GormStore) CreateShoutout(ctx context.Context, so *models.Shoutout) error {
	if so.ID == "" {
		so.ID = tool.GenerateUUIDV7()
	}
	return translate(s.conn(ctx).Create(so).Error)
}

func (s *GormStore) ListShoutouts(ctx context.Context, customerID string) ([]*models.Shoutout, error) {
	var rows []*models.Shoutout
	if err := s.conn(ctx).Where("customer_id = ?", customerID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) CreateLiveReview(ctx context.Context, r *models.LiveReview) error {
	if r.ID == "" {
		r.ID = tool.GenerateUUIDV7()
	}
	return translate(s.conn(ctx).Create(r).Error)
}

func (s *GormStore) FindLiveReviewByOrder(ctx context.Context, orderID string) (*models.LiveReview, error) {
	var r models.LiveReview
	if err := s.conn(ctx).Where("order_id = ?", orderID).Take(&r).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) FindPendingUnlinkedLiveReview(ctx context.Context, customerID string) (*models.LiveReview, error) {
	var r models.LiveReview
	err := s.conn(ctx).
		Where("customer_id = ? AND order_id IS NULL AND status = ?", customerID, types.FulfillmentStatusPending).
		Order("created_at asc").Take(&r).Error
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) UpdateLiveReview(ctx context.Context, r *models.LiveReview) error {
	return translate(s.conn(ctx).Save(r).Error)
}

func (s *GormStore) CreateReconciliationEvent(ctx context.Context, e *models.ReconciliationEvent) error {
	if e.ID == "" {
		e.ID = tool.GenerateUUIDV7()
	}
	return translate(s.conn(ctx).Create(e).Error)
}

func (s *GormStore) ListReconciliationEvents(ctx context.Context, status models.ReconciliationEventStatus, limit int) ([]*models.ReconciliationEvent, error) {
	q := s.conn(ctx).Model(&models.ReconciliationEvent{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []*models.ReconciliationEvent
	if err := q.Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) ResolveReconciliationEvents(ctx context.Context, transactionID, orderRef string, at time.Time) (int64, error) {
	if transactionID == "" && orderRef == "" {
		return 0, nil
	}
	match := s.conn(ctx)
	switch {
	case transactionID != "" && orderRef != "":
		match = match.Where("transaction_id = ?", transactionID).Or("order_ref = ?", orderRef)
	case transactionID != "":
		match = match.Where("transaction_id = ?", transactionID)
	default:
		match = match.Where("order_ref = ?", orderRef)
	}
	res := s.conn(ctx).Model(&models.ReconciliationEvent{}).
		Where("status = ?", models.ReconciliationEventOpen).
		Where(match).
		Updates(map[string]any{"status": models.ReconciliationEventResolved, "resolved_at": at})
	return res.RowsAffected, res.Error
}

func (s *GormStore) SaveGatewayCallLog(ctx context.Context, l *models.GatewayCallLog) error {
	if l.ID == "" {
		l.ID = tool.GenerateUUIDV7()
	}
	return s.conn(ctx).Save(l).Error
}
