package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	ErrOfferReferenced = errors.New("offer is referenced by orders")
	// ErrNoOffers means the catalog is empty, so no line item can be written.
	ErrNoOffers = errors.New("offer catalog is empty")
)

const defaultOfferName = "Uncatalogued Purchase"

type Service struct {
	repo repository.Repository
	cfg  *config.Config
	log  *zap.SugaredLogger
}

func NewService(repo repository.Repository, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log}
}

func (s *Service) Get(ctx context.Context, idOrSKU string) (*models.Offer, error) {
	return s.repo.GetOffer(ctx, idOrSKU)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*models.Offer, error) {
	return s.repo.ListOffers(ctx, activeOnly)
}

// ResolveForCharge picks the offer for a paid charge: the requested id or
// SKU, else a live-review offer, else the auto-created default offer. It only
// fails on storage errors, so a captured payment can always be recorded.
func (s *Service) ResolveForCharge(ctx context.Context, repo repository.Repository, idOrSKU string) (*models.Offer, error) {
	if idOrSKU != "" {
		o, err := repo.GetOffer(ctx, idOrSKU)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to get offer: %w", err)
		}
	}

	offers, err := s.candidates(ctx, repo)
	if err != nil {
		return nil, err
	}
	if o, ok := lo.Find(offers, (*models.Offer).IsLiveReview); ok {
		logctx.FromCtx(ctx, s.log).Warnw("offer_fallback_live_review", "requested", idOrSKU, "offer_id", o.ID)
		return o, nil
	}
	logctx.FromCtx(ctx, s.log).Warnw("offer_fallback_default", "requested", idOrSKU)
	return s.defaultOffer(ctx, repo)
}

// ResolveForAmount picks the offer for a gateway transaction found by
// reconciliation: exact price match, else a live-review offer, else the first
// offer. An empty catalog returns ErrNoOffers.
func (s *Service) ResolveForAmount(ctx context.Context, repo repository.Repository, amountCents int64) (*models.Offer, error) {
	offers, err := s.candidates(ctx, repo)
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, ErrNoOffers
	}
	if o, ok := lo.Find(offers, func(o *models.Offer) bool { return o.PriceCents == amountCents }); ok {
		return o, nil
	}
	if o, ok := lo.Find(offers, (*models.Offer).IsLiveReview); ok {
		return o, nil
	}
	return offers[0], nil
}

// candidates lists active catalog offers, falling back to inactive ones
// when nothing is active. The auto-created default offer is never a candidate.
func (s *Service) candidates(ctx context.Context, repo repository.Repository) ([]*models.Offer, error) {
	notDefault := func(o *models.Offer, _ int) bool { return o.SKU != s.cfg.Checkout.DefaultOfferSKU }
	offers, err := repo.ListOffers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	if offers = lo.Filter(offers, notDefault); len(offers) > 0 {
		return offers, nil
	}
	offers, err = repo.ListOffers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	return lo.Filter(offers, notDefault), nil
}

func (s *Service) defaultOffer(ctx context.Context, repo repository.Repository) (*models.Offer, error) {
	sku := s.cfg.Checkout.DefaultOfferSKU
	o, err := repo.GetOffer(ctx, sku)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get default offer: %w", err)
	}
	o = &models.Offer{
		SKU:      sku,
		Name:     defaultOfferName,
		Category: types.OfferCategoryGeneral,
		// hidden from listings; only referenced by fallback orders
		Active: false,
	}
	if err := repo.CreateOffer(ctx, o); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return repo.GetOffer(ctx, sku)
		}
		return nil, fmt.Errorf("failed to create default offer: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("default_offer_created", "offer_id", o.ID, "sku", sku)
	return o, nil
}

// Delete refuses offers that order items or subscriptions point at.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.WithTx(ctx, func(tx repository.Repository) error {
		o, err := tx.GetOffer(ctx, id)
		if err != nil {
			return err
		}
		used, err := tx.OfferReferenced(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("failed to check offer references: %w", err)
		}
		if used {
			return ErrOfferReferenced
		}
		return tx.DeleteOffer(ctx, o.ID)
	})
}

func (s *Service) Deactivate(ctx context.Context, id string) (*models.Offer, error) {
	o, err := s.repo.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Active {
		return o, nil
	}
	o.Active = false
	if err := s.repo.UpdateOffer(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to deactivate offer: %w", err)
	}
	return o, nil
}

// Seed upserts the configured offers by SKU.
func (s *Service) Seed(ctx context.Context, seeds []types.OfferSeed) error {
	for _, seed := range seeds {
		err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
			o, err := tx.GetOffer(ctx, seed.SKU)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				o = &models.Offer{SKU: seed.SKU, Active: true}
				applySeed(o, seed)
				return tx.CreateOffer(ctx, o)
			case err != nil:
				return err
			}
			applySeed(o, seed)
			return tx.UpdateOffer(ctx, o)
		})
		if err != nil {
			return fmt.Errorf("failed to seed offer %s: %w", seed.SKU, err)
		}
	}
	if len(seeds) > 0 {
		logctx.FromCtx(ctx, s.log).Infow("offers_seeded", "count", len(seeds))
	}
	return nil
}

func applySeed(o *models.Offer, seed types.OfferSeed) {
	o.Name = seed.Name
	o.Category = seed.Category
	if o.Category == "" {
		o.Category = types.OfferCategoryGeneral
	}
	o.PriceCents = seed.PriceCents
	o.IsSubscription = seed.IsSubscription
	o.CreditsValue = seed.CreditsValue
	o.IsCreditEligible = seed.IsCreditEligible
	o.DisplayOrder = seed.DisplayOrder
}
