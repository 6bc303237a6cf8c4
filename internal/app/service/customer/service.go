package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	// ErrHasHistory: customers with orders or ledger entries are deactivated, never deleted.
	ErrHasHistory   = errors.New("customer has order or ledger history")
	ErrInvalidEmail = errors.New("invalid customer email")
)

type Info struct {
	Name  string
	Email string
	Phone string
}

type Service struct {
	repo     repository.Repository
	validate *validator.Validate
	log      *zap.SugaredLogger
}

func NewService(repo repository.Repository, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, validate: validator.New(), log: log}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var emailValidator = validator.New()

// ValidEmail reports whether FindOrCreate would accept email.
func ValidEmail(email string) bool {
	return emailValidator.Var(NormalizeEmail(email), "required,email") == nil
}

// FindOrCreate resolves a customer by email, creating one on first sight.
func (s *Service) FindOrCreate(ctx context.Context, info Info) (*models.Customer, error) {
	return s.FindOrCreateTx(ctx, s.repo, info)
}

// FindOrCreateTx is FindOrCreate on the caller's transaction.
func (s *Service) FindOrCreateTx(ctx context.Context, repo repository.Repository, info Info) (*models.Customer, error) {
	email := NormalizeEmail(info.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, info.Email)
	}

	c, err := repo.FindCustomerByEmail(ctx, email)
	switch {
	case err == nil:
		return s.fillMissing(ctx, repo, c, info)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}

	c = &models.Customer{
		Email:  email,
		Name:   strings.TrimSpace(info.Name),
		Phone:  strings.TrimSpace(info.Phone),
		Active: true,
	}
	if err := repo.CreateCustomer(ctx, c); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}
		// lost a race with another first purchase
		if c, err = repo.FindCustomerByEmail(ctx, email); err != nil {
			return nil, fmt.Errorf("failed to find customer after conflict: %w", err)
		}
		return c, nil
	}
	logctx.FromCtx(ctx, s.log).Infow("customer_created", "customer_id", c.ID)
	return c, nil
}

func (s *Service) fillMissing(ctx context.Context, repo repository.Repository, c *models.Customer, info Info) (*models.Customer, error) {
	changed := false
	if c.Name == "" && strings.TrimSpace(info.Name) != "" {
		c.Name = strings.TrimSpace(info.Name)
		changed = true
	}
	if c.Phone == "" && strings.TrimSpace(info.Phone) != "" {
		c.Phone = strings.TrimSpace(info.Phone)
		changed = true
	}
	if !changed {
		return c, nil
	}
	if err := repo.UpdateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// Delete refuses customers with financial history.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.WithTx(ctx, func(tx repository.Repository) error {
		if _, err := tx.GetCustomer(ctx, id); err != nil {
			return err
		}
		has, err := tx.CustomerHasHistory(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check customer history: %w", err)
		}
		if has {
			return ErrHasHistory
		}
		return tx.DeleteCustomer(ctx, id)
	})
}

func (s *Service) Deactivate(ctx context.Context, id string) (*models.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return c, nil
	}
	c.Active = false
	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to deactivate customer: %w", err)
	}
	return c, nil
}
