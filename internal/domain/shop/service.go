package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/pkg/logger"
)

// Service provides read access to shops and shop registration.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a shop service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns a shop by id.
func (s *Service) Get(ctx context.Context, shopID id.ID) (*Shop, error) {
	return s.repo.GetByID(ctx, shopID)
}

// GetByCode returns a shop by its code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Shop, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns shops ordered by code.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Shop, error) {
	return s.repo.List(ctx, activeOnly)
}

// Register creates a new shop with its counter at 1.
func (s *Service) Register(ctx context.Context, code, name string) (*Shop, error) {
	sh := NewShop(code, name, s.now())
	if err := sh.Validate(ctx); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByCode(ctx, sh.Code); err == nil {
		return nil, apperror.NewDuplicate("shop", "code", sh.Code)
	} else if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("check shop code: %w", err)
	}

	if err := s.repo.Create(ctx, sh); err != nil {
		return nil, fmt.Errorf("create shop: %w", err)
	}

	logger.Info(ctx, "shop registered", "id", sh.ID, "code", sh.Code)
	return sh, nil
}
