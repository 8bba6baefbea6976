package customer

import (
	"context"
	"fmt"
	"time"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/pkg/logger"
)

// Resolver finds or lazily creates customers keyed by phone.
type Resolver interface {
	ResolveOrCreate(ctx context.Context, phone string, name, address *string) (*Customer, error)
	Get(ctx context.Context, customerID id.ID) (*Customer, error)
}

// Service implements Resolver over a Repository.
type Service struct {
	repo   Repository
	region string
	now    func() time.Time
}

// NewService creates a customer service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

var _ Resolver = (*Service)(nil)

// WithRegion makes new phones go through ValidatePhone for region.
func (s *Service) WithRegion(region string) *Service {
	s.region = region
	return s
}

// Get returns a customer by id.
func (s *Service) Get(ctx context.Context, customerID id.ID) (*Customer, error) {
	return s.repo.GetByID(ctx, customerID)
}

// ResolveOrCreate returns the customer owning phone, creating it when absent.
// name and address are used only on creation; an existing customer is
// returned as stored. Concurrent first orders for one phone converge on the
// same row because creation is an insert-if-absent followed by a re-read.
func (s *Service) ResolveOrCreate(ctx context.Context, phone string, name, address *string) (*Customer, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, apperror.NewValidation("phone is required").WithDetail("field", "customer.phone")
	}

	existing, err := s.repo.GetByPhone(ctx, phone)
	if err == nil {
		return existing, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("get customer by phone: %w", err)
	}
	if err := ValidatePhone(phone, s.region); err != nil {
		return nil, err
	}

	displayName := ""
	if name != nil {
		displayName = *name
	}
	c := NewCustomer(phone, displayName, address, s.now())

	inserted, err := s.repo.CreateIfAbsent(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	if inserted {
		logger.Info(ctx, "customer created", "id", c.ID, "phone", c.Phone)
		return c, nil
	}

	// Lost the race to another transaction; use its row.
	return s.repo.GetByPhone(ctx, phone)
}
