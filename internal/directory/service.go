package directory

import (
	"context"
	"errors"
)

// RepositoryPort defines the lookups the service needs.
type RepositoryPort interface {
	GetProperty(ctx context.Context, id string) (*PropertyRef, error)
	GetCustomer(ctx context.Context, id string) (*CustomerRef, error)
	GetUser(ctx context.Context, id string) (*UserRef, error)
}

// Service answers reference checks for the booking engine. It satisfies
// booking.ReferenceDirectory: the boolean result means "usable reference",
// and lookup infrastructure failures are returned as errors.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// PropertyPublished reports whether the property exists and is published.
func (s *Service) PropertyPublished(ctx context.Context, propertyID string) (bool, error) {
	p, err := s.repo.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.Published, nil
}

// CustomerActive reports whether the customer exists and is active.
func (s *Service) CustomerActive(ctx context.Context, customerID string) (bool, error) {
	c, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return c.Active, nil
}

// SalespersonActive reports whether the user exists and is active.
func (s *Service) SalespersonActive(ctx context.Context, userID string) (bool, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.Active, nil
}
