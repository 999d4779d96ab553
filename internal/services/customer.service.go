package services

import (
	"context"
	"errors"
	"strings"

	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/repository"
	"github.com/tezzaro/billing-gateway/pkg/logger"
)

var (
	ErrInvalidEmail   = errors.New("a valid email is required")
	ErrDuplicateEmail = errors.New("email already registered")
)

type CustomerAdminRepository interface {
	Create(ctx context.Context, c *model.Customer) (*model.Customer, error)
	Get(ctx context.Context, id int64) (*model.Customer, error)
	GetByEmail(ctx context.Context, email string) (*model.Customer, error)
	UpdateProfile(ctx context.Context, c *model.Customer) (*model.Customer, error)
	SetActive(ctx context.Context, customerID int64, active bool) error
	List(ctx context.Context, limit, offset int) ([]*model.Customer, int64, error)
}

// CustomerService manages accounts. Balance never moves through here; wallet
// operations own all ledger writes.
type CustomerService struct {
	customerRepo CustomerAdminRepository
}

func NewCustomerService(customerRepo CustomerAdminRepository) *CustomerService {
	return &CustomerService{customerRepo: customerRepo}
}

func (s *CustomerService) Create(ctx context.Context, actor model.Actor, c *model.Customer) (*model.Customer, error) {
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Email == "" || !strings.Contains(c.Email, "@") {
		return nil, ErrInvalidEmail
	}
	if c.Role == "" {
		c.Role = model.RoleCustomer
	}
	c.Balance = 0
	c.IsActive = true

	if _, err := s.customerRepo.GetByEmail(ctx, c.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrCustomerNotFound) {
		return nil, err
	}

	created, err := s.customerRepo.Create(ctx, c)
	if err != nil {
		return nil, err
	}

	logger.Info("Customer created", "customer_id", created.ID, "email", created.Email, "admin", actor.Email)

	return created, nil
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*model.Customer, error) {
	customer, err := s.customerRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return customer, nil
}

func (s *CustomerService) UpdateProfile(ctx context.Context, actor model.Actor, c *model.Customer) (*model.Customer, error) {
	// Customers may edit their own profile; admins may edit anyone's.
	if !actor.IsAdmin() && actor.ID != c.ID {
		return nil, ErrPermissionDenied
	}

	updated, err := s.customerRepo.UpdateProfile(ctx, c)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (s *CustomerService) SetActive(ctx context.Context, actor model.Actor, customerID int64, active bool) error {
	if !actor.IsAdmin() {
		return ErrPermissionDenied
	}

	if err := s.customerRepo.SetActive(ctx, customerID, active); err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return ErrCustomerNotFound
		}
		return err
	}

	logger.Info("Customer activity changed", "customer_id", customerID, "active", active, "admin", actor.Email)

	return nil
}

func (s *CustomerService) List(ctx context.Context, actor model.Actor, limit, offset int) ([]*model.Customer, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrPermissionDenied
	}
	return s.customerRepo.List(ctx, limit, offset)
}
