package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountInactive     = errors.New("account is not active")
	ErrConcurrentUpdate    = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
	ErrDuplicateEmail      = errors.New("email already registered")
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCustomerModel(entity), nil
}

func (r *CustomerRepository) Get(ctx context.Context, id int64) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("email = ?", email).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

// DebitBalance atomically deducts a completed debit from the cached balance.
// The row is locked FOR UPDATE so the "check balance, then write" pair cannot
// race with a concurrent debit against the same customer. force skips the
// activity and sufficiency checks (admin adjustments and backfill imports).
func (r *CustomerRepository) DebitBalance(ctx context.Context, customerID int64, amount int64, force bool) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := r.debitBalanceAttempt(ctx, customerID, amount, force)

		if err == nil {
			return nil
		}

		// Permanent errors are not retried.
		if errors.Is(err, ErrCustomerNotFound) ||
			errors.Is(err, ErrInsufficientBalance) ||
			errors.Is(err, ErrAccountInactive) {
			return err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *CustomerRepository) debitBalanceAttempt(ctx context.Context, customerID int64, amount int64, force bool) error {
	var entity CustomerEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", customerID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCustomerNotFound
		}
		return err
	}

	if !force {
		if !entity.IsActive {
			return ErrAccountInactive
		}
		if entity.Balance < amount {
			return ErrInsufficientBalance
		}
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&CustomerEntity{}).
		Where("id = ?", customerID).
		Update("balance", gorm.Expr("balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

// CreditBalance atomically adds a completed credit to the cached balance.
// Inactive customers may still be credited.
func (r *CustomerRepository) CreditBalance(ctx context.Context, customerID int64, amount int64) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := r.creditBalanceAttempt(ctx, customerID, amount)

		if err == nil {
			return nil
		}

		if errors.Is(err, ErrCustomerNotFound) {
			return err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *CustomerRepository) creditBalanceAttempt(ctx context.Context, customerID int64, amount int64) error {
	var entity CustomerEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", customerID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCustomerNotFound
		}
		return err
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&CustomerEntity{}).
		Where("id = ?", customerID).
		Update("balance", gorm.Expr("balance + ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrCustomerNotFound
	}

	return nil
}

func (r *CustomerRepository) GetBalance(ctx context.Context, customerID int64) (int64, error) {
	var entity CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Select("balance").
		Where("id = ?", customerID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCustomerNotFound
		}
		return 0, err
	}

	return entity.Balance, nil
}

// UpdateProfile writes the admin-editable profile fields. Balance and role
// are deliberately excluded; balance changes only through ledger writes.
func (r *CustomerRepository) UpdateProfile(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	updates := map[string]interface{}{
		"name":            c.Name,
		"phone":           c.Phone,
		"company_name":    c.CompanyName,
		"gst_number":      c.GSTNumber,
		"billing_address": c.BillingAddress,
		"city":            c.City,
		"state":           c.State,
		"pincode":         c.Pincode,
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&CustomerEntity{}).
		Where("id = ?", c.ID).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrCustomerNotFound
	}

	return r.Get(ctx, c.ID)
}

// SetActive flips the activity gate. Customers are never hard-deleted.
func (r *CustomerRepository) SetActive(ctx context.Context, customerID int64, active bool) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&CustomerEntity{}).
		Where("id = ?", customerID).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func (r *CustomerRepository) List(ctx context.Context, limit, offset int) ([]*model.Customer, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&CustomerEntity{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var entities []*CustomerEntity
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toCustomerModels(entities), total, nil
}
