package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
)

type InvoiceRepository struct {
	*pg.DB
}

func NewInvoiceRepository(db *pg.DB) *InvoiceRepository {
	return &InvoiceRepository{
		db,
	}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *model.Invoice) (*model.Invoice, error) {
	entity := toInvoiceEntity(inv)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toInvoiceModel(entity), nil
}

func (r *InvoiceRepository) Get(ctx context.Context, id int64) (*model.Invoice, error) {
	var entity InvoiceEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return toInvoiceModel(&entity), nil
}

// GetByTransactionID looks up the invoice generated for a top-up. There is
// at most one per transaction (unique index), which is what makes invoice
// generation idempotent.
func (r *InvoiceRepository) GetByTransactionID(ctx context.Context, transactionID int64) (*model.Invoice, error) {
	var entity InvoiceEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return toInvoiceModel(&entity), nil
}

// NextNumber issues the next invoice number for the year, e.g. TZ-2026-0042.
// Numbers come from a counter row locked FOR UPDATE: confirmations for
// different orders serialize on the row instead of both deriving the same
// number from a count of existing invoices. Callers must run it inside the
// same DB transaction as the invoice insert; a rolled back confirmation
// returns its number to the sequence.
func (r *InvoiceRepository) NextNumber(ctx context.Context, prefix string, year int) (string, error) {
	tx := r.Write(ctx).WithContext(ctx)

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "prefix"}, {Name: "year"}},
		DoNothing: true,
	}).Create(&InvoiceSequenceEntity{Prefix: prefix, Year: year}).Error
	if err != nil {
		return "", err
	}

	var seq InvoiceSequenceEntity
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ? AND year = ?", prefix, year).
		First(&seq).
		Error
	if err != nil {
		return "", err
	}

	seq.Value++
	err = tx.Model(&InvoiceSequenceEntity{}).
		Where("prefix = ? AND year = ?", prefix, year).
		Update("value", seq.Value).
		Error
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq.Value), nil
}

func (r *InvoiceRepository) List(ctx context.Context, customerID *int64, limit, offset int) ([]*model.Invoice, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&InvoiceEntity{})

	if customerID != nil {
		q = q.Where("customer_id = ?", *customerID)
	}

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

	var entities []*InvoiceEntity
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toInvoiceModels(entities), total, nil
}
