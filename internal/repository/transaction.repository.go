package repository

import (
	"context"
	"errors"

	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidAmount       = errors.New("transaction amount must be positive")
	ErrInvalidTransition   = errors.New("transaction is already terminal")
)

// TransactionRepository is the append-only ledger. Rows are only ever created
// and moved pending -> completed/failed; terminal rows are never mutated.
type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if txn.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if txn.Status == "" {
		txn.Status = model.TransactionPending
	}

	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// MarkCompleted moves a pending transaction to completed. Re-marking an
// already-completed transaction is a no-op (applied=false) so duplicate
// gateway webhooks are harmless; completing a failed transaction is
// ErrInvalidTransition. The row is locked FOR UPDATE so two concurrent
// confirmations cannot both see it pending.
func (r *TransactionRepository) MarkCompleted(ctx context.Context, id int64, paymentID string) (*model.Transaction, bool, error) {
	var entity TransactionEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrTransactionNotFound
		}
		return nil, false, err
	}

	switch model.TransactionStatus(entity.Status) {
	case model.TransactionCompleted:
		return toTransactionModel(&entity), false, nil
	case model.TransactionFailed:
		return nil, false, ErrInvalidTransition
	}

	updates := map[string]interface{}{
		"status": string(model.TransactionCompleted),
	}
	if paymentID != "" {
		updates["payment_id"] = paymentID
	}

	if err := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, false, err
	}

	entity.Status = string(model.TransactionCompleted)
	if paymentID != "" {
		entity.PaymentID = paymentID
	}
	return toTransactionModel(&entity), true, nil
}

// MarkFailed moves a pending transaction to failed, with the same
// idempotency rules as MarkCompleted.
func (r *TransactionRepository) MarkFailed(ctx context.Context, id int64, reason string) (*model.Transaction, bool, error) {
	var entity TransactionEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrTransactionNotFound
		}
		return nil, false, err
	}

	switch model.TransactionStatus(entity.Status) {
	case model.TransactionFailed:
		return toTransactionModel(&entity), false, nil
	case model.TransactionCompleted:
		return nil, false, ErrInvalidTransition
	}

	updates := map[string]interface{}{
		"status": string(model.TransactionFailed),
	}
	if reason != "" {
		updates["description"] = reason
	}

	if err := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, false, err
	}

	entity.Status = string(model.TransactionFailed)
	if reason != "" {
		entity.Description = reason
	}
	return toTransactionModel(&entity), true, nil
}

func (r *TransactionRepository) SetInvoiceID(ctx context.Context, id int64, invoiceID int64) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Update("invoice_id", invoiceID).Error
}

// SumCompleted derives the balance from the ledger: completed credits minus
// completed debits. Pending and failed rows never count.
func (r *TransactionRepository) SumCompleted(ctx context.Context, customerID int64) (int64, error) {
	var sum *int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Select("SUM(CASE WHEN type = ? THEN amount ELSE -amount END)", string(model.TransactionCredit)).
		Where("customer_id = ? AND status = ?", customerID, string(model.TransactionCompleted)).
		Scan(&sum).
		Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{})

	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Type != nil {
		q = q.Where("type = ?", string(*f.Type))
	}
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}
