package services

import (
	"context"
	"errors"

	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/repository"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

type InvoiceReadRepository interface {
	Get(ctx context.Context, id int64) (*model.Invoice, error)
	GetByTransactionID(ctx context.Context, transactionID int64) (*model.Invoice, error)
	List(ctx context.Context, customerID *int64, limit, offset int) ([]*model.Invoice, int64, error)
}

// InvoiceService is the read side of invoicing. Invoices are generated inside
// top-up confirmation and immutable afterwards, so there is nothing to write
// here.
type InvoiceService struct {
	invoiceRepo InvoiceReadRepository
}

func NewInvoiceService(invoiceRepo InvoiceReadRepository) *InvoiceService {
	return &InvoiceService{invoiceRepo: invoiceRepo}
}

func (s *InvoiceService) Get(ctx context.Context, id int64) (*model.Invoice, error) {
	inv, err := s.invoiceRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) GetByTransaction(ctx context.Context, transactionID int64) (*model.Invoice, error) {
	inv, err := s.invoiceRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, customerID *int64, limit, offset int) ([]*model.Invoice, int64, error) {
	return s.invoiceRepo.List(ctx, customerID, limit, offset)
}
