package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tezzaro/billing-gateway/internal/gst"
	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/payment"
	"github.com/tezzaro/billing-gateway/internal/repository"
	"github.com/tezzaro/billing-gateway/pkg/logger"
	"github.com/tezzaro/billing-gateway/pkg/prom"
)

var (
	ErrTopupBelowMinimum  = errors.New("top-up amount below minimum")
	ErrTopupNotFound      = errors.New("no top-up found for this order")
	ErrTopupAlreadyFailed = errors.New("top-up already marked failed")
	ErrInvalidSignature   = errors.New("payment signature verification failed")
	ErrPermissionDenied   = errors.New("operation requires admin role")
	ErrInvalidAdjustment  = errors.New("adjustment amount cannot be zero")
	ErrCustomerNotFound   = errors.New("customer not found")
)

// MinTopupAmount is the smallest accepted gross top-up, in paise.
const MinTopupAmount = 100

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, receipt string, notes map[string]string) (*payment.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type WalletCustomerRepository interface {
	Get(ctx context.Context, id int64) (*model.Customer, error)
	GetBalance(ctx context.Context, customerID int64) (int64, error)
	CreditBalance(ctx context.Context, customerID int64, amount int64) error
	DebitBalance(ctx context.Context, customerID int64, amount int64, force bool) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type WalletTransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*model.Transaction, error)
	MarkCompleted(ctx context.Context, id int64, paymentID string) (*model.Transaction, bool, error)
	MarkFailed(ctx context.Context, id int64, reason string) (*model.Transaction, bool, error)
	SetInvoiceID(ctx context.Context, id int64, invoiceID int64) error
	SumCompleted(ctx context.Context, customerID int64) (int64, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
}

type WalletInvoiceRepository interface {
	Create(ctx context.Context, inv *model.Invoice) (*model.Invoice, error)
	GetByTransactionID(ctx context.Context, transactionID int64) (*model.Invoice, error)
	NextNumber(ctx context.Context, prefix string, year int) (string, error)
}

type PaymentLogRepository interface {
	Create(ctx context.Context, log *model.PaymentLog) (*model.PaymentLog, error)
}

type WalletService struct {
	customerRepo    WalletCustomerRepository
	transactionRepo WalletTransactionRepository
	invoiceRepo     WalletInvoiceRepository
	paymentLogRepo  PaymentLogRepository
	gateway         PaymentGateway
	invoicePrefix   string
	now             func() time.Time
}

func NewWalletService(
	customerRepo WalletCustomerRepository,
	transactionRepo WalletTransactionRepository,
	invoiceRepo WalletInvoiceRepository,
	paymentLogRepo PaymentLogRepository,
	gateway PaymentGateway,
	invoicePrefix string,
) *WalletService {
	if invoicePrefix == "" {
		invoicePrefix = "TZ"
	}
	return &WalletService{
		customerRepo:    customerRepo,
		transactionRepo: transactionRepo,
		invoiceRepo:     invoiceRepo,
		paymentLogRepo:  paymentLogRepo,
		gateway:         gateway,
		invoicePrefix:   invoicePrefix,
		now:             time.Now,
	}
}

// Quote breaks a gross top-up amount into net credit and GST portions without
// touching any state. Used for checkout previews.
func (s *WalletService) Quote(grossAmount int64) (gst.Breakdown, error) {
	if grossAmount < MinTopupAmount {
		return gst.Breakdown{}, ErrTopupBelowMinimum
	}
	return gst.Calculate(grossAmount), nil
}

// TopupIntent is a pending top-up the customer completes at the gateway.
type TopupIntent struct {
	Transaction *model.Transaction `json:"transaction"`
	OrderID     string             `json:"order_id"`
	Breakdown   gst.Breakdown      `json:"breakdown"`
}

// InitiateTopup creates a gateway order for the gross amount and records a
// pending credit for the net portion. Nothing is credited until the gateway
// confirms payment.
func (s *WalletService) InitiateTopup(ctx context.Context, customerID int64, grossAmount int64) (*TopupIntent, error) {
	if grossAmount < MinTopupAmount {
		return nil, ErrTopupBelowMinimum
	}

	customer, err := s.customerRepo.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("load customer: %w", err)
	}

	breakdown := gst.Calculate(grossAmount)

	receipt := fmt.Sprintf("topup-%d-%d", customer.ID, s.now().UnixNano())
	order, err := s.gateway.CreateOrder(ctx, grossAmount, receipt, map[string]string{
		"customer_id": fmt.Sprintf("%d", customer.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment order: %w", err)
	}

	txn, err := s.transactionRepo.Create(ctx, &model.Transaction{
		CustomerID:  customer.ID,
		Type:        model.TransactionCredit,
		Status:      model.TransactionPending,
		Amount:      breakdown.Net,
		GrossAmount: grossAmount,
		OrderID:     order.ID,
		Description: "wallet top-up",
	})
	if err != nil {
		return nil, fmt.Errorf("record pending top-up: %w", err)
	}

	logger.Info("Top-up initiated", "customer_id", customer.ID, "order_id", order.ID, "gross", grossAmount, "net", breakdown.Net)

	return &TopupIntent{
		Transaction: txn,
		OrderID:     order.ID,
		Breakdown:   breakdown,
	}, nil
}

type ConfirmTopupRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// TopupReceipt is the outcome of a confirmed top-up. AlreadyProcessed is set
// when a duplicate confirmation arrived after the credit was applied; the
// receipt then reflects the original application.
type TopupReceipt struct {
	Transaction      *model.Transaction `json:"transaction"`
	Invoice          *model.Invoice     `json:"invoice"`
	Balance          int64              `json:"balance"`
	AlreadyProcessed bool               `json:"already_processed"`
}

// ConfirmTopup settles a pending top-up after gateway checkout. The signature
// is verified first; on success the transaction is completed, the net amount
// credited, the invoice generated and the confirmation logged, all in one DB
// transaction. Safe to call any number of times per order: the credit is
// applied exactly once.
func (s *WalletService) ConfirmTopup(ctx context.Context, req ConfirmTopupRequest) (*TopupReceipt, error) {
	txn, err := s.transactionRepo.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTopupNotFound
		}
		return nil, fmt.Errorf("load top-up: %w", err)
	}

	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		s.recordFailedConfirmation(ctx, txn, req)
		prom.IncWalletTopupFailed()
		return nil, ErrInvalidSignature
	}

	var receipt *TopupReceipt
	err = s.customerRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		completed, applied, err := s.transactionRepo.MarkCompleted(ctx, txn.ID, req.PaymentID)
		if err != nil {
			if errors.Is(err, repository.ErrInvalidTransition) {
				return ErrTopupAlreadyFailed
			}
			return fmt.Errorf("complete transaction: %w", err)
		}

		if applied {
			if err := s.customerRepo.CreditBalance(ctx, completed.CustomerID, completed.Amount); err != nil {
				return fmt.Errorf("credit balance: %w", err)
			}
		}

		invoice, err := s.ensureInvoice(ctx, completed)
		if err != nil {
			return err
		}

		balance, err := s.customerRepo.GetBalance(ctx, completed.CustomerID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}

		if applied {
			_, err = s.paymentLogRepo.Create(ctx, &model.PaymentLog{
				CustomerID:    completed.CustomerID,
				OrderID:       completed.OrderID,
				PaymentID:     req.PaymentID,
				Event:         "payment.verified",
				Total:         completed.GrossAmount,
				Subtotal:      invoice.Subtotal,
				CGST:          invoice.CGST,
				SGST:          invoice.SGST,
				Credited:      completed.Amount,
				NewBalance:    balance,
				InvoiceNumber: invoice.Number,
			})
			if err != nil {
				return fmt.Errorf("write payment log: %w", err)
			}
		}

		receipt = &TopupReceipt{
			Transaction:      completed,
			Invoice:          invoice,
			Balance:          balance,
			AlreadyProcessed: !applied,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if receipt.AlreadyProcessed {
		logger.Info("Duplicate top-up confirmation ignored", "order_id", req.OrderID, "payment_id", req.PaymentID)
	} else {
		prom.IncWalletTopupCompleted()
		prom.AddWalletCreditedPaise(float64(receipt.Transaction.Amount))
		logger.Info("Top-up confirmed", "customer_id", receipt.Transaction.CustomerID, "order_id", req.OrderID, "credited", receipt.Transaction.Amount, "balance", receipt.Balance)
	}

	return receipt, nil
}

// ensureInvoice returns the invoice for a completed top-up, generating it if
// this is the first confirmation. Runs inside the confirmation transaction;
// the number comes from a counter row locked FOR UPDATE, so confirmations
// for different orders serialize instead of issuing the same number.
func (s *WalletService) ensureInvoice(ctx context.Context, txn *model.Transaction) (*model.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByTransactionID(ctx, txn.ID)
	if err == nil {
		return invoice, nil
	}
	if !errors.Is(err, repository.ErrInvoiceNotFound) {
		return nil, fmt.Errorf("load invoice: %w", err)
	}

	customer, err := s.customerRepo.Get(ctx, txn.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load customer for invoice: %w", err)
	}

	breakdown := gst.Calculate(txn.GrossAmount)
	paidAt := s.now()

	number, err := s.invoiceRepo.NextNumber(ctx, s.invoicePrefix, paidAt.Year())
	if err != nil {
		return nil, fmt.Errorf("issue invoice number: %w", err)
	}

	invoice, err = s.invoiceRepo.Create(ctx, &model.Invoice{
		CustomerID:      customer.ID,
		TransactionID:   txn.ID,
		Number:          number,
		CustomerName:    customer.Name,
		CustomerEmail:   customer.Email,
		CustomerCompany: customer.CompanyName,
		CustomerGST:     customer.GSTNumber,
		CustomerAddress: formatBillingAddress(customer),
		Subtotal:        breakdown.Net,
		CGST:            breakdown.CGST,
		SGST:            breakdown.SGST,
		Total:           txn.GrossAmount,
		Credited:        txn.Amount,
		PaymentID:       txn.PaymentID,
		PaidAt:          paidAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	if err := s.transactionRepo.SetInvoiceID(ctx, txn.ID, invoice.ID); err != nil {
		return nil, fmt.Errorf("link invoice: %w", err)
	}

	return invoice, nil
}

// recordFailedConfirmation marks the top-up failed and logs the rejected
// callback. A top-up that already completed stays completed; the bad
// signature is only logged.
func (s *WalletService) recordFailedConfirmation(ctx context.Context, txn *model.Transaction, req ConfirmTopupRequest) {
	err := s.customerRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		_, _, err := s.transactionRepo.MarkFailed(ctx, txn.ID, "signature verification failed")
		if err != nil && !errors.Is(err, repository.ErrInvalidTransition) {
			return err
		}

		balance, err := s.customerRepo.GetBalance(ctx, txn.CustomerID)
		if err != nil {
			return err
		}

		_, err = s.paymentLogRepo.Create(ctx, &model.PaymentLog{
			CustomerID: txn.CustomerID,
			OrderID:    txn.OrderID,
			PaymentID:  req.PaymentID,
			Event:      "payment.failed",
			Total:      txn.GrossAmount,
			NewBalance: balance,
		})
		return err
	})
	if err != nil {
		logger.Error("Failed to record rejected confirmation", "order_id", txn.OrderID, "error", err)
	}

	logger.Warn("Payment signature rejected", "order_id", req.OrderID, "payment_id", req.PaymentID, "customer_id", txn.CustomerID)
}

// AdjustBalance applies a manual admin credit or debit. Positive amounts
// credit, negative debit. Admin debits are forced: they bypass the activity
// and sufficiency gates and may drive the balance negative.
func (s *WalletService) AdjustBalance(ctx context.Context, actor model.Actor, customerID int64, amount int64, reason string) (*model.Transaction, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrPermissionDenied
	}
	if amount == 0 {
		return nil, 0, ErrInvalidAdjustment
	}
	if reason == "" {
		reason = "manual adjustment"
	}

	var (
		txn     *model.Transaction
		balance int64
	)
	err := s.customerRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		txnType := model.TransactionCredit
		magnitude := amount
		if amount < 0 {
			txnType = model.TransactionDebit
			magnitude = -amount
		}

		if txnType == model.TransactionCredit {
			if err := s.customerRepo.CreditBalance(ctx, customerID, magnitude); err != nil {
				if errors.Is(err, repository.ErrCustomerNotFound) {
					return ErrCustomerNotFound
				}
				return err
			}
		} else {
			if err := s.customerRepo.DebitBalance(ctx, customerID, magnitude, true); err != nil {
				if errors.Is(err, repository.ErrCustomerNotFound) {
					return ErrCustomerNotFound
				}
				return err
			}
		}

		created, err := s.transactionRepo.Create(ctx, &model.Transaction{
			CustomerID:  customerID,
			Type:        txnType,
			Status:      model.TransactionCompleted,
			Amount:      magnitude,
			Description: fmt.Sprintf("admin adjustment by %s: %s", actor.Email, reason),
		})
		if err != nil {
			return err
		}
		txn = created

		balance, err = s.customerRepo.GetBalance(ctx, customerID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	logger.Info("Balance adjusted", "customer_id", customerID, "admin", actor.Email, "amount", amount, "balance", balance)

	return txn, balance, nil
}

func (s *WalletService) Balance(ctx context.Context, customerID int64) (int64, error) {
	balance, err := s.customerRepo.GetBalance(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return 0, ErrCustomerNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (s *WalletService) Statement(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.transactionRepo.List(ctx, f)
}

// Reconciliation compares the cached balance against the ledger-derived one.
type Reconciliation struct {
	CustomerID int64 `json:"customer_id"`
	Cached     int64 `json:"cached_balance"`
	Derived    int64 `json:"derived_balance"`
	Drift      int64 `json:"drift"`
}

// Reconcile recomputes the balance from completed ledger rows. Drift should
// always be zero; a non-zero drift means a balance write escaped its ledger
// transaction.
func (s *WalletService) Reconcile(ctx context.Context, customerID int64) (*Reconciliation, error) {
	cached, err := s.customerRepo.GetBalance(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	derived, err := s.transactionRepo.SumCompleted(ctx, customerID)
	if err != nil {
		return nil, err
	}

	rec := &Reconciliation{
		CustomerID: customerID,
		Cached:     cached,
		Derived:    derived,
		Drift:      cached - derived,
	}

	if rec.Drift != 0 {
		logger.Error("Balance drift detected", "customer_id", customerID, "cached", cached, "derived", derived)
	}

	return rec, nil
}

func formatBillingAddress(c *model.Customer) string {
	addr := c.BillingAddress
	if c.City != "" {
		addr += ", " + c.City
	}
	if c.State != "" {
		addr += ", " + c.State
	}
	if c.Pincode != "" {
		addr += " - " + c.Pincode
	}
	return addr
}
