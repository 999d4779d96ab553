package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/queue"
	"github.com/tezzaro/billing-gateway/internal/repository"
	"github.com/tezzaro/billing-gateway/pkg/logger"
	"github.com/tezzaro/billing-gateway/pkg/prom"
)

var (
	ErrInactiveCustomer    = errors.New("customer account is not active")
	ErrInsufficientBalance = errors.New("insufficient balance to send message")
	ErrDuplicateMessage    = errors.New("message already recorded for this whatsapp message id")
	ErrMessageNotFound     = errors.New("message not found")
)

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	Get(ctx context.Context, id int64) (*model.Message, error)
	UpdateStatusByProviderID(ctx context.Context, providerMessageID string, status model.MessageStatus, at time.Time, errorMessage string) error
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
}

type CustomerRepository interface {
	DebitBalance(ctx context.Context, customerID int64, amount int64, force bool) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type PricingRepository interface {
	GetPrice(ctx context.Context, messageType model.MessageType) (int64, error)
}

type MessageService struct {
	messageRepo     MessageRepository
	customerRepo    CustomerRepository
	transactionRepo TransactionRepository
	pricingRepo     PricingRepository
	queue           *queue.Queue
}

func NewMessageService(
	messageRepo MessageRepository,
	customerRepo CustomerRepository,
	transactionRepo TransactionRepository,
	pricingRepo PricingRepository,
	q *queue.Queue,
) *MessageService {
	return &MessageService{
		messageRepo:     messageRepo,
		customerRepo:    customerRepo,
		transactionRepo: transactionRepo,
		pricingRepo:     pricingRepo,
		queue:           q,
	}
}

// Create bills and records an outbound message. The unit price is snapshotted
// from the pricing table, the wallet debited and the ledger row written in a
// single DB transaction, and only then is the message queued for dispatch. If
// anything fails the whole thing rolls back: no charge without a message, no
// message without a charge.
func (s *MessageService) Create(ctx context.Context, p model.MessageCreateRequest) (*model.Message, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	p.RecipientPhone = strings.TrimSpace(p.RecipientPhone)
	p.Content = strings.TrimSpace(p.Content)

	price, err := s.pricingRepo.GetPrice(ctx, p.Type)
	if err != nil {
		return nil, fmt.Errorf("resolve price: %w", err)
	}

	var createdMessage *model.Message
	err = s.customerRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		// Debit first so an unfunded request fails before anything is written.
		if err := s.customerRepo.DebitBalance(ctx, p.CustomerID, price, false); err != nil {
			switch {
			case errors.Is(err, repository.ErrInsufficientBalance):
				return ErrInsufficientBalance
			case errors.Is(err, repository.ErrAccountInactive):
				return ErrInactiveCustomer
			case errors.Is(err, repository.ErrCustomerNotFound):
				return ErrCustomerNotFound
			}
			return fmt.Errorf("debit balance: %w", err)
		}

		created, err := s.messageRepo.Create(ctx, &model.Message{
			CustomerID:     p.CustomerID,
			RecipientPhone: p.RecipientPhone,
			RecipientName:  p.RecipientName,
			Type:           p.Type,
			TemplateName:   p.TemplateName,
			Content:        p.Content,
			Status:         model.MessageStatusPending,
			Cost:           price,
		})
		if err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		createdMessage = created

		_, err = s.transactionRepo.Create(ctx, &model.Transaction{
			CustomerID:  p.CustomerID,
			Type:        model.TransactionDebit,
			Status:      model.TransactionCompleted,
			Amount:      price,
			Description: fmt.Sprintf("%s message to %s", p.Type, p.RecipientPhone),
			MessageID:   &created.ID,
		})
		if err != nil {
			return fmt.Errorf("record debit: %w", err)
		}

		if s.queue != nil {
			if _, err := s.queue.PublishJSON(ctx, created, nil); err != nil {
				return fmt.Errorf("enqueue message: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncMessageDebited(string(p.Type))
	logger.Info("Message accepted", "message_id", createdMessage.ID, "customer_id", p.CustomerID, "type", string(p.Type), "cost", price)

	return createdMessage, nil
}

// Import records a message already sent outside the platform (CSV backfill or
// provider sync). Re-importing the same WhatsApp message id is rejected before
// any money moves. When DeductBalance is set the wallet is debited without the
// sufficiency gate, so historical backfills can drive the balance negative.
func (s *MessageService) Import(ctx context.Context, p model.MessageImportRequest) (*model.Message, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	status := p.Status
	if status == "" {
		status = model.MessageStatusSent
	}

	price, err := s.pricingRepo.GetPrice(ctx, p.Type)
	if err != nil {
		return nil, fmt.Errorf("resolve price: %w", err)
	}

	var imported *model.Message
	err = s.customerRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		msg := &model.Message{
			CustomerID:        p.CustomerID,
			RecipientPhone:    strings.TrimSpace(p.RecipientPhone),
			Type:              p.Type,
			Content:           p.Content,
			Status:            status,
			ProviderMessageID: p.ProviderMessageID,
			Cost:              price,
			SentAt:            p.SentAt,
		}
		if !p.DeductBalance {
			msg.Cost = 0
		}

		created, err := s.messageRepo.Create(ctx, msg)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateMessage) {
				return ErrDuplicateMessage
			}
			return fmt.Errorf("create message: %w", err)
		}
		imported = created

		if p.DeductBalance {
			if err := s.customerRepo.DebitBalance(ctx, p.CustomerID, price, true); err != nil {
				if errors.Is(err, repository.ErrCustomerNotFound) {
					return ErrCustomerNotFound
				}
				return fmt.Errorf("debit balance: %w", err)
			}

			_, err = s.transactionRepo.Create(ctx, &model.Transaction{
				CustomerID:  p.CustomerID,
				Type:        model.TransactionDebit,
				Status:      model.TransactionCompleted,
				Amount:      price,
				Description: fmt.Sprintf("imported %s message %s", p.Type, p.ProviderMessageID),
				MessageID:   &created.ID,
			})
			if err != nil {
				return fmt.Errorf("record debit: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Message imported", "message_id", imported.ID, "customer_id", p.CustomerID, "whatsapp_message_id", p.ProviderMessageID, "billed", p.DeductBalance)

	return imported, nil
}

// UpdateDeliveryStatus applies a provider status callback. Delivery state
// never touches the ledger: a failed delivery keeps its debit, refunds go
// through admin adjustments.
func (s *MessageService) UpdateDeliveryStatus(ctx context.Context, providerMessageID string, status model.MessageStatus, at time.Time, errorMessage string) error {
	if at.IsZero() {
		at = time.Now()
	}
	err := s.messageRepo.UpdateStatusByProviderID(ctx, providerMessageID, status, at, errorMessage)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	return nil
}

func (s *MessageService) Get(ctx context.Context, id int64) (*model.Message, error) {
	msg, err := s.messageRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	return s.messageRepo.List(ctx, f)
}
