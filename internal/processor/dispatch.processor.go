package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	gateway "github.com/tezzaro/billing-gateway/internal/gateways"
	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/queue"
	"github.com/tezzaro/billing-gateway/pkg/logger"
	"github.com/tezzaro/billing-gateway/pkg/prom"
)

type MessageStatusRepository interface {
	SetProviderMessageID(ctx context.Context, id int64, providerMessageID string) error
	UpdateStatus(ctx context.Context, id int64, status model.MessageStatus, at time.Time, errorMessage string) error
}

// DispatchProcessor consumes queued messages and sends them to a WhatsApp
// provider. The wallet was already debited when the message was accepted, so
// nothing here touches the ledger: a failed dispatch is recorded on the
// message and refunded, if at all, through a manual adjustment.
type DispatchProcessor struct {
	client      *gateway.Client
	messageRepo MessageStatusRepository
	idempotency *IdempotencyService
}

func NewDispatchProcessor(client *gateway.Client, messageRepo MessageStatusRepository, idempotency *IdempotencyService) *DispatchProcessor {
	return &DispatchProcessor{
		client:      client,
		messageRepo: messageRepo,
		idempotency: idempotency,
	}
}

func (p *DispatchProcessor) GetType() string {
	return "message"
}

// Process sends one message to the provider with idempotency guarantees.
func (p *DispatchProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	// Step 1: Parse message
	var message model.Message
	err := json.Unmarshal(queueMessage.Data, &message)
	if err != nil {
		logger.Error("Failed to unmarshal message", "error", err)
		// Invalid payload will never succeed - let it move to DLQ
		return err
	}

	messageID := strconv.FormatInt(message.ID, 10)

	// Step 2: Acquire processing lock and check idempotency
	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, messageID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			// Message already dispatched - ACK to remove from queue
			logger.Info("Message already dispatched, skipping", "message_id", messageID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Max retries exceeded - mark the message failed and ACK
			logger.Error("Max dispatch retries exceeded", "message_id", messageID)
			if updErr := p.messageRepo.UpdateStatus(ctx, message.ID, model.MessageStatusFailed, time.Now(), "dispatch retries exhausted"); updErr != nil {
				logger.Error("Failed to mark message failed", "message_id", messageID, "error", updErr)
			}
			return nil // ACK to move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			// Another consumer is processing - NACK to retry later
			logger.Info("Lock held by another consumer, will retry", "message_id", messageID)
			return errors.New("lock held by another consumer")
		}
		// Unexpected error - NACK to retry
		logger.Error("Failed to acquire lock", "message_id", messageID, "error", err)
		return err
	}

	// Ensure lock is released on exit (if not already marked success/failure)
	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Dispatching message",
		"message_id", messageID,
		"recipient", message.RecipientPhone,
		"retry_count", procCtx.RetryCount,
		"is_retry", procCtx.IsRetry)

	// Step 3: Send to provider
	req := &gateway.SendRequest{
		MessageID:      messageID,
		RecipientPhone: message.RecipientPhone,
		RecipientName:  message.RecipientName,
		MessageType:    string(message.Type),
		TemplateName:   message.TemplateName,
		Content:        message.Content,
	}

	res, err := p.client.SendMessage(ctx, req)
	if err != nil {
		// Step 4a: Sending failed - mark failure and retry
		logger.Error("Failed to dispatch message", "message_id", messageID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "message_id", messageID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	if res.Status == gateway.StatusAccepted || res.Status == gateway.StatusSent {
		// Step 4b: Provider accepted - record its id and mark the message sent
		if err := p.messageRepo.SetProviderMessageID(ctx, message.ID, res.WhatsAppMessageID); err != nil {
			logger.Error("Failed to save provider message id", "message_id", messageID, "error", err)
			// Continue - the provider accepted the message
		}
		if err := p.messageRepo.UpdateStatus(ctx, message.ID, model.MessageStatusSent, time.Now(), ""); err != nil {
			logger.Error("Failed to mark message sent", "message_id", messageID, "error", err)
		}

		prom.AddMessageDispatchDuration(
			time.Since(message.CreatedAt).Seconds(),
			string(message.Type),
		)

		logger.Info("Message dispatched",
			"message_id", messageID,
			"whatsapp_message_id", res.WhatsAppMessageID,
			"provider", res.ProviderID,
			"retry_count", procCtx.RetryCount)

		// Mark as successfully processed (sets 24-hour processed marker)
		if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
			logger.Error("Failed to mark success", "message_id", messageID, "error", markErr)
			// Continue - message was dispatched
		}

		return nil // ACK message
	}

	// Provider rejected the message - treat as failure
	logger.Warn("Message rejected by provider", "message_id", messageID, "status", res.Status, "error_code", res.ErrorCode)
	if markErr := p.idempotency.MarkFailure(ctx, procCtx, errors.New("provider rejected message")); markErr != nil {
		logger.Error("Failed to mark failure", "message_id", messageID, "error", markErr)
	}
	return errors.New("failed to dispatch message")
}
