package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrMessageNotFound is returned when a message does not exist.
	ErrMessageNotFound = errors.New("message not found")
	// ErrDuplicateMessage is returned when a WhatsApp message id was
	// already recorded for the customer. Re-imports must never re-bill.
	ErrDuplicateMessage = errors.New("message already recorded for this whatsapp message id")
)

// statusRank orders the delivery lifecycle so late or replayed provider
// callbacks can never move a message backwards. failed outranks sent but
// never overrides delivered or read; that case is gated in UpdateStatus.
var statusRank = map[model.MessageStatus]int{
	model.MessageStatusPending:   0,
	model.MessageStatusSent:      1,
	model.MessageStatusDelivered: 2,
	model.MessageStatusRead:      3,
	model.MessageStatusFailed:    4,
}

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

// Create inserts a message. When the message carries a provider id (imports,
// provider sync) a duplicate within the customer is rejected; the composite
// unique index backstops the pre-check under races.
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg.ProviderMessageID != "" {
		var count int64
		err := r.Write(ctx).WithContext(ctx).
			Model(&MessageEntity{}).
			Where("customer_id = ? AND whatsapp_message_id = ?", msg.CustomerID, msg.ProviderMessageID).
			Count(&count).
			Error
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrDuplicateMessage
		}
	}

	entity := toMessageEntity(msg)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageModel(entity), nil
}

func (r *MessageRepository) Get(ctx context.Context, id int64) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return toMessageModel(&entity), nil
}

// SetProviderMessageID records the id the provider assigned after dispatch.
func (r *MessageRepository) SetProviderMessageID(ctx context.Context, id int64, providerMessageID string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("id = ?", id).
		Update("whatsapp_message_id", providerMessageID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// UpdateStatus advances the delivery state and stamps the matching
// timestamp. Stale callbacks (rank <= current) are ignored, which makes
// at-least-once webhook delivery safe. The ledger is never touched here.
func (r *MessageRepository) UpdateStatus(ctx context.Context, id int64, status model.MessageStatus, at time.Time, errorMessage string) error {
	var entity MessageEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	current := model.MessageStatus(entity.Status)
	if statusRank[status] <= statusRank[current] {
		return nil
	}
	// A message the recipient already received cannot retroactively fail;
	// a late failure callback after delivered/read is stale.
	if status == model.MessageStatusFailed && statusRank[current] >= statusRank[model.MessageStatusDelivered] {
		return nil
	}

	updates := map[string]interface{}{
		"status": string(status),
	}
	switch status {
	case model.MessageStatusSent:
		updates["sent_at"] = at
	case model.MessageStatusDelivered:
		updates["delivered_at"] = at
	case model.MessageStatusRead:
		updates["read_at"] = at
	case model.MessageStatusFailed:
		if errorMessage != "" {
			updates["error_message"] = errorMessage
		}
	}

	return r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateStatusByProviderID serves provider webhooks, which only know the
// WhatsApp message id.
func (r *MessageRepository) UpdateStatusByProviderID(ctx context.Context, providerMessageID string, status model.MessageStatus, at time.Time, errorMessage string) error {
	var entity MessageEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("whatsapp_message_id = ?", providerMessageID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	return r.UpdateStatus(ctx, entity.ID, status, at, errorMessage)
}

func (r *MessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{})

	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.Type != nil {
		q = q.Where("message_type = ?", string(*f.Type))
	}
	if f.Recipient != nil && *f.Recipient != "" {
		q = q.Where("recipient_phone = ?", *f.Recipient)
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

	var entities []*MessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageModels(entities), total, nil
}
