package repository

import (
	"time"

	"github.com/tezzaro/billing-gateway/internal/model"
)

type MessageEntity struct {
	ID         int64 `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID int64 `db:"customer_id" gorm:"column:customer_id;not null;index;uniqueIndex:idx_customer_provider_msg"`

	RecipientPhone string `db:"recipient_phone" gorm:"column:recipient_phone;not null"`
	RecipientName  string `db:"recipient_name"  gorm:"column:recipient_name"`

	Type         string `db:"message_type"  gorm:"column:message_type;not null"`
	TemplateName string `db:"template_name" gorm:"column:template_name"`
	Content      string `db:"content"       gorm:"column:content"`

	Status       string `db:"status"        gorm:"column:status;not null;default:pending;index"`
	ErrorMessage string `db:"error_message" gorm:"column:error_message"`

	// Unique per customer; NULLs are exempt so unsent local messages don't
	// collide before the provider assigns an id.
	ProviderMessageID *string `db:"whatsapp_message_id" gorm:"column:whatsapp_message_id;uniqueIndex:idx_customer_provider_msg"`

	Cost int64 `db:"cost" gorm:"column:cost;not null"`

	CreatedAt   time.Time  `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	SentAt      *time.Time `db:"sent_at"      gorm:"column:sent_at"`
	DeliveredAt *time.Time `db:"delivered_at" gorm:"column:delivered_at"`
	ReadAt      *time.Time `db:"read_at"      gorm:"column:read_at"`
}

func (MessageEntity) TableName() string {
	return "messages"
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	e := &MessageEntity{
		ID:             m.ID,
		CustomerID:     m.CustomerID,
		RecipientPhone: m.RecipientPhone,
		RecipientName:  m.RecipientName,
		Type:           string(m.Type),
		TemplateName:   m.TemplateName,
		Content:        m.Content,
		Status:         string(m.Status),
		ErrorMessage:   m.ErrorMessage,
		Cost:           m.Cost,
		CreatedAt:      m.CreatedAt,
		SentAt:         m.SentAt,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
	}
	if m.ProviderMessageID != "" {
		pid := m.ProviderMessageID
		e.ProviderMessageID = &pid
	}
	return e
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	m := &model.Message{
		ID:             e.ID,
		CustomerID:     e.CustomerID,
		RecipientPhone: e.RecipientPhone,
		RecipientName:  e.RecipientName,
		Type:           model.MessageType(e.Type),
		TemplateName:   e.TemplateName,
		Content:        e.Content,
		Status:         model.MessageStatus(e.Status),
		ErrorMessage:   e.ErrorMessage,
		Cost:           e.Cost,
		CreatedAt:      e.CreatedAt,
		SentAt:         e.SentAt,
		DeliveredAt:    e.DeliveredAt,
		ReadAt:         e.ReadAt,
	}
	if e.ProviderMessageID != nil {
		m.ProviderMessageID = *e.ProviderMessageID
	}
	return m
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}
