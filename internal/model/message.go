package model

import (
	"errors"
	"time"
)

type MessageType string

const (
	MessageTypeTemplate MessageType = "template"
	MessageTypeSession  MessageType = "session"
)

func (t MessageType) Valid() bool {
	return t == MessageTypeTemplate || t == MessageTypeSession
}

// MessageStatus is the delivery lifecycle state of a message.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

type Message struct {
	ID         int64 `json:"id"`
	CustomerID int64 `json:"customer_id"`

	RecipientPhone string `json:"recipient_phone"`
	RecipientName  string `json:"recipient_name,omitempty"`

	Type         MessageType `json:"message_type"`
	TemplateName string      `json:"template_name,omitempty"`
	Content      string      `json:"content,omitempty"`

	Status       MessageStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`

	// ProviderMessageID is the WhatsApp message id assigned by the provider.
	// It is the dedup key for imports and provider sync.
	ProviderMessageID string `json:"whatsapp_message_id,omitempty"`

	// Cost in paise, snapshotted from the pricing table at creation time.
	// Later price changes never alter it.
	Cost int64 `json:"cost"`

	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

func (Message) TableName() string { return "messages" }

// MessageCreateRequest is the input for sending a new message.
type MessageCreateRequest struct {
	CustomerID     int64
	RecipientPhone string
	RecipientName  string
	Type           MessageType
	TemplateName   string
	Content        string
}

func (p MessageCreateRequest) Validate() error {
	if p.CustomerID == 0 {
		return errors.New("customer_id is required")
	}
	if p.RecipientPhone == "" {
		return errors.New("recipient_phone is required")
	}
	if !p.Type.Valid() {
		return errors.New("message_type must be template or session")
	}
	if p.Type == MessageTypeTemplate && p.TemplateName == "" {
		return errors.New("template_name is required for template messages")
	}
	return nil
}

// MessageImportRequest is one line of a CSV/provider-sync import.
type MessageImportRequest struct {
	CustomerID        int64
	ProviderMessageID string
	RecipientPhone    string
	Type              MessageType
	Content           string
	Status            MessageStatus
	SentAt            *time.Time

	// DeductBalance controls whether the import bills the wallet. Imports
	// that deduct bypass the sufficiency check (admin backfill).
	DeductBalance bool
}

func (p MessageImportRequest) Validate() error {
	if p.CustomerID == 0 {
		return errors.New("customer_id is required")
	}
	if p.ProviderMessageID == "" {
		return errors.New("whatsapp_message_id is required")
	}
	if p.RecipientPhone == "" {
		return errors.New("recipient_phone is required")
	}
	if !p.Type.Valid() {
		return errors.New("message_type must be template or session")
	}
	return nil
}

// MessageFilter controls List queries.
type MessageFilter struct {
	CustomerID *int64
	Statuses   []MessageStatus
	Type       *MessageType
	Recipient  *string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	Desc       bool
}
