package model

import "time"

// Price is the current unit price for one message type, in paise. A single
// current row per type; changing it never touches already-recorded message
// costs.
type Price struct {
	ID          int64       `json:"id"`
	MessageType MessageType `json:"message_type"`
	Amount      int64       `json:"amount"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Price) TableName() string { return "pricing" }

// Default unit prices used to seed the pricing table.
const (
	DefaultTemplatePrice int64 = 200
	DefaultSessionPrice  int64 = 100
)
