package model

import "time"

// PaymentLog is an append-only audit record of every gateway confirmation the
// service handled, successful or not. It never participates in balance math.
type PaymentLog struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	OrderID    string `json:"order_id"`
	PaymentID  string `json:"payment_id,omitempty"`
	Event      string `json:"event"` // payment.verified | payment.failed

	Total    int64 `json:"total"`
	Subtotal int64 `json:"subtotal"`
	CGST     int64 `json:"cgst"`
	SGST     int64 `json:"sgst"`
	Credited int64 `json:"credited"`

	// Balance after the confirmation was applied (unchanged on failure).
	NewBalance int64 `json:"new_balance"`

	InvoiceNumber string    `json:"invoice_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (PaymentLog) TableName() string { return "payment_logs" }
