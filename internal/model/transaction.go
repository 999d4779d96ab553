package model

import "time"

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is one ledger entry. Amount is always positive; direction is
// carried by Type. Only completed transactions affect the balance.
type Transaction struct {
	ID         int64             `json:"id"`
	CustomerID int64             `json:"customer_id"`
	Type       TransactionType   `json:"type"`
	Status     TransactionStatus `json:"status"`

	// Amount is the ledger-effective amount in paise. For top-ups this is
	// the net credit after GST is divided out of the gateway charge.
	Amount int64 `json:"amount"`

	// GrossAmount is the amount charged by the payment gateway including
	// GST. Zero for debits and admin adjustments.
	GrossAmount int64 `json:"gross_amount,omitempty"`

	// Payment gateway references for top-up credits.
	OrderID   string `json:"order_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`

	Description string `json:"description,omitempty"`

	MessageID *int64 `json:"message_id,omitempty"`
	InvoiceID *int64 `json:"invoice_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) Terminal() bool {
	return t.Status == TransactionCompleted || t.Status == TransactionFailed
}

// TransactionFilter controls ledger listings.
type TransactionFilter struct {
	CustomerID *int64
	Type       *TransactionType
	Status     *TransactionStatus
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	Desc       bool
}
