package model

import "time"

// Invoice is derived from a completed top-up credit and immutable once
// generated. Customer billing fields are a snapshot taken at generation time.
type Invoice struct {
	ID            int64  `json:"id"`
	CustomerID    int64  `json:"customer_id"`
	TransactionID int64  `json:"transaction_id"`
	Number        string `json:"invoice_number"`

	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerCompany string `json:"customer_company,omitempty"`
	CustomerGST     string `json:"customer_gst,omitempty"`
	CustomerAddress string `json:"customer_address,omitempty"`

	// All amounts in paise. Total is what the customer paid; Credited is
	// the net wallet credit (== Subtotal).
	Subtotal int64 `json:"subtotal"`
	CGST     int64 `json:"cgst"`
	SGST     int64 `json:"sgst"`
	Total    int64 `json:"total"`
	Credited int64 `json:"credited"`

	PaymentID string    `json:"payment_id,omitempty"`
	PaidAt    time.Time `json:"paid_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (Invoice) TableName() string { return "invoices" }
