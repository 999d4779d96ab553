package repository

import (
	"time"

	"github.com/tezzaro/billing-gateway/internal/model"
)

type InvoiceEntity struct {
	ID            int64  `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID    int64  `db:"customer_id"    gorm:"column:customer_id;not null;index"`
	TransactionID int64  `db:"transaction_id" gorm:"column:transaction_id;not null;unique"`
	Number        string `db:"invoice_number" gorm:"column:invoice_number;not null;unique"`

	CustomerName    string `db:"customer_name"    gorm:"column:customer_name;not null"`
	CustomerEmail   string `db:"customer_email"   gorm:"column:customer_email;not null"`
	CustomerCompany string `db:"customer_company" gorm:"column:customer_company"`
	CustomerGST     string `db:"customer_gst"     gorm:"column:customer_gst"`
	CustomerAddress string `db:"customer_address" gorm:"column:customer_address"`

	Subtotal int64 `db:"subtotal" gorm:"column:subtotal;not null"`
	CGST     int64 `db:"cgst"     gorm:"column:cgst;not null"`
	SGST     int64 `db:"sgst"     gorm:"column:sgst;not null"`
	Total    int64 `db:"total"    gorm:"column:total;not null"`
	Credited int64 `db:"credited" gorm:"column:credited;not null"`

	PaymentID string    `db:"payment_id" gorm:"column:payment_id"`
	PaidAt    time.Time `db:"paid_at"    gorm:"column:paid_at"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (InvoiceEntity) TableName() string {
	return "invoices"
}

func toInvoiceEntity(m *model.Invoice) *InvoiceEntity {
	if m == nil {
		return nil
	}
	return &InvoiceEntity{
		ID:              m.ID,
		CustomerID:      m.CustomerID,
		TransactionID:   m.TransactionID,
		Number:          m.Number,
		CustomerName:    m.CustomerName,
		CustomerEmail:   m.CustomerEmail,
		CustomerCompany: m.CustomerCompany,
		CustomerGST:     m.CustomerGST,
		CustomerAddress: m.CustomerAddress,
		Subtotal:        m.Subtotal,
		CGST:            m.CGST,
		SGST:            m.SGST,
		Total:           m.Total,
		Credited:        m.Credited,
		PaymentID:       m.PaymentID,
		PaidAt:          m.PaidAt,
		CreatedAt:       m.CreatedAt,
	}
}

func toInvoiceModel(e *InvoiceEntity) *model.Invoice {
	if e == nil {
		return nil
	}
	return &model.Invoice{
		ID:              e.ID,
		CustomerID:      e.CustomerID,
		TransactionID:   e.TransactionID,
		Number:          e.Number,
		CustomerName:    e.CustomerName,
		CustomerEmail:   e.CustomerEmail,
		CustomerCompany: e.CustomerCompany,
		CustomerGST:     e.CustomerGST,
		CustomerAddress: e.CustomerAddress,
		Subtotal:        e.Subtotal,
		CGST:            e.CGST,
		SGST:            e.SGST,
		Total:           e.Total,
		Credited:        e.Credited,
		PaymentID:       e.PaymentID,
		PaidAt:          e.PaidAt,
		CreatedAt:       e.CreatedAt,
	}
}

func toInvoiceModels(entities []*InvoiceEntity) []*model.Invoice {
	if entities == nil {
		return nil
	}
	models := make([]*model.Invoice, len(entities))
	for i, e := range entities {
		models[i] = toInvoiceModel(e)
	}
	return models
}
