package repository

import (
	"time"

	"github.com/tezzaro/billing-gateway/internal/model"
)

type PaymentLogEntity struct {
	ID         int64  `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID int64  `db:"customer_id" gorm:"column:customer_id;not null;index"`
	OrderID    string `db:"order_id"    gorm:"column:order_id;index"`
	PaymentID  string `db:"payment_id"  gorm:"column:payment_id;index"`
	Event      string `db:"event"       gorm:"column:event;not null"`

	Total    int64 `db:"total"    gorm:"column:total"`
	Subtotal int64 `db:"subtotal" gorm:"column:subtotal"`
	CGST     int64 `db:"cgst"     gorm:"column:cgst"`
	SGST     int64 `db:"sgst"     gorm:"column:sgst"`
	Credited int64 `db:"credited" gorm:"column:credited"`

	NewBalance    int64  `db:"new_balance"    gorm:"column:new_balance"`
	InvoiceNumber string `db:"invoice_number" gorm:"column:invoice_number"`

	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (PaymentLogEntity) TableName() string {
	return "payment_logs"
}

func toPaymentLogEntity(m *model.PaymentLog) *PaymentLogEntity {
	if m == nil {
		return nil
	}
	return &PaymentLogEntity{
		ID:            m.ID,
		CustomerID:    m.CustomerID,
		OrderID:       m.OrderID,
		PaymentID:     m.PaymentID,
		Event:         m.Event,
		Total:         m.Total,
		Subtotal:      m.Subtotal,
		CGST:          m.CGST,
		SGST:          m.SGST,
		Credited:      m.Credited,
		NewBalance:    m.NewBalance,
		InvoiceNumber: m.InvoiceNumber,
		CreatedAt:     m.CreatedAt,
	}
}

func toPaymentLogModel(e *PaymentLogEntity) *model.PaymentLog {
	if e == nil {
		return nil
	}
	return &model.PaymentLog{
		ID:            e.ID,
		CustomerID:    e.CustomerID,
		OrderID:       e.OrderID,
		PaymentID:     e.PaymentID,
		Event:         e.Event,
		Total:         e.Total,
		Subtotal:      e.Subtotal,
		CGST:          e.CGST,
		SGST:          e.SGST,
		Credited:      e.Credited,
		NewBalance:    e.NewBalance,
		InvoiceNumber: e.InvoiceNumber,
		CreatedAt:     e.CreatedAt,
	}
}
