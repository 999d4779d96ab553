package repository

// InvoiceSequenceEntity is the per-prefix, per-year invoice number counter.
// Issuing a number locks this row FOR UPDATE, so concurrent top-up
// confirmations serialize here instead of racing a count of existing
// invoices.
type InvoiceSequenceEntity struct {
	Prefix string `db:"prefix" gorm:"column:prefix;primaryKey"`
	Year   int    `db:"year"   gorm:"column:year;primaryKey"`
	Value  int64  `db:"value"  gorm:"column:value;not null;default:0"`
}

func (InvoiceSequenceEntity) TableName() string {
	return "invoice_sequences"
}
