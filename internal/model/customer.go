package model

import "time"

type CustomerRole string

const (
	RoleCustomer CustomerRole = "customer"
	RoleAdmin    CustomerRole = "admin"
)

type Customer struct {
	ID          int64        `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	Phone       string       `json:"phone"`
	CompanyName string       `json:"company_name"`
	Role        CustomerRole `json:"role"`

	// Billing details, attached to invoices as a snapshot. They never
	// participate in ledger math.
	GSTNumber      string `json:"gst_number"`
	BillingAddress string `json:"billing_address"`
	City           string `json:"city"`
	State          string `json:"state"`
	Pincode        string `json:"pincode"`

	// Balance is a cached projection of the ledger in paise. It is only
	// written inside the same DB transaction as the ledger row it reflects.
	Balance int64 `json:"balance"`

	// Inactive customers may not debit but may still be credited.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

// Actor identifies who is performing a service call, for capability checks
// and audit trails. Admin impersonation passes the acted-upon customer id
// separately; the actor is always the real caller.
type Actor struct {
	ID    int64
	Email string
	Role  CustomerRole
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
