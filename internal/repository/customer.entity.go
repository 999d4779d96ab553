package repository

import (
	"time"

	"github.com/tezzaro/billing-gateway/internal/model"
)

type CustomerEntity struct {
	ID          int64  `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	Email       string `db:"email"        gorm:"column:email;not null;unique"`
	Name        string `db:"name"         gorm:"column:name;not null"`
	Phone       string `db:"phone"        gorm:"column:phone"`
	CompanyName string `db:"company_name" gorm:"column:company_name"`
	Role        string `db:"role"         gorm:"column:role;not null;default:customer"`

	GSTNumber      string `db:"gst_number"      gorm:"column:gst_number"`
	BillingAddress string `db:"billing_address" gorm:"column:billing_address"`
	City           string `db:"city"            gorm:"column:city"`
	State          string `db:"state"           gorm:"column:state"`
	Pincode        string `db:"pincode"         gorm:"column:pincode"`

	Balance  int64 `db:"balance"   gorm:"column:balance;not null;default:0"`
	IsActive bool  `db:"is_active" gorm:"column:is_active;not null;default:true"`

	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerEntity(m *model.Customer) *CustomerEntity {
	if m == nil {
		return nil
	}
	return &CustomerEntity{
		ID:             m.ID,
		Email:          m.Email,
		Name:           m.Name,
		Phone:          m.Phone,
		CompanyName:    m.CompanyName,
		Role:           string(m.Role),
		GSTNumber:      m.GSTNumber,
		BillingAddress: m.BillingAddress,
		City:           m.City,
		State:          m.State,
		Pincode:        m.Pincode,
		Balance:        m.Balance,
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:             e.ID,
		Email:          e.Email,
		Name:           e.Name,
		Phone:          e.Phone,
		CompanyName:    e.CompanyName,
		Role:           model.CustomerRole(e.Role),
		GSTNumber:      e.GSTNumber,
		BillingAddress: e.BillingAddress,
		City:           e.City,
		State:          e.State,
		Pincode:        e.Pincode,
		Balance:        e.Balance,
		IsActive:       e.IsActive,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toCustomerModels(entities []*CustomerEntity) []*model.Customer {
	if entities == nil {
		return nil
	}
	models := make([]*model.Customer, len(entities))
	for i, e := range entities {
		models[i] = toCustomerModel(e)
	}
	return models
}
