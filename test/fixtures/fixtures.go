package fixtures

import (
	"time"

	"github.com/tezzaro/billing-gateway/internal/model"
)

// Customer fixtures. Balances are in paise.

func ActiveCustomer(id int64, balance int64) *model.Customer {
	return &model.Customer{
		ID:             id,
		Email:          "ops@acmetraders.example",
		Name:           "Acme Traders",
		Phone:          "+919876543210",
		CompanyName:    "Acme Traders Pvt Ltd",
		Role:           model.RoleCustomer,
		GSTNumber:      "29ABCDE1234F1Z5",
		BillingAddress: "14 MG Road",
		City:           "Bengaluru",
		State:          "Karnataka",
		Pincode:        "560001",
		Balance:        balance,
		IsActive:       true,
	}
}

func InactiveCustomer(id int64, balance int64) *model.Customer {
	c := ActiveCustomer(id, balance)
	c.Email = "suspended@oldshop.example"
	c.Name = "Old Shop"
	c.IsActive = false
	return c
}

func ZeroBalanceCustomer(id int64) *model.Customer {
	c := ActiveCustomer(id, 0)
	c.Email = "new@freshstore.example"
	c.Name = "Fresh Store"
	return c
}

func AdminActor(id int64) model.Actor {
	return model.Actor{
		ID:    id,
		Email: "admin@tezzaro.example",
		Role:  model.RoleAdmin,
	}
}

func CustomerActor(id int64) model.Actor {
	return model.Actor{
		ID:    id,
		Email: "ops@acmetraders.example",
		Role:  model.RoleCustomer,
	}
}

// Message fixtures.

func SessionMessageRequest(customerID int64) model.MessageCreateRequest {
	return model.MessageCreateRequest{
		CustomerID:     customerID,
		RecipientPhone: "+919812345678",
		RecipientName:  "Ravi Kumar",
		Type:           model.MessageTypeSession,
		Content:        "Your order #4521 has shipped.",
	}
}

func TemplateMessageRequest(customerID int64) model.MessageCreateRequest {
	return model.MessageCreateRequest{
		CustomerID:     customerID,
		RecipientPhone: "+919812345678",
		RecipientName:  "Ravi Kumar",
		Type:           model.MessageTypeTemplate,
		TemplateName:   "order_shipped_v2",
		Content:        "Your order #4521 has shipped.",
	}
}

func ImportRequest(customerID int64, providerMessageID string, deduct bool) model.MessageImportRequest {
	sentAt := time.Date(2025, 11, 3, 10, 30, 0, 0, time.UTC)
	return model.MessageImportRequest{
		CustomerID:        customerID,
		ProviderMessageID: providerMessageID,
		RecipientPhone:    "+919812345678",
		Type:              model.MessageTypeSession,
		Content:           "Backfilled conversation message",
		Status:            model.MessageStatusSent,
		SentAt:            &sentAt,
		DeductBalance:     deduct,
	}
}

// Filter builders.

func MessagesForCustomer(customerID int64) model.MessageFilter {
	return model.MessageFilter{
		CustomerID: &customerID,
		Limit:      100,
		Desc:       true,
	}
}

func StatementForCustomer(customerID int64) model.TransactionFilter {
	return model.TransactionFilter{
		CustomerID: &customerID,
		Limit:      100,
		Desc:       true,
	}
}
