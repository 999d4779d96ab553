package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/services"
	xhttp "github.com/tezzaro/billing-gateway/pkg/http"
)

type CustomerService interface {
	Create(ctx context.Context, actor model.Actor, c *model.Customer) (*model.Customer, error)
	Get(ctx context.Context, id int64) (*model.Customer, error)
	UpdateProfile(ctx context.Context, actor model.Actor, c *model.Customer) (*model.Customer, error)
	SetActive(ctx context.Context, actor model.Actor, customerID int64, active bool) error
	List(ctx context.Context, actor model.Actor, limit, offset int) ([]*model.Customer, int64, error)
}

type AdjustmentService interface {
	AdjustBalance(ctx context.Context, actor model.Actor, customerID int64, amount int64, reason string) (*model.Transaction, int64, error)
	Reconcile(ctx context.Context, customerID int64) (*services.Reconciliation, error)
}

// AdminHandler bundles the operator-facing endpoints: account management,
// manual balance adjustments and ledger reconciliation.
type AdminHandler struct {
	customers   CustomerService
	adjustments AdjustmentService
}

func RegisterAdminRoutes(e *router.Group, h *AdminHandler) {
	e.POST("/customers", h.CreateCustomer)
	e.GET("/customers", h.ListCustomers)
	e.GET("/customers/{id}", h.GetCustomer)
	e.PUT("/customers/{id}", h.UpdateCustomer)
	e.PUT("/customers/{id}/active", h.SetCustomerActive)
	e.POST("/customers/{id}/adjustments", h.AdjustBalance)
	e.GET("/customers/{id}/reconcile", h.Reconcile)
}

func NewAdminHandler(customers CustomerService, adjustments AdjustmentService) *AdminHandler {
	return &AdminHandler{
		customers:   customers,
		adjustments: adjustments,
	}
}

type createCustomerRequest struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	CompanyName    string `json:"company_name"`
	GSTNumber      string `json:"gst_number"`
	BillingAddress string `json:"billing_address"`
	City           string `json:"city"`
	State          string `json:"state"`
	Pincode        string `json:"pincode"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

type adjustBalanceRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type customerListResponse struct {
	Items []*model.Customer `json:"items"`
	Total int64             `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *AdminHandler) CreateCustomer(ctx *xhttp.RequestCtx) {
	var req createCustomerRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	customer, err := h.customers.Create(ctx, actorFromRequest(ctx), &model.Customer{
		Email:          req.Email,
		Name:           req.Name,
		Phone:          req.Phone,
		CompanyName:    req.CompanyName,
		GSTNumber:      req.GSTNumber,
		BillingAddress: req.BillingAddress,
		City:           req.City,
		State:          req.State,
		Pincode:        req.Pincode,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, customer)
}

func (h *AdminHandler) GetCustomer(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid customer id")
		return
	}
	customer, err := h.customers.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, customer)
}

func (h *AdminHandler) UpdateCustomer(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid customer id")
		return
	}

	var req createCustomerRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	customer, err := h.customers.UpdateProfile(ctx, actorFromRequest(ctx), &model.Customer{
		ID:             id,
		Name:           req.Name,
		Phone:          req.Phone,
		CompanyName:    req.CompanyName,
		GSTNumber:      req.GSTNumber,
		BillingAddress: req.BillingAddress,
		City:           req.City,
		State:          req.State,
		Pincode:        req.Pincode,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, customer)
}

func (h *AdminHandler) SetCustomerActive(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid customer id")
		return
	}

	var req setActiveRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	if err := h.customers.SetActive(ctx, actorFromRequest(ctx), id, req.Active); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]interface{}{"customer_id": id, "active": req.Active})
}

func (h *AdminHandler) ListCustomers(ctx *xhttp.RequestCtx) {
	limit := 50
	offset := 0
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			offset = n
		}
	}

	items, total, err := h.customers.List(ctx, actorFromRequest(ctx), limit, offset)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, customerListResponse{Items: items, Total: total})
}

// AdjustBalance applies a signed manual adjustment: positive credits, negative
// debits. Admin debits may drive the balance negative.
func (h *AdminHandler) AdjustBalance(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid customer id")
		return
	}

	var req adjustBalanceRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	txn, balance, err := h.adjustments.AdjustBalance(ctx, actorFromRequest(ctx), id, req.Amount, req.Reason)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]interface{}{"transaction": txn, "balance": balance})
}

func (h *AdminHandler) Reconcile(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid customer id")
		return
	}

	rec, err := h.adjustments.Reconcile(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, rec)
}
