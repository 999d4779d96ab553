package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/tezzaro/billing-gateway/internal/model"
	xhttp "github.com/tezzaro/billing-gateway/pkg/http"
)

type InvoiceService interface {
	Get(ctx context.Context, id int64) (*model.Invoice, error)
	GetByTransaction(ctx context.Context, transactionID int64) (*model.Invoice, error)
	List(ctx context.Context, customerID *int64, limit, offset int) ([]*model.Invoice, int64, error)
}

type InvoiceHandler struct {
	svc InvoiceService
}

func RegisterInvoiceRoutes(e *router.Group, h *InvoiceHandler) {
	e.GET("/invoices", h.ListInvoices)
	e.GET("/invoices/{id}", h.GetInvoice)
	e.GET("/transactions/{id}/invoice", h.GetInvoiceByTransaction)
}

func NewInvoiceHandler(invoiceService InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		svc: invoiceService,
	}
}

type invoiceListResponse struct {
	Items []*model.Invoice `json:"items"`
	Total int64            `json:"total"`
}

func (h *InvoiceHandler) GetInvoice(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid invoice id")
		return
	}
	inv, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, inv)
}

func (h *InvoiceHandler) GetInvoiceByTransaction(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid transaction id")
		return
	}
	inv, err := h.svc.GetByTransaction(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, inv)
}

func (h *InvoiceHandler) ListInvoices(ctx *xhttp.RequestCtx) {
	var customerID *int64
	if v := query(ctx, "customer_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			customerID = &id
		}
	}

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

	items, total, err := h.svc.List(ctx, customerID, limit, offset)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, invoiceListResponse{Items: items, Total: total})
}
