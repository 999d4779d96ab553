package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/tezzaro/billing-gateway/internal/gst"
	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/services"
	xhttp "github.com/tezzaro/billing-gateway/pkg/http"
)

type WalletService interface {
	Quote(grossAmount int64) (gst.Breakdown, error)
	InitiateTopup(ctx context.Context, customerID int64, grossAmount int64) (*services.TopupIntent, error)
	ConfirmTopup(ctx context.Context, req services.ConfirmTopupRequest) (*services.TopupReceipt, error)
	Balance(ctx context.Context, customerID int64) (int64, error)
	Statement(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	Reconcile(ctx context.Context, customerID int64) (*services.Reconciliation, error)
}

type WalletHandler struct {
	svc WalletService
}

func RegisterWalletRoutes(e *router.Group, h *WalletHandler) {
	e.GET("/wallet/quote", h.Quote)
	e.POST("/wallet/topups", h.InitiateTopup)
	e.POST("/wallet/topups/confirm", h.ConfirmTopup)
	e.GET("/wallet/{customer_id}/balance", h.Balance)
	e.GET("/wallet/{customer_id}/transactions", h.Statement)
}

func NewWalletHandler(walletService WalletService) *WalletHandler {
	return &WalletHandler{
		svc: walletService,
	}
}

type initiateTopupRequest struct {
	CustomerID int64 `json:"customer_id"`
	Amount     int64 `json:"amount"`
}

type confirmTopupRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type statementResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

// Quote previews the GST split for a gross amount without creating anything.
func (h *WalletHandler) Quote(ctx *xhttp.RequestCtx) {
	amount, err := strconv.ParseInt(query(ctx, "amount"), 10, 64)
	if err != nil {
		writeError(ctx, 400, "amount must be an integer number of paise")
		return
	}

	breakdown, err := h.svc.Quote(amount)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, breakdown)
}

func (h *WalletHandler) InitiateTopup(ctx *xhttp.RequestCtx) {
	var req initiateTopupRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	intent, err := h.svc.InitiateTopup(ctx, req.CustomerID, req.Amount)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, intent)
}

func (h *WalletHandler) ConfirmTopup(ctx *xhttp.RequestCtx) {
	var req confirmTopupRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	receipt, err := h.svc.ConfirmTopup(ctx, services.ConfirmTopupRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, receipt)
}

func (h *WalletHandler) Balance(ctx *xhttp.RequestCtx) {
	customerID, err := pathInt64(ctx, "customer_id")
	if err != nil {
		writeError(ctx, 400, "invalid customer id")
		return
	}

	balance, err := h.svc.Balance(ctx, customerID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]int64{"customer_id": customerID, "balance": balance})
}

func (h *WalletHandler) Statement(ctx *xhttp.RequestCtx) {
	customerID, err := pathInt64(ctx, "customer_id")
	if err != nil {
		writeError(ctx, 400, "invalid customer id")
		return
	}

	f := model.TransactionFilter{CustomerID: &customerID}

	if v := query(ctx, "type"); v != "" {
		tt := model.TransactionType(v)
		f.Type = &tt
	}
	if v := query(ctx, "status"); v != "" {
		ts := model.TransactionStatus(v)
		f.Status = &ts
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.Statement(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, statementResponse{Items: items, Total: total})
}
