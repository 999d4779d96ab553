package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/tezzaro/billing-gateway/internal/model"
	xhttp "github.com/tezzaro/billing-gateway/pkg/http"
)

type PricingService interface {
	GetPrice(ctx context.Context, messageType model.MessageType) (int64, error)
	SetPrice(ctx context.Context, actor model.Actor, messageType model.MessageType, amount int64) error
	List(ctx context.Context) ([]*model.Price, error)
}

type PricingHandler struct {
	svc PricingService
}

func RegisterPricingRoutes(e *router.Group, h *PricingHandler) {
	e.GET("/pricing", h.ListPrices)
	e.GET("/pricing/{type}", h.GetPrice)
	e.PUT("/pricing/{type}", h.SetPrice)
}

func NewPricingHandler(pricingService PricingService) *PricingHandler {
	return &PricingHandler{
		svc: pricingService,
	}
}

type setPriceRequest struct {
	Amount int64 `json:"amount"`
}

func (h *PricingHandler) ListPrices(ctx *xhttp.RequestCtx) {
	prices, err := h.svc.List(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, prices)
}

func (h *PricingHandler) GetPrice(ctx *xhttp.RequestCtx) {
	messageType, _ := ctx.UserValue("type").(string)

	amount, err := h.svc.GetPrice(ctx, model.MessageType(messageType))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]interface{}{"message_type": messageType, "amount": amount})
}

// SetPrice is admin-only. The new price applies to messages created after the
// change; already-recorded costs are untouched.
func (h *PricingHandler) SetPrice(ctx *xhttp.RequestCtx) {
	messageType, _ := ctx.UserValue("type").(string)

	var req setPriceRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	err := h.svc.SetPrice(ctx, actorFromRequest(ctx), model.MessageType(messageType), req.Amount)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]interface{}{"message_type": messageType, "amount": req.Amount})
}
