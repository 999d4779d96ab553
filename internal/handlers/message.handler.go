package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/services"
	xhttp "github.com/tezzaro/billing-gateway/pkg/http"
)

type MessageService interface {
	Create(ctx context.Context, p model.MessageCreateRequest) (*model.Message, error)
	Import(ctx context.Context, p model.MessageImportRequest) (*model.Message, error)
	UpdateDeliveryStatus(ctx context.Context, providerMessageID string, status model.MessageStatus, at time.Time, errorMessage string) error
	Get(ctx context.Context, id int64) (*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

type MessageHandler struct {
	svc MessageService
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler) {
	e.POST("/messages", h.CreateMessage)
	e.POST("/messages/import", h.ImportMessage)
	e.GET("/messages", h.ListMessages)
	e.GET("/messages/{id}", h.GetMessage)
	e.POST("/webhooks/whatsapp", h.DeliveryWebhook)
}

func NewMessageHandler(messageService MessageService) *MessageHandler {
	return &MessageHandler{
		svc: messageService,
	}
}

type createMessageRequest struct {
	CustomerID     int64  `json:"customer_id"`
	RecipientPhone string `json:"recipient_phone"`
	RecipientName  string `json:"recipient_name"`
	MessageType    string `json:"message_type"`
	TemplateName   string `json:"template_name"`
	Content        string `json:"content"`
}

type importMessageRequest struct {
	CustomerID        int64  `json:"customer_id"`
	WhatsAppMessageID string `json:"whatsapp_message_id"`
	RecipientPhone    string `json:"recipient_phone"`
	MessageType       string `json:"message_type"`
	Content           string `json:"content"`
	Status            string `json:"status"`
	SentAt            string `json:"sent_at"`
	DeductBalance     bool   `json:"deduct_balance"`
}

type deliveryWebhookRequest struct {
	WhatsAppMessageID string `json:"whatsapp_message_id"`
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
	ErrorMessage      string `json:"error_message"`
}

type listResponse struct {
	Items []*model.Message `json:"items"`
	Total int64            `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *MessageHandler) CreateMessage(ctx *xhttp.RequestCtx) {
	var req createMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	p := model.MessageCreateRequest{
		CustomerID:     req.CustomerID,
		RecipientPhone: req.RecipientPhone,
		RecipientName:  req.RecipientName,
		Type:           model.MessageType(req.MessageType),
		TemplateName:   req.TemplateName,
		Content:        req.Content,
	}
	msg, err := h.svc.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, msg)
}

func (h *MessageHandler) ImportMessage(ctx *xhttp.RequestCtx) {
	var req importMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.MessageImportRequest{
		CustomerID:        req.CustomerID,
		ProviderMessageID: req.WhatsAppMessageID,
		RecipientPhone:    req.RecipientPhone,
		Type:              model.MessageType(req.MessageType),
		Content:           req.Content,
		Status:            model.MessageStatus(req.Status),
		DeductBalance:     req.DeductBalance,
	}
	if req.SentAt != "" {
		if t, err := parseTime(req.SentAt); err == nil {
			p.SentAt = &t
		}
	}

	msg, err := h.svc.Import(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, msg)
}

func (h *MessageHandler) GetMessage(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid message id")
		return
	}
	msg, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, msg)
}

// DeliveryWebhook receives provider status callbacks. Always replies 200 for
// known messages so the provider stops retrying; replays are no-ops.
func (h *MessageHandler) DeliveryWebhook(ctx *xhttp.RequestCtx) {
	var req deliveryWebhookRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	at := time.Now()
	if req.Timestamp != "" {
		if t, err := parseTime(req.Timestamp); err == nil {
			at = t
		}
	}

	err := h.svc.UpdateDeliveryStatus(ctx, req.WhatsAppMessageID, model.MessageStatus(req.Status), at, req.ErrorMessage)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "ok"})
}

func (h *MessageHandler) ListMessages(ctx *xhttp.RequestCtx) {
	var f model.MessageFilter

	if v := query(ctx, "customer_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CustomerID = &id
		}
	}
	if v := query(ctx, "recipient"); v != "" {
		f.Recipient = &v
	}
	if v := query(ctx, "type"); v != "" {
		mt := model.MessageType(v)
		f.Type = &mt
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.MessageStatus(parts[i]))
			}
		}
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

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, listResponse{Items: items, Total: total})
}

/* --------------------------------- Helpers ----------------------------------- */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidSignature):
		writeError(ctx, 401, err.Error())
	case errors.Is(err, services.ErrInsufficientBalance):
		writeError(ctx, 402, err.Error())
	case errors.Is(err, services.ErrInactiveCustomer),
		errors.Is(err, services.ErrPermissionDenied):
		writeError(ctx, 403, err.Error())
	case errors.Is(err, services.ErrCustomerNotFound),
		errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, services.ErrTopupNotFound),
		errors.Is(err, services.ErrInvoiceNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrDuplicateMessage),
		errors.Is(err, services.ErrDuplicateEmail),
		errors.Is(err, services.ErrTopupAlreadyFailed):
		writeError(ctx, 409, err.Error())
	default:
		writeError(ctx, 400, err.Error())
	}
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

// actorFromRequest reads the caller identity injected by the auth proxy.
func actorFromRequest(ctx *xhttp.RequestCtx) model.Actor {
	id, _ := strconv.ParseInt(string(ctx.Request.Header.Peek("X-Actor-Id")), 10, 64)
	return model.Actor{
		ID:    id,
		Email: string(ctx.Request.Header.Peek("X-Actor-Email")),
		Role:  model.CustomerRole(string(ctx.Request.Header.Peek("X-Actor-Role"))),
	}
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
