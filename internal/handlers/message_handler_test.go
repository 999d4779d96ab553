package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/services"
	xhttp "github.com/tezzaro/billing-gateway/pkg/http"
	"github.com/valyala/fasthttp"
)

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Create(ctx context.Context, p model.MessageCreateRequest) (*model.Message, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageService) Import(ctx context.Context, p model.MessageImportRequest) (*model.Message, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageService) UpdateDeliveryStatus(ctx context.Context, providerMessageID string, status model.MessageStatus, at time.Time, errorMessage string) error {
	args := m.Called(ctx, providerMessageID, status, at, errorMessage)
	return args.Error(0)
}

func (m *MockMessageService) Get(ctx context.Context, id int64) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageService) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestMessageHandler_CreateMessage(t *testing.T) {
	t.Run("successful message creation", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := createMessageRequest{
			CustomerID:     1,
			RecipientPhone: "+919876543210",
			MessageType:    "template",
			TemplateName:   "order_update",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		expectedMsg := &model.Message{
			ID:         123,
			CustomerID: 1,
			Type:       model.MessageTypeTemplate,
			Status:     model.MessageStatusPending,
			Cost:       200,
		}

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.MessageCreateRequest) bool {
			return p.CustomerID == 1 && p.Type == model.MessageTypeTemplate && p.TemplateName == "order_update"
		})).Return(expectedMsg, nil)

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.CreateMessage(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.Message
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, int64(123), response.ID)
		assert.Equal(t, int64(200), response.Cost)

		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		ctx := setupTestContext("POST", "/messages", []byte("invalid json"))
		handler.CreateMessage(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Contains(t, response["error"], "invalid JSON")
	})

	t.Run("insufficient balance maps to 402", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := createMessageRequest{
			CustomerID:     1,
			RecipientPhone: "+919876543210",
			MessageType:    "session",
			Content:        "hello",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrInsufficientBalance)

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.CreateMessage(ctx)

		assert.Equal(t, 402, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("inactive account maps to 403", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := createMessageRequest{
			CustomerID:     1,
			RecipientPhone: "+919876543210",
			MessageType:    "session",
			Content:        "hello",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrInactiveCustomer)

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.CreateMessage(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
	})
}

func TestMessageHandler_ImportMessage(t *testing.T) {
	t.Run("successful import", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := importMessageRequest{
			CustomerID:        1,
			WhatsAppMessageID: "wamid.abc",
			RecipientPhone:    "+919876543210",
			MessageType:       "session",
			DeductBalance:     true,
		}
		bodyBytes, _ := json.Marshal(reqBody)

		svc.On("Import", mock.Anything, mock.MatchedBy(func(p model.MessageImportRequest) bool {
			return p.ProviderMessageID == "wamid.abc" && p.DeductBalance
		})).Return(&model.Message{ID: 5, ProviderMessageID: "wamid.abc"}, nil)

		ctx := setupTestContext("POST", "/messages/import", bodyBytes)
		handler.ImportMessage(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("duplicate maps to 409", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := importMessageRequest{
			CustomerID:        1,
			WhatsAppMessageID: "wamid.abc",
			RecipientPhone:    "+919876543210",
			MessageType:       "session",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		svc.On("Import", mock.Anything, mock.Anything).Return(nil, services.ErrDuplicateMessage)

		ctx := setupTestContext("POST", "/messages/import", bodyBytes)
		handler.ImportMessage(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})
}

func TestMessageHandler_DeliveryWebhook(t *testing.T) {
	t.Run("applies status callback", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := deliveryWebhookRequest{
			WhatsAppMessageID: "wamid.abc",
			Status:            "delivered",
			Timestamp:         "2026-08-30T10:00:00Z",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		svc.On("UpdateDeliveryStatus", mock.Anything, "wamid.abc", model.MessageStatusDelivered, mock.AnythingOfType("time.Time"), "").
			Return(nil)

		ctx := setupTestContext("POST", "/webhooks/whatsapp", bodyBytes)
		handler.DeliveryWebhook(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("unknown message maps to 404", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := deliveryWebhookRequest{
			WhatsAppMessageID: "wamid.unknown",
			Status:            "delivered",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		svc.On("UpdateDeliveryStatus", mock.Anything, "wamid.unknown", model.MessageStatusDelivered, mock.AnythingOfType("time.Time"), "").
			Return(services.ErrMessageNotFound)

		ctx := setupTestContext("POST", "/webhooks/whatsapp", bodyBytes)
		handler.DeliveryWebhook(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestMessageHandler_ListMessages(t *testing.T) {
	t.Run("successful list", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		expectedMessages := []*model.Message{
			{ID: 1, CustomerID: 1},
			{ID: 2, CustomerID: 1},
		}

		svc.On("List", mock.Anything, mock.AnythingOfType("model.MessageFilter")).
			Return(expectedMessages, int64(2), nil)

		ctx := setupTestContext("GET", "/messages?customer_id=1&limit=10&offset=0", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response listResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, int64(2), response.Total)
		assert.Len(t, response.Items, 2)

		svc.AssertExpectations(t)
	})

	t.Run("list with status filter and pagination", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.MessageFilter) bool {
			return f.Limit == 5 && f.Offset == 10 && len(f.Statuses) == 2
		})).Return([]*model.Message{}, int64(0), nil)

		ctx := setupTestContext("GET", "/messages?limit=5&offset=10&status=sent,delivered", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("List", mock.Anything, mock.Anything).
			Return(nil, int64(0), errors.New("database error"))

		ctx := setupTestContext("GET", "/messages", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestHelperFunctions(t *testing.T) {
	t.Run("readJSON", func(t *testing.T) {
		data := map[string]string{"key": "value"}
		bodyBytes, _ := json.Marshal(data)
		ctx := setupTestContext("POST", "/", bodyBytes)

		var result map[string]string
		err := readJSON(ctx, &result)
		require.NoError(t, err)
		assert.Equal(t, "value", result["key"])
	})

	t.Run("writeJSON", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		data := map[string]string{"message": "test"}

		writeJSON(ctx, 200, data)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "application/json")
	})

	t.Run("writeError", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		writeError(ctx, 404, "not found")

		assert.Equal(t, 404, ctx.Response.StatusCode())

		var result map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &result)
		require.NoError(t, err)
		assert.Equal(t, "not found", result["error"])
	})

	t.Run("actorFromRequest", func(t *testing.T) {
		ctx := setupTestContext("POST", "/", nil)
		ctx.Request.Header.Set("X-Actor-Id", "42")
		ctx.Request.Header.Set("X-Actor-Email", "ops@tezzaro.com")
		ctx.Request.Header.Set("X-Actor-Role", "admin")

		actor := actorFromRequest(ctx)
		assert.Equal(t, int64(42), actor.ID)
		assert.True(t, actor.IsAdmin())
	})

	t.Run("parseTime RFC3339", func(t *testing.T) {
		parsed, err := parseTime("2026-01-01T12:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, 2026, parsed.Year())
	})

	t.Run("parseTime date only", func(t *testing.T) {
		parsed, err := parseTime("2026-01-01")
		require.NoError(t, err)
		assert.Equal(t, 2026, parsed.Year())
		assert.Equal(t, time.Month(1), parsed.Month())
		assert.Equal(t, 1, parsed.Day())
	})

	t.Run("parseTime invalid", func(t *testing.T) {
		_, err := parseTime("invalid")
		assert.Error(t, err)
	})
}
