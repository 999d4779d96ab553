package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tezzaro/billing-gateway/internal/payment"
)

// DispatchStatus represents the provider-side state of a message
type DispatchStatus string

const (
	StatusAccepted  DispatchStatus = "ACCEPTED"
	StatusDelivered DispatchStatus = "DELIVERED"
	StatusRead      DispatchStatus = "READ"
	StatusFailed    DispatchStatus = "FAILED"
)

// SendMessageRequest represents a message dispatch request
type SendMessageRequest struct {
	MessageID      string `json:"message_id" binding:"required"`
	RecipientPhone string `json:"recipient_phone" binding:"required"`
	RecipientName  string `json:"recipient_name"`
	MessageType    string `json:"message_type" binding:"required"`
	TemplateName   string `json:"template_name"`
	Content        string `json:"content"`
}

// SendMessageResponse represents the provider's accept/reject answer
type SendMessageResponse struct {
	MessageID         string         `json:"message_id"`
	WhatsAppMessageID string         `json:"whatsapp_message_id,omitempty"`
	Status            DispatchStatus `json:"status"`
	ErrorCode         string         `json:"error_code,omitempty"`
	ErrorMsg          string         `json:"error_message,omitempty"`
	ProviderID        string         `json:"provider_id"`
	ProcessedAt       time.Time      `json:"processed_at"`
}

// StatusCheckResponse represents delivery status response
type StatusCheckResponse struct {
	WhatsAppMessageID string         `json:"whatsapp_message_id"`
	Status            DispatchStatus `json:"status"`
	DeliveredAt       *time.Time     `json:"delivered_at,omitempty"`
	ErrorCode         string         `json:"error_code,omitempty"`
	ErrorMsg          string         `json:"error_message,omitempty"`
	ProviderID        string         `json:"provider_id"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status       string    `json:"status"`
	ProviderID   string    `json:"provider_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
}

// MockProvider simulates a WhatsApp Business API provider. Accepted
// messages optionally fire delayed delivery webhooks back at the gateway,
// the way a real BSP reports status asynchronously.
type MockProvider struct {
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	providerID   string
	callbackURL  string
	rng          *rand.Rand
}

// NewMockProvider creates a new mock provider instance
func NewMockProvider(deliveryRate float64, minDelay, maxDelay time.Duration, callbackURL string) *MockProvider {
	return &MockProvider{
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		providerID:   "MOCK_PROVIDER_" + uuid.New().String()[:8],
		callbackURL:  callbackURL,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// accept decides whether to accept a message and assigns a wamid
func (m *MockProvider) accept(req *SendMessageRequest) *SendMessageResponse {
	response := &SendMessageResponse{
		MessageID:   req.MessageID,
		ProviderID:  m.providerID,
		ProcessedAt: time.Now(),
	}

	if m.shouldSucceed() {
		response.Status = StatusAccepted
		response.WhatsAppMessageID = "wamid." + uuid.New().String()

		log.Info().
			Str("message_id", req.MessageID).
			Str("whatsapp_message_id", response.WhatsAppMessageID).
			Str("recipient", req.RecipientPhone).
			Msg("Message accepted")

		// Report delivery asynchronously, like a real provider
		go m.reportDelivery(response.WhatsAppMessageID)
	} else {
		response.Status = StatusFailed
		response.ErrorCode = m.randomErrorCode()
		response.ErrorMsg = m.errorMessage(response.ErrorCode)

		log.Warn().
			Str("message_id", req.MessageID).
			Str("recipient", req.RecipientPhone).
			Str("error_code", response.ErrorCode).
			Msg("Message rejected")
	}

	return response
}

// reportDelivery posts delivered then read callbacks to the gateway webhook
func (m *MockProvider) reportDelivery(whatsappMessageID string) {
	if m.callbackURL == "" {
		return
	}

	time.Sleep(m.randomDelay())
	m.postCallback(whatsappMessageID, "delivered")

	// Roughly half of delivered messages get read
	if m.rng.Float64() < 0.5 {
		time.Sleep(m.randomDelay())
		m.postCallback(whatsappMessageID, "read")
	}
}

func (m *MockProvider) postCallback(whatsappMessageID, status string) {
	payload, _ := json.Marshal(map[string]string{
		"whatsapp_message_id": whatsappMessageID,
		"status":              status,
		"timestamp":           time.Now().Format(time.RFC3339),
	})

	resp, err := http.Post(m.callbackURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Warn().Err(err).Str("whatsapp_message_id", whatsappMessageID).Msg("Callback failed")
		return
	}
	resp.Body.Close()

	log.Info().
		Str("whatsapp_message_id", whatsappMessageID).
		Str("status", status).
		Int("code", resp.StatusCode).
		Msg("Callback delivered")
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	randomDelta := time.Duration(m.rng.Int63n(int64(delta)))
	return m.minDelay + randomDelta
}

func (m *MockProvider) shouldSucceed() bool {
	return m.rng.Float64() < m.deliveryRate
}

func (m *MockProvider) randomErrorCode() string {
	errorCodes := []string{
		"INVALID_NUMBER",
		"TEMPLATE_NOT_APPROVED",
		"SESSION_EXPIRED",
		"RATE_LIMITED",
		"RECIPIENT_BLOCKED",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockProvider) errorMessage(code string) string {
	messages := map[string]string{
		"INVALID_NUMBER":        "The recipient number is not a WhatsApp account",
		"TEMPLATE_NOT_APPROVED": "The template has not been approved",
		"SESSION_EXPIRED":       "No open customer session for a session message",
		"RATE_LIMITED":          "Provider rate limit reached",
		"RECIPIENT_BLOCKED":     "The recipient has blocked business messages",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

// Handler struct holds the mock provider and routes
type Handler struct {
	provider         *MockProvider
	paymentKeySecret string
}

func NewHandler(provider *MockProvider, paymentKeySecret string) *Handler {
	return &Handler{provider: provider, paymentKeySecret: paymentKeySecret}
}

// SendMessage handles single message dispatch requests
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("message_id", req.MessageID).
		Str("recipient", req.RecipientPhone).
		Str("message_type", req.MessageType).
		Msg("Received dispatch request")

	response := h.provider.accept(&req)

	statusCode := http.StatusOK
	if response.Status == StatusFailed {
		statusCode = http.StatusAccepted // 202: accepted the call but rejected the message
	}

	c.JSON(statusCode, response)
}

// GetStatus handles delivery status check requests
func (h *Handler) GetStatus(c *gin.Context) {
	wamid := c.Param("whatsapp_message_id")

	if wamid == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "whatsapp_message_id is required",
		})
		return
	}

	// For demo, return random status
	response := StatusCheckResponse{
		WhatsAppMessageID: wamid,
		ProviderID:        h.provider.providerID,
	}

	if h.provider.shouldSucceed() {
		now := time.Now()
		response.Status = StatusDelivered
		response.DeliveredAt = &now
	} else {
		response.Status = StatusFailed
		response.ErrorCode = "SESSION_EXPIRED"
		response.ErrorMsg = "No open customer session for a session message"
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.provider.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Provider temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		ProviderID:   h.provider.providerID,
		Timestamp:    time.Now(),
		DeliveryRate: h.provider.deliveryRate,
	})
}

// UpdateConfig allows changing provider configuration at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil {
		if *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
			h.provider.deliveryRate = *config.DeliveryRate
			log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"delivery_rate": h.provider.deliveryRate,
	})
}

// CreateOrder mimics the Razorpay order endpoint for local checkout flows
func (h *Handler) CreateOrder(c *gin.Context) {
	var req struct {
		Amount   int64  `json:"amount" binding:"required"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if req.Currency == "" {
		req.Currency = "INR"
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       "order_" + uuid.New().String()[:14],
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"status":   "created",
	})
}

// SignPayment returns a valid checkout signature for an order/payment pair so
// top-up confirmations can be exercised without a real checkout widget.
func (h *Handler) SignPayment(c *gin.Context) {
	var req struct {
		OrderID   string `json:"order_id" binding:"required"`
		PaymentID string `json:"payment_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"razorpay_order_id":   req.OrderID,
		"razorpay_payment_id": req.PaymentID,
		"razorpay_signature":  payment.SignPayload(h.paymentKeySecret, req.OrderID, req.PaymentID),
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/messages/send", handler.SendMessage)
		v1.GET("/messages/status/:whatsapp_message_id", handler.GetStatus)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Razorpay sandbox
	router.POST("/v1/orders", handler.CreateOrder)
	router.POST("/v1/sandbox/sign", handler.SignPayment)

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 1*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 5*time.Second)
	callbackURL := getEnv("CALLBACK_URL", "")
	paymentKeySecret := getEnv("RAZORPAY_KEY_SECRET", "sandbox_secret")

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Str("callback_url", callbackURL).
		Msg("Starting Mock WhatsApp Provider")

	// Create mock provider
	provider := NewMockProvider(deliveryRate, minDelay, maxDelay, callbackURL)
	handler := NewHandler(provider, paymentKeySecret)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
