package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/payment"
	"github.com/tezzaro/billing-gateway/internal/queue"
	"github.com/tezzaro/billing-gateway/internal/repository"
	"github.com/tezzaro/billing-gateway/internal/services"
	"github.com/tezzaro/billing-gateway/pkg/pg"
	"github.com/tezzaro/billing-gateway/pkg/redis"
	"github.com/tezzaro/billing-gateway/test/fixtures"
	"github.com/tezzaro/billing-gateway/test/helpers"
)

const e2ePaymentSecret = "e2e-gateway-secret"

// fakeGateway stands in for the payment provider: orders are issued locally
// and signatures verified against the shared e2e secret, so tests can forge
// valid and invalid confirmations at will.
type fakeGateway struct {
	orders int
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, receipt string, notes map[string]string) (*payment.Order, error) {
	g.orders++
	return &payment.Order{
		ID:       fmt.Sprintf("order_e2e_%d", g.orders),
		Amount:   amount,
		Currency: "INR",
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return payment.VerifySignature(e2ePaymentSecret, orderID, paymentID, signature)
}

type TestEnvironment struct {
	DB              *pg.DB
	Redis           *miniredis.Miniredis
	RedisAdapter    redis.RedisAdapter
	Queue           *queue.Queue
	CustomerRepo    *repository.CustomerRepository
	MessageRepo     *repository.MessageRepository
	TransactionRepo *repository.TransactionRepository
	InvoiceRepo     *repository.InvoiceRepository
	PricingRepo     *repository.PricingRepository
	PaymentLogRepo  *repository.PaymentLogRepository
	MessageService  *services.MessageService
	WalletService   *services.WalletService
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	mr, redisAdapter := helpers.SetupTestRedis(t)

	queueConfig := queue.QueueConfig{
		Name:              "test:queue",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}

	q, err := queue.NewQueue(redisAdapter, queueConfig)
	require.NoError(t, err)

	customerRepo := repository.NewCustomerRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	pricingRepo := repository.NewPricingRepository(db)
	paymentLogRepo := repository.NewPaymentLogRepository(db)

	// AutoMigrate does not run the seed migration, so launch prices are set
	// here.
	ctx := context.Background()
	require.NoError(t, pricingRepo.SetPrice(ctx, model.MessageTypeTemplate, 200))
	require.NoError(t, pricingRepo.SetPrice(ctx, model.MessageTypeSession, 100))

	messageService := services.NewMessageService(messageRepo, customerRepo, transactionRepo, pricingRepo, q)
	walletService := services.NewWalletService(customerRepo, transactionRepo, invoiceRepo, paymentLogRepo, &fakeGateway{}, "TZ")

	return &TestEnvironment{
		DB:              db,
		Redis:           mr,
		RedisAdapter:    redisAdapter,
		Queue:           q,
		CustomerRepo:    customerRepo,
		MessageRepo:     messageRepo,
		TransactionRepo: transactionRepo,
		InvoiceRepo:     invoiceRepo,
		PricingRepo:     pricingRepo,
		PaymentLogRepo:  paymentLogRepo,
		MessageService:  messageService,
		WalletService:   walletService,
	}
}

func (env *TestEnvironment) Cleanup() {
	// Stop queue first (gracefully drain messages)
	if env.Queue != nil {
		_ = env.Queue.Stop(5 * time.Second)
	}
	// Give time for any in-flight operations to complete
	time.Sleep(100 * time.Millisecond)
	// Then close Redis
	if env.Redis != nil {
		env.Redis.Close()
	}
}

func TestE2E_MessageCreationDebitsAndEnqueues(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.ActiveCustomer(1, 1000))
	require.NoError(t, err)

	msg, err := env.MessageService.Create(ctx, fixtures.SessionMessageRequest(1))
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, model.MessageStatusPending, msg.Status)
	assert.Equal(t, int64(100), msg.Cost)

	balance, err := env.CustomerRepo.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)

	var txn repository.TransactionEntity
	err = env.DB.Read(ctx).Where("customer_id = ? AND type = ?", 1, "debit").First(&txn).Error
	require.NoError(t, err)
	assert.Equal(t, int64(100), txn.Amount)
	assert.Equal(t, "completed", txn.Status)
	require.NotNil(t, txn.MessageID)
	assert.Equal(t, msg.ID, *txn.MessageID)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(1))
}

func TestE2E_TemplatePriceSnapshot(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.ActiveCustomer(1, 1000))
	require.NoError(t, err)

	msg, err := env.MessageService.Create(ctx, fixtures.TemplateMessageRequest(1))
	require.NoError(t, err)
	assert.Equal(t, int64(200), msg.Cost)

	// A later price change never alters messages already billed.
	require.NoError(t, env.PricingRepo.SetPrice(ctx, model.MessageTypeTemplate, 500))

	stored, err := env.MessageService.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), stored.Cost)

	balance, err := env.CustomerRepo.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(800), balance)
}

func TestE2E_InsufficientBalance(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.ZeroBalanceCustomer(2))
	require.NoError(t, err)

	msg, err := env.MessageService.Create(ctx, fixtures.SessionMessageRequest(2))
	assert.ErrorIs(t, err, services.ErrInsufficientBalance)
	assert.Nil(t, msg)

	var count int64
	env.DB.Read(ctx).Model(&repository.MessageEntity{}).Count(&count)
	assert.Equal(t, int64(0), count)

	balance, err := env.CustomerRepo.GetBalance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestE2E_InactiveCustomerCannotSend(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.InactiveCustomer(3, 1000))
	require.NoError(t, err)
	require.NoError(t, env.CustomerRepo.SetActive(ctx, 3, false))

	_, err = env.MessageService.Create(ctx, fixtures.SessionMessageRequest(3))
	assert.ErrorIs(t, err, services.ErrInactiveCustomer)

	balance, err := env.CustomerRepo.GetBalance(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
}

func TestE2E_MessageConsumption(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.ActiveCustomer(4, 1000))
	require.NoError(t, err)

	req := fixtures.SessionMessageRequest(4)
	msg, err := env.MessageService.Create(ctx, req)
	require.NoError(t, err)

	received := make(chan bool, 1)
	handler := func(ctx context.Context, qMsg *queue.Message) error {
		var data map[string]interface{}
		err := json.Unmarshal(qMsg.Data, &data)
		assert.NoError(t, err)
		assert.Equal(t, float64(msg.ID), data["id"])
		assert.Equal(t, req.RecipientPhone, data["recipient_phone"])
		received <- true
		return nil
	}

	err = env.Queue.Consume(handler)
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("message not consumed within timeout")
	}
}

func TestE2E_ValidationRollback(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.ActiveCustomer(5, 1000))
	require.NoError(t, err)

	req := fixtures.SessionMessageRequest(5)
	req.RecipientPhone = ""

	_, err = env.MessageService.Create(ctx, req)
	assert.Error(t, err)

	balance, err := env.CustomerRepo.GetBalance(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	var count int64
	env.DB.Read(ctx).Model(&repository.MessageEntity{}).Where("customer_id = ?", 5).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestE2E_ListMessages(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.ActiveCustomer(6, 1000))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		req := fixtures.SessionMessageRequest(6)
		req.Content = fmt.Sprintf("Message %d", i)
		_, err := env.MessageService.Create(ctx, req)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}

	messages, total, err := env.MessageService.List(ctx, fixtures.MessagesForCustomer(6))
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, messages, 5)
}

func TestE2E_TopupLifecycle(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.ZeroBalanceCustomer(7))
	require.NoError(t, err)

	intent, err := env.WalletService.InitiateTopup(ctx, 7, 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(84746), intent.Breakdown.Net)
	assert.Equal(t, int64(15254), intent.Breakdown.Tax)
	assert.Equal(t, int64(7627), intent.Breakdown.CGST)
	assert.Equal(t, int64(7627), intent.Breakdown.SGST)

	// Nothing is credited before confirmation.
	balance, err := env.WalletService.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	paymentID := "pay_e2e_1"
	receipt, err := env.WalletService.ConfirmTopup(ctx, services.ConfirmTopupRequest{
		OrderID:   intent.OrderID,
		PaymentID: paymentID,
		Signature: payment.SignPayload(e2ePaymentSecret, intent.OrderID, paymentID),
	})
	require.NoError(t, err)
	assert.False(t, receipt.AlreadyProcessed)
	assert.Equal(t, int64(84746), receipt.Balance)
	assert.Equal(t, model.TransactionCompleted, receipt.Transaction.Status)

	require.NotNil(t, receipt.Invoice)
	assert.Equal(t, fmt.Sprintf("TZ-%d-0001", time.Now().Year()), receipt.Invoice.Number)
	assert.Equal(t, int64(84746), receipt.Invoice.Subtotal)
	assert.Equal(t, int64(7627), receipt.Invoice.CGST)
	assert.Equal(t, int64(7627), receipt.Invoice.SGST)
	assert.Equal(t, int64(100000), receipt.Invoice.Total)

	// A replayed confirmation is acknowledged but credits nothing.
	dup, err := env.WalletService.ConfirmTopup(ctx, services.ConfirmTopupRequest{
		OrderID:   intent.OrderID,
		PaymentID: paymentID,
		Signature: payment.SignPayload(e2ePaymentSecret, intent.OrderID, paymentID),
	})
	require.NoError(t, err)
	assert.True(t, dup.AlreadyProcessed)
	assert.Equal(t, int64(84746), dup.Balance)
	assert.Equal(t, receipt.Invoice.Number, dup.Invoice.Number)

	logs, err := env.PaymentLogRepo.ListByCustomer(ctx, 7, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "payment.verified", logs[0].Event)
}

func TestE2E_TopupBadSignature(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.ZeroBalanceCustomer(8))
	require.NoError(t, err)

	intent, err := env.WalletService.InitiateTopup(ctx, 8, 50000)
	require.NoError(t, err)

	_, err = env.WalletService.ConfirmTopup(ctx, services.ConfirmTopupRequest{
		OrderID:   intent.OrderID,
		PaymentID: "pay_forged",
		Signature: "deadbeef",
	})
	assert.ErrorIs(t, err, services.ErrInvalidSignature)

	balance, err := env.WalletService.Balance(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	txn, err := env.TransactionRepo.GetByOrderID(ctx, intent.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionFailed, txn.Status)

	logs, err := env.PaymentLogRepo.ListByCustomer(ctx, 8, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "payment.failed", logs[0].Event)
}

func TestE2E_ImportAndDeliveryCallbacks(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.ActiveCustomer(9, 1000))
	require.NoError(t, err)

	imported, err := env.MessageService.Import(ctx, fixtures.ImportRequest(9, "wamid.e2e001", true))
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusSent, imported.Status)
	assert.Equal(t, "wamid.e2e001", imported.ProviderMessageID)

	balance, err := env.CustomerRepo.GetBalance(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)

	// Re-importing the same WhatsApp message id is rejected before any
	// money moves.
	_, err = env.MessageService.Import(ctx, fixtures.ImportRequest(9, "wamid.e2e001", true))
	assert.ErrorIs(t, err, services.ErrDuplicateMessage)

	balance, err = env.CustomerRepo.GetBalance(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)

	deliveredAt := time.Now()
	err = env.MessageService.UpdateDeliveryStatus(ctx, "wamid.e2e001", model.MessageStatusDelivered, deliveredAt, "")
	require.NoError(t, err)

	msg, err := env.MessageService.Get(ctx, imported.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusDelivered, msg.Status)
	require.NotNil(t, msg.DeliveredAt)

	// A replayed 'sent' callback arriving late must not move the message
	// backwards.
	err = env.MessageService.UpdateDeliveryStatus(ctx, "wamid.e2e001", model.MessageStatusSent, time.Now(), "")
	require.NoError(t, err)

	msg, err = env.MessageService.Get(ctx, imported.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusDelivered, msg.Status)

	// Delivery state never touches the ledger.
	balance, err = env.CustomerRepo.GetBalance(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)
}

func TestE2E_AdminAdjustmentAndReconcile(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.CustomerRepo.Create(ctx, fixtures.ZeroBalanceCustomer(10))
	require.NoError(t, err)

	admin := fixtures.AdminActor(99)

	_, balance, err := env.WalletService.AdjustBalance(ctx, admin, 10, 500, "goodwill credit")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	// Messages debit through the same ledger, so the derived balance stays
	// in step with the cached one.
	_, err = env.MessageService.Create(ctx, fixtures.SessionMessageRequest(10))
	require.NoError(t, err)

	_, balance, err = env.WalletService.AdjustBalance(ctx, admin, 10, -600, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, int64(-200), balance)

	rec, err := env.WalletService.Reconcile(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(-200), rec.Cached)
	assert.Equal(t, int64(0), rec.Drift)

	// Non-admins cannot adjust.
	_, _, err = env.WalletService.AdjustBalance(ctx, fixtures.CustomerActor(10), 10, 100, "")
	assert.ErrorIs(t, err, services.ErrPermissionDenied)

	statement, total, err := env.WalletService.Statement(ctx, fixtures.StatementForCustomer(10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, statement, 3)
}
