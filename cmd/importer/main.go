package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tezzaro/billing-gateway/internal/config"
	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/repository"
	"github.com/tezzaro/billing-gateway/internal/services"
	"github.com/tezzaro/billing-gateway/pkg/logger"
	"github.com/tezzaro/billing-gateway/pkg/pg"
)

// Bulk-imports historical messages from a provider export.
//
//	importer --env=.env --file=messages.csv
//
// Expected columns:
//
//	customer_id,whatsapp_message_id,recipient_phone,message_type,content,status,sent_at,deduct_balance
func main() {
	err := config.Load(argValue("--env=", ".env"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	filePath := argValue("--file=", "")
	if filePath == "" {
		logger.Error("no input file, pass --file=<path.csv>")
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	db, err := pg.CreateReadWrite(readConf, writeConf, false)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	messageRepo := repository.NewMessageRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	pricingRepo := repository.NewPricingRepository(db)

	// No queue: imported messages were already sent by the provider.
	messageService := services.NewMessageService(messageRepo, customerRepo, transactionRepo, pricingRepo, nil)

	file, err := os.Open(filePath)
	if err != nil {
		logger.Error("failed to open input file", "path", filePath, "error", err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 8

	// Header row
	if _, err := reader.Read(); err != nil {
		logger.Error("failed to read header", "error", err)
		return
	}

	ctx := context.Background()
	var imported, skipped, failed int
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Warn("skipping malformed row", "line", line, "error", err)
			failed++
			continue
		}

		req, err := parseRow(record)
		if err != nil {
			logger.Warn("skipping invalid row", "line", line, "error", err)
			failed++
			continue
		}

		_, err = messageService.Import(ctx, req)
		switch {
		case err == nil:
			imported++
		case err == services.ErrDuplicateMessage:
			skipped++
		default:
			logger.Warn("row rejected", "line", line, "whatsapp_message_id", req.ProviderMessageID, "error", err)
			failed++
		}
	}

	logger.Info("import finished", "imported", imported, "duplicates_skipped", skipped, "failed", failed)
}

func parseRow(record []string) (model.MessageImportRequest, error) {
	customerID, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return model.MessageImportRequest{}, err
	}

	req := model.MessageImportRequest{
		CustomerID:        customerID,
		ProviderMessageID: strings.TrimSpace(record[1]),
		RecipientPhone:    strings.TrimSpace(record[2]),
		Type:              model.MessageType(strings.TrimSpace(record[3])),
		Content:           record[4],
		Status:            model.MessageStatus(strings.TrimSpace(record[5])),
	}

	if v := strings.TrimSpace(record[6]); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			t, err = time.Parse("2006-01-02", v)
		}
		if err != nil {
			return model.MessageImportRequest{}, err
		}
		req.SentAt = &t
	}

	if v := strings.TrimSpace(record[7]); v != "" {
		deduct, err := strconv.ParseBool(v)
		if err != nil {
			return model.MessageImportRequest{}, err
		}
		req.DeductBalance = deduct
	}

	return req, nil
}

func argValue(prefix, fallback string) string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	return fallback
}
