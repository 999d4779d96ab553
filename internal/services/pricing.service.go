package services

import (
	"context"
	"errors"

	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/internal/repository"
	"github.com/tezzaro/billing-gateway/pkg/logger"
)

var ErrInvalidPrice = errors.New("price must be positive")

type PricingAdminRepository interface {
	GetPrice(ctx context.Context, messageType model.MessageType) (int64, error)
	SetPrice(ctx context.Context, messageType model.MessageType, amount int64) error
	List(ctx context.Context) ([]*model.Price, error)
}

// PricingService manages per-type unit prices. Price changes take effect for
// messages created after the change; recorded costs are immutable snapshots.
type PricingService struct {
	pricingRepo PricingAdminRepository
}

func NewPricingService(pricingRepo PricingAdminRepository) *PricingService {
	return &PricingService{pricingRepo: pricingRepo}
}

func (s *PricingService) GetPrice(ctx context.Context, messageType model.MessageType) (int64, error) {
	if !messageType.Valid() {
		return 0, errors.New("message_type must be template or session")
	}
	return s.pricingRepo.GetPrice(ctx, messageType)
}

func (s *PricingService) SetPrice(ctx context.Context, actor model.Actor, messageType model.MessageType, amount int64) error {
	if !actor.IsAdmin() {
		return ErrPermissionDenied
	}
	if !messageType.Valid() {
		return errors.New("message_type must be template or session")
	}
	if err := s.pricingRepo.SetPrice(ctx, messageType, amount); err != nil {
		if errors.Is(err, repository.ErrInvalidAmount) {
			return ErrInvalidPrice
		}
		return err
	}

	logger.Info("Price updated", "message_type", string(messageType), "amount", amount, "admin", actor.Email)

	return nil
}

func (s *PricingService) List(ctx context.Context) ([]*model.Price, error) {
	return s.pricingRepo.List(ctx)
}
