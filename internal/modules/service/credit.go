package service

import (
	"context"
	"fmt"

	"github.com/decorly-io/decorly/internal/config"
	"github.com/decorly-io/decorly/internal/modules/repo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreditService is the ledger contract: reserve before generation, release on
// terminal failure, grant from billing events.
type CreditService interface {
	Balance(ctx context.Context, ownerID uuid.UUID) (int, error)
	// Reserve debits the generation cost. ErrInsufficientCredits when the
	// balance does not cover it; no partial debit ever happens.
	Reserve(ctx context.Context, ownerID uuid.UUID) error
	// Release refunds one generation cost.
	Release(ctx context.Context, ownerID uuid.UUID) error
	Grant(ctx context.Context, ownerID uuid.UUID, amount int) error
	Cost() int
}

type creditService struct {
	r   repo.CreditRepo
	cfg *config.Config
	log *zap.Logger
}

func NewCreditService(r repo.CreditRepo, cfg *config.Config, log *zap.Logger) CreditService {
	return &creditService{r: r, cfg: cfg, log: log}
}

func (s *creditService) Cost() int {
	if s.cfg.Generation.CostCredits > 0 {
		return s.cfg.Generation.CostCredits
	}
	return 5
}

func (s *creditService) Balance(ctx context.Context, ownerID uuid.UUID) (int, error) {
	b, err := s.r.GetOrCreate(ctx, ownerID, s.cfg.Generation.SignupGrantCredits)
	if err != nil {
		return 0, fmt.Errorf("load balance: %w", err)
	}
	return b.Balance, nil
}

func (s *creditService) Reserve(ctx context.Context, ownerID uuid.UUID) error {
	// First touch creates the row with the signup grant, so a brand-new user
	// debits against the grant, not against a missing row.
	if _, err := s.r.GetOrCreate(ctx, ownerID, s.cfg.Generation.SignupGrantCredits); err != nil {
		return fmt.Errorf("load balance: %w", err)
	}

	ok, err := s.r.Debit(ctx, ownerID, s.Cost())
	if err != nil {
		return fmt.Errorf("debit credits: %w", err)
	}
	if !ok {
		return ErrInsufficientCredits
	}
	return nil
}

func (s *creditService) Release(ctx context.Context, ownerID uuid.UUID) error {
	if err := s.r.Credit(ctx, ownerID, s.Cost()); err != nil {
		return fmt.Errorf("refund credits: %w", err)
	}
	s.log.Debug("credits refunded", zap.String("owner_id", ownerID.String()), zap.Int("amount", s.Cost()))
	return nil
}

func (s *creditService) Grant(ctx context.Context, ownerID uuid.UUID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: grant amount must be positive", ErrInvalidInput)
	}
	if err := s.r.Credit(ctx, ownerID, amount); err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	return nil
}
