package service

import (
	"context"
	"fmt"

	"etf_agent/internal/models"
	"etf_agent/pkg/logger"
)

// AccountGateway: батч-запросы счёта у брокера.
type AccountGateway interface {
	Deposit(ctx context.Context) (int64, error)
	Holdings(ctx context.Context) ([]models.Holding, error)
	Unexecuted(ctx context.Context) ([]models.UnexecutedOrder, error)
}

// Sync перекладывает батч-ответы брокера в Account.
type Sync struct {
	gw      AccountGateway
	account *Account
}

func NewSync(gw AccountGateway, account *Account) *Sync {
	return &Sync{gw: gw, account: account}
}

func (s *Sync) RefreshDeposit(ctx context.Context) error {
	d, err := s.gw.Deposit(ctx)
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	s.account.SetDeposit(d)
	return nil
}

// Refresh: депозит и позиции (каждую новую минуту).
func (s *Sync) Refresh(ctx context.Context) error {
	if err := s.RefreshDeposit(ctx); err != nil {
		return err
	}
	h, err := s.gw.Holdings(ctx)
	if err != nil {
		return fmt.Errorf("holdings: %w", err)
	}
	s.account.ReplaceHoldings(h)
	return nil
}

// Load: полная загрузка счёта перед запуском цикла.
func (s *Sync) Load(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	u, err := s.gw.Unexecuted(ctx)
	if err != nil {
		return fmt.Errorf("unexecuted: %w", err)
	}
	s.account.ReplaceUnexecuted(u)
	logger.Info("[ORDERS] account loaded: deposit=%d holdings=%d unexecuted=%d",
		s.account.Deposit(), len(s.account.Holdings()), len(s.account.Unexecuted()))
	return nil
}
