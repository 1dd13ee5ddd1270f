package service

import (
	"context"
	"fmt"

	"etf_agent/internal/models"
	"etf_agent/pkg/logger"
)

// OrderResult это ответ брокера на заявку, Status 0 значит принята.
type OrderResult struct {
	Status  int
	Message string
}

type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req models.OrderRequest) (OrderResult, error)
}

type DepositRefresher interface {
	RefreshDeposit(ctx context.Context) error
}

// Action: шаг плана. Before проверяет предусловия, Submit отправляет,
// CanTerminate смотрит на завершённые исполнения плана (код -> сторона).
type Action interface {
	fmt.Stringer
	Before() error
	Submit(ctx context.Context) error
	CanTerminate(done map[string]models.Side) bool
}

type NoOp struct{}

func (NoOp) String() string { return "NoOp" }

func (NoOp) Before() error { return nil }

func (NoOp) Submit(context.Context) error { return nil }

func (NoOp) CanTerminate(map[string]models.Side) bool { return true }

// RefreshDeposit перечитывает депозит между продажей и покупкой.
type RefreshDeposit struct {
	refresher DepositRefresher
}

func (RefreshDeposit) String() string { return "RefreshDeposit" }

func (RefreshDeposit) Before() error { return nil }

func (r RefreshDeposit) Submit(ctx context.Context) error {
	if err := r.refresher.RefreshDeposit(ctx); err != nil {
		return fmt.Errorf("%w: refresh deposit: %v", ErrRetryLater, err)
	}
	return nil
}

func (RefreshDeposit) CanTerminate(map[string]models.Side) bool { return true }

// order: общая часть Sell/Buy, размер считается в Before, уходит в Submit.
type order struct {
	side      models.Side
	code      string
	account   *Account
	submitter OrderSubmitter
	req       models.OrderRequest
}

func (o *order) String() string { return fmt.Sprintf("%s(%s)", o.side, o.code) }

func (o *order) Before() error {
	size := o.account.BuySize
	if o.side == models.SideSell {
		size = o.account.SellSize
	}
	price, qty, err := size(o.code)
	if err != nil {
		return err
	}
	o.req = models.OrderRequest{Side: o.side, Code: o.code, Quantity: qty, Price: price}
	return nil
}

func (o *order) Submit(ctx context.Context) error {
	logger.Info("[ORDERS] submit %s qty=%d price=%.0f deposit=%d", o, o.req.Quantity, o.req.Price, o.account.Deposit())
	res, err := o.submitter.SubmitOrder(ctx, o.req)
	if err != nil {
		return fmt.Errorf("submit %s: %w", o, err)
	}
	if res.Status != 0 {
		return fmt.Errorf("submit %s: rejected status=%d (%s)", o, res.Status, res.Message)
	}
	return nil
}

// CanTerminate: пришло исполнение с нулевым остатком по коду и стороне.
func (o *order) CanTerminate(done map[string]models.Side) bool {
	return done[o.code] == o.side
}

func (o *order) Side() models.Side { return o.side }

type Sell struct{ *order }

type Buy struct{ *order }

func NewSell(code string, account *Account, submitter OrderSubmitter) Sell {
	return Sell{&order{side: models.SideSell, code: code, account: account, submitter: submitter}}
}

func NewBuy(code string, account *Account, submitter OrderSubmitter) Buy {
	return Buy{&order{side: models.SideBuy, code: code, account: account, submitter: submitter}}
}
