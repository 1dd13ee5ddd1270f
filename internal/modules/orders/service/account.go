package service

import (
	"fmt"
	"math"
	"sort"

	"etf_agent/internal/models"
	"etf_agent/pkg/logger"
)

// Account: депозит, позиции, неисполненные заявки и последние котировки.
// Меняется батч-обновлениями и push-событиями, всё в цикле раннера.
type Account struct {
	feeRate float64

	deposit    int64
	holdings   map[string]models.Holding
	unexecuted map[string]models.UnexecutedOrder
	quotes     map[string]models.Quote
}

func NewAccount(feeRate float64) *Account {
	return &Account{
		feeRate:    feeRate,
		holdings:   make(map[string]models.Holding),
		unexecuted: make(map[string]models.UnexecutedOrder),
		quotes:     make(map[string]models.Quote),
	}
}

func (a *Account) Deposit() int64 { return a.deposit }

func (a *Account) SetDeposit(v int64) {
	if v != a.deposit {
		logger.Info("[ORDERS] deposit %d -> %d", a.deposit, v)
	}
	a.deposit = v
}

// ReplaceHoldings: результат батч-запроса позиций; нулевые отбрасываются.
func (a *Account) ReplaceHoldings(rows []models.Holding) {
	a.holdings = make(map[string]models.Holding, len(rows))
	for _, h := range rows {
		if h.Quantity <= 0 {
			continue
		}
		a.holdings[h.Code] = h
	}
}

// ReplaceUnexecuted: результат батч-запроса неисполненных заявок.
func (a *Account) ReplaceUnexecuted(rows []models.UnexecutedOrder) {
	a.unexecuted = make(map[string]models.UnexecutedOrder, len(rows))
	for _, o := range rows {
		if o.Remaining <= 0 {
			continue
		}
		a.unexecuted[o.OrderID] = o
	}
}

func (a *Account) Holds(code string) bool {
	_, ok := a.holdings[code]
	return ok
}

func (a *Account) Holding(code string) (models.Holding, bool) {
	h, ok := a.holdings[code]
	return h, ok
}

// Holdings: позиции, отсортированные по коду.
func (a *Account) Holdings() []models.Holding {
	out := make([]models.Holding, 0, len(a.holdings))
	for _, h := range a.holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (a *Account) Unexecuted() []models.UnexecutedOrder {
	out := make([]models.UnexecutedOrder, 0, len(a.unexecuted))
	for _, o := range a.unexecuted {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

func (a *Account) Quote(code string) (models.Quote, bool) {
	q, ok := a.quotes[code]
	return q, ok
}

// ApplyTick запоминает лучшие цены из сделки.
func (a *Account) ApplyTick(t models.Tick) {
	if t.BestAsk <= 0 && t.BestBid <= 0 {
		return
	}
	a.quotes[t.Code] = models.Quote{BestAsk: t.BestAsk, BestBid: t.BestBid}
}

// ApplyExecution обновляет заявку по order id; true: остаток обнулился и заявка удалена.
func (a *Account) ApplyExecution(r models.ExecutionReport) bool {
	if r.OrderID == "" {
		return false
	}
	if r.Remaining <= 0 {
		delete(a.unexecuted, r.OrderID)
		logger.Info("[ORDERS] order %s %s %s filled", r.OrderID, r.Side, r.Code)
		return true
	}
	a.unexecuted[r.OrderID] = models.UnexecutedOrder{
		OrderID:   r.OrderID,
		Code:      r.Code,
		Side:      r.Side,
		Ordered:   r.Ordered,
		Remaining: r.Remaining,
	}
	return false
}

// ApplyBalance обновляет позицию по коду (удаляет при нуле) и депозит, если он пришёл.
func (a *Account) ApplyBalance(b models.BalanceUpdate) {
	if b.HasDeposit {
		a.SetDeposit(b.Deposit)
	}
	if b.Code == "" {
		return
	}
	if b.Quantity <= 0 {
		if _, ok := a.holdings[b.Code]; ok {
			logger.Info("[ORDERS] holding %s closed", b.Code)
		}
		delete(a.holdings, b.Code)
		return
	}
	h := a.holdings[b.Code]
	h.Code = b.Code
	h.Quantity = b.Quantity
	h.Tradable = b.Tradable
	h.CostBasis = b.CostBasis
	h.Price = b.Price
	a.holdings[b.Code] = h
}

// SellSize: весь доступный к продаже объём по лучшему биду.
func (a *Account) SellSize(code string) (price float64, qty int64, err error) {
	h, ok := a.holdings[code]
	if !ok || h.Tradable <= 0 {
		return 0, 0, fmt.Errorf("sell %s: %w", code, ErrNothingToTrade)
	}
	q, ok := a.quotes[code]
	if !ok || q.BestBid <= 0 {
		return 0, 0, fmt.Errorf("sell %s: %w", code, ErrNoQuote)
	}
	return q.BestBid, h.Tradable, nil
}

// BuySize: сколько целых штук по лучшему аску позволяет депозит с учётом комиссии.
func (a *Account) BuySize(code string) (price float64, qty int64, err error) {
	q, ok := a.quotes[code]
	if !ok || q.BestAsk <= 0 {
		return 0, 0, fmt.Errorf("buy %s: %w", code, ErrNoQuote)
	}
	qty = int64(math.Floor(float64(a.deposit) / (q.BestAsk * (1 + a.feeRate))))
	if qty <= 0 {
		return 0, 0, fmt.Errorf("buy %s: deposit %d: %w", code, a.deposit, ErrNothingToTrade)
	}
	return q.BestAsk, qty, nil
}
