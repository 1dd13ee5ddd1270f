package service

import (
	"testing"

	"etf_agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_ExecutionLifecycle(t *testing.T) {
	acc := NewAccount(0)
	acc.ReplaceUnexecuted([]models.UnexecutedOrder{
		{OrderID: "10", Code: codeA, Side: models.SideBuy, Ordered: 5, Remaining: 5},
		{OrderID: "11", Code: codeA, Side: models.SideBuy, Ordered: 5, Remaining: 0},
	})
	require.Len(t, acc.Unexecuted(), 1)

	assert.False(t, acc.ApplyExecution(models.ExecutionReport{OrderID: "12", Code: codeB, Side: models.SideSell, Ordered: 3, Remaining: 2}))
	assert.Len(t, acc.Unexecuted(), 2)

	assert.False(t, acc.ApplyExecution(models.ExecutionReport{OrderID: "10", Code: codeA, Side: models.SideBuy, Ordered: 5, Remaining: 1}))
	assert.True(t, acc.ApplyExecution(models.ExecutionReport{OrderID: "10", Code: codeA, Side: models.SideBuy, Ordered: 5, Remaining: 0}))

	left := acc.Unexecuted()
	require.Len(t, left, 1)
	assert.Equal(t, "12", left[0].OrderID)
	assert.EqualValues(t, 2, left[0].Remaining)
}

func TestAccount_BalanceUpdates(t *testing.T) {
	acc := NewAccount(0)
	acc.ReplaceHoldings([]models.Holding{{Code: codeA, Name: "KODEX 200", Quantity: 3, Tradable: 3}})

	acc.ApplyBalance(models.BalanceUpdate{Code: codeA, Quantity: 5, Tradable: 4, CostBasis: 35010, Deposit: 7000, HasDeposit: true})
	h, ok := acc.Holding(codeA)
	require.True(t, ok)
	assert.Equal(t, "KODEX 200", h.Name)
	assert.EqualValues(t, 5, h.Quantity)
	assert.EqualValues(t, 4, h.Tradable)
	assert.EqualValues(t, 7000, acc.Deposit())

	acc.ApplyBalance(models.BalanceUpdate{Code: codeB, Quantity: 1, Tradable: 1})
	assert.True(t, acc.Holds(codeB))

	acc.ApplyBalance(models.BalanceUpdate{Code: codeA, Quantity: 0})
	assert.False(t, acc.Holds(codeA))
	assert.EqualValues(t, 7000, acc.Deposit())
	assert.Len(t, acc.Holdings(), 1)
}

func TestAccount_Sizing(t *testing.T) {
	acc := NewAccount(0.00015)

	_, _, err := acc.BuySize(codeA)
	assert.ErrorIs(t, err, ErrNoQuote)

	acc.ApplyTick(models.Tick{Code: codeA, BestAsk: 10000, BestBid: 9995})
	_, _, err = acc.BuySize(codeA)
	assert.ErrorIs(t, err, ErrNothingToTrade)

	acc.SetDeposit(30_004)
	_, qty, err := acc.BuySize(codeA)
	require.NoError(t, err)
	// 30004 / 10001.5 < 3
	assert.EqualValues(t, 2, qty)

	_, _, err = acc.SellSize(codeA)
	assert.ErrorIs(t, err, ErrNothingToTrade)

	acc.ReplaceHoldings([]models.Holding{{Code: codeA, Quantity: 7, Tradable: 6}})
	px, qty, err := acc.SellSize(codeA)
	require.NoError(t, err)
	assert.EqualValues(t, 9995, px)
	assert.EqualValues(t, 6, qty)

	// тик без котировок не затирает последние
	acc.ApplyTick(models.Tick{Code: codeA, Price: 10000})
	q, ok := acc.Quote(codeA)
	require.True(t, ok)
	assert.EqualValues(t, 10000, q.BestAsk)
}
