package service

import (
	"context"
	"errors"
	"testing"

	"etf_agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	codeA = "069500"
	codeB = "114800"
)

var candidates = []models.Candidate{
	{Code: codeA, Desc: "KODEX 200", Tag: "X"},
	{Code: codeB, Desc: "KODEX Inverse", Tag: "Y"},
}

type fakeSubmitter struct {
	reqs   []models.OrderRequest
	status int
	err    error
}

func (f *fakeSubmitter) SubmitOrder(_ context.Context, req models.OrderRequest) (OrderResult, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return OrderResult{}, f.err
	}
	return OrderResult{Status: f.status, Message: "OP_ERR_ORD_WRONG_INPUT"}, nil
}

type fakeRefresher struct {
	account *Account
	deposit int64
	calls   int
	err     error
}

func (f *fakeRefresher) RefreshDeposit(context.Context) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.account.SetDeposit(f.deposit)
	return nil
}

func newScheduler(t *testing.T) (*Scheduler, *Account, *fakeSubmitter, *fakeRefresher) {
	t.Helper()
	acc := NewAccount(0.00015)
	acc.ApplyTick(models.Tick{Code: codeA, BestAsk: 35005, BestBid: 35000})
	acc.ApplyTick(models.Tick{Code: codeB, BestAsk: 4005, BestBid: 4000})
	sub := &fakeSubmitter{}
	ref := &fakeRefresher{account: acc}
	return NewScheduler(candidates, "NOP", acc, sub, ref), acc, sub, ref
}

type orderCounter map[string]int

func (c orderCounter) Order(side models.Side, result string) { c[string(side)+"/"+result]++ }

func names(p *Plan) []string {
	var out []string
	for _, a := range p.Actions() {
		out = append(out, a.String())
	}
	return out
}

func TestBuildPlan_Shapes(t *testing.T) {
	cases := []struct {
		name    string
		holding []models.Holding
		tag     models.DecisionTag
		want    []string
	}{
		{"neutral", nil, "NOP", []string{"NoOp"}},
		{"neutral while holding", []models.Holding{{Code: codeA, Quantity: 3, Tradable: 3}}, "NOP", []string{"NoOp"}},
		{"already holding target", []models.Holding{{Code: codeA, Quantity: 3, Tradable: 3}}, "X", []string{"NoOp"}},
		{"holding other", []models.Holding{{Code: codeA, Quantity: 3, Tradable: 3}}, "Y", []string{"SELL(069500)", "RefreshDeposit", "BUY(114800)"}},
		{"holding neither", nil, "X", []string{"BUY(069500)"}},
		{"unrelated holding", []models.Holding{{Code: "005930", Quantity: 1, Tradable: 1}}, "Y", []string{"BUY(114800)"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, acc, _, _ := newScheduler(t)
			acc.ReplaceHoldings(tc.holding)

			p, err := s.BuildPlan(tc.tag)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(p))
		})
	}
}

func TestBuildPlan_UnknownTag(t *testing.T) {
	s, _, _, _ := newScheduler(t)
	_, err := s.BuildPlan("Z")
	assert.ErrorIs(t, err, ErrUnknownTag)
	assert.ErrorIs(t, s.Decide("Z"), ErrUnknownTag)
	assert.False(t, s.Active())
}

func TestStep_BuyDrainsAfterExecution(t *testing.T) {
	ctx := context.Background()
	s, acc, sub, _ := newScheduler(t)
	acc.SetDeposit(1_000_000)

	require.NoError(t, s.Decide("X"))
	assert.False(t, s.Step(ctx))
	require.Len(t, sub.reqs, 1)
	assert.Equal(t, models.OrderRequest{Side: models.SideBuy, Code: codeA, Quantity: 28, Price: 35005}, sub.reqs[0])

	// повторный шаг не переотправляет
	assert.False(t, s.Step(ctx))
	assert.Len(t, sub.reqs, 1)

	// частичное исполнение не завершает
	s.OnExecution(models.ExecutionReport{OrderID: "1", Code: codeA, Side: models.SideBuy, Ordered: 28, Remaining: 8})
	assert.False(t, s.Step(ctx))

	s.OnExecution(models.ExecutionReport{OrderID: "1", Code: codeA, Side: models.SideBuy, Ordered: 28, Remaining: 0})
	assert.True(t, s.Step(ctx))
	assert.False(t, s.Active())
}

func TestStep_SellRefreshBuyInOrder(t *testing.T) {
	ctx := context.Background()
	s, acc, sub, ref := newScheduler(t)
	acc.ReplaceHoldings([]models.Holding{{Code: codeA, Quantity: 10, Tradable: 10}})
	acc.SetDeposit(500)
	ref.deposit = 350_500

	require.NoError(t, s.Decide("Y"))
	assert.ErrorIs(t, s.Decide("X"), ErrPlanActive)

	s.Step(ctx)
	require.Len(t, sub.reqs, 1)
	assert.Equal(t, models.OrderRequest{Side: models.SideSell, Code: codeA, Quantity: 10, Price: 35000}, sub.reqs[0])

	// исполнение по чужой стороне не считается
	s.OnExecution(models.ExecutionReport{OrderID: "2", Code: codeA, Side: models.SideBuy, Remaining: 0})
	s.Step(ctx)
	assert.Equal(t, []string{"SELL(069500)", "RefreshDeposit", "BUY(114800)"}, names(s.Plan()))

	s.OnExecution(models.ExecutionReport{OrderID: "3", Code: codeA, Side: models.SideSell, Remaining: 0})
	s.Step(ctx)
	assert.Equal(t, []string{"RefreshDeposit", "BUY(114800)"}, names(s.Plan()))
	assert.Zero(t, ref.calls)

	s.Step(ctx)
	assert.Equal(t, 1, ref.calls)
	assert.Equal(t, []string{"BUY(114800)"}, names(s.Plan()))

	s.Step(ctx)
	require.Len(t, sub.reqs, 2)
	// 350500 / (4005 * 1.00015) = 87.5...
	assert.Equal(t, models.OrderRequest{Side: models.SideBuy, Code: codeB, Quantity: 87, Price: 4005}, sub.reqs[1])

	s.OnExecution(models.ExecutionReport{OrderID: "4", Code: codeB, Side: models.SideBuy, Remaining: 0})
	assert.True(t, s.Step(ctx))
	assert.False(t, s.Active())
}

func TestStep_NoOpCompletesImmediately(t *testing.T) {
	s, _, sub, _ := newScheduler(t)
	require.NoError(t, s.Decide("NOP"))
	assert.True(t, s.Step(context.Background()))
	assert.False(t, s.Active())
	assert.Empty(t, sub.reqs)
}

func TestStep_RejectionStallsWithoutRetry(t *testing.T) {
	ctx := context.Background()
	s, acc, sub, _ := newScheduler(t)
	acc.SetDeposit(1_000_000)
	sub.status = -308
	counts := orderCounter{}
	s.Observe(counts)

	require.NoError(t, s.Decide("Y"))
	for i := 0; i < 5; i++ {
		assert.False(t, s.Step(ctx))
	}
	assert.Len(t, sub.reqs, 1)
	assert.True(t, s.Active())
	assert.ErrorIs(t, s.Decide("X"), ErrPlanActive)
	assert.Equal(t, orderCounter{"BUY/rejected": 1}, counts)
}

func TestStep_ReportsSubmittedOrdersOnly(t *testing.T) {
	ctx := context.Background()
	s, acc, _, ref := newScheduler(t)
	counts := orderCounter{}
	s.Observe(counts)
	acc.ReplaceHoldings([]models.Holding{{Code: codeA, Quantity: 3, Tradable: 3}})
	ref.deposit = 1_000_000

	require.NoError(t, s.Decide("Y"))
	s.Step(ctx)
	s.OnExecution(models.ExecutionReport{Code: codeA, Side: models.SideSell})
	s.Step(ctx)
	s.Step(ctx)
	s.Step(ctx)

	assert.Equal(t, orderCounter{"SELL/submitted": 1, "BUY/submitted": 1}, counts)
}

func TestStep_PreconditionRetriedNextTick(t *testing.T) {
	ctx := context.Background()
	s, acc, sub, _ := newScheduler(t)

	// депозита нет: заявка не уходит
	require.NoError(t, s.Decide("X"))
	assert.False(t, s.Step(ctx))
	assert.Empty(t, sub.reqs)

	acc.SetDeposit(100_000)
	assert.False(t, s.Step(ctx))
	require.Len(t, sub.reqs, 1)
	assert.EqualValues(t, 2, sub.reqs[0].Quantity)
}

func TestStep_RefreshFailureRetried(t *testing.T) {
	ctx := context.Background()
	s, acc, _, ref := newScheduler(t)
	acc.ReplaceHoldings([]models.Holding{{Code: codeB, Quantity: 1, Tradable: 1}})
	ref.err = errors.New("timeout")

	require.NoError(t, s.Decide("X"))
	s.OnExecution(models.ExecutionReport{OrderID: "9", Code: codeB, Side: models.SideSell, Remaining: 0})
	s.Step(ctx)
	s.Step(ctx)
	assert.Equal(t, []string{"RefreshDeposit", "BUY(069500)"}, names(s.Plan()))
	assert.Equal(t, 1, ref.calls)

	ref.err = nil
	ref.deposit = 40_000
	s.Step(ctx)
	assert.Equal(t, 2, ref.calls)
	assert.Equal(t, []string{"BUY(069500)"}, names(s.Plan()))
}

func TestPick(t *testing.T) {
	s, _, _, _ := newScheduler(t)

	tag, err := s.Pick(map[models.DecisionTag]float64{"X": 0.2, "Y": 0.7, "NOP": 0.1})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionTag("Y"), tag)

	tag, err = s.Pick(map[models.DecisionTag]float64{"NOP": 0.5, "Y": 0.5, "X": 0.5})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionTag("X"), tag)

	_, err = s.Pick(map[models.DecisionTag]float64{"X": 0.5, "Q": 0.9})
	assert.ErrorIs(t, err, ErrUnknownTag)

	_, err = s.Pick(nil)
	assert.ErrorIs(t, err, ErrUnknownTag)
}
