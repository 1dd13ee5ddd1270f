package models

type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Holding: позиция по инструменту в счёте.
type Holding struct {
	Code      string
	Name      string
	Quantity  int64
	CostBasis float64
	Tradable  int64
	Price     float64
}

// Quote: лучшие цены из последнего тика.
type Quote struct {
	BestAsk float64
	BestBid float64
}

// UnexecutedOrder: заявка, по которой ещё есть неисполненный остаток.
type UnexecutedOrder struct {
	OrderID   string
	Code      string
	Side      Side
	Ordered   int64
	Remaining int64
}

// OrderRequest: то, что уходит в брокера.
type OrderRequest struct {
	Side     Side
	Code     string
	Quantity int64
	Price    float64
	Market   bool
}
