package models

import "time"

// Event: push-сообщение брокера, которое обрабатывается в единственном цикле раннера.
type Event interface {
	isEvent()
}

// PhaseEvent: смена фазы рынка (сырой код терминала).
type PhaseEvent struct {
	Code string
	At   time.Time
}

// TickEvent: сделка по инструменту.
type TickEvent struct {
	Tick Tick
}

// ExecutionReport: подтверждение частичного/полного исполнения заявки.
type ExecutionReport struct {
	OrderID   string
	Code      string
	Side      Side
	Ordered   int64
	Remaining int64
	Status    string
}

// BalanceUpdate: изменение позиции (и, если пришло, депозита).
type BalanceUpdate struct {
	Code       string
	Quantity   int64
	CostBasis  float64
	Tradable   int64
	Price      float64
	Deposit    int64
	HasDeposit bool
}

func (PhaseEvent) isEvent()      {}
func (TickEvent) isEvent()       {}
func (ExecutionReport) isEvent() {}
func (BalanceUpdate) isEvent()   {}
