package service

import "errors"

var (
	ErrUnknownTag     = errors.New("unknown decision tag")
	ErrPlanActive     = errors.New("action plan already active")
	ErrNoQuote        = errors.New("no quote for instrument")
	ErrNothingToTrade = errors.New("nothing to trade")
	// ErrRetryLater: шаг не ушёл к брокеру, повторим на следующем тике.
	ErrRetryLater = errors.New("retry on next tick")
)
