package service

import (
	"strings"
	"time"

	"etf_agent/internal/helper"
	"etf_agent/internal/models"
)

const (
	pushPhase     = "phase"
	pushTick      = "tick"
	pushExecution = "execution"
	pushBalance   = "balance"
)

// decodePush превращает плоскую карту полей в типизированное событие; nil: неизвестное.
func decodePush(f inFrame, now time.Time, loc *time.Location) models.Event {
	fl := f.Fields
	if fl == nil {
		fl = map[string]string{}
	}
	switch f.Event {
	case pushPhase:
		return models.PhaseEvent{
			Code: strings.TrimSpace(fl["phase"]),
			At:   clockOn(now, loc, fl["time"]),
		}

	case pushTick:
		price, err := helper.AbsFloat(fl["price"])
		if err != nil || price <= 0 {
			return nil
		}
		t := models.Tick{
			Code:  helper.NormCode(f.Code),
			Time:  clockOn(now, loc, fl["time"]),
			Price: price,
		}
		t.Open, _ = helper.AbsFloat(fl["open"])
		t.High, _ = helper.AbsFloat(fl["high"])
		t.Low, _ = helper.AbsFloat(fl["low"])
		t.Volume, _ = helper.AbsInt(fl["volume"])
		t.BestAsk, _ = helper.AbsFloat(fl["best_ask"])
		t.BestBid, _ = helper.AbsFloat(fl["best_bid"])
		return models.TickEvent{Tick: t}

	case pushExecution:
		r := models.ExecutionReport{
			OrderID: strings.TrimSpace(fl["order_id"]),
			Code:    helper.NormCode(firstNonEmpty(fl["code"], f.Code)),
			Side:    parseSide(fl["side"]),
			Status:  strings.TrimSpace(fl["order_status"]),
		}
		r.Ordered, _ = helper.AbsInt(fl["ordered"])
		r.Remaining, _ = helper.AbsInt(fl["remaining"])
		return r

	case pushBalance:
		b := models.BalanceUpdate{Code: helper.NormCode(firstNonEmpty(fl["code"], f.Code))}
		b.Quantity, _ = helper.AbsInt(fl["quantity"])
		b.Tradable, _ = helper.AbsInt(fl["tradable"])
		b.CostBasis, _ = helper.AbsFloat(fl["cost_basis"])
		b.Price, _ = helper.AbsFloat(fl["price"])
		if raw, ok := fl["deposit"]; ok && strings.TrimSpace(raw) != "" {
			if d, err := helper.AbsInt(raw); err == nil {
				b.Deposit, b.HasDeposit = d, true
			}
		}
		return b
	}
	return nil
}

// parseSide понимает и коды терминала (1 продажа, 2 покупка), и текст.
func parseSide(raw string) models.Side {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "1", "SELL", "매도", "-매도":
		return models.SideSell
	case "2", "BUY", "매수", "+매수":
		return models.SideBuy
	}
	return models.SideNone
}

func sideCode(s models.Side) string {
	if s == models.SideSell {
		return "1"
	}
	return "2"
}

// clockOn переносит HHMMSS на дату now; пустое или кривое время даёт now.
func clockOn(now time.Time, loc *time.Location, hhmmss string) time.Time {
	now = now.In(loc)
	hhmmss = strings.TrimSpace(hhmmss)
	t, err := time.ParseInLocation("150405", hhmmss, loc)
	if err != nil {
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
