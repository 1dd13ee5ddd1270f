package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"etf_agent/internal/helper"
	"etf_agent/internal/models"
	orders "etf_agent/internal/modules/orders/service"
	"etf_agent/pkg/logger"
	"etf_agent/pkg/tracing"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

// TR id терминала.
const (
	QueryMinuteChart = "opt10080"
	QueryDeposit     = "opw00001"
	QueryHoldings    = "opw00018"
	QueryUnexecuted  = "opt10075"
)

func (c *Client) accountParams() map[string]string {
	return map[string]string{
		"account":       c.cfg.Account,
		"password":      c.cfg.Password,
		"password_kind": "00",
		"inquiry_kind":  "1",
	}
}

// FetchMinuteBars: минутки за день по инструменту (скорректированные цены), по возрастанию.
// Терминал отдаёт строки от новых к старым, поэтому страницы качаем, пока не ушли раньше day.
func (c *Client) FetchMinuteBars(ctx context.Context, code string, day time.Time) ([]models.Bar, error) {
	day = helper.FloorDay(day.In(c.cfg.Location))
	params := map[string]string{
		"code":       code,
		"tick_range": "1",
		"adjusted":   "1",
	}

	var out []models.Bar
	err := c.QueryPages(ctx, QueryMinuteChart, params, func(page []map[string]string) bool {
		older := false
		for _, row := range page {
			b, err := parseBarRow(code, row, c.cfg.Location)
			if err != nil {
				logger.Warn("[BROKER] %s %s: skip row: %v", QueryMinuteChart, code, err)
				continue
			}
			if b.Time.Before(day) {
				older = true
				continue
			}
			if helper.SameDay(b.Time, day) {
				out = append(out, b)
			}
		}
		return !older
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func parseBarRow(code string, row map[string]string, loc *time.Location) (models.Bar, error) {
	ts, err := time.ParseInLocation("20060102150405", row["time"], loc)
	if err != nil {
		return models.Bar{}, errors.Wrapf(ErrMalformedResponse, "time %q", row["time"])
	}
	b := models.Bar{Code: code, Time: helper.FloorMinute(ts)}
	var errs [5]error
	b.Open, errs[0] = helper.AbsFloat(row["open"])
	b.High, errs[1] = helper.AbsFloat(row["high"])
	b.Low, errs[2] = helper.AbsFloat(row["low"])
	b.Close, errs[3] = helper.AbsFloat(row["close"])
	b.Volume, errs[4] = helper.AbsInt(row["volume"])
	for _, e := range errs {
		if e != nil {
			return models.Bar{}, errors.Wrap(ErrMalformedResponse, e.Error())
		}
	}
	if !b.Valid() {
		return models.Bar{}, errors.Wrapf(ErrMalformedResponse, "%s ohlc o=%v h=%v l=%v c=%v", row["time"], b.Open, b.High, b.Low, b.Close)
	}
	return b, nil
}

// Deposit: d+2 оценочный депозит.
func (c *Client) Deposit(ctx context.Context) (int64, error) {
	rows, err := c.Query(ctx, QueryDeposit, c.accountParams())
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, errors.Wrapf(ErrMalformedResponse, "%s: empty", QueryDeposit)
	}
	raw, ok := rows[0]["d2_deposit"]
	if !ok {
		return 0, errors.Wrapf(ErrMalformedResponse, "%s: no d2_deposit", QueryDeposit)
	}
	v, err := helper.AbsInt(raw)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedResponse, "%s: d2_deposit %q", QueryDeposit, raw)
	}
	return v, nil
}

// Holdings: позиции счёта, все страницы.
func (c *Client) Holdings(ctx context.Context) ([]models.Holding, error) {
	rows, err := c.Query(ctx, QueryHoldings, c.accountParams())
	if err != nil {
		return nil, err
	}
	out := make([]models.Holding, 0, len(rows))
	for _, row := range rows {
		code := helper.NormCode(row["code"])
		if code == "" {
			continue
		}
		h := models.Holding{Code: code, Name: row["name"]}
		h.Quantity, _ = helper.AbsInt(row["quantity"])
		h.Tradable, _ = helper.AbsInt(row["tradable"])
		h.CostBasis, _ = helper.AbsFloat(row["cost_basis"])
		h.Price, _ = helper.AbsFloat(row["price"])
		out = append(out, h)
	}
	return out, nil
}

// Unexecuted: неисполненные заявки, все страницы.
func (c *Client) Unexecuted(ctx context.Context) ([]models.UnexecutedOrder, error) {
	params := c.accountParams()
	params["all_codes"] = "0"
	params["trade_kind"] = "0"
	params["exec_kind"] = "1"

	rows, err := c.Query(ctx, QueryUnexecuted, params)
	if err != nil {
		return nil, err
	}
	out := make([]models.UnexecutedOrder, 0, len(rows))
	for _, row := range rows {
		o := models.UnexecutedOrder{
			OrderID: row["order_id"],
			Code:    helper.NormCode(row["code"]),
			Side:    parseSide(row["side"]),
		}
		if o.OrderID == "" {
			continue
		}
		o.Ordered, _ = helper.AbsInt(row["ordered"])
		o.Remaining, _ = helper.AbsInt(row["remaining"])
		out = append(out, o)
	}
	return out, nil
}

// SubmitOrder отправляет заявку; ненулевой статус: отказ, не ошибка транспорта.
func (c *Client) SubmitOrder(ctx context.Context, req models.OrderRequest) (res orders.OrderResult, err error) {
	span, ctx := tracing.Start(ctx, "broker.submit_order", opentracing.Tags{
		"code": req.Code, "side": string(req.Side), "quantity": req.Quantity,
	})
	defer func() { tracing.Finish(span, err) }()

	hoga := "00"
	price := req.Price
	if req.Market {
		hoga, price = "03", 0
	}
	in, err := c.roundTrip(ctx, outFrame{
		Type: frameOrder,
		Order: &orderBody{
			Account:  c.cfg.Account,
			Side:     sideCode(req.Side),
			Code:     req.Code,
			Quantity: req.Quantity,
			Price:    price,
			Hoga:     hoga,
		},
	})
	if err != nil {
		return orders.OrderResult{}, errors.Wrapf(err, "order %s %s", req.Side, req.Code)
	}
	if in.Type != frameOrderResult {
		return orders.OrderResult{}, errors.Wrapf(ErrMalformedResponse, "order: frame type %q", in.Type)
	}

	res = orders.OrderResult{Status: in.Status, Message: StatusName(in.Status)}
	logger.Info("[BROKER] order %s %s qty=%d px=%s => %d %s",
		req.Side, req.Code, req.Quantity, strconv.FormatFloat(price, 'f', -1, 64), in.Status, res.Message)
	return res, nil
}
