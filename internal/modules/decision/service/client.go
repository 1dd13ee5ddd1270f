package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"etf_agent/internal/models"
	"etf_agent/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/opentracing/opentracing-go"
)

// Item: бар в формате сервиса решений.
type Item struct {
	Dt     string  `json:"dt"` // YYYYMMDDHHMM
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type PredictRequest struct {
	Histories map[models.DecisionTag][]Item `json:"histories"`
}

type PredictResponse struct {
	Actions map[models.DecisionTag]float64 `json:"actions"`
}

// Client: HTTP-клиент сервиса решений, окно баров по кандидатам -> score по меткам.
type Client struct {
	url        string
	window     int
	candidates []models.Candidate
	http       *http.Client
}

func NewClient(url string, window int, timeout time.Duration, candidates []models.Candidate) *Client {
	return &Client{
		url:        url,
		window:     window,
		candidates: append([]models.Candidate(nil), candidates...),
		http:       &http.Client{Timeout: timeout},
	}
}

// Predict отправляет последние window баров каждого кандидата.
func (c *Client) Predict(ctx context.Context, combined models.Series) (scores map[models.DecisionTag]float64, err error) {
	span, ctx := tracing.Start(ctx, "decision.predict", opentracing.Tags{"window": c.window})
	defer func() { tracing.Finish(span, err) }()

	req := PredictRequest{Histories: make(map[models.DecisionTag][]Item, len(c.candidates))}
	for _, cand := range c.candidates {
		rows := combined[cand.Code]
		if len(rows) == 0 {
			return nil, fmt.Errorf("Predict: no bars for %s", cand.Code)
		}
		if c.window > 0 && len(rows) > c.window {
			rows = rows[len(rows)-c.window:]
		}
		items := make([]Item, 0, len(rows))
		for _, b := range rows {
			items = append(items, Item{
				Dt:     b.Time.Format("200601021504"),
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
			})
		}
		req.Histories[cand.Tag] = items
	}

	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("Predict marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("Predict new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Predict do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Predict read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Predict: status %d: %s", resp.StatusCode, string(body))
	}

	var out PredictResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("Predict unmarshal: %w", err)
	}
	if len(out.Actions) == 0 {
		return nil, fmt.Errorf("Predict: empty actions")
	}
	return out.Actions, nil
}
