package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"etf_agent/internal/models"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var candidates = []models.Candidate{
	{Code: "069500", Tag: "X"},
	{Code: "114800", Tag: "Y"},
}

func series(n int) models.Series {
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	out := models.Series{}
	for _, code := range []string{"069500", "114800"} {
		for i := 0; i < n; i++ {
			out[code] = append(out[code], models.Bar{Code: code, Time: start.Add(time.Duration(i) * time.Minute), Open: 1, High: 2, Low: 1, Close: 2, Volume: int64(i)})
		}
	}
	return out
}

func TestPredict_SendsTrailingWindow(t *testing.T) {
	var got PredictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"actions":{"X":0.1,"Y":0.8,"NOP":0.1}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 3, time.Second, candidates)
	scores, err := c.Predict(context.Background(), series(5))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, scores["Y"], 1e-9)

	require.Len(t, got.Histories["X"], 3)
	assert.Equal(t, "202610150902", got.Histories["X"][0].Dt)
	assert.Equal(t, "202610150904", got.Histories["Y"][2].Dt)
	assert.EqualValues(t, 4, got.Histories["Y"][2].Volume)
}

func TestPredict_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 3, time.Second, candidates)
	_, err := c.Predict(context.Background(), series(5))
	assert.ErrorContains(t, err, "503")

	_, err = c.Predict(context.Background(), models.Series{"069500": series(1)["069500"]})
	assert.ErrorContains(t, err, "114800")
}
