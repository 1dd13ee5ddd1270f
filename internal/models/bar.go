package models

import "time"

// Tick: одна сделка из push-потока брокера.
type Tick struct {
	Code    string
	Time    time.Time
	Price   float64 // текущая цена сделки
	Open    float64 // дневные значения, как их отдаёт терминал
	High    float64
	Low     float64
	Volume  int64
	BestAsk float64
	BestBid float64
}

// Bar: минутная OHLCV свеча по инструменту.
type Bar struct {
	Code   string    `json:"code" parquet:"code"`
	Time   time.Time `json:"dt" parquet:"dt,timestamp"`
	Open   float64   `json:"open" parquet:"open"`
	High   float64   `json:"high" parquet:"high"`
	Low    float64   `json:"low" parquet:"low"`
	Close  float64   `json:"close" parquet:"close"`
	Volume int64     `json:"volume" parquet:"volume"`
}

// Valid проверяет low <= open,close <= high и volume >= 0.
func (b Bar) Valid() bool {
	if b.Volume < 0 {
		return false
	}
	if b.Low > b.High {
		return false
	}
	for _, px := range []float64{b.Open, b.Close} {
		if px < b.Low || px > b.High {
			return false
		}
	}
	return true
}

// Series: бары по инструментам, каждый слайс отсортирован по времени.
type Series map[string][]Bar
