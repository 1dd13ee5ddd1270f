package service

const (
	frameQuery       = "query"
	frameOrder       = "order"
	frameQueryResult = "query_result"
	frameOrderResult = "order_result"
	framePush        = "push"

	// next: 0 первая страница, 2 продолжение
	pageFirst = 0
	pageNext  = 2
)

// outFrame: запрос агента к мосту терминала.
type outFrame struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	QueryID string            `json:"query_id,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Next    int               `json:"next"`
	Order   *orderBody        `json:"order,omitempty"`
}

type orderBody struct {
	Account  string  `json:"account"`
	Side     string  `json:"side"`
	Code     string  `json:"code"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	// "00" лимитная, "03" рыночная
	Hoga string `json:"hoga"`
}

// inFrame: ответ на запрос или push-событие.
type inFrame struct {
	ID     string              `json:"id"`
	Type   string              `json:"type"`
	Rows   []map[string]string `json:"rows"`
	More   bool                `json:"more"`
	Status int                 `json:"status"`
	Error  string              `json:"error"`

	Event  string            `json:"event"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}
