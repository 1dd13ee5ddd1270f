package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"etf_agent/internal/models"
	"etf_agent/pkg/logger"
	"etf_agent/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

type Config struct {
	URL            string
	Account        string
	Password       string
	RequestTimeout time.Duration // 0: ждём ответ сколько угодно
	PageInterval   time.Duration
	Location       *time.Location
}

// Client: соединение с мостом терминала, push-поток и синхронные запросы
// с корреляцией по request id. Одновременно в полёте не больше одного запроса.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	pacer  *rate.Limiter
	now    func() time.Time

	events chan models.Event
	qmu    sync.Mutex
	queue  []models.Event // push-события, ещё не отданные в events
	wake   chan struct{}
	fwd    sync.Once

	writeMu sync.Mutex
	mu      sync.Mutex
	conn    *websocket.Conn
	dropped chan struct{}
	call    *pendingCall

	connected    atomic.Bool
	onConnection func(bool)
	firstUp      chan struct{}
	upOnce       sync.Once
}

type pendingCall struct {
	id   string
	resp chan inFrame
}

func NewClient(cfg Config) *Client {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	interval := cfg.PageInterval
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Client{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		pacer:   rate.NewLimiter(limit, 1),
		now:     time.Now,
		events:  make(chan models.Event, 256),
		wake:    make(chan struct{}, 1),
		firstUp: make(chan struct{}),
	}
}

// Events: push-события в порядке прихода.
func (c *Client) Events() <-chan models.Event { return c.events }

// OnConnection: колбэк на смену состояния соединения (health).
func (c *Client) OnConnection(fn func(bool)) { c.onConnection = fn }

// Run держит соединение до отмены ctx, переподключаясь через секунду.
func (c *Client) Run(ctx context.Context) {
	for {
		if err := c.Connect(ctx); err != nil {
			logger.Warn("[BROKER] dial %s: %v", c.cfg.URL, err)
		} else {
			c.readLoop(ctx)
		}

		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-time.After(time.Second):
		}
	}
}

// Connect открывает соединение; readLoop запускает вызывающий (Run) или тест.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return errors.Wrap(err, "broker dial")
	}

	c.mu.Lock()
	c.conn = conn
	c.dropped = make(chan struct{})
	c.mu.Unlock()

	c.setConnected(true)
	c.upOnce.Do(func() { close(c.firstUp) })
	logger.Info("[BROKER] connected %s", c.cfg.URL)
	return nil
}

// WaitConnected ждёт первого соединения.
func (c *Client) WaitConnected(ctx context.Context) error {
	select {
	case <-c.firstUp:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ErrNotConnected, ctx.Err().Error())
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) setConnected(v bool) {
	if c.connected.Swap(v) != v && c.onConnection != nil {
		c.onConnection(v)
	}
}

func (c *Client) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn, dropped := c.conn, c.dropped
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		close(dropped)
		_ = conn.Close()
		c.setConnected(false)
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	c.fwd.Do(func() { go c.forward(ctx) })

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("[BROKER] read: %v", err)
			}
			return
		}

		var f inFrame
		if err := sonic.Unmarshal(msg, &f); err != nil {
			logger.Warn("[BROKER] bad frame: %v", err)
			continue
		}

		if f.Type == framePush {
			ev := decodePush(f, c.now(), c.cfg.Location)
			if ev == nil {
				logger.Debug("[BROKER] push %q ignored", f.Event)
				continue
			}
			c.enqueue(ev)
			continue
		}

		c.deliver(f)
	}
}

// enqueue никогда не блокирует чтение сокета: ответ на запрос должен дойти,
// даже если раннер сейчас не читает Events.
func (c *Client) enqueue(ev models.Event) {
	c.qmu.Lock()
	c.queue = append(c.queue, ev)
	c.qmu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// queued: сколько push-событий ждут отправки в Events.
func (c *Client) queued() int {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return len(c.queue)
}

// forward перекладывает очередь в events в порядке прихода.
func (c *Client) forward(ctx context.Context) {
	for {
		c.qmu.Lock()
		if len(c.queue) == 0 {
			c.qmu.Unlock()
			select {
			case <-c.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		ev := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.qmu.Unlock()

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) deliver(f inFrame) {
	c.mu.Lock()
	call := c.call
	c.mu.Unlock()

	if call == nil || call.id != f.ID {
		logger.Warn("[BROKER] unexpected response id=%s type=%s", f.ID, f.Type)
		return
	}
	select {
	case call.resp <- f:
	default:
	}
}

// roundTrip отправляет кадр и блокируется до ответа с тем же id.
func (c *Client) roundTrip(ctx context.Context, out outFrame) (in inFrame, err error) {
	span, ctx := tracing.Start(ctx, "broker."+out.Type, opentracing.Tags{"query_id": out.QueryID, "next": out.Next})
	defer func() { tracing.Finish(span, err) }()

	out.ID = uuid.NewString()
	call := &pendingCall{id: out.ID, resp: make(chan inFrame, 1)}

	c.mu.Lock()
	if c.call != nil {
		c.mu.Unlock()
		return inFrame{}, errors.Wrapf(ErrNestedRequest, "%s %s while %s in flight", out.Type, out.QueryID, c.call.id)
	}
	conn, dropped := c.conn, c.dropped
	if conn == nil {
		c.mu.Unlock()
		return inFrame{}, ErrNotConnected
	}
	c.call = call
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.call = nil
		c.mu.Unlock()
	}()

	payload, err := sonic.Marshal(out)
	if err != nil {
		return inFrame{}, errors.Wrap(err, "marshal request")
	}
	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		return inFrame{}, errors.Wrap(err, "write request")
	}

	var timeout <-chan time.Time
	if c.cfg.RequestTimeout > 0 {
		t := time.NewTimer(c.cfg.RequestTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case in = <-call.resp:
		return in, nil
	case <-dropped:
		return inFrame{}, errors.Wrap(ErrNotConnected, "connection dropped")
	case <-timeout:
		return inFrame{}, errors.Wrapf(ErrTimeout, "%s %s after %s", out.Type, out.QueryID, c.cfg.RequestTimeout)
	case <-ctx.Done():
		return inFrame{}, ctx.Err()
	}
}

// Query выполняет батч-запрос и выкачивает все страницы.
func (c *Client) Query(ctx context.Context, queryID string, params map[string]string) ([]map[string]string, error) {
	var rows []map[string]string
	err := c.QueryPages(ctx, queryID, params, func(page []map[string]string) bool {
		rows = append(rows, page...)
		return true
	})
	return rows, err
}

// QueryPages отдаёт страницы в fn, пока есть продолжение и fn возвращает true.
func (c *Client) QueryPages(ctx context.Context, queryID string, params map[string]string, fn func([]map[string]string) bool) error {
	next := pageFirst
	for page := 0; ; page++ {
		if page > 0 {
			if err := c.pacer.Wait(ctx); err != nil {
				return err
			}
		} else {
			c.pacer.Allow()
		}

		in, err := c.roundTrip(ctx, outFrame{Type: frameQuery, QueryID: queryID, Params: params, Next: next})
		if err != nil {
			return errors.Wrapf(err, "query %s page %d", queryID, page)
		}
		if in.Type != frameQueryResult {
			return errors.Wrapf(ErrMalformedResponse, "query %s: frame type %q", queryID, in.Type)
		}
		if in.Status != 0 {
			return &StatusError{Op: "query " + queryID, Status: in.Status, Detail: in.Error}
		}
		if in.Rows == nil {
			return errors.Wrapf(ErrMalformedResponse, "query %s: no rows", queryID)
		}

		if !fn(in.Rows) || !in.More {
			return nil
		}
		next = pageNext
	}
}
