// Package socket owns the lifecycle of the push connection: dial, bounded
// fixed-delay reconnect, typed sends and room joins. Inbound frames are
// handed to an events.Router; this package holds no business state.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/chatwoot/ticketsync/internal/events"
)

// Defaults used when the corresponding Config field is zero.
const (
	DefaultReconnectDelay = 10 * time.Second
	DefaultMaxAttempts    = 3
	DefaultPingInterval   = 30 * time.Second
	DefaultPingTimeout    = 90 * time.Second
	DefaultRoomBatchSize  = 100
)

// maxReadSize caps a single inbound frame. Push frames are small JSON objects.
const maxReadSize = 1 << 20 // 1 MB

// Outbound frame types.
const (
	TypeConnect = "connect"
	TypePing    = "ping"
)

var (
	// ErrNotOpen is returned by Send when there is no open connection.
	ErrNotOpen = errors.New("socket is not open")
	// ErrReconnectExhausted is returned by Run once the reconnect budget is spent.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	// ErrPingTimeout is reported when no frame arrives within the ping timeout.
	ErrPingTimeout = errors.New("ping timeout: no frames received")
)

// State is the connection state.
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Config controls dialing and reconnect behaviour.
type Config struct {
	URL            string
	Header         http.Header
	ReconnectDelay time.Duration
	MaxAttempts    int
	PingInterval   time.Duration // 0 uses the default; negative disables keepalive
	PingTimeout    time.Duration // 0 uses the default; negative disables the read deadline
	RoomBatchSize  int
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.PingInterval == 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = DefaultPingTimeout
	}
	if c.RoomBatchSize <= 0 {
		c.RoomBatchSize = DefaultRoomBatchSize
	}
	return c
}

// Manager maintains one logical connection across reconnects.
type Manager struct {
	cfg    Config
	router *events.Router

	mu         sync.Mutex
	conn       *websocket.Conn
	state      State
	attempts   int
	nextHookID int
	onOpen     map[int]func(context.Context)
	onTerminal []func(error)
}

// New returns a Manager that dispatches inbound frames to router.
func New(cfg Config, router *events.Router) *Manager {
	if router == nil {
		router = events.NewRouter()
	}
	return &Manager{
		cfg:    cfg.withDefaults(),
		router: router,
		onOpen: make(map[int]func(context.Context)),
	}
}

// Router returns the router inbound frames are dispatched to.
func (m *Manager) Router() *events.Router { return m.router }

// Subscribe registers h for inbound frames of type typ.
func (m *Manager) Subscribe(typ string, h events.Handler) func() {
	return m.router.Subscribe(typ, h)
}

// OnOpen registers fn to run after every successful open, including
// reconnects. The returned function removes it.
func (m *Manager) OnOpen(fn func(context.Context)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHookID++
	id := m.nextHookID
	m.onOpen[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.onOpen, id)
	}
}

// OnTerminal registers fn to be told, once per Run, that reconnecting has
// been given up.
func (m *Manager) OnTerminal(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTerminal = append(m.onTerminal, fn)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of reconnects scheduled since the last open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Run connects and keeps the connection alive until ctx is cancelled or the
// reconnect budget is exhausted. A dropped or failed connection schedules
// exactly one reconnect after ReconnectDelay; the counter resets on every
// successful open. Cancellation returns nil.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.attempts = 0
	m.mu.Unlock()

	for {
		err := m.session(ctx)
		m.setState(StateClosed)
		if ctx.Err() != nil {
			return nil
		}

		m.mu.Lock()
		if m.attempts >= m.cfg.MaxAttempts {
			attempts := m.attempts
			hooks := append([]func(error){}, m.onTerminal...)
			m.mu.Unlock()

			final := fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, attempts, err)
			slog.Error("socket gave up reconnecting", "url", m.cfg.URL, "attempts", attempts, "error", err)
			for _, fn := range hooks {
				fn(final)
			}
			return final
		}
		m.attempts++
		attempt := m.attempts
		m.mu.Unlock()

		slog.Info("socket disconnected, reconnecting", "error", err, "attempt", attempt, "delay", m.cfg.ReconnectDelay)
		timer := time.NewTimer(m.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session dials once and reads until the connection drops.
func (m *Manager) session(ctx context.Context) error {
	m.setState(StateConnecting)

	conn, _, err := websocket.Dial(ctx, m.cfg.URL, &websocket.DialOptions{
		HTTPHeader: m.cfg.Header,
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(maxReadSize)

	m.mu.Lock()
	m.conn = conn
	m.state = StateOpen
	m.attempts = 0
	hooks := make([]func(context.Context), 0, len(m.onOpen))
	for _, fn := range m.onOpen {
		hooks = append(hooks, fn)
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	slog.Debug("socket open", "url", m.cfg.URL)
	for _, fn := range hooks {
		fn(ctx)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if m.cfg.PingInterval > 0 {
		go m.keepalive(sessCtx, conn)
	}

	return m.readLoop(ctx, conn)
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		// A per-read deadline catches half-dead connections that never
		// deliver a FIN or RST.
		readCtx := ctx
		var readCancel context.CancelFunc
		if m.cfg.PingTimeout > 0 {
			readCtx, readCancel = context.WithTimeout(ctx, m.cfg.PingTimeout)
		}

		_, data, err := conn.Read(readCtx)

		if readCancel != nil {
			readCancel()
		}
		if err != nil {
			if m.cfg.PingTimeout > 0 && ctx.Err() == nil && readCtx.Err() != nil {
				return ErrPingTimeout
			}
			return fmt.Errorf("read: %w", err)
		}

		// Malformed frames are logged and dropped by the router.
		_ = m.router.DispatchRaw(ctx, data)
	}
}

func (m *Manager) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	ping, _ := json.Marshal(events.Frame{Type: TypePing})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Write(ctx, websocket.MessageText, ping); err != nil {
				if ctx.Err() == nil {
					slog.Debug("keepalive write failed", "error", err)
				}
				return
			}
		}
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Send writes a {type, data} frame. It fails with ErrNotOpen when the socket
// is not open; callers must not assume delivery either way.
func (m *Manager) Send(ctx context.Context, typ string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	open := m.state == StateOpen
	m.mu.Unlock()
	if !open || conn == nil {
		return ErrNotOpen
	}

	f := events.Frame{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		f.Data = data
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

type joinPayload struct {
	TicketIDs []int `json:"ticket_id"`
}

// JoinRooms subscribes to push rooms for ids, RoomBatchSize ids per frame.
func (m *Manager) JoinRooms(ctx context.Context, ids []int) error {
	for _, chunk := range Chunk(ids, m.cfg.RoomBatchSize) {
		if err := m.Send(ctx, TypeConnect, joinPayload{TicketIDs: chunk}); err != nil {
			return err
		}
	}
	return nil
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []int, size int) [][]int {
	if len(ids) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(ids)
	}
	out := make([][]int, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end:end])
	}
	return out
}
