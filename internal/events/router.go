// Package events demultiplexes inbound push frames to registered handlers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Inbound frame types understood by the sync core.
const (
	TypeMessage      = "message"
	TypeSeen         = "seen"
	TypeTicket       = "ticket"
	TypeTicketUpdate = "ticket_update"
	TypePong         = "pong"
)

// ErrMalformedFrame is returned by Decode for non-JSON input or a missing type.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is the {type, data} envelope used on the wire in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses a raw socket payload into a Frame.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return f, nil
}

// Handler processes the data payload of one frame.
type Handler func(ctx context.Context, data json.RawMessage) error

type registration struct {
	id int
	fn Handler
}

// Router fans frames out to handlers registered per type.
//
// Handlers for the same type run in subscription order. A handler that
// returns an error or panics is logged and does not stop the others.
type Router struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string][]registration

	lastMu  sync.RWMutex
	last    Frame
	hasLast bool
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string][]registration)}
}

// Subscribe registers h for frames of type typ and returns a function that
// removes it. Calling the returned function more than once is harmless.
func (r *Router) Subscribe(typ string, h Handler) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handlers[typ] = append(r.handlers[typ], registration{id: id, fn: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(typ, id) })
	}
}

func (r *Router) unsubscribe(typ string, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs := r.handlers[typ]
	for i, reg := range regs {
		if reg.id != id {
			continue
		}
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(r.handlers, typ)
		} else {
			r.handlers[typ] = next
		}
		return
	}
}

// On registers a typed handler: the frame data is decoded into T before fn
// is called. Payloads that fail to decode are reported as handler errors.
func On[T any](r *Router, typ string, fn func(ctx context.Context, payload T) error) func() {
	return r.Subscribe(typ, func(ctx context.Context, data json.RawMessage) error {
		var payload T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &payload); err != nil {
				return fmt.Errorf("decode %s payload: %w", typ, err)
			}
		}
		return fn(ctx, payload)
	})
}

// handlerCount returns the number of handlers registered for typ.
func (r *Router) handlerCount(typ string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[typ])
}

// Dispatch records f as the last frame and invokes every handler for f.Type.
// It returns the number of handlers that completed without error.
func (r *Router) Dispatch(ctx context.Context, f Frame) int {
	r.lastMu.Lock()
	r.last = f
	r.hasLast = true
	r.lastMu.Unlock()

	r.mu.RLock()
	regs := r.handlers[f.Type]
	r.mu.RUnlock()

	if len(regs) == 0 {
		slog.Debug("no handlers for frame", "type", f.Type)
		return 0
	}

	ok := 0
	for _, reg := range regs {
		if err := invoke(ctx, reg.fn, f.Data); err != nil {
			slog.Warn("frame handler failed", "type", f.Type, "error", err)
			continue
		}
		ok++
	}
	return ok
}

// DispatchRaw decodes raw and dispatches it. Malformed input is dropped and
// reported as ErrMalformedFrame; no handler sees it.
func (r *Router) DispatchRaw(ctx context.Context, raw []byte) error {
	f, err := Decode(raw)
	if err != nil {
		slog.Debug("dropping frame", "error", err)
		return err
	}
	r.Dispatch(ctx, f)
	return nil
}

// Last returns the most recently dispatched frame.
func (r *Router) Last() (Frame, bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	return r.last, r.hasLast
}

func invoke(ctx context.Context, h Handler, data json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, data)
}
