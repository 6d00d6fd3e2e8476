// Package cqrs is a typed command dispatcher. Handlers are registered
// against concrete message types in an explicit registry built at
// process start; dispatch resolves exactly one handler or fails, and
// threads the caller's context and any configured decorators through
// the invocation.
package cqrs

import (
	"context"
	"fmt"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Message is a request object describing an intended state change.
// Type must be declared on the value receiver so the dispatcher can
// derive it from the zero value during registration.
type Message interface {
	Type() string
}

// Handler executes a void command.
type Handler[M Message] interface {
	Execute(ctx context.Context, msg M) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc[M Message] func(ctx context.Context, msg M) error

func (f HandlerFunc[M]) Execute(ctx context.Context, msg M) error {
	return f(ctx, msg)
}

// RequestHandler executes a command that produces a response.
type RequestHandler[M Message, R any] interface {
	Execute(ctx context.Context, msg M) (R, error)
}

// RequestHandlerFunc adapts a plain function to RequestHandler.
type RequestHandlerFunc[M Message, R any] func(ctx context.Context, msg M) (R, error)

func (f RequestHandlerFunc[M, R]) Execute(ctx context.Context, msg M) (R, error) {
	return f(ctx, msg)
}

// ResolutionError reports that a message type resolved to zero or to
// multiple handlers, or to a handler whose message or response shape
// does not match the dispatch. This is a wiring mistake, fatal at
// dispatch time, and no candidate handler runs.
type ResolutionError struct {
	MessageType string
	Registered  int
	Mismatched  bool
}

func (e *ResolutionError) Error() string {
	if e.Registered > 1 {
		return fmt.Sprintf("ambiguous handler registration for %q: %d handlers", e.MessageType, e.Registered)
	}
	if e.Mismatched {
		return fmt.Sprintf("handler registered for %q does not match the dispatched message shape", e.MessageType)
	}
	return fmt.Sprintf("no handler registered for %q", e.MessageType)
}

// Invocation is the erased form of a handler call that decorators wrap.
type Invocation func(ctx context.Context, msg Message) error

// Decorator is a cross-cutting behavior the dispatcher threads around
// the resolved handler. Decorators wrap outermost first.
type Decorator interface {
	Wrap(next Invocation) Invocation
}

type registration struct {
	handler any
	count   int
}

// Dispatcher routes messages to their single registered handler.
// Registration happens at startup; dispatch is safe for concurrent use.
type Dispatcher struct {
	mu         sync.RWMutex
	handlers   map[string]*registration
	decorators []Decorator
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: map[string]*registration{},
	}
}

// Use appends decorators; the first one added becomes the outermost.
func (d *Dispatcher) Use(decorators ...Decorator) *Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decorators = append(d.decorators, decorators...)
	return d
}

func (d *Dispatcher) add(msgType string, handler any) error {
	if handler == nil {
		return goerrors.New("cannot register a nil handler", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"message_type": msgType})
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if reg, ok := d.handlers[msgType]; ok {
		// Duplicates are recorded, not rejected: dispatch reports the
		// ambiguity instead of silently picking one.
		reg.count++
		return nil
	}

	d.handlers[msgType] = &registration{handler: handler, count: 1}
	return nil
}

func (d *Dispatcher) resolve(msgType string) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	reg, ok := d.handlers[msgType]
	if !ok {
		return nil, &ResolutionError{MessageType: msgType}
	}
	if reg.count > 1 {
		return nil, &ResolutionError{MessageType: msgType, Registered: reg.count}
	}

	return reg.handler, nil
}

// Register binds the handler for message type M.
func Register[M Message](d *Dispatcher, handler Handler[M]) error {
	var msg M
	if handler == nil {
		return d.add(msg.Type(), nil)
	}
	return d.add(msg.Type(), handler)
}

// RegisterRequest binds the response-producing handler for message
// type M.
func RegisterRequest[M Message, R any](d *Dispatcher, handler RequestHandler[M, R]) error {
	var msg M
	if handler == nil {
		return d.add(msg.Type(), nil)
	}
	return d.add(msg.Type(), handler)
}

// Send dispatches a void command to its single registered handler.
func Send[M Message](ctx context.Context, d *Dispatcher, msg M) error {
	resolved, err := d.resolve(msg.Type())
	if err != nil {
		return err
	}

	handler, ok := resolved.(Handler[M])
	if !ok {
		return &ResolutionError{MessageType: msg.Type(), Mismatched: true}
	}

	return d.invoke(ctx, msg, func(ctx context.Context, m Message) error {
		typed, ok := m.(M)
		if !ok {
			return &ResolutionError{MessageType: m.Type(), Mismatched: true}
		}
		return handler.Execute(ctx, typed)
	})
}

// SendRequest dispatches a command and returns the handler's response.
func SendRequest[M Message, R any](ctx context.Context, d *Dispatcher, msg M) (R, error) {
	var response R

	resolved, err := d.resolve(msg.Type())
	if err != nil {
		return response, err
	}

	handler, ok := resolved.(RequestHandler[M, R])
	if !ok {
		return response, &ResolutionError{MessageType: msg.Type(), Mismatched: true}
	}

	err = d.invoke(ctx, msg, func(ctx context.Context, m Message) error {
		typed, ok := m.(M)
		if !ok {
			return &ResolutionError{MessageType: m.Type(), Mismatched: true}
		}
		resp, err := handler.Execute(ctx, typed)
		if err != nil {
			return err
		}
		response = resp
		return nil
	})

	return response, err
}

func (d *Dispatcher) invoke(ctx context.Context, msg Message, inv Invocation) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "dispatch cancelled before handler invocation")
	}

	d.mu.RLock()
	decorators := d.decorators
	d.mu.RUnlock()

	for i := len(decorators) - 1; i >= 0; i-- {
		inv = decorators[i].Wrap(inv)
	}

	return inv(ctx, msg)
}
