// Package router dispatches command envelopes to registered handlers.
//
// The router owns the failure surface of command execution: an unknown
// command, a handler error, or a handler panic all come back as a
// well-formed failure response, never as a Go error. Callers that reach
// Dispatch always get an envelope they can put on the wire.
package router

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fourquadrant/focusbridge/internal/envelope"
)

// ErrDuplicateCommand reports a second registration for a command name.
var ErrDuplicateCommand = errors.New("duplicate command")

// Result is a handler's successful outcome.
type Result struct {
	Message string
	Data    map[string]any
}

// Handler executes one command against its argument bag.
type Handler func(args map[string]any) (Result, error)

// Kind constrains the JSON type of a schema field.
type Kind int

const (
	String Kind = iota + 1
	Number
	Bool
	Object
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case Object:
		return "object"
	}
	return "unknown"
}

// Schema declares the argument contract checked before a handler runs.
type Schema struct {
	Required []string
	Fields   map[string]Kind
}

type registration struct {
	handler Handler
	schema  Schema
}

// Router maps command names to handlers and stamps responses.
type Router struct {
	mu        sync.Mutex
	handlers  map[string]registration
	lastStamp int64
	now       func() time.Time
}

// New returns an empty router.
func New() *Router {
	return &Router{
		handlers: make(map[string]registration),
		now:      time.Now,
	}
}

// Register binds a handler to a command name.
func (r *Router) Register(name string, handler Handler) error {
	return r.RegisterWithSchema(name, Schema{}, handler)
}

// RegisterWithSchema binds a handler and its argument contract to a
// command name. Arguments are validated against the schema before the
// handler runs.
func (r *Router) RegisterWithSchema(name string, schema Schema, handler Handler) error {
	if name == "" {
		return errors.New("command name is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required for command %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	r.handlers[name] = registration{handler: handler, schema: schema}
	return nil
}

// Commands returns the registered command names.
func (r *Router) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Dispatch executes the named command and returns its response envelope.
// Dispatch never fails: unknown commands, invalid arguments, handler
// errors, and handler panics all produce a stamped failure response.
func (r *Router) Dispatch(name string, args map[string]any) envelope.CommandResponse {
	r.mu.Lock()
	reg, ok := r.handlers[name]
	r.mu.Unlock()

	if !ok {
		return r.stamp(failure(fmt.Sprintf("unknown command: %s", name)))
	}
	if err := validateArgs(name, reg.schema, args); err != nil {
		return r.stamp(failure(err.Error()))
	}

	result, err := r.run(name, reg.handler, args)
	if err != nil {
		return r.stamp(failure(err.Error()))
	}
	return r.stamp(envelope.CommandResponse{
		Success: true,
		Message: result.Message,
		Data:    result.Data,
	})
}

func (r *Router) run(name string, handler Handler, args map[string]any) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("router: command %s panicked: %v", name, rec)
			err = errors.New("internal error executing command")
		}
	}()
	return handler(args)
}

// stamp sets the response timestamp, clamped so stamps issued by this
// router never decrease even if the wall clock steps backwards.
func (r *Router) stamp(response envelope.CommandResponse) envelope.CommandResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp := r.now().Unix()
	if stamp < r.lastStamp {
		stamp = r.lastStamp
	}
	r.lastStamp = stamp
	response.Timestamp = stamp
	return response
}

func failure(message string) envelope.CommandResponse {
	return envelope.CommandResponse{Success: false, Message: message, Error: message}
}

func validateArgs(command string, schema Schema, args map[string]any) error {
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("invalid args for %s: missing required field %q", command, key)
		}
	}
	for key, kind := range schema.Fields {
		value, ok := args[key]
		if !ok || value == nil {
			continue
		}
		if !matchesKind(value, kind) {
			return fmt.Errorf("invalid args for %s: field %q must be a %s", command, key, kind)
		}
	}
	return nil
}

func matchesKind(value any, kind Kind) bool {
	switch kind {
	case String:
		_, ok := value.(string)
		return ok
	case Number:
		switch value.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case Bool:
		_, ok := value.(bool)
		return ok
	case Object:
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}
