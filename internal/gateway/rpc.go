package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// RPCHandler answers one client RPC method call (§4.9's client RPC:
// {id, method, params} → {id, result|error}).
type RPCHandler func(ctx context.Context, params json.RawMessage) (any, error)

// RPCRouter holds the method table the gateway dispatches client requests
// against. Handlers are registered once at boot by the component that owns
// each snapshot (sessions, memory, tools, skills).
type RPCRouter struct {
	mu       sync.RWMutex
	handlers map[string]RPCHandler
}

// NewRPCRouter returns an empty router.
func NewRPCRouter() *RPCRouter {
	return &RPCRouter{handlers: make(map[string]RPCHandler)}
}

// Register binds method to handler, overwriting any prior registration.
func (r *RPCRouter) Register(method string, handler RPCHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = handler
}

// Dispatch runs method's handler under ctx's deadline. An unknown method is
// itself an error, not a panic.
func (r *RPCRouter) Dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	r.mu.RLock()
	handler, ok := r.handlers[method]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("method not found: %s", method)
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := handler(ctx, params)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
