package chainrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
)

type stub func(args []interface{}) (json.RawMessage, error)

type fakeCaller struct {
	mu       sync.Mutex
	handlers map[string]stub
	calls    []fakeCall
}

type fakeCall struct {
	method string
	args   []interface{}
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{handlers: map[string]stub{}}
}

func (f *fakeCaller) on(method string, h stub) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeCaller) result(method string, v string) {
	f.on(method, func([]interface{}) (json.RawMessage, error) {
		return json.RawMessage(v), nil
	})
}

// empty stubs a response with neither result nor error.
func (f *fakeCaller) empty(method string) {
	f.on(method, func([]interface{}) (json.RawMessage, error) {
		return nil, nil
	})
}

func (f *fakeCaller) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{method: method, args: args})
	h := f.handlers[method]
	f.mu.Unlock()
	if h == nil {
		return fmt.Errorf("method %s not stubbed", method)
	}
	raw, err := h(args)
	if err != nil {
		return err
	}
	if raw == nil {
		return rpc.ErrNoResult
	}
	return json.Unmarshal(raw, result)
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCaller) lastCall() fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return fakeCall{}
	}
	return f.calls[len(f.calls)-1]
}

type rpcErr struct {
	code int
	msg  string
}

func (e *rpcErr) Error() string  { return e.msg }
func (e *rpcErr) ErrorCode() int { return e.code }
