package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

type reply struct {
	raw json.RawMessage
	err error
}

// call issues one request and resolves to exactly one of a non-empty result
// or an error. The reply channel is buffered so a late transport answer never
// blocks after the caller has given up.
func call(ctx context.Context, c Caller, timeout time.Duration, method string, args ...interface{}) (json.RawMessage, error) {
	if c == nil {
		return nil, errors.New("rpc caller is nil")
	}
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	done := make(chan reply, 1)
	go func() {
		var raw json.RawMessage
		err := c.CallContext(ctx, &raw, method, args...)
		done <- reply{raw: raw, err: err}
	}()

	var r reply
	select {
	case <-ctx.Done():
		return nil, &RPCError{Method: method, Err: ctx.Err()}
	case r = <-done:
	}
	if r.err != nil {
		if errors.Is(r.err, rpc.ErrNoResult) {
			return nil, ErrUnexpected
		}
		return nil, &RPCError{Method: method, Err: r.err}
	}
	if isEmptyResult(r.raw) {
		return nil, ErrUnexpected
	}
	return r.raw, nil
}

func isEmptyResult(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeBig(method string, raw json.RawMessage) (*big.Int, error) {
	var v hexutil.Big
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %s result: %v", ErrUnexpected, method, err)
	}
	return (*big.Int)(&v), nil
}

func decodeUint64(method string, raw json.RawMessage) (uint64, error) {
	var v hexutil.Uint64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %s result: %v", ErrUnexpected, method, err)
	}
	return uint64(v), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
