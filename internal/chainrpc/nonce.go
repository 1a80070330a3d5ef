package chainrpc

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const methodTransactionCount = "eth_getTransactionCount"

// pendingTag makes back-to-back transfers from one account see each other.
const pendingTag = "pending"

type NonceTracker struct {
	caller  Caller
	timeout time.Duration
}

func NewNonceTracker(caller Caller, timeout time.Duration) *NonceTracker {
	return &NonceTracker{caller: caller, timeout: timeout}
}

func (n *NonceTracker) Next(ctx context.Context, addr common.Address) (uint64, error) {
	raw, err := call(ctx, n.caller, n.timeout, methodTransactionCount, addr, pendingTag)
	if err != nil {
		return 0, err
	}
	return decodeUint64(methodTransactionCount, raw)
}
