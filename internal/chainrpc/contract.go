package chainrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const methodCall = "eth_call"

// ContractReader runs read-only contract calls against the latest block.
type ContractReader struct {
	caller  Caller
	timeout time.Duration
}

func NewContractReader(caller Caller, timeout time.Duration) *ContractReader {
	return &ContractReader{caller: caller, timeout: timeout}
}

func (r *ContractReader) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	arg := map[string]interface{}{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	raw, err := call(ctx, r.caller, r.timeout, methodCall, arg, "latest")
	if err != nil {
		return nil, err
	}
	var out hexutil.Bytes
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s result: %v", ErrUnexpected, methodCall, err)
	}
	return out, nil
}

// Simulate replays msg with eth_call, surfacing the revert reason a failed
// gas estimate hides.
func (r *ContractReader) Simulate(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	raw, err := call(ctx, r.caller, r.timeout, methodCall, toCallArg(msg), "latest")
	if err != nil {
		return nil, err
	}
	var out hexutil.Bytes
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s result: %v", ErrUnexpected, methodCall, err)
	}
	return out, nil
}
