package chainrpc

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	methodGasPrice       = "eth_gasPrice"
	methodMaxPriorityFee = "eth_maxPriorityFeePerGas"
	methodEstimateGas    = "eth_estimateGas"
)

// CallRequest describes a plain value transfer for gas estimation.
type CallRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// FeeQuoter answers gas price, priority fee and gas limit queries. Every
// method makes a single round trip and never retries.
type FeeQuoter struct {
	caller  Caller
	timeout time.Duration
}

func NewFeeQuoter(caller Caller, timeout time.Duration) *FeeQuoter {
	return &FeeQuoter{caller: caller, timeout: timeout}
}

func (q *FeeQuoter) GasPrice(ctx context.Context) (*big.Int, error) {
	return q.quantity(ctx, methodGasPrice)
}

func (q *FeeQuoter) MaxPriorityFeePerGas(ctx context.Context) (*big.Int, error) {
	return q.quantity(ctx, methodMaxPriorityFee)
}

func (q *FeeQuoter) EstimateGasForCall(ctx context.Context, req CallRequest) (*big.Int, error) {
	to := req.To
	return q.estimateGas(ctx, ethereum.CallMsg{
		From:  req.From,
		To:    &to,
		Value: req.Value,
	})
}

// EstimateGasForInvocation simulates a contract call against current state.
func (q *FeeQuoter) EstimateGasForInvocation(ctx context.Context, from common.Address, contract common.Address, value *big.Int, data []byte) (*big.Int, error) {
	to := contract
	return q.estimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
}

func (q *FeeQuoter) estimateGas(ctx context.Context, msg ethereum.CallMsg) (*big.Int, error) {
	raw, err := call(ctx, q.caller, q.timeout, methodEstimateGas, toCallArg(msg))
	if err != nil {
		return nil, &EstimateGasError{Err: err, CallMsg: msg}
	}
	gas, err := decodeBig(methodEstimateGas, raw)
	if err != nil {
		return nil, &EstimateGasError{Err: err, CallMsg: msg}
	}
	return gas, nil
}

func (q *FeeQuoter) quantity(ctx context.Context, method string) (*big.Int, error) {
	raw, err := call(ctx, q.caller, q.timeout, method)
	if err != nil {
		return nil, err
	}
	return decodeBig(method, raw)
}

func toCallArg(msg ethereum.CallMsg) map[string]interface{} {
	arg := map[string]interface{}{
		"to": msg.To,
	}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}
	if len(msg.Data) > 0 {
		arg["data"] = hexutil.Bytes(msg.Data)
	}
	if msg.Value != nil {
		arg["value"] = (*hexutil.Big)(msg.Value)
	}
	return arg
}
