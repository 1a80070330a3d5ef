package txbuilder

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const erc20ABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var parsedERC20 = mustParseABI(erc20ABI)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// InvocationEstimator simulates a contract call and reports its gas.
type InvocationEstimator interface {
	EstimateGasForInvocation(ctx context.Context, from common.Address, contract common.Address, value *big.Int, data []byte) (*big.Int, error)
}

// ContractReader executes read-only calls.
type ContractReader interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

type TokenEncoder struct {
	estimator InvocationEstimator
}

func NewTokenEncoder(estimator InvocationEstimator) *TokenEncoder {
	return &TokenEncoder{estimator: estimator}
}

// TransferSelector is the 4-byte id of transfer(address,uint256).
func TransferSelector() []byte {
	return append([]byte{}, parsedERC20.Methods["transfer"].ID...)
}

func (e *TokenEncoder) EncodeTransfer(to []byte, amount *big.Int) ([]byte, error) {
	recipient, err := addressFromBytes(to)
	if err != nil {
		return nil, &EncodingError{Method: "transfer", Err: fmt.Errorf("recipient: %w", err)}
	}
	if amount == nil {
		return nil, &EncodingError{Method: "transfer", Err: errors.New("amount is nil")}
	}
	if amount.Sign() < 0 || amount.Cmp(maxUint256) > 0 {
		return nil, &EncodingError{Method: "transfer", Err: fmt.Errorf("amount %s out of uint256 range", amount)}
	}
	data, err := parsedERC20.Pack("transfer", recipient, amount)
	if err != nil {
		return nil, &EncodingError{Method: "transfer", Err: err}
	}
	return data, nil
}

// EstimateGas simulates the invocation instead of assuming a constant, since
// token contracts charge differently for first-time balance writes.
func (e *TokenEncoder) EstimateGas(ctx context.Context, from common.Address, contract common.Address, value *big.Int, invocation []byte) (*big.Int, error) {
	if e.estimator == nil {
		return nil, errors.New("token gas estimator is not configured")
	}
	if value == nil {
		value = big.NewInt(0)
	}
	return e.estimator.EstimateGasForInvocation(ctx, from, contract, value, invocation)
}

func (e *TokenEncoder) Decimals(ctx context.Context, reader ContractReader, token common.Address) (uint8, error) {
	if reader == nil {
		return 0, errors.New("contract reader is nil")
	}
	data, err := parsedERC20.Pack("decimals")
	if err != nil {
		return 0, &EncodingError{Method: "decimals", Err: err}
	}
	out, err := reader.Call(ctx, token, data)
	if err != nil {
		return 0, err
	}
	values, err := parsedERC20.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("decode decimals: %w", err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decode decimals: %d values", len(values))
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decode decimals: unexpected type %T", values[0])
	}
	return d, nil
}

func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errors.New("amount is empty")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.New("invalid number format")
	}
	if d.IsNegative() {
		return nil, errors.New("amount must be non-negative")
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("too many decimal places for %d decimals", decimals)
	}
	return scaled.BigInt(), nil
}

func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
