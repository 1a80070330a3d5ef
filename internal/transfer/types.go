package transfer

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"transferengine/internal/chainrpc"
)

// FeeQuoter is satisfied by *chainrpc.FeeQuoter.
type FeeQuoter interface {
	GasPrice(ctx context.Context) (*big.Int, error)
	MaxPriorityFeePerGas(ctx context.Context) (*big.Int, error)
	EstimateGasForCall(ctx context.Context, req chainrpc.CallRequest) (*big.Int, error)
}

type NonceSource interface {
	Next(ctx context.Context, addr common.Address) (uint64, error)
}

type TxSubmitter interface {
	SubmitTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error)
}

// Signer must not change the semantic fields of tx.
type Signer interface {
	SignTransaction(from common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

type HeadSubscriber interface {
	SubscribeNewHeads(ctx context.Context, ch chan<- json.RawMessage) (ethereum.Subscription, error)
}

// FeeListener receives live fee estimates. Calls for one subscription never
// overlap.
type FeeListener interface {
	OnFee(fee *big.Int)
	OnFeeError(err error)
}

// WalletTx is a transaction constructed outside the engine, as delivered by
// a WalletConnect session. Nonce and gas fields are accepted but ignored.
type WalletTx struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Value                *hexutil.Big    `json:"value"`
	Data                 hexutil.Bytes   `json:"data,omitempty"`
	Nonce                *hexutil.Uint64 `json:"nonce,omitempty"`
	Gas                  *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
}
