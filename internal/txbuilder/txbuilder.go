package txbuilder

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Call is the on-chain shape of a transfer: where it goes, what it carries.
type Call struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// UnsignedTx is assembled fresh for every submission attempt.
type UnsignedTx struct {
	Nonce    uint64
	From     common.Address
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
	Pricing  GasPricing
	ChainID  *big.Int

	fees WireFees
}

type Builder struct {
	ChainID *big.Int
	encoder *TokenEncoder
}

func NewBuilder(chainID *big.Int, encoder *TokenEncoder) *Builder {
	if encoder == nil {
		encoder = NewTokenEncoder(nil)
	}
	b := &Builder{encoder: encoder}
	if chainID != nil {
		b.ChainID = new(big.Int).Set(chainID)
	}
	return b
}

// WithChainID returns a builder sharing b's encoder but signing for chainID.
func (b *Builder) WithChainID(chainID *big.Int) *Builder {
	return NewBuilder(chainID, b.encoder)
}

func (b *Builder) Encoder() *TokenEncoder {
	return b.encoder
}

// Resolve turns a transfer into its call. Native transfers move value to the
// receiver; token transfers call the contract with zero value.
func (b *Builder) Resolve(t Transfer) (Call, error) {
	if t.Asset.Kind != AssetNative && t.Asset.Kind != AssetToken {
		return Call{}, ErrUnknownAsset
	}
	if t.Amount == nil {
		return Call{}, errors.New("amount is required")
	}
	if t.Amount.Sign() < 0 {
		return Call{}, errors.New("amount must be non-negative")
	}
	from, err := t.SenderAddress()
	if err != nil {
		return Call{}, fmt.Errorf("sender: %w", err)
	}
	if t.Asset.Kind == AssetToken {
		data, err := b.encoder.EncodeTransfer(t.Receiver, t.Amount)
		if err != nil {
			return Call{}, err
		}
		return Call{From: from, To: t.Asset.Contract, Value: big.NewInt(0), Data: data}, nil
	}
	to, err := t.ReceiverAddress()
	if err != nil {
		return Call{}, fmt.Errorf("receiver: %w", err)
	}
	return Call{From: from, To: to, Value: new(big.Int).Set(t.Amount)}, nil
}

func (b *Builder) Build(t Transfer, nonce uint64, pricing GasPricing, gasLimit *big.Int) (*UnsignedTx, error) {
	c, err := b.Resolve(t)
	if err != nil {
		return nil, err
	}
	return b.Assemble(c, nonce, pricing, gasLimit)
}

// Assemble validates gas parameters and fixes them onto the call.
func (b *Builder) Assemble(c Call, nonce uint64, pricing GasPricing, gasLimit *big.Int) (*UnsignedTx, error) {
	if b.ChainID == nil {
		return nil, errors.New("chainID is required")
	}
	if c.Value == nil {
		return nil, errors.New("value is required")
	}
	if c.Value.Sign() < 0 {
		return nil, errors.New("value must be non-negative")
	}
	if gasLimit == nil || gasLimit.Sign() <= 0 {
		return nil, errors.New("gasLimit is required")
	}
	if !gasLimit.IsUint64() {
		return nil, fmt.Errorf("gasLimit %s exceeds uint64", gasLimit)
	}
	if pricing == nil {
		return nil, errors.New("gas pricing is required")
	}
	fees, err := pricing.wireFees()
	if err != nil {
		return nil, err
	}
	var data []byte
	if len(c.Data) > 0 {
		data = append([]byte{}, c.Data...)
	}
	return &UnsignedTx{
		Nonce:    nonce,
		From:     c.From,
		To:       c.To,
		Value:    new(big.Int).Set(c.Value),
		Data:     data,
		GasLimit: gasLimit.Uint64(),
		Pricing:  pricing,
		ChainID:  new(big.Int).Set(b.ChainID),
		fees:     fees,
	}, nil
}

func (u *UnsignedTx) Fees() WireFees {
	return u.fees
}

// Transaction renders the dynamic-fee envelope handed to the signer.
func (u *UnsignedTx) Transaction() *types.Transaction {
	to := u.To
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   u.ChainID,
		Nonce:     u.Nonce,
		Gas:       u.GasLimit,
		GasFeeCap: u.fees.MaxFeePerGas,
		GasTipCap: u.fees.MaxPriorityFeePerGas,
		To:        &to,
		Value:     u.Value,
		Data:      u.Data,
	})
}

type wireTx struct {
	Type                 hexutil.Uint64 `json:"type"`
	ChainID              *hexutil.Big   `json:"chainId"`
	Nonce                hexutil.Uint64 `json:"nonce"`
	From                 common.Address `json:"from"`
	To                   common.Address `json:"to"`
	Value                *hexutil.Big   `json:"value"`
	Data                 hexutil.Bytes  `json:"data,omitempty"`
	Gas                  hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big   `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
}

func (u *UnsignedTx) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTx{
		Type:                 hexutil.Uint64(types.DynamicFeeTxType),
		ChainID:              (*hexutil.Big)(u.ChainID),
		Nonce:                hexutil.Uint64(u.Nonce),
		From:                 u.From,
		To:                   u.To,
		Value:                (*hexutil.Big)(u.Value),
		Data:                 u.Data,
		Gas:                  hexutil.Uint64(u.GasLimit),
		GasPrice:             (*hexutil.Big)(u.fees.GasPrice),
		MaxFeePerGas:         (*hexutil.Big)(u.fees.MaxFeePerGas),
		MaxPriorityFeePerGas: (*hexutil.Big)(u.fees.MaxPriorityFeePerGas),
	})
}
