package txbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type AssetKind uint8

const (
	AssetUnknown AssetKind = iota
	AssetNative
	AssetToken
)

func (k AssetKind) String() string {
	switch k {
	case AssetNative:
		return "native"
	case AssetToken:
		return "token"
	default:
		return "unknown"
	}
}

// Asset is the native coin or a fungible token identified by its contract.
type Asset struct {
	Kind     AssetKind
	Contract common.Address
}

func NativeAsset() Asset {
	return Asset{Kind: AssetNative}
}

func TokenAsset(contract common.Address) Asset {
	return Asset{Kind: AssetToken, Contract: contract}
}

// Transfer is a requested payment. Sender and Receiver are raw 20-byte
// account addresses; Amount is in the asset's smallest unit.
type Transfer struct {
	Asset    Asset
	Sender   []byte
	Receiver []byte
	Amount   *big.Int
}

func NewTransfer(asset Asset, sender, receiver common.Address, amount *big.Int) Transfer {
	return Transfer{
		Asset:    asset,
		Sender:   sender.Bytes(),
		Receiver: receiver.Bytes(),
		Amount:   amount,
	}
}

func (t Transfer) SenderAddress() (common.Address, error) {
	return addressFromBytes(t.Sender)
}

func (t Transfer) ReceiverAddress() (common.Address, error) {
	return addressFromBytes(t.Receiver)
}

func addressFromBytes(b []byte) (common.Address, error) {
	if len(b) != common.AddressLength {
		return common.Address{}, ErrInvalidAddress
	}
	return common.BytesToAddress(b), nil
}
