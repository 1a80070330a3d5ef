package txbuilder

import (
	"errors"
	"math/big"
)

// GasPricing is either LegacyPricing or DynamicPricing.
type GasPricing interface {
	wireFees() (WireFees, error)
}

// WireFees are the three gas fields every transaction carries on the wire.
type WireFees struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

type LegacyPricing struct {
	GasPrice *big.Int
}

// wireFees copies the flat price into every field, so a legacy quote is
// sent as a dynamic-fee transaction whose tip equals its cap.
func (p LegacyPricing) wireFees() (WireFees, error) {
	if p.GasPrice == nil {
		return WireFees{}, errors.New("gasPrice is required")
	}
	if p.GasPrice.Sign() < 0 {
		return WireFees{}, errors.New("gasPrice must be non-negative")
	}
	return WireFees{
		GasPrice:             new(big.Int).Set(p.GasPrice),
		MaxFeePerGas:         new(big.Int).Set(p.GasPrice),
		MaxPriorityFeePerGas: new(big.Int).Set(p.GasPrice),
	}, nil
}

type DynamicPricing struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	BaseFeePerGas        *big.Int
}

// NewDynamicPricing derives maxFeePerGas = baseFee + tip.
func NewDynamicPricing(baseFee, tip *big.Int) DynamicPricing {
	return DynamicPricing{
		MaxFeePerGas:         new(big.Int).Add(baseFee, tip),
		MaxPriorityFeePerGas: new(big.Int).Set(tip),
		BaseFeePerGas:        new(big.Int).Set(baseFee),
	}
}

func (p DynamicPricing) wireFees() (WireFees, error) {
	if p.MaxFeePerGas == nil || p.MaxPriorityFeePerGas == nil {
		return WireFees{}, errors.New("maxFeePerGas and maxPriorityFeePerGas are required")
	}
	if p.MaxFeePerGas.Sign() < 0 || p.MaxPriorityFeePerGas.Sign() < 0 {
		return WireFees{}, errors.New("fee values must be non-negative")
	}
	if p.MaxFeePerGas.Cmp(p.MaxPriorityFeePerGas) < 0 {
		return WireFees{}, ErrFeeCapBelowTip
	}
	return WireFees{
		GasPrice:             new(big.Int).Set(p.MaxFeePerGas),
		MaxFeePerGas:         new(big.Int).Set(p.MaxFeePerGas),
		MaxPriorityFeePerGas: new(big.Int).Set(p.MaxPriorityFeePerGas),
	}, nil
}

// Fee returns gasLimit × pricePerGas without truncation.
func Fee(gasLimit, pricePerGas *big.Int) *big.Int {
	if gasLimit == nil || pricePerGas == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(gasLimit, pricePerGas)
}
