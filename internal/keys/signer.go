package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKeySigner holds one key in memory. Signatures are deterministic
// (RFC 6979), so the same tx always yields the same hash.
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewPrivateKeySigner(hexKey string) (*PrivateKeySigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &PrivateKeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *PrivateKeySigner) Address() common.Address {
	return s.address
}

func (s *PrivateKeySigner) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}

func (s *PrivateKeySigner) SignTransaction(addr common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if addr != s.address {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr.Hex())
	}
	if tx == nil {
		return nil, errors.New("transaction is nil")
	}
	if chainID == nil {
		return nil, errors.New("chainID is required")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
