package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmptyPassphrase = errors.New("keystore passphrase is empty")
)

// Manager signs with accounts held in an encrypted keystore directory.
type Manager struct {
	ks         *keystore.KeyStore
	passphrase string
	dir        string
}

func NewManager(dir string, passphrase string) (*Manager, error) {
	return newManager(dir, passphrase, keystore.StandardScryptN, keystore.StandardScryptP)
}

func newManager(dir string, passphrase string, scryptN, scryptP int) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("keystore dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	ks := keystore.NewKeyStore(dir, scryptN, scryptP)
	return &Manager{ks: ks, passphrase: passphrase, dir: dir}, nil
}

// Import stores key under the manager's passphrase.
func (m *Manager) Import(key *ecdsa.PrivateKey) (common.Address, error) {
	if m.passphrase == "" {
		return common.Address{}, ErrEmptyPassphrase
	}
	acct, err := m.ks.ImportECDSA(key, m.passphrase)
	if err != nil {
		return common.Address{}, err
	}
	return acct.Address, nil
}

func (m *Manager) Accounts() []common.Address {
	acctList := m.ks.Accounts()
	out := make([]common.Address, 0, len(acctList))
	for _, acct := range acctList {
		out = append(out, acct.Address)
	}
	return out
}

func (m *Manager) FindAccount(addr common.Address) (accounts.Account, error) {
	for _, acct := range m.ks.Accounts() {
		if acct.Address == addr {
			return acct, nil
		}
	}
	return accounts.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr.Hex())
}

func (m *Manager) SignTransaction(addr common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if m.passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	acct, err := m.FindAccount(addr)
	if err != nil {
		return nil, err
	}
	return m.ks.SignTxWithPassphrase(acct, m.passphrase, tx, chainID)
}

func (m *Manager) KeystoreDir() string {
	return filepath.Clean(m.dir)
}
