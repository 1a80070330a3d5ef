package chainrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

const methodSendRawTransaction = "eth_sendRawTransaction"

// Submitter pushes signed transactions to the node. Failures such as nonce
// too low or insufficient funds come back verbatim; nothing is re-sent.
type Submitter struct {
	caller  Caller
	timeout time.Duration
}

func NewSubmitter(caller Caller, timeout time.Duration) *Submitter {
	return &Submitter{caller: caller, timeout: timeout}
}

func (s *Submitter) Submit(ctx context.Context, raw []byte) (common.Hash, error) {
	if len(raw) == 0 {
		return common.Hash{}, errors.New("raw transaction is empty")
	}
	res, err := call(ctx, s.caller, s.timeout, methodSendRawTransaction, hexutil.Encode(raw))
	if err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := json.Unmarshal(res, &hash); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s result: %v", ErrUnexpected, methodSendRawTransaction, err)
	}
	return hash, nil
}

func (s *Submitter) SubmitTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if tx == nil {
		return common.Hash{}, errors.New("transaction is nil")
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return common.Hash{}, err
	}
	return s.Submit(ctx, raw)
}
