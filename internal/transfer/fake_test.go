package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"transferengine/internal/chainrpc"
	"transferengine/internal/keys"
	"transferengine/internal/txbuilder"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

// fakeNode answers the engine's JSON-RPC methods from fixed quotes and keeps
// a pending nonce per sender that advances on every accepted submission.
type fakeNode struct {
	mu       sync.Mutex
	gasPrice *big.Int
	tip      *big.Int
	gasLimit *big.Int
	tokenGas *big.Int
	pending  map[common.Address]uint64
	sendErr  error
	empty    map[string]bool
	calls    []string
	tags     []string
	estimate []map[string]interface{}
	sent     []*types.Transaction
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		gasPrice: big.NewInt(20_000_000_000),
		tip:      big.NewInt(2_000_000_000),
		gasLimit: big.NewInt(21000),
		tokenGas: big.NewInt(55000),
		pending:  map[common.Address]uint64{},
		empty:    map[string]bool{},
	}
}

func (n *fakeNode) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, method)
	if n.empty[method] {
		return nil
	}

	switch method {
	case "eth_gasPrice":
		return reply(result, (*hexutil.Big)(n.gasPrice))
	case "eth_maxPriorityFeePerGas":
		return reply(result, (*hexutil.Big)(n.tip))
	case "eth_estimateGas":
		arg, _ := args[0].(map[string]interface{})
		n.estimate = append(n.estimate, arg)
		if _, ok := arg["data"]; ok {
			return reply(result, (*hexutil.Big)(n.tokenGas))
		}
		return reply(result, (*hexutil.Big)(n.gasLimit))
	case "eth_getTransactionCount":
		addr := args[0].(common.Address)
		n.tags = append(n.tags, args[1].(string))
		return reply(result, hexutil.Uint64(n.pending[addr]))
	case "eth_sendRawTransaction":
		if n.sendErr != nil {
			return n.sendErr
		}
		raw, err := hexutil.Decode(args[0].(string))
		if err != nil {
			return err
		}
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return err
		}
		from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
		if err != nil {
			return err
		}
		n.pending[from]++
		n.sent = append(n.sent, tx)
		return reply(result, tx.Hash())
	}
	return fmt.Errorf("method %s not supported", method)
}

func reply(result interface{}, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, result)
}

func (n *fakeNode) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *fakeNode) sentTxs() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction{}, n.sent...)
}

func newTestService(t *testing.T, n *fakeNode) (*Service, *keys.PrivateKeySigner) {
	t.Helper()
	signer, err := keys.NewPrivateKeySigner(testKeyHex)
	if err != nil {
		t.Fatalf("NewPrivateKeySigner error: %v", err)
	}
	quoter := chainrpc.NewFeeQuoter(n, time.Second)
	svc, err := NewService(Deps{
		Quoter:    quoter,
		Nonces:    chainrpc.NewNonceTracker(n, time.Second),
		Builder:   txbuilder.NewBuilder(big.NewInt(1), txbuilder.NewTokenEncoder(quoter)),
		Signer:    signer,
		Submitter: chainrpc.NewSubmitter(n, time.Second),
	})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc, signer
}

// fakeHeads hands the test the channel the service reads headers from.
type fakeHeads struct {
	mu        sync.Mutex
	ch        chan<- json.RawMessage
	openErr   error
	streamErr chan error
	closed    chan struct{}
}

func newFakeHeads() *fakeHeads {
	return &fakeHeads{streamErr: make(chan error, 1), closed: make(chan struct{})}
}

func (f *fakeHeads) SubscribeNewHeads(ctx context.Context, ch chan<- json.RawMessage) (ethereum.Subscription, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	f.ch = ch
	f.mu.Unlock()
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer close(f.closed)
		select {
		case <-quit:
			return nil
		case err := <-f.streamErr:
			return err
		}
	}), nil
}

func (f *fakeHeads) push(raw string) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	ch <- json.RawMessage(raw)
}

type recorder struct {
	fees chan *big.Int
	errs chan error
}

func newRecorder() *recorder {
	return &recorder{fees: make(chan *big.Int, 8), errs: make(chan error, 8)}
}

func (r *recorder) OnFee(fee *big.Int) { r.fees <- fee }
func (r *recorder) OnFeeError(err error) { r.errs <- err }

func (r *recorder) nextFee(t *testing.T) *big.Int {
	t.Helper()
	select {
	case fee := <-r.fees:
		return fee
	case err := <-r.errs:
		t.Fatalf("expected fee, got error %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fee")
	}
	return nil
}

func (r *recorder) nextErr(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errs:
		return err
	case fee := <-r.fees:
		t.Fatalf("expected error, got fee %s", fee)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for error")
	}
	return errors.New("unreachable")
}
