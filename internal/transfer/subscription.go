package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"transferengine/internal/chainrpc"
	"transferengine/internal/txbuilder"
)

type SubscriptionState int

const (
	Idle SubscriptionState = iota
	Subscribed
)

func (s SubscriptionState) String() string {
	if s == Subscribed {
		return "subscribed"
	}
	return "idle"
}

const headBuffer = 16

// FeeSubscription recomputes a transfer's dynamic fee on every new block.
type FeeSubscription struct {
	mu     sync.Mutex
	state  SubscriptionState
	cancel context.CancelFunc
	done   chan struct{}
}

// SubscribeForFee never fails directly: a head stream that cannot be opened
// is reported through listener.OnFeeError and the handle stays Idle.
func (s *Service) SubscribeForFee(ctx context.Context, t txbuilder.Transfer, listener FeeListener) *FeeSubscription {
	fs := &FeeSubscription{done: make(chan struct{})}
	if listener == nil {
		close(fs.done)
		return fs
	}
	if s.heads == nil {
		close(fs.done)
		listener.OnFeeError(errors.New("head subscriber is not configured"))
		return fs
	}

	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan json.RawMessage, headBuffer)
	sub, err := s.heads.SubscribeNewHeads(ctx, ch)
	if err != nil {
		cancel()
		close(fs.done)
		s.logger.Warn("open head subscription failed", "error", err)
		listener.OnFeeError(err)
		return fs
	}

	fs.mu.Lock()
	fs.state = Subscribed
	fs.cancel = cancel
	fs.mu.Unlock()
	s.metrics.SubscriptionOpened()
	s.logger.Debug("fee subscription opened")

	go s.watchHeads(ctx, fs, sub, ch, t, listener)
	return fs
}

func (s *Service) watchHeads(ctx context.Context, fs *FeeSubscription, sub ethereum.Subscription, ch <-chan json.RawMessage, t txbuilder.Transfer, listener FeeListener) {
	defer close(fs.done)
	defer fs.markIdle()
	defer s.metrics.SubscriptionClosed()
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("fee subscription closed")
			return
		case err, ok := <-sub.Err():
			if ok && err != nil && ctx.Err() == nil {
				s.logger.Warn("head stream failed", "error", err)
				listener.OnFeeError(err)
			}
			return
		case raw := <-ch:
			baseFee, err := baseFeeFromHeader(raw)
			var fee *big.Int
			if err == nil {
				fee, err = s.EstimateFeeWithBaseFee(ctx, t, baseFee)
			}
			s.metrics.HeadEvent(err)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				listener.OnFeeError(err)
				continue
			}
			listener.OnFee(fee)
		}
	}
}

// Unsubscribe stops the head stream and waits for the delivery loop to exit;
// no listener call happens after it returns. It must not be called from
// inside a listener callback.
func (fs *FeeSubscription) Unsubscribe() {
	fs.mu.Lock()
	cancel := fs.cancel
	fs.cancel = nil
	fs.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-fs.done
}

func (fs *FeeSubscription) State() SubscriptionState {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state
}

// Done is closed once the subscription is Idle for good.
func (fs *FeeSubscription) Done() <-chan struct{} {
	return fs.done
}

func (fs *FeeSubscription) markIdle() {
	fs.mu.Lock()
	fs.state = Idle
	fs.mu.Unlock()
}

type header struct {
	Number        *hexutil.Big `json:"number"`
	BaseFeePerGas *hexutil.Big `json:"baseFeePerGas"`
}

func baseFeeFromHeader(raw json.RawMessage) (*big.Int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, chainrpc.ErrUnexpected
	}
	var h header
	if err := json.Unmarshal(trimmed, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", chainrpc.ErrUnexpected, err)
	}
	if h.BaseFeePerGas == nil {
		return nil, ErrNoBaseFee
	}
	return h.BaseFeePerGas.ToInt(), nil
}
