package chainrpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
)

// Caller is the JSON-RPC transport the engine needs. *rpc.Client satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// HeadSubscriber streams raw newHeads payloads from a websocket or IPC client.
type HeadSubscriber struct {
	client *rpc.Client
}

func NewHeadSubscriber(client *rpc.Client) *HeadSubscriber {
	return &HeadSubscriber{client: client}
}

func (s *HeadSubscriber) SubscribeNewHeads(ctx context.Context, ch chan<- json.RawMessage) (ethereum.Subscription, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("head subscriber client is nil")
	}
	sub, err := s.client.EthSubscribe(ctx, ch, "newHeads")
	if err != nil {
		return nil, err
	}
	return sub, nil
}
