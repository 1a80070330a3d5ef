package chainrpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestSubmitReturnsNodeHash(t *testing.T) {
	c := newFakeCaller()
	want := common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000001")
	var sent string
	c.on(methodSendRawTransaction, func(args []interface{}) (json.RawMessage, error) {
		sent = args[0].(string)
		return json.Marshal(want)
	})
	s := NewSubmitter(c, time.Second)

	hash, err := s.Submit(context.Background(), []byte{0x02, 0xf8})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if hash != want {
		t.Fatalf("unexpected hash: %s", hash.Hex())
	}
	if sent != "0x02f8" {
		t.Fatalf("unexpected raw payload: %s", sent)
	}
}

func TestSubmitSurfacesRejection(t *testing.T) {
	c := newFakeCaller()
	c.on(methodSendRawTransaction, func([]interface{}) (json.RawMessage, error) {
		return nil, &rpcErr{code: -32000, msg: "nonce too low"}
	})
	s := NewSubmitter(c, time.Second)

	_, err := s.Submit(context.Background(), []byte{0x01})
	var rerr *RPCError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rerr.Err.Error() != "nonce too low" {
		t.Fatalf("rejection not verbatim: %v", rerr.Err)
	}
	if c.callCount() != 1 {
		t.Fatalf("submission must not be retried, calls=%d", c.callCount())
	}
}

func TestSubmitRejectsEmptyPayload(t *testing.T) {
	c := newFakeCaller()
	s := NewSubmitter(c, time.Second)
	if _, err := s.Submit(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
	if c.callCount() != 0 {
		t.Fatalf("no rpc call expected")
	}
}
