package chainrpc

import (
	"errors"

	"github.com/ethereum/go-ethereum"
)

// ErrUnexpected is returned when a response carries neither a result nor an
// error, or carries a result that cannot be decoded.
var ErrUnexpected = errors.New("unexpected rpc response")

type RPCError struct {
	Method string
	Err    error
}

func (e *RPCError) Error() string {
	if e == nil || e.Err == nil {
		return "rpc call failed"
	}
	return "rpc " + e.Method + ": " + e.Err.Error()
}

func (e *RPCError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type EstimateGasError struct {
	Err     error
	CallMsg ethereum.CallMsg
}

func (e *EstimateGasError) Error() string {
	if e == nil || e.Err == nil {
		return "estimate gas failed"
	}
	return "estimate gas failed: " + e.Err.Error()
}

func (e *EstimateGasError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
