package transfer

import "errors"

var (
	ErrInvalidParams = errors.New("invalid transaction params")
	ErrNoBaseFee     = errors.New("block has no base fee")
)

// FeeError reports a transfer whose fee cannot be estimated.
type FeeError struct {
	Reason string
	Err    error
}

func (e *FeeError) Error() string {
	if e == nil {
		return "cannot estimate fee"
	}
	return "cannot estimate fee: " + e.Reason
}

func (e *FeeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type TransferError struct {
	Reason string
	Err    error
}

func (e *TransferError) Error() string {
	if e == nil {
		return "transfer failed"
	}
	return "transfer failed: " + e.Reason
}

func (e *TransferError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	if e == nil || e.Err == nil {
		return "sign transaction failed"
	}
	return "sign transaction: " + e.Err.Error()
}

func (e *SigningError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
