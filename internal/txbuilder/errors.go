package txbuilder

import "errors"

var (
	ErrUnknownAsset   = errors.New("unknown asset")
	ErrInvalidAddress = errors.New("invalid address")
	ErrFeeCapBelowTip = errors.New("maxFeePerGas is below maxPriorityFeePerGas")
)

// EncodingError reports call data that could not be ABI encoded.
type EncodingError struct {
	Method string
	Err    error
}

func (e *EncodingError) Error() string {
	if e == nil || e.Err == nil {
		return "encode call failed"
	}
	return "encode " + e.Method + " call: " + e.Err.Error()
}

func (e *EncodingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
