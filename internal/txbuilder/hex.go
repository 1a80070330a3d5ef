package txbuilder

import (
	"errors"
	"math/big"
	"strings"
)

// ParseQuantity accepts a base-10 integer or a 0x-prefixed hex integer.
func ParseQuantity(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("value is empty")
	}
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return decodeHexBig(value)
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, errors.New("invalid integer")
	}
	if v.Sign() < 0 {
		return nil, errors.New("value must be non-negative")
	}
	return v, nil
}

func decodeHexBig(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("hex value is empty")
	}
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		value = value[2:]
	}
	value = strings.TrimLeft(value, "0")
	if value == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(value, 16)
	if !ok {
		return nil, errors.New("invalid hex number")
	}
	return v, nil
}
