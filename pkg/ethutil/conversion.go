package ethutil

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	etherDecimals = 18
	gweiDecimals  = 9
)

var (
	// ErrNullAmount ...
	ErrNullAmount = errors.New("amount must not be empty")
	// ErrNegativeAmount ...
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrTooManyDecimals is returned when an amount is finer than one wei
	ErrTooManyDecimals = errors.New("amount has more than 18 decimal places")
)

// FormatEther renders a wei amount as an ether string with full 18-decimal
// precision, eg. "1.000000000000000000".
func FormatEther(wei *big.Int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).StringFixed(etherDecimals)
}

// FormatGwei renders a wei amount as a gwei string, the usual unit for gas
// prices.
func FormatGwei(wei *big.Int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	return decimal.NewFromBigInt(wei, -gweiDecimals).String()
}

// ParseEther converts a decimal ether string to wei. Parsing goes through
// decimal strings end to end, so user input never round-trips through a
// float.
func ParseEther(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, ErrNullAmount
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount '%s': %w", trimmed, err)
	}
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}

	wei := d.Shift(etherDecimals)
	if !wei.IsInteger() {
		return nil, ErrTooManyDecimals
	}
	return wei.BigInt(), nil
}
