// Package amount converts raw on-chain integers into scaled decimals.
//
// All conversions are exact: scaling by a power of ten only moves the decimal
// exponent, so repeated aggregation never accumulates rounding drift.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the scale assumed for tokens without metadata.
const DefaultDecimals = 18

// MaxDecimals is the largest scale accepted by the conversions.
const MaxDecimals = 255

var (
	ErrInvalidHex      = errors.New("invalid hex value")
	ErrInvalidInt      = errors.New("invalid integer value")
	ErrScaleOutOfRange = errors.New("decimals out of range")
)

// HexToDecimal reads hexString as a big-endian unsigned integer and divides
// it by 10^decimals. A 0x prefix is optional.
func HexToDecimal(hexString string, decimals int) (decimal.Decimal, error) {
	if err := checkScale(decimals); err != nil {
		return decimal.Zero, err
	}
	digits := strings.TrimSpace(hexString)
	digits = strings.TrimPrefix(strings.TrimPrefix(digits, "0x"), "0X")
	if digits == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidHex)
	}
	for _, r := range digits {
		if !isHexDigit(r) {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidHex, hexString)
		}
	}
	value, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidHex, hexString)
	}
	return decimal.NewFromBigInt(value, -int32(decimals)), nil
}

// BigIntToDecimal divides a raw integer amount by 10^decimals.
func BigIntToDecimal(value *big.Int, decimals int) (decimal.Decimal, error) {
	if err := checkScale(decimals); err != nil {
		return decimal.Zero, err
	}
	if value == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(value, -int32(decimals)), nil
}

// TokenToDecimal divides an already-decimal amount by 10^decimals.
func TokenToDecimal(value decimal.Decimal, decimals int) (decimal.Decimal, error) {
	if err := checkScale(decimals); err != nil {
		return decimal.Zero, err
	}
	return value.Shift(-int32(decimals)), nil
}

// ParseBigInt parses a base-10 integer string. Empty input is zero.
func ParseBigInt(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInt, value)
	}
	return parsed, nil
}

// ParseDecimal parses a decimal string. Empty input is zero.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

func checkScale(decimals int) error {
	if decimals < 0 || decimals > MaxDecimals {
		return fmt.Errorf("%w: %d", ErrScaleOutOfRange, decimals)
	}
	return nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
