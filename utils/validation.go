package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var hexPattern = regexp.MustCompile("^(0x)?[0-9a-fA-F]+$")

// IsWellFormedAddress reports whether s is a 20-byte 0x-prefixed hex
// address. Total function: malformed input returns false, never panics.
func IsWellFormedAddress(s string) bool {
	return common.IsHexAddress(s)
}

// IsWellFormedHex reports whether s is non-empty hex, with or without the
// 0x prefix.
func IsWellFormedHex(s string) bool {
	if s == "" || s == "0x" {
		return false
	}
	return hexPattern.MatchString(s)
}

// IsPositiveAmount reports whether s is a decimal integer greater than zero.
func IsPositiveAmount(s string) bool {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return false
	}
	return n.Sign() > 0
}

// IsFutureDeadline reports whether the decimal unix timestamp s is strictly
// after now.
func IsFutureDeadline(s string, now time.Time) bool {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false
	}
	return ts > now.Unix()
}

// ParseAmount parses either a plain integer amount in atomic units, or a
// decimal amount when decimals > 0, into atomic units. Rejects non-positive
// results.
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if decimals > 0 {
		scale := decimal.NewFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil), 0)
		dec = dec.Mul(scale)
	}

	if !dec.IsInteger() {
		return nil, fmt.Errorf("amount has more precision than %d decimals", decimals)
	}

	if dec.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return dec.BigInt(), nil
}

// FormatAmount renders an atomic-unit amount as a decimal string with the
// given number of decimals.
func FormatAmount(amount *big.Int, decimals int) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseBigInt parses a decimal string into a big integer.
func ParseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}

	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer: %q", value)
	}

	return n, nil
}

// ParseUint64 parses a decimal string into a uint64.
func ParseUint64(value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid uint64: %q", value)
	}
	return n, nil
}
