package domain

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	NativeSymbol   = "ETH"
	NativeDecimals = 18
)

var amountPattern = regexp.MustCompile(`^([0-9]+\.?[0-9]*|\.[0-9]+)$`)

// Money holds an amount in the asset's smallest unit (wei for ETH).
// Example: 0.015 ETH is stored as 15000000000000000 with 18 decimals.
type Money struct {
	Amount   *big.Int
	Decimals uint8
	Symbol   string
}

// NewMoney creates a new Money instance
func NewMoney(amount *big.Int, decimals uint8, symbol string) Money {
	if amount == nil {
		amount = new(big.Int)
	}
	return Money{
		Amount:   amount,
		Decimals: decimals,
		Symbol:   symbol,
	}
}

// String renders "0.015 ETH".
func (m Money) String() string {
	return FormatUnits(m.Amount, m.Decimals) + " " + m.Symbol
}

// ParseUnits converts decimal user input into the smallest unit.
// Empty input counts as zero. Negative values, exponents and digits past
// the asset's decimal count are rejected.
func ParseUnits(input string, decimals uint8) (*big.Int, error) {
	clean := strings.TrimSpace(input)
	if clean == "" {
		clean = "0"
	}
	if !amountPattern.MatchString(clean) {
		return nil, fmt.Errorf("invalid amount %q", input)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", input, err)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", input, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders a smallest-unit amount as a decimal string without
// trailing zeros.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
