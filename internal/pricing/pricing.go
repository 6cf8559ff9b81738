// Package pricing reproduces the registry contract's price and refund math.
package pricing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/proquint-registry/backend/internal/proquint"
	"github.com/shopspring/decimal"
)

const (
	MinYears = 1
	MaxYears = 12

	PalindromeMultiplier = 5

	// SecondsPerMonth is the contract's refund month: 30 days.
	SecondsPerMonth = 30 * 24 * 60 * 60
)

var (
	// PricePerYear = 0.00024 ETH
	PricePerYear = big.NewInt(240_000_000_000_000)
	// PricePerMonth = 0.00002 ETH
	PricePerMonth = big.NewInt(20_000_000_000_000)
	// MaxRefund = 5 ETH
	MaxRefund = new(big.Int).Mul(big.NewInt(5), big.NewInt(1_000_000_000_000_000_000))
)

var ErrYearsOutOfRange = errors.New("years out of range")

// ValidateYears rejects durations outside [MinYears, MaxYears].
func ValidateYears(years int) error {
	if years < MinYears || years > MaxYears {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrYearsOutOfRange, years, MinYears, MaxYears)
	}
	return nil
}

// RegistrationPrice returns (2^years - 1) * PricePerYear, times 5 for
// palindromes. Cost is exponential in years, so yearly renewal is always
// cheaper than prepaying. years must already be validated.
func RegistrationPrice(years int, isPalindrome bool) *big.Int {
	multiplier := new(big.Int).Lsh(big.NewInt(1), uint(years))
	multiplier.Sub(multiplier, big.NewInt(1))

	price := multiplier.Mul(multiplier, PricePerYear)
	if isPalindrome {
		price.Mul(price, big.NewInt(PalindromeMultiplier))
	}
	return price
}

// RefundAmount pays PricePerMonth for every whole 30-day month left.
// Partial months are dropped.
func RefundAmount(remainingSeconds int64) *big.Int {
	if remainingSeconds <= 0 {
		return new(big.Int)
	}
	months := remainingSeconds / SecondsPerMonth
	amount := new(big.Int).Mul(big.NewInt(months), PricePerMonth)
	if amount.Cmp(MaxRefund) > 0 {
		amount.Set(MaxRefund)
	}
	return amount
}

// OwnerRefund is what the receiver gets for rejecting an inbox item.
func OwnerRefund(remainingSeconds int64) *big.Int {
	return RefundAmount(remainingSeconds)
}

// BurnReward is the burner's share for cleaning an abandoned inbox item.
// Above one month's worth, and with a receiver to compensate, the refund is
// split 50/50; otherwise the burner takes all of it.
func BurnReward(remainingSeconds int64, hasReceiver bool) *big.Int {
	total := RefundAmount(remainingSeconds)
	if total.Cmp(PricePerMonth) > 0 && hasReceiver {
		return total.Rsh(total, 1)
	}
	return total
}

// Quote is a priced registration or renewal.
type Quote struct {
	Years        int      `json:"years"`
	IsPalindrome bool     `json:"is_palindrome"`
	AmountWei    *big.Int `json:"amount_wei"`
}

func NewQuote(years int, id proquint.ID) (Quote, error) {
	if err := ValidateYears(years); err != nil {
		return Quote{}, err
	}
	palindrome := id.IsPalindrome()
	return Quote{
		Years:        years,
		IsPalindrome: palindrome,
		AmountWei:    RegistrationPrice(years, palindrome),
	}, nil
}

// ETH returns the quote amount formatted for display.
func (q Quote) ETH() string {
	return FormatETH(q.AmountWei)
}

// FormatETH renders wei as ETH with 4, 5 or 6 decimals depending on size.
func FormatETH(wei *big.Int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	eth := decimal.NewFromBigInt(wei, -18)
	switch {
	case eth.GreaterThanOrEqual(decimal.RequireFromString("0.01")):
		return eth.StringFixed(4)
	case eth.GreaterThanOrEqual(decimal.RequireFromString("0.001")):
		return eth.StringFixed(5)
	default:
		return eth.StringFixed(6)
	}
}
