package calc

import (
	"math"
	"strings"
)

// RepaymentType selects how a loan is repaid.
type RepaymentType string

const (
	PrincipalAndInterest RepaymentType = "P&I"
	InterestOnly         RepaymentType = "IO"
)

// ParseRepaymentType accepts "P&I", "IO" and "Interest Only" spellings.
// Anything else is principal and interest.
func ParseRepaymentType(s string) RepaymentType {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "I") {
		return InterestOnly
	}
	return PrincipalAndInterest
}

// Repayment returns the monthly repayment on loan at annualRate (a
// fraction, e.g. 0.0625). Interest-only loans pay interest alone;
// principal and interest loans amortize over years.
func Repayment(loan, annualRate float64, years int, typ RepaymentType) float64 {
	if loan <= 0 {
		return 0
	}
	if typ == InterestOnly {
		return loan * annualRate / 12
	}
	return amortized(loan, annualRate, years)
}

// RevertRepayment returns the principal and interest repayment once an
// interest-only period of ioYears ends, amortizing over what is left of
// the term.
func RevertRepayment(loan, annualRate float64, years, ioYears int) float64 {
	return amortized(loan, annualRate, years-max(0, ioYears))
}

func amortized(loan, annualRate float64, years int) float64 {
	if loan <= 0 || years <= 0 {
		return 0
	}
	r := annualRate / 12
	n := float64(years * 12)
	if r == 0 {
		return loan / n
	}
	growth := math.Pow(1+r, n)
	return loan * (r * growth) / (growth - 1)
}

// ActiveRate returns the annual rate, as a fraction, for rateType: the
// fixed rate for "fixed", the variable rate otherwise.
func ActiveRate(rateType string, variablePct, fixedPct float64) float64 {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(rateType)), "fixed") {
		return fixedPct / 100
	}
	return variablePct / 100
}

// Cashflow returns the net monthly position.
func Cashflow(inflow, repayment, outgoings float64) float64 {
	return inflow - repayment - outgoings
}
