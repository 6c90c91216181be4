package calc

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/proplens/proplens/internal/config"
	"github.com/proplens/proplens/internal/model"
)

// Fallbacks applied when the facts record lacks a figure.
const (
	DefaultBuildSqm   = 180.0
	DefaultState      = "NSW"
	DefaultRentWeekly = 550.0
)

// FinanceInputs are the buyer's assumptions. Rates and fees are percent.
// A zero Price uses the last sold price from the facts; a zero RentWeekly
// is estimated from the price and YieldPct.
type FinanceInputs struct {
	Price             float64 `json:"price"`
	DepositPct        float64 `json:"deposit_pct"`
	VariableRatePct   float64 `json:"variable_rate_pct"`
	FixedRatePct      float64 `json:"fixed_rate_pct"`
	RateType          string  `json:"rate_type"`
	RepaymentType     string  `json:"repayment_type"`
	TermYears         int     `json:"term_years"`
	InterestOnlyYears int     `json:"interest_only_years"`
	PMFeePct          float64 `json:"pm_fee_pct"`
	YieldPct          float64 `json:"yield_pct"`
	RentWeekly        float64 `json:"rent_weekly"`
	Risk              string  `json:"risk"`
	OwnerOccupier     bool    `json:"owner_occupier"`
}

// InputsFromConfig returns the configured default assumptions.
func InputsFromConfig(c config.FinanceConfig) FinanceInputs {
	return FinanceInputs{
		DepositPct:      c.DepositPct,
		VariableRatePct: c.VariableRatePct,
		FixedRatePct:    c.FixedRatePct,
		RateType:        c.RateType,
		RepaymentType:   c.RepaymentType,
		TermYears:       c.TermYears,
		PMFeePct:        c.PMFeePct,
		YieldPct:        c.YieldPct,
		Risk:            c.Risk,
		OwnerOccupier:   c.OwnerOccupier,
	}
}

// Validate checks the inputs are in range.
func (in FinanceInputs) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Price, validation.Min(0.0)),
		validation.Field(&in.DepositPct, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&in.VariableRatePct, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&in.FixedRatePct, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&in.TermYears, validation.Min(0), validation.Max(40)),
		validation.Field(&in.InterestOnlyYears, validation.Min(0), validation.Max(in.TermYears)),
		validation.Field(&in.PMFeePct, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&in.YieldPct, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&in.RentWeekly, validation.Min(0.0)),
		validation.Field(&in.Risk, validation.In("low", "medium", "high")),
	)
}

// Summary is the purchase and cashflow picture for one property.
type Summary struct {
	Price              float64 `json:"price"`
	Loan               float64 `json:"loan"`
	ActiveRate         float64 `json:"active_rate"`
	StampDuty          float64 `json:"stamp_duty"`
	CouncilRatesAnnual float64 `json:"council_rates_annual"`
	SumInsured         float64 `json:"sum_insured"`
	InsuranceAnnual    float64 `json:"insurance_annual"`
	RepaymentMonthly   float64 `json:"repayment_monthly"`
	RevertMonthly      float64 `json:"revert_monthly,omitempty"`
	RentWeekly         float64 `json:"rent_weekly"`
	InflowMonthly      float64 `json:"inflow_monthly"`
	OutgoingsMonthly   float64 `json:"outgoings_monthly"`
	CashflowMonthly    float64 `json:"cashflow_monthly"`
}

// Positive reports whether the monthly cashflow is not negative.
func (s Summary) Positive() bool { return s.CashflowMonthly >= 0 }

// Summarize composes the calculators over facts using the default rules.
func Summarize(facts model.PropertyFacts, in FinanceInputs) Summary {
	return defaultCalc.Summarize(facts, in)
}

// Summarize composes the calculators over facts.
func (c *Calculator) Summarize(facts model.PropertyFacts, in FinanceInputs) Summary {
	s := Summary{Price: in.Price}
	if s.Price == 0 && facts.LastSoldPrice != nil {
		s.Price = max(0, facts.LastSoldPrice.FloatOr(0))
	}

	s.Loan = max(0, s.Price*(1-in.DepositPct/100))
	s.ActiveRate = ActiveRate(in.RateType, in.VariableRatePct, in.FixedRatePct)

	state := facts.Address.State
	if state == "" {
		state = DefaultState
	}
	s.StampDuty = c.StampDuty(s.Price, state, in.OwnerOccupier)

	lga := facts.Address.LGA
	if lga == "" {
		lga = DefaultLGA
	}
	s.CouncilRatesAnnual = c.CouncilRates(lga, facts.LandSqm.FloatOr(0))

	build := facts.BuildSqm.FloatOr(0)
	if build == 0 {
		build = DefaultBuildSqm
	}
	s.SumInsured = c.SumInsured(build)
	s.InsuranceAnnual = c.Premium(s.SumInsured, in.Risk)

	typ := ParseRepaymentType(in.RepaymentType)
	s.RepaymentMonthly = Repayment(s.Loan, s.ActiveRate, in.TermYears, typ)
	if typ == InterestOnly && in.InterestOnlyYears > 0 {
		s.RevertMonthly = RevertRepayment(s.Loan, s.ActiveRate, in.TermYears, in.InterestOnlyYears)
	}

	s.RentWeekly = in.RentWeekly
	if s.RentWeekly == 0 {
		s.RentWeekly = DefaultRentWeekly
		if s.Price > 0 {
			s.RentWeekly = s.Price * in.YieldPct / 100 / 52
		}
	}

	s.OutgoingsMonthly = s.CouncilRatesAnnual/12 + s.InsuranceAnnual/12
	if !in.OwnerOccupier {
		s.InflowMonthly = s.RentWeekly * 52 / 12 * (1 - in.PMFeePct/100)
	}
	s.CashflowMonthly = Cashflow(s.InflowMonthly, s.RepaymentMonthly, s.OutgoingsMonthly)
	return s
}
