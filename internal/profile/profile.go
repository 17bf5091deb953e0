// Package profile defines the questionnaire profile and its translation into
// quantitative targets.
package profile

import (
	"fmt"

	"github.com/ever-flow/ETF/internal/universe"
)

// Market-preference codes from the questionnaire.
const (
	MarketPrefDomestic = 1
	MarketPrefForeign  = 2
	MarketPrefEither   = 3
)

// ThemePrefNone is the theme-preference code meaning "no preference"; it
// disables the theme signal in scoring.
const ThemePrefNone = 1

// Profile holds the answers to the seven questionnaire questions. It is
// immutable once submitted and consumed read-only downstream.
type Profile struct {
	RiskTolerance     int `json:"risk_tolerance"`     // 1-5
	InvestmentHorizon int `json:"investment_horizon"` // 1-5
	Goal              int `json:"goal"`               // 1-5
	MarketPreference  int `json:"market_preference"`  // 1-3
	Experience        int `json:"experience"`         // 1-3
	LossAversion      int `json:"loss_aversion"`      // 1-5
	ThemePreference   int `json:"theme_preference"`   // 1-4
}

// Validate checks every answer against its allowed range.
func (p Profile) Validate() error {
	checks := []struct {
		name     string
		value    int
		min, max int
	}{
		{"risk_tolerance", p.RiskTolerance, 1, 5},
		{"investment_horizon", p.InvestmentHorizon, 1, 5},
		{"goal", p.Goal, 1, 5},
		{"market_preference", p.MarketPreference, 1, 3},
		{"experience", p.Experience, 1, 3},
		{"loss_aversion", p.LossAversion, 1, 5},
		{"theme_preference", p.ThemePreference, 1, 4},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("%s must be between %d and %d, got %d", c.name, c.min, c.max, c.value)
		}
	}
	return nil
}

// Targets are the quantitative indicators derived from a profile.
type Targets struct {
	RiskScore      float64                      // 1-5; higher tolerates more volatility
	ExpectedReturn float64                      // annualized target, as a fraction
	MarketWeights  map[universe.Market]float64  // domestic/foreign preference weights
	Theme          universe.Theme               // preferred theme, ThemeNone for code 1
}

// expectedReturnByGoal maps the goal code to an annualized return target.
var expectedReturnByGoal = map[int]float64{
	1: 0.02,
	2: 0.05,
	3: 0.08,
	4: 0.12,
	5: 0.15,
}

// lookbackYearsByHorizon maps the investment horizon to the price-history
// window used for the data-load cycle.
var lookbackYearsByHorizon = map[int]int{
	1: 1,
	2: 3,
	3: 5,
	4: 10,
	5: 10,
}

// Translate maps the categorical answers onto quantitative targets.
func Translate(p Profile) Targets {
	riskScore := (float64(p.RiskTolerance) + (6 - float64(p.LossAversion))) / 2

	expectedReturn, ok := expectedReturnByGoal[p.Goal]
	if !ok {
		expectedReturn = 0.08
	}

	var weights map[universe.Market]float64
	switch p.MarketPreference {
	case MarketPrefDomestic:
		weights = map[universe.Market]float64{universe.MarketKR: 1.0, universe.MarketUS: 0.0}
	case MarketPrefForeign:
		weights = map[universe.Market]float64{universe.MarketKR: 0.0, universe.MarketUS: 1.0}
	default:
		weights = map[universe.Market]float64{universe.MarketKR: 0.5, universe.MarketUS: 0.5}
	}

	return Targets{
		RiskScore:      riskScore,
		ExpectedReturn: expectedReturn,
		MarketWeights:  weights,
		Theme:          universe.ThemeForCode(p.ThemePreference),
	}
}

// LookbackYears returns the price-history window implied by the horizon.
func LookbackYears(p Profile) int {
	if years, ok := lookbackYearsByHorizon[p.InvestmentHorizon]; ok {
		return years
	}
	return 5
}

// Vector returns the 6-dimensional peer-similarity representation of the
// profile (investment horizon included, market preference excluded).
func (p Profile) Vector() []float64 {
	return []float64{
		float64(p.RiskTolerance),
		float64(p.InvestmentHorizon),
		float64(p.Goal),
		float64(p.Experience),
		float64(p.LossAversion),
		float64(p.ThemePreference),
	}
}
