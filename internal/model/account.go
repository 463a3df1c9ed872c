package model

import "github.com/shopspring/decimal"

// AccountStatus is the commercial state of a client account.
type AccountStatus string

const (
	AccountOnboarding AccountStatus = "Onboarding"
	AccountActive     AccountStatus = "Active"
	AccountPaused     AccountStatus = "Paused"
	AccountCancelled  AccountStatus = "Cancelled"
)

// BuyBox is an account's property-eligibility filter.
type BuyBox struct {
	Jurisdictions []string `json:"jurisdictions" yaml:"jurisdictions" validate:"dive,numeric,len=5"`
	PropertyTypes []string `json:"property_types" yaml:"property_types"`
	MaxPrice      float64  `json:"max_price" yaml:"max_price" validate:"gte=0"`
	MinEquity     float64  `json:"min_equity" yaml:"min_equity" validate:"gte=0,lte=100"`
	ExcludedZips  string   `json:"excluded_zips" yaml:"excluded_zips"`
}

// LaneCadence is the contact rhythm of one lane.
type LaneCadence struct {
	DaysBetween int `json:"days_between" yaml:"days_between" validate:"gte=0"`
	MaxTouches  int `json:"max_touches" yaml:"max_touches" validate:"gte=0"`
}

// Cadence holds per-lane rhythms. Zero values fall back to system defaults.
type Cadence struct {
	Blitz   LaneCadence `json:"blitz" yaml:"blitz"`
	Chase   LaneCadence `json:"chase" yaml:"chase"`
	Nurture LaneCadence `json:"nurture" yaml:"nurture"`
}

// For returns the cadence configured for lane.
func (c Cadence) For(lane Lane) LaneCadence {
	switch lane {
	case LaneBlitz:
		return c.Blitz
	case LaneChase:
		return c.Chase
	default:
		return c.Nurture
	}
}

// Account is a marketing client and its engine settings.
type Account struct {
	ID             string        `json:"id" yaml:"id" validate:"required"`
	Name           string        `json:"name" yaml:"name"`
	Status         AccountStatus `json:"status" yaml:"status" validate:"omitempty,oneof=Onboarding Active Paused Cancelled"`
	WeeklyCapacity int           `json:"weekly_capacity" yaml:"weekly_capacity" validate:"gte=0"`
	BuyBox         BuyBox        `json:"buy_box" yaml:"buy_box"`
	Cadence        Cadence       `json:"cadence" yaml:"cadence"`
	CooldownMonths int           `json:"cooldown_months" yaml:"cooldown_months" validate:"gte=0"`
	// ScoreFloor is compared against allocation points. Nil means system default.
	ScoreFloor *float64 `json:"score_floor,omitempty" yaml:"score_floor"`
	// SkipTraceRate overrides the system rate (partner pricing).
	SkipTraceRate *decimal.Decimal `json:"skip_trace_rate,omitempty" yaml:"-"`
	CycleDay      string           `json:"cycle_day,omitempty" yaml:"cycle_day" validate:"omitempty,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	CycleTime     string           `json:"cycle_time,omitempty" yaml:"cycle_time" validate:"omitempty,datetime=15:04"`
}

// Schedulable reports whether the account takes part in recurring cycles.
func (a Account) Schedulable() bool {
	return a.Status == AccountActive || a.Status == ""
}
