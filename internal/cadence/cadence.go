// Package cadence runs the cooldown state machine of tracking entities.
package cadence

import (
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/scoring"
)

// System defaults applied when an account leaves a setting unset.
var (
	DefaultCadence = model.Cadence{
		Blitz:   model.LaneCadence{DaysBetween: 14, MaxTouches: 12},
		Chase:   model.LaneCadence{DaysBetween: 30, MaxTouches: 18},
		Nurture: model.LaneCadence{DaysBetween: 45, MaxTouches: 10},
	}
	DefaultCooldownMonths = 6
	DefaultScoreFloor     = 0.10
)

// Policy is the resolved cadence configuration for one account.
type Policy struct {
	Cadence        model.Cadence
	CooldownMonths int
	// ScoreFloor is compared against allocation points.
	ScoreFloor float64
}

// DefaultPolicy returns the system policy.
func DefaultPolicy() Policy {
	return Policy{
		Cadence:        DefaultCadence,
		CooldownMonths: DefaultCooldownMonths,
		ScoreFloor:     DefaultScoreFloor,
	}
}

// For overlays the account's settings on base. Zero values keep base.
func For(acct model.Account, base Policy) Policy {
	p := base
	p.Cadence.Blitz = overlay(acct.Cadence.Blitz, base.Cadence.Blitz)
	p.Cadence.Chase = overlay(acct.Cadence.Chase, base.Cadence.Chase)
	p.Cadence.Nurture = overlay(acct.Cadence.Nurture, base.Cadence.Nurture)
	if acct.CooldownMonths > 0 {
		p.CooldownMonths = acct.CooldownMonths
	}
	if acct.ScoreFloor != nil {
		p.ScoreFloor = *acct.ScoreFloor
	}
	return p
}

func overlay(v, base model.LaneCadence) model.LaneCadence {
	if v.DaysBetween > 0 {
		base.DaysBetween = v.DaysBetween
	}
	if v.MaxTouches > 0 {
		base.MaxTouches = v.MaxTouches
	}
	return base
}

// Transition reports what Advance changed.
type Transition struct {
	Exited  bool
	Entered bool
}

// Advance applies, in order, cooldown exit, re-scoring with res and cooldown
// entry. Administrative statuses are left untouched.
func Advance(e *model.TrackingEntity, res scoring.Result, p Policy, now time.Time) Transition {
	var tr Transition
	if !e.Status.InCadence() {
		return tr
	}

	if e.Status == model.StatusCoolingDown && e.CooldownEndAt != nil && !now.Before(*e.CooldownEndAt) {
		e.Status = model.StatusActive
		e.TouchCount = 0
		e.CooldownStartAt = nil
		e.CooldownEndAt = nil
		e.NextEligibleAt = nil
		e.StatusReason = ""
		tr.Exited = true
	}

	scoring.Apply(e, res)

	if e.Status == model.StatusActive {
		if reason, ok := shouldRest(e, p); ok {
			e.Status = model.StatusCoolingDown
			e.StatusReason = reason
			e.CooldownStartAt = model.TimePtr(now)
			e.CooldownEndAt = model.TimePtr(now.AddDate(0, p.CooldownMonths, 0))
			tr.Entered = true
		}
	}
	if tr.Exited || tr.Entered {
		e.UpdatedAt = now
	}
	return tr
}

func shouldRest(e *model.TrackingEntity, p Policy) (string, bool) {
	if e.TouchCount >= p.Cadence.For(e.Lane).MaxTouches {
		return "max touches reached", true
	}
	if e.FinalAllocationPoints < p.ScoreFloor {
		return "score below floor", true
	}
	return "", false
}

// NextDue is the earliest time e may be contacted again after a touch at now.
func NextDue(lane model.Lane, p Policy, now time.Time) time.Time {
	return now.AddDate(0, 0, p.Cadence.For(lane).DaysBetween)
}
