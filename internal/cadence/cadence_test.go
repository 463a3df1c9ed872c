package cadence

import (
	"testing"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func blitzResult() scoring.Result {
	return scoring.Result{BaseScore: 0.0184, Lane: model.LaneBlitz}
}

func TestFor_OverlaysAccountSettings(t *testing.T) {
	floor := 0.5
	acct := model.Account{
		Cadence:        model.Cadence{Chase: model.LaneCadence{DaysBetween: 21}},
		CooldownMonths: 3,
		ScoreFloor:     &floor,
	}
	p := For(acct, DefaultPolicy())

	assert.Equal(t, model.LaneCadence{DaysBetween: 21, MaxTouches: 18}, p.Cadence.Chase)
	assert.Equal(t, DefaultCadence.Blitz, p.Cadence.Blitz)
	assert.Equal(t, 3, p.CooldownMonths)
	assert.Equal(t, 0.5, p.ScoreFloor)

	assert.Equal(t, DefaultPolicy(), For(model.Account{}, DefaultPolicy()))
}

func TestAdvance_EntersOnMaxTouches(t *testing.T) {
	p := DefaultPolicy()
	p.ScoreFloor = 0
	e := model.TrackingEntity{Status: model.StatusActive, TouchCount: 12}

	tr := Advance(&e, blitzResult(), p, t0)

	assert.True(t, tr.Entered)
	assert.Equal(t, model.StatusCoolingDown, e.Status)
	require.NotNil(t, e.CooldownEndAt)
	assert.Equal(t, t0.AddDate(0, 6, 0), *e.CooldownEndAt)
	assert.Equal(t, t0, *e.CooldownStartAt)
}

func TestAdvance_EntersBelowFloor(t *testing.T) {
	e := model.TrackingEntity{Status: model.StatusActive, TouchCount: 5}

	tr := Advance(&e, blitzResult(), DefaultPolicy(), t0)

	// 0.0184 * 0.5^5 * 100 = 0.0575 points
	assert.True(t, tr.Entered)
	assert.Equal(t, "score below floor", e.StatusReason)
}

func TestAdvance_StaysActiveWithinLimits(t *testing.T) {
	e := model.TrackingEntity{Status: model.StatusActive, TouchCount: 2}
	tr := Advance(&e, blitzResult(), DefaultPolicy(), t0)

	assert.Equal(t, Transition{}, tr)
	assert.Equal(t, model.StatusActive, e.Status)
	assert.InDelta(t, 0.46, e.FinalAllocationPoints, 1e-9)
}

func TestAdvance_CooldownRoundTrip(t *testing.T) {
	p := DefaultPolicy()
	p.ScoreFloor = 0
	e := model.TrackingEntity{Status: model.StatusActive, TouchCount: 12, Lane: model.LaneBlitz}

	Advance(&e, blitzResult(), p, t0)
	require.Equal(t, model.StatusCoolingDown, e.Status)

	// Still resting one day before the end.
	tr := Advance(&e, blitzResult(), p, t0.AddDate(0, 6, -1))
	assert.Equal(t, Transition{}, tr)
	assert.Equal(t, model.StatusCoolingDown, e.Status)

	later := t0.AddDate(0, 6, 0)
	tr = Advance(&e, blitzResult(), p, later)
	assert.True(t, tr.Exited)
	assert.False(t, tr.Entered)
	assert.Equal(t, model.StatusActive, e.Status)
	assert.Zero(t, e.TouchCount)
	assert.Nil(t, e.CooldownStartAt)
	assert.Nil(t, e.CooldownEndAt)
	assert.InDelta(t, 1.84, e.FinalAllocationPoints, 1e-9)
	assert.True(t, e.Due(later))
}

func TestAdvance_ExitRescoresBeforeEntryCheck(t *testing.T) {
	e := model.TrackingEntity{
		Status:        model.StatusCoolingDown,
		TouchCount:    12,
		CooldownEndAt: model.TimePtr(t0),
	}
	// Signals faded to nothing while resting: exits then re-enters on the floor.
	tr := Advance(&e, scoring.Result{Lane: model.LaneNurture}, DefaultPolicy(), t0)

	assert.True(t, tr.Exited)
	assert.True(t, tr.Entered)
	assert.Equal(t, model.StatusCoolingDown, e.Status)
	assert.Zero(t, e.TouchCount)
}

func TestAdvance_IgnoresAdministrativeStatuses(t *testing.T) {
	for _, s := range []model.TrackingStatus{
		model.StatusSuppressed, model.StatusContactConstrained,
		model.StatusRemovedSold, model.StatusRemovedListed,
	} {
		e := model.TrackingEntity{Status: s, TouchCount: 50}
		before := e
		assert.Equal(t, Transition{}, Advance(&e, blitzResult(), DefaultPolicy(), t0))
		assert.Equal(t, before, e)
	}
}

func TestNextDue(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, t0.AddDate(0, 0, 14), NextDue(model.LaneBlitz, p, t0))
	assert.Equal(t, t0.AddDate(0, 0, 30), NextDue(model.LaneChase, p, t0))
	assert.Equal(t, t0.AddDate(0, 0, 45), NextDue(model.LaneNurture, p, t0))
}
