package model

import "time"

// TrackingStatus is the cadence state of a tracking entity.
type TrackingStatus string

const (
	StatusActive             TrackingStatus = "Active"
	StatusCoolingDown        TrackingStatus = "CoolingDown"
	StatusSuppressed         TrackingStatus = "Suppressed"
	StatusContactConstrained TrackingStatus = "ContactConstrained"
	StatusRemovedSold        TrackingStatus = "RemovedSold"
	StatusRemovedListed      TrackingStatus = "RemovedListed"
)

// Valid reports whether s is a known status.
func (s TrackingStatus) Valid() bool {
	switch s {
	case StatusActive, StatusCoolingDown, StatusSuppressed,
		StatusContactConstrained, StatusRemovedSold, StatusRemovedListed:
		return true
	}
	return false
}

// IsRemoved covers both removal reasons (sold and listed).
func (s TrackingStatus) IsRemoved() bool {
	return s == StatusRemovedSold || s == StatusRemovedListed
}

// IsTerminal reports administrative exclusions set by external collaborators.
func (s TrackingStatus) IsTerminal() bool {
	return s.IsRemoved() || s == StatusSuppressed || s == StatusContactConstrained
}

// InCadence reports whether the cadence state machine may transition s.
func (s TrackingStatus) InCadence() bool {
	return s == StatusActive || s == StatusCoolingDown
}

// SourceType classifies a record at selection time. It is not persisted state.
type SourceType string

const (
	SourceFresh  SourceType = "Fresh"
	SourceRepeat SourceType = "Repeat"
	SourceQueue  SourceType = "Queue"
)

// TrackingEntity is the account-specific lifecycle of one property.
type TrackingEntity struct {
	ID                    string         `json:"id"`
	AccountID             string         `json:"account_id"`
	PropertyID            string         `json:"property_id"`
	Lane                  Lane           `json:"lane"`
	Status                TrackingStatus `json:"status"`
	StatusReason          string         `json:"status_reason,omitempty"`
	BaseScore             float64        `json:"base_score"`
	EffectiveScore        float64        `json:"effective_score"`
	FinalAllocationPoints float64        `json:"final_allocation_points"`
	TouchCount            int            `json:"touch_count"`
	SourceType            SourceType     `json:"source_type,omitempty"`
	LastTouchAt           *time.Time     `json:"last_touch_at,omitempty"`
	NextEligibleAt        *time.Time     `json:"next_eligible_at,omitempty"`
	CooldownStartAt       *time.Time     `json:"cooldown_start_at,omitempty"`
	CooldownEndAt         *time.Time     `json:"cooldown_end_at,omitempty"`
	SkipTracedAt          *time.Time     `json:"skip_traced_at,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// Due reports whether the entity may be contacted at now: never touched, or
// its lane cadence interval has elapsed.
func (t TrackingEntity) Due(now time.Time) bool {
	if t.TouchCount == 0 {
		return true
	}
	return t.NextEligibleAt != nil && !now.Before(*t.NextEligibleAt)
}

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time { return &t }

// IsSelectable reports whether s may enter a weekly batch.
func (s TrackingStatus) IsSelectable() bool {
	return s == StatusActive
}
