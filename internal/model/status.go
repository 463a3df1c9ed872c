package model

import "time"

// StatusEvent is an external status change for a property, such as a sale
// or a new MLS listing. An empty AccountID applies to every account
// tracking the property.
type StatusEvent struct {
	AccountID  string         `json:"account_id,omitempty"`
	PropertyID string         `json:"property_id"`
	Status     TrackingStatus `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	At         time.Time      `json:"at"`
}
