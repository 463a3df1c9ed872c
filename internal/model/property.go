package model

import "time"

// Address is the mailing location of a property.
type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// Property is a physical asset as delivered by upstream ingestion.
// The engine never mutates properties.
type Property struct {
	ID             string    `json:"id"`
	Jurisdiction   string    `json:"jurisdiction"` // county FIPS code
	Address        Address   `json:"address"`
	PropertyType   string    `json:"property_type,omitempty"`
	EstimatedValue float64   `json:"estimated_value"`
	EquityPercent  float64   `json:"equity_percent"`
	OwnerID        string    `json:"owner_id,omitempty"`
	OwnerName      string    `json:"owner_name,omitempty"`
	OwnerType      string    `json:"owner_type,omitempty"`
	Signals        []string  `json:"signals"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OwnerKey returns the deduplication key for the property's owner. Properties
// without an owner are keyed by their own ID so they never collide.
func (p Property) OwnerKey() string {
	if p.OwnerID != "" {
		return "owner:" + p.OwnerID
	}
	return "property:" + p.ID
}
