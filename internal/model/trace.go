package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TraceContact is the enrichment result for one property owner.
type TraceContact struct {
	AccountID  string          `json:"account_id"`
	PropertyID string          `json:"property_id"`
	Phone1     string          `json:"phone1,omitempty"`
	Phone1Type string          `json:"phone1_type,omitempty"`
	Phone2     string          `json:"phone2,omitempty"`
	Phone2Type string          `json:"phone2_type,omitempty"`
	Phone3     string          `json:"phone3,omitempty"`
	Phone3Type string          `json:"phone3_type,omitempty"`
	Email      string          `json:"email,omitempty"`
	Provider   string          `json:"provider"`
	Cost       decimal.Decimal `json:"cost"`
	TracedAt   time.Time       `json:"traced_at"`
}

// Phones returns the non-empty phone numbers of the contact.
func (c TraceContact) Phones() []string {
	var out []string
	for _, p := range []string{c.Phone1, c.Phone2, c.Phone3} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
