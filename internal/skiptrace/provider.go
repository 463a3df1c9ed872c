// Package skiptrace enriches property owners with contact details.
package skiptrace

import (
	"context"
	"fmt"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
)

// Request identifies one owner to trace.
type Request struct {
	PropertyID string        `json:"property_id"`
	OwnerName  string        `json:"owner_name,omitempty"`
	Address    model.Address `json:"address"`
}

// Provider looks up contacts for a set of owners. Results may omit
// properties the provider could not match.
type Provider interface {
	Trace(ctx context.Context, reqs []Request) ([]model.TraceContact, error)
	Name() string
}

// Disabled rejects every trace. It stands in when no provider is configured.
type Disabled struct{}

func (Disabled) Name() string { return "disabled" }

func (Disabled) Trace(_ context.Context, reqs []Request) ([]model.TraceContact, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	return nil, apperr.New(apperr.CodeUnavailable, "skip-trace provider not configured")
}

// StubProvider returns synthetic contacts for development and testing.
type StubProvider struct {
	// Fail, when set, is returned from every call.
	Fail  error
	Calls int
}

func (s *StubProvider) Name() string { return "stub" }

func (s *StubProvider) Trace(_ context.Context, reqs []Request) ([]model.TraceContact, error) {
	s.Calls++
	if s.Fail != nil {
		return nil, s.Fail
	}
	out := make([]model.TraceContact, 0, len(reqs))
	for i, r := range reqs {
		out = append(out, model.TraceContact{
			PropertyID: r.PropertyID,
			Phone1:     fmt.Sprintf("555%07d", i+1),
			Phone1Type: "mobile",
			Provider:   s.Name(),
		})
	}
	return out, nil
}
