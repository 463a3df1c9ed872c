// Package buybox decides which properties fall inside an account's buy-box.
package buybox

import (
	"strings"
	"sync"
	"unicode"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Eligible reports whether p passes every criterion of box.
func Eligible(box model.BuyBox, p model.Property) bool {
	return eligible(box, ExcludedZips(box.ExcludedZips), p)
}

// Filter returns the eligible subset of props, preserving input order.
func Filter(box model.BuyBox, props []model.Property) []model.Property {
	excluded := ExcludedZips(box.ExcludedZips)
	out := make([]model.Property, 0, len(props))
	for _, p := range props {
		if eligible(box, excluded, p) {
			out = append(out, p)
		}
	}
	return out
}

func eligible(box model.BuyBox, excluded map[string]struct{}, p model.Property) bool {
	if len(box.Jurisdictions) > 0 && !contains(box.Jurisdictions, p.Jurisdiction) {
		return false
	}
	// Untyped properties pass a type restriction.
	if len(box.PropertyTypes) > 0 && p.PropertyType != "" && !containsFold(box.PropertyTypes, p.PropertyType) {
		return false
	}
	if box.MaxPrice > 0 && p.EstimatedValue > box.MaxPrice {
		return false
	}
	if p.EquityPercent < box.MinEquity {
		return false
	}
	if _, ok := excluded[strings.TrimSpace(p.Address.PostalCode)]; ok {
		return false
	}
	return true
}

// ExcludedZips tokenizes a delimited zip list. Commas, semicolons and any
// whitespace separate tokens.
func ExcludedZips(raw string) map[string]struct{} {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// Validate checks the thresholds and jurisdiction codes of box.
func Validate(box model.BuyBox) error {
	if err := validatorInstance().Struct(box); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.Validation("buy_box."+fe.Field(), "%s fails %q", fe.Namespace(), fe.Tag())
		}
		return apperr.Wrap(err, apperr.CodeValidation, "invalid buy-box")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
