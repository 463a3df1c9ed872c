package engine

import (
	"context"
	"strings"
	"time"
	"unicode"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/scoring"

	"go.uber.org/zap"
)

// ApplyStatus sets an administrative status on the account's tracking of a
// property, or restores it to Active. A property the account does not track
// yet is tracked from here on.
func (e *Engine) ApplyStatus(ctx context.Context, accountID, propertyID string, status model.TrackingStatus, reason string) (err error) {
	defer func(start time.Time) { observe("apply_status", start, err) }(time.Now())
	if err := checkAssignable(status); err != nil {
		return err
	}
	return e.withAccount(ctx, accountID, func() error {
		if _, err := e.store.GetAccount(ctx, accountID); err != nil {
			return err
		}
		tracking, err := e.store.ListTracking(ctx, accountID)
		if err != nil {
			return err
		}
		ent, ok := indexByProperty(tracking)[propertyID]
		if !ok {
			props, err := e.propertyIndex(ctx)
			if err != nil {
				return err
			}
			p, found := props[propertyID]
			if !found {
				return apperr.NotFound("property", propertyID)
			}
			ent = e.newEntity(accountID, propertyID, e.now())
			scoring.Apply(&ent, scoring.Score(p.Signals, e.catalog))
		}
		if !setStatus(&ent, status, reason, e.now()) && ok {
			return nil
		}
		if err := e.store.SaveTracking(ctx, accountID, []model.TrackingEntity{ent}); err != nil {
			return err
		}
		e.accountLog(accountID).Info("status applied",
			zap.String("property", propertyID),
			zap.String("status", string(ent.Status)),
			zap.String("reason", reason),
		)
		return nil
	})
}

// ApplyStatusEvent routes a collector event to the accounts tracking its
// property. Accounts that never tracked the property are left alone.
func (e *Engine) ApplyStatusEvent(ctx context.Context, evt model.StatusEvent) error {
	if err := checkAssignable(evt.Status); err != nil {
		return err
	}
	if evt.AccountID != "" {
		return e.ApplyStatus(ctx, evt.AccountID, evt.PropertyID, evt.Status, evt.Reason)
	}
	accts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return err
	}
	for _, a := range accts {
		tracking, err := e.store.ListTracking(ctx, a.ID)
		if err != nil {
			return err
		}
		if _, ok := indexByProperty(tracking)[evt.PropertyID]; !ok {
			continue
		}
		if err := e.ApplyStatus(ctx, a.ID, evt.PropertyID, evt.Status, evt.Reason); err != nil {
			return err
		}
	}
	return nil
}

// IngestProperties stores properties delivered by upstream ingestion.
func (e *Engine) IngestProperties(ctx context.Context, props []model.Property) (err error) {
	defer func(start time.Time) { observe("ingest_properties", start, err) }(time.Now())
	for _, p := range props {
		if p.ID == "" {
			return apperr.Validation("property.id", "property id is required")
		}
	}
	if len(props) == 0 {
		return nil
	}
	if err := e.store.UpsertProperties(ctx, props); err != nil {
		return err
	}
	e.log.Debug("properties ingested", zap.Int("count", len(props)))
	return nil
}

// ApplySuppressionList marks every in-cadence entity matching the list as
// Suppressed and returns how many were marked.
func (e *Engine) ApplySuppressionList(ctx context.Context, accountID string, list model.SuppressionList) (n int, err error) {
	defer func(start time.Time) { observe("apply_suppression_list", start, err) }(time.Now())
	match, err := suppressionMatcher(list.Type)
	if err != nil {
		return 0, err
	}
	entries := make(map[string]struct{}, len(list.Entries))
	for _, raw := range list.Entries {
		if k := normalizeEntry(list.Type, raw); k != "" {
			entries[k] = struct{}{}
		}
	}

	err = e.withAccount(ctx, accountID, func() error {
		if _, err := e.store.GetAccount(ctx, accountID); err != nil {
			return err
		}
		tracking, err := e.store.ListTracking(ctx, accountID)
		if err != nil {
			return err
		}
		props, err := e.propertyIndex(ctx)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(tracking))
		for _, t := range tracking {
			ids = append(ids, t.PropertyID)
		}
		contacts, err := e.store.ListContacts(ctx, accountID, ids)
		if err != nil {
			return err
		}

		now := e.now()
		reason := "suppression list"
		if list.Name != "" {
			reason += ": " + list.Name
		}
		var changed []model.TrackingEntity
		for _, t := range tracking {
			if !t.Status.InCadence() {
				continue
			}
			if !match(entries, props[t.PropertyID], contacts[t.PropertyID]) {
				continue
			}
			setStatus(&t, model.StatusSuppressed, reason, now)
			changed = append(changed, t)
		}
		if len(changed) == 0 {
			return nil
		}
		if err := e.store.SaveTracking(ctx, accountID, changed); err != nil {
			return err
		}
		n = len(changed)
		e.accountLog(accountID).Info("suppression list applied",
			zap.String("list", list.Name),
			zap.String("type", string(list.Type)),
			zap.Int("suppressed", n),
		)
		return nil
	})
	return n, err
}

func checkAssignable(s model.TrackingStatus) error {
	if s == model.StatusActive || s.IsTerminal() {
		return nil
	}
	return apperr.Validation("status", "status %q cannot be assigned externally", s)
}

// setStatus reports whether ent changed. Restoring Active only applies to
// administrative statuses; cadence state is never overridden.
func setStatus(ent *model.TrackingEntity, status model.TrackingStatus, reason string, now time.Time) bool {
	if status == model.StatusActive {
		if !ent.Status.IsTerminal() {
			return false
		}
		ent.Status = model.StatusActive
		ent.StatusReason = ""
		ent.UpdatedAt = now
		return true
	}
	if ent.Status == status && ent.StatusReason == reason {
		return false
	}
	ent.Status = status
	ent.StatusReason = reason
	ent.CooldownStartAt = nil
	ent.CooldownEndAt = nil
	ent.UpdatedAt = now
	return true
}

type matcher func(entries map[string]struct{}, p model.Property, c model.TraceContact) bool

func suppressionMatcher(t model.SuppressionType) (matcher, error) {
	switch t {
	case model.SuppressByAddress:
		return func(entries map[string]struct{}, p model.Property, _ model.TraceContact) bool {
			a := p.Address
			return hasAny(entries,
				normalizeText(a.Line1),
				normalizeText(strings.Join([]string{a.Line1, a.City, a.State, a.PostalCode}, " ")),
			)
		}, nil
	case model.SuppressByOwnerName:
		return func(entries map[string]struct{}, p model.Property, _ model.TraceContact) bool {
			return hasAny(entries, normalizeText(p.OwnerName))
		}, nil
	case model.SuppressByPhone:
		return func(entries map[string]struct{}, _ model.Property, c model.TraceContact) bool {
			for _, ph := range c.Phones() {
				if hasAny(entries, normalizePhone(ph)) {
					return true
				}
			}
			return false
		}, nil
	}
	return nil, apperr.Validation("type", "unknown suppression type %q", t)
}

func hasAny(entries map[string]struct{}, keys ...string) bool {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := entries[k]; ok {
			return true
		}
	}
	return false
}

func normalizeEntry(t model.SuppressionType, raw string) string {
	if t == model.SuppressByPhone {
		return normalizePhone(raw)
	}
	return normalizeText(raw)
}

// normalizeText lowercases s, drops punctuation and collapses whitespace.
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == ',' || r == '-':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// normalizePhone keeps digits and drops a leading US country code.
func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	return d
}
