// Package catalog holds the distress-signal reference table used for scoring.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"gopkg.in/yaml.v3"
)

// Defaults is the seed signal table.
var Defaults = []model.Signal{
	{Key: "foreclosure", DisplayName: "Foreclosure", ConversionRate: 0.0111, DefaultLane: model.LaneBlitz, TimeSensitive: true, Active: true},
	{Key: "pre-foreclosure", DisplayName: "Pre-Foreclosure", ConversionRate: 0.0095, DefaultLane: model.LaneBlitz, TimeSensitive: true, Active: true},
	{Key: "probate", DisplayName: "Probate", ConversionRate: 0.0092, DefaultLane: model.LaneChase, Active: true},
	{Key: "tax-sale", DisplayName: "Tax Sale", ConversionRate: 0.0085, DefaultLane: model.LaneBlitz, TimeSensitive: true, Active: true},
	{Key: "vacant", DisplayName: "Vacant", ConversionRate: 0.0073, DefaultLane: model.LaneChase, Active: true},
	{Key: "divorce", DisplayName: "Divorce", ConversionRate: 0.0068, DefaultLane: model.LaneChase, Active: true},
	{Key: "absentee", DisplayName: "Absentee Owner", ConversionRate: 0.0046, DefaultLane: model.LaneNurture, Active: true},
	{Key: "bankruptcy", DisplayName: "Bankruptcy", ConversionRate: 0.0085, DefaultLane: model.LaneBlitz, TimeSensitive: true, Active: true},
}

// Catalog maps signal keys to weights and lanes. Safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	signals map[string]model.Signal
}

// New builds a catalog from signals, rejecting invalid rows.
func New(signals []model.Signal) (*Catalog, error) {
	c := &Catalog{signals: make(map[string]model.Signal, len(signals))}
	for _, s := range signals {
		s.Key = normalizeKey(s.Key)
		if err := validate(s); err != nil {
			return nil, err
		}
		if _, dup := c.signals[s.Key]; dup {
			return nil, apperr.Validation("signals", "duplicate signal key %q", s.Key)
		}
		c.signals[s.Key] = s
	}
	return c, nil
}

// NewDefault returns a catalog seeded with Defaults.
func NewDefault() *Catalog {
	c, err := New(Defaults)
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid defaults: %v", err))
	}
	return c
}

// LoadFile reads a YAML list of signals.
func LoadFile(path string) ([]model.Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}
	var out struct {
		Signals []model.Signal `yaml:"signals"`
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse signals: %w", err)
	}
	return out.Signals, nil
}

// Lookup returns the active signal for key. Unknown and inactive keys miss.
func (c *Catalog) Lookup(key string) (model.Signal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.signals[normalizeKey(key)]
	if !ok || !s.Active {
		return model.Signal{}, false
	}
	return s, true
}

// All returns every signal, including inactive ones, sorted by key.
func (c *Catalog) All() []model.Signal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Signal, 0, len(c.signals))
	for _, s := range c.signals {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Upsert adds or replaces a signal.
func (c *Catalog) Upsert(s model.Signal) error {
	s.Key = normalizeKey(s.Key)
	if err := validate(s); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals[s.Key] = s
	return nil
}

// SetActive toggles a signal without removing it.
func (c *Catalog) SetActive(key string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := normalizeKey(key)
	s, ok := c.signals[k]
	if !ok {
		return apperr.NotFound("signal", key)
	}
	s.Active = active
	c.signals[k] = s
	return nil
}

func validate(s model.Signal) error {
	if s.Key == "" {
		return apperr.Validation("signals.key", "signal key is required")
	}
	if s.ConversionRate <= 0 {
		return apperr.Validation("signals.conversion_rate", "signal %q weight must be positive", s.Key)
	}
	if !s.DefaultLane.Valid() {
		return apperr.Validation("signals.default_lane", "signal %q has unknown lane %q", s.Key, s.DefaultLane)
	}
	return nil
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
