package catalog

import (
	"os"
	"path/filepath"
	"testing"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_ActiveOnly(t *testing.T) {
	c := NewDefault()

	s, ok := c.Lookup("Foreclosure ")
	require.True(t, ok)
	assert.Equal(t, model.LaneBlitz, s.DefaultLane)
	assert.InDelta(t, 0.0111, s.ConversionRate, 1e-12)

	require.NoError(t, c.SetActive("foreclosure", false))
	_, ok = c.Lookup("foreclosure")
	assert.False(t, ok, "inactive signals must not match")

	_, ok = c.Lookup("hoarding")
	assert.False(t, ok)
}

func TestNew_RejectsInvalidRows(t *testing.T) {
	tests := []struct {
		name string
		sig  model.Signal
	}{
		{"zero weight", model.Signal{Key: "a", ConversionRate: 0, DefaultLane: model.LaneChase}},
		{"bad lane", model.Signal{Key: "a", ConversionRate: 0.1, DefaultLane: "Sprint"}},
		{"empty key", model.Signal{Key: " ", ConversionRate: 0.1, DefaultLane: model.LaneChase}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]model.Signal{tt.sig})
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, err := New([]model.Signal{
		{Key: "vacant", ConversionRate: 0.1, DefaultLane: model.LaneChase},
		{Key: "VACANT", ConversionRate: 0.2, DefaultLane: model.LaneChase},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpsertAndAll(t *testing.T) {
	c := NewDefault()
	require.NoError(t, c.Upsert(model.Signal{Key: "code-violation", DisplayName: "Code Violation", ConversionRate: 0.005, DefaultLane: model.LaneNurture, Active: true}))

	all := c.All()
	assert.Len(t, all, len(Defaults)+1)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Key, all[i].Key)
	}
	assert.ErrorIs(t, c.SetActive("missing", true), apperr.ErrNotFound)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.yaml")
	body := `signals:
  - key: probate
    display_name: Probate
    conversion_rate: 0.0092
    default_lane: Chase
    active: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	sigs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, model.LaneChase, sigs[0].DefaultLane)
	assert.True(t, sigs[0].Active)
}
