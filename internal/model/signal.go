package model

// Lane is the priority tier that governs contact frequency and urgency.
type Lane string

const (
	LaneBlitz   Lane = "Blitz"
	LaneChase   Lane = "Chase"
	LaneNurture Lane = "Nurture"
)

// Lanes lists every lane in precedence order (highest first).
var Lanes = []Lane{LaneBlitz, LaneChase, LaneNurture}

// Rank orders lanes by urgency. Lower is more urgent.
func (l Lane) Rank() int {
	switch l {
	case LaneBlitz:
		return 0
	case LaneChase:
		return 1
	default:
		return 2
	}
}

// Valid reports whether l is one of the known lanes.
func (l Lane) Valid() bool {
	return l == LaneBlitz || l == LaneChase || l == LaneNurture
}

// Signal is a distress indicator reference row from the signal catalog.
type Signal struct {
	Key            string  `json:"key" yaml:"key"`
	DisplayName    string  `json:"display_name" yaml:"display_name"`
	Description    string  `json:"description,omitempty" yaml:"description"`
	ConversionRate float64 `json:"conversion_rate" yaml:"conversion_rate"`
	DefaultLane    Lane    `json:"default_lane" yaml:"default_lane"`
	TimeSensitive  bool    `json:"time_sensitive" yaml:"time_sensitive"`
	Active         bool    `json:"active" yaml:"active"`
}
