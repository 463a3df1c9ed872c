package model

// SuppressionType selects which attribute a suppression entry matches.
type SuppressionType string

const (
	SuppressByAddress   SuppressionType = "address"
	SuppressByPhone     SuppressionType = "phone"
	SuppressByOwnerName SuppressionType = "owner_name"
)

// SuppressionList is an imported do-not-contact list.
type SuppressionList struct {
	Name    string          `json:"name"`
	Type    SuppressionType `json:"type"`
	Entries []string        `json:"entries"`
}
