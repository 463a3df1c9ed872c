package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus is the lifecycle state of a weekly batch.
type BatchStatus string

const (
	BatchGenerated  BatchStatus = "Generated"
	BatchDownloaded BatchStatus = "Downloaded"
	BatchArchived   BatchStatus = "Archived"
)

// BatchMember is one selected tracking entity, frozen at generation time.
type BatchMember struct {
	TrackingID             string     `json:"tracking_id"`
	PropertyID             string     `json:"property_id"`
	SourceType             SourceType `json:"source_type"`
	Lane                   Lane       `json:"lane"`
	Points                 float64    `json:"points"`
	TouchCountAtAllocation int        `json:"touch_count_at_allocation"`
}

// Batch is the weekly selected set of records. Membership is persisted so
// estimation and execution read a stable snapshot.
type Batch struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"account_id"`
	Label             string          `json:"label"`
	WeekStart         time.Time       `json:"week_start"`
	WeekEnd           time.Time       `json:"week_end"`
	Members           []BatchMember   `json:"members"`
	TotalRecords      int             `json:"total_records"`
	FreshCount        int             `json:"fresh_count"`
	RepeatCount       int             `json:"repeat_count"`
	QueueCount        int             `json:"queue_count"`
	BlitzCount        int             `json:"blitz_count"`
	ChaseCount        int             `json:"chase_count"`
	NurtureCount      int             `json:"nurture_count"`
	DuplicatesAvoided int             `json:"duplicates_avoided"`
	SkipTraceCount    int             `json:"skip_trace_count"`
	SkipTraceCost     decimal.Decimal `json:"skip_trace_cost"`
	Status            BatchStatus     `json:"status"`
	GeneratedAt       time.Time       `json:"generated_at"`
	FirstDownloadAt   *time.Time      `json:"first_download_at,omitempty"`
	DownloadCount     int             `json:"download_count"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TrackingIDs returns the member tracking IDs in batch order.
func (b Batch) TrackingIDs() []string {
	ids := make([]string, len(b.Members))
	for i, m := range b.Members {
		ids[i] = m.TrackingID
	}
	return ids
}

// ExportRecord is one row of the execution payload the caller serializes.
type ExportRecord struct {
	PropertyID string     `json:"property_id"`
	Address    Address    `json:"address"`
	OwnerName  string     `json:"owner_name,omitempty"`
	Lane       Lane       `json:"lane"`
	Score      float64    `json:"score"`
	SourceType SourceType `json:"source_type"`
	Signals    []string   `json:"signals"`
	Phone1     string     `json:"phone1,omitempty"`
	Phone1Type string     `json:"phone1_type,omitempty"`
	Phone2     string     `json:"phone2,omitempty"`
	Phone2Type string     `json:"phone2_type,omitempty"`
	Phone3     string     `json:"phone3,omitempty"`
	Phone3Type string     `json:"phone3_type,omitempty"`
	Email      string     `json:"email,omitempty"`
}
