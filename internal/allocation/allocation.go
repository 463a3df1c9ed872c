// Package allocation selects the weekly batch: candidate filtering, owner
// deduplication, ranking, capacity truncation and source classification.
package allocation

import (
	"fmt"
	"sort"
	"time"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
)

// WeekLength is the span between a batch's week start and end.
const WeekLength = 7 * 24 * time.Hour

// Request is the input of one selection run.
type Request struct {
	AccountID string
	Entities  []model.TrackingEntity
	// Owners maps property ID to dedup key. Missing properties key by ID.
	Owners   map[string]string
	Capacity int
	Now      time.Time
}

// Selection is the outcome of Select. Selected and Queue are copies with
// SourceType stamped. Queue holds every candidate left out, whether cut by
// capacity or by owner deduplication.
type Selection struct {
	Selected          []model.TrackingEntity
	Queue             []model.TrackingEntity
	Candidates        int
	Deduplicated      int
	DuplicatesAvoided int
}

// Select ranks due entities and fills the account's weekly capacity.
// An empty result is a NoEligibleRecords error.
func Select(req Request) (Selection, error) {
	var candidates []model.TrackingEntity
	for _, e := range req.Entities {
		if e.Status.IsSelectable() && e.Due(req.Now) {
			candidates = append(candidates, e)
		}
	}

	winners := dedupByOwner(candidates, req.Owners)
	sortByPoints(winners)

	n := len(winners)
	if req.Capacity < n {
		n = max(req.Capacity, 0)
	}
	sel := Selection{
		Selected:          make([]model.TrackingEntity, 0, n),
		Candidates:        len(candidates),
		Deduplicated:      len(winners),
		DuplicatesAvoided: len(candidates) - len(winners),
	}
	if n == 0 {
		return sel, apperr.NoEligibleRecords(req.AccountID)
	}

	chosen := make(map[string]struct{}, n)
	for _, e := range winners[:n] {
		if e.TouchCount == 0 {
			e.SourceType = model.SourceFresh
		} else {
			e.SourceType = model.SourceRepeat
		}
		chosen[e.ID] = struct{}{}
		sel.Selected = append(sel.Selected, e)
	}
	for _, e := range candidates {
		if _, ok := chosen[e.ID]; ok {
			continue
		}
		e.SourceType = model.SourceQueue
		sel.Queue = append(sel.Queue, e)
	}
	sortByPoints(sel.Queue)
	return sel, nil
}

func dedupByOwner(candidates []model.TrackingEntity, owners map[string]string) []model.TrackingEntity {
	best := make(map[string]int, len(candidates))
	var order []string
	for i, e := range candidates {
		key, ok := owners[e.PropertyID]
		if !ok || key == "" {
			key = "property:" + e.PropertyID
		}
		j, seen := best[key]
		if !seen {
			best[key] = i
			order = append(order, key)
			continue
		}
		if ranksAbove(e, candidates[j]) {
			best[key] = i
		}
	}
	out := make([]model.TrackingEntity, 0, len(order))
	for _, k := range order {
		out = append(out, candidates[best[k]])
	}
	return out
}

func ranksAbove(a, b model.TrackingEntity) bool {
	if a.FinalAllocationPoints != b.FinalAllocationPoints {
		return a.FinalAllocationPoints > b.FinalAllocationPoints
	}
	return a.PropertyID < b.PropertyID
}

func sortByPoints(es []model.TrackingEntity) {
	sort.SliceStable(es, func(i, j int) bool { return ranksAbove(es[i], es[j]) })
}

// Label formats the batch label as <account>-<isoYear>-W<isoWeek>.
func Label(accountID string, at time.Time) string {
	y, w := at.ISOWeek()
	return fmt.Sprintf("%s-%d-W%02d", accountID, y, w)
}

// NewBatch freezes sel into a Generated batch.
func NewBatch(id, accountID string, sel Selection, now time.Time) model.Batch {
	b := model.Batch{
		ID:                id,
		AccountID:         accountID,
		Label:             Label(accountID, now),
		WeekStart:         now,
		WeekEnd:           now.Add(WeekLength),
		Members:           make([]model.BatchMember, 0, len(sel.Selected)),
		TotalRecords:      len(sel.Selected),
		QueueCount:        len(sel.Queue),
		DuplicatesAvoided: sel.DuplicatesAvoided,
		Status:            model.BatchGenerated,
		GeneratedAt:       now,
		UpdatedAt:         now,
	}
	for _, e := range sel.Selected {
		b.Members = append(b.Members, model.BatchMember{
			TrackingID:             e.ID,
			PropertyID:             e.PropertyID,
			SourceType:             e.SourceType,
			Lane:                   e.Lane,
			Points:                 e.FinalAllocationPoints,
			TouchCountAtAllocation: e.TouchCount,
		})
		switch e.SourceType {
		case model.SourceFresh:
			b.FreshCount++
		case model.SourceRepeat:
			b.RepeatCount++
		}
		switch e.Lane {
		case model.LaneBlitz:
			b.BlitzCount++
		case model.LaneChase:
			b.ChaseCount++
		case model.LaneNurture:
			b.NurtureCount++
		}
	}
	return b
}
