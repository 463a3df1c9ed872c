package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
)

// snapshot is the on-disk form of a MemoryStore.
type snapshot struct {
	Accounts   map[string]model.Account                   `json:"accounts"`
	Properties map[string]model.Property                  `json:"properties"`
	Tracking   map[string]map[string]model.TrackingEntity `json:"tracking"`
	Batches    map[string][]model.Batch                   `json:"batches"`
	Wallets    map[string]model.Wallet                    `json:"wallets"`
	Contacts   map[string]map[string]model.TraceContact   `json:"contacts"`
}

func newSnapshot() *snapshot {
	return &snapshot{
		Accounts:   map[string]model.Account{},
		Properties: map[string]model.Property{},
		Tracking:   map[string]map[string]model.TrackingEntity{},
		Batches:    map[string][]model.Batch{},
		Wallets:    map[string]model.Wallet{},
		Contacts:   map[string]map[string]model.TraceContact{},
	}
}

// loadSnapshot reads a snapshot file. A missing file yields an empty state.
func loadSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newSnapshot(), nil
		}
		return nil, err
	}
	s := newSnapshot()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return s, nil
}

// saveSnapshot writes s through a temp file so readers never see a partial file.
func saveSnapshot(path string, s *snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// clone copies every map and batch slice a write may touch. Values are shared
// until a write replaces them.
func (s *snapshot) clone() *snapshot {
	c := &snapshot{
		Accounts:   make(map[string]model.Account, len(s.Accounts)),
		Properties: make(map[string]model.Property, len(s.Properties)),
		Tracking:   make(map[string]map[string]model.TrackingEntity, len(s.Tracking)),
		Batches:    make(map[string][]model.Batch, len(s.Batches)),
		Wallets:    make(map[string]model.Wallet, len(s.Wallets)),
		Contacts:   make(map[string]map[string]model.TraceContact, len(s.Contacts)),
	}
	for k, v := range s.Accounts {
		c.Accounts[k] = v
	}
	for k, v := range s.Properties {
		c.Properties[k] = v
	}
	for acct, byID := range s.Tracking {
		m := make(map[string]model.TrackingEntity, len(byID))
		for k, v := range byID {
			m[k] = v
		}
		c.Tracking[acct] = m
	}
	for acct, bs := range s.Batches {
		c.Batches[acct] = append([]model.Batch(nil), bs...)
	}
	for k, v := range s.Wallets {
		c.Wallets[k] = v
	}
	for acct, byProp := range s.Contacts {
		m := make(map[string]model.TraceContact, len(byProp))
		for k, v := range byProp {
			m[k] = v
		}
		c.Contacts[acct] = m
	}
	return c
}

func (s *snapshot) putTracking(accountID string, entities []model.TrackingEntity) {
	byID, ok := s.Tracking[accountID]
	if !ok {
		byID = make(map[string]model.TrackingEntity, len(entities))
		s.Tracking[accountID] = byID
	}
	for _, e := range entities {
		byID[e.ID] = e
	}
}

func (s *snapshot) putBatch(b model.Batch) {
	if i := s.batchIndex(b.AccountID, b.ID); i >= 0 {
		s.Batches[b.AccountID][i] = cloneBatch(b)
		return
	}
	s.Batches[b.AccountID] = append(s.Batches[b.AccountID], cloneBatch(b))
}

func (s *snapshot) batchIndex(accountID, batchID string) int {
	for i, b := range s.Batches[accountID] {
		if b.ID == batchID {
			return i
		}
	}
	return -1
}

// appendTx records tx and moves the balance. The history slice is copied so
// an abandoned write never reaches the live state's backing array.
func (s *snapshot) appendTx(tx model.Transaction) {
	w := s.Wallets[tx.AccountID]
	w.AccountID = tx.AccountID
	w.Balance = tx.BalanceAfter
	w.Transactions = append(append(make([]model.Transaction, 0, len(w.Transactions)+1), w.Transactions...), tx)
	w.UpdatedAt = tx.Timestamp
	s.Wallets[tx.AccountID] = w
}
