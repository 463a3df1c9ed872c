package store

import (
	"context"
	"sort"
	"sync"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
)

// MemoryStore keeps all state in maps. With a path set, every write is
// flushed to a JSON snapshot that is reloaded on start.
//
// Writes apply to a copy of the state that replaces the live one only once
// the snapshot is on disk, so a failed write leaves nothing behind.
type MemoryStore struct {
	mu    sync.RWMutex
	state *snapshot
	path  string
}

// NewMemoryStore returns an empty, non-persistent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newSnapshot()}
}

// OpenMemoryStore loads the snapshot at path, creating it on first write.
func OpenMemoryStore(path string) (*MemoryStore, error) {
	s, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{state: s, path: path}, nil
}

// update runs fn on a copy of the state and swaps it in after a successful
// flush. The caller must not hold mu.
func (m *MemoryStore) update(fn func(s *snapshot) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := m.flush(next); err != nil {
		return err
	}
	m.state = next
	return nil
}

func (m *MemoryStore) flush(s *snapshot) error {
	if m.path == "" {
		return nil
	}
	if err := saveSnapshot(m.path, s); err != nil {
		return apperr.Wrap(err, apperr.CodeUnavailable, "write snapshot")
	}
	return nil
}

func (m *MemoryStore) GetAccount(_ context.Context, id string) (model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.state.Accounts[id]
	if !ok {
		return model.Account{}, apperr.NotFound("account", id)
	}
	return cloneAccount(a), nil
}

func (m *MemoryStore) SaveAccount(_ context.Context, acct model.Account) error {
	return m.update(func(s *snapshot) error {
		s.Accounts[acct.ID] = cloneAccount(acct)
		return nil
	})
}

func (m *MemoryStore) ListAccounts(_ context.Context) ([]model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Account, 0, len(m.state.Accounts))
	for _, a := range m.state.Accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpsertProperties(_ context.Context, props []model.Property) error {
	return m.update(func(s *snapshot) error {
		for _, p := range props {
			s.Properties[p.ID] = cloneProperty(p)
		}
		return nil
	})
}

func (m *MemoryStore) ListProperties(_ context.Context) ([]model.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Property, 0, len(m.state.Properties))
	for _, p := range m.state.Properties {
		out = append(out, cloneProperty(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListTracking(_ context.Context, accountID string) ([]model.TrackingEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byID := m.state.Tracking[accountID]
	out := make([]model.TrackingEntity, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PropertyID < out[j].PropertyID })
	return out, nil
}

func (m *MemoryStore) SaveTracking(_ context.Context, accountID string, entities []model.TrackingEntity) error {
	return m.update(func(s *snapshot) error {
		s.putTracking(accountID, entities)
		return nil
	})
}

func (m *MemoryStore) GetBatch(_ context.Context, accountID, batchID string) (model.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.state.batchIndex(accountID, batchID)
	if i < 0 {
		return model.Batch{}, apperr.NotFound("batch", batchID)
	}
	return cloneBatch(m.state.Batches[accountID][i]), nil
}

func (m *MemoryStore) LatestGenerated(_ context.Context, accountID string) (model.Batch, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bs := m.state.Batches[accountID]
	for i := len(bs) - 1; i >= 0; i-- {
		if bs[i].Status == model.BatchGenerated {
			return cloneBatch(bs[i]), true, nil
		}
	}
	return model.Batch{}, false, nil
}

func (m *MemoryStore) ListBatches(_ context.Context, accountID string) ([]model.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bs := m.state.Batches[accountID]
	out := make([]model.Batch, 0, len(bs))
	for i := len(bs) - 1; i >= 0; i-- {
		out = append(out, cloneBatch(bs[i]))
	}
	return out, nil
}

func (m *MemoryStore) SaveBatch(_ context.Context, b model.Batch) error {
	return m.update(func(s *snapshot) error {
		s.putBatch(b)
		return nil
	})
}

func (m *MemoryStore) CommitGeneration(_ context.Context, g Generation) error {
	return m.update(func(s *snapshot) error {
		for _, id := range g.Supersede {
			i := s.batchIndex(g.AccountID, id)
			if i < 0 {
				return apperr.NotFound("batch", id)
			}
			b := &s.Batches[g.AccountID][i]
			b.Status = model.BatchArchived
			b.UpdatedAt = g.Batch.GeneratedAt
		}
		s.putTracking(g.AccountID, g.Tracking)
		s.putBatch(g.Batch)
		return nil
	})
}

func (m *MemoryStore) CommitExecution(_ context.Context, x Execution) error {
	return m.update(func(s *snapshot) error {
		if s.batchIndex(x.AccountID, x.Batch.ID) < 0 {
			return apperr.NotFound("batch", x.Batch.ID)
		}
		if x.Transaction != nil {
			s.appendTx(*x.Transaction)
		}
		s.putTracking(x.AccountID, x.Tracking)
		s.putBatch(x.Batch)
		if len(x.Contacts) > 0 {
			byProp, ok := s.Contacts[x.AccountID]
			if !ok {
				byProp = make(map[string]model.TraceContact, len(x.Contacts))
				s.Contacts[x.AccountID] = byProp
			}
			for _, c := range x.Contacts {
				byProp[c.PropertyID] = c
			}
		}
		return nil
	})
}

func (m *MemoryStore) GetWallet(_ context.Context, accountID string) (model.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.state.Wallets[accountID]
	if !ok {
		return model.Wallet{AccountID: accountID, Transactions: []model.Transaction{}}, nil
	}
	return cloneWallet(w), nil
}

func (m *MemoryStore) AppendTransaction(_ context.Context, tx model.Transaction) error {
	return m.update(func(s *snapshot) error {
		s.appendTx(tx)
		return nil
	})
}

func (m *MemoryStore) ListContacts(_ context.Context, accountID string, propertyIDs []string) (map[string]model.TraceContact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.TraceContact, len(propertyIDs))
	byProp := m.state.Contacts[accountID]
	for _, id := range propertyIDs {
		if c, ok := byProp[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flush(m.state)
}

func cloneAccount(a model.Account) model.Account {
	a.BuyBox.Jurisdictions = append([]string(nil), a.BuyBox.Jurisdictions...)
	a.BuyBox.PropertyTypes = append([]string(nil), a.BuyBox.PropertyTypes...)
	if a.ScoreFloor != nil {
		f := *a.ScoreFloor
		a.ScoreFloor = &f
	}
	if a.SkipTraceRate != nil {
		r := *a.SkipTraceRate
		a.SkipTraceRate = &r
	}
	return a
}

func cloneProperty(p model.Property) model.Property {
	p.Signals = append([]string(nil), p.Signals...)
	return p
}

func cloneBatch(b model.Batch) model.Batch {
	b.Members = append([]model.BatchMember(nil), b.Members...)
	return b
}

func cloneWallet(w model.Wallet) model.Wallet {
	w.Transactions = append([]model.Transaction{}, w.Transactions...)
	return w
}
