// Package store persists accounts, properties, tracking state, batches and
// wallets. Adapters must apply each commit all-or-nothing.
package store

import (
	"context"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
)

// Generation is the atomic write of a batch generation run.
type Generation struct {
	AccountID string
	Tracking  []model.TrackingEntity
	Batch     model.Batch
	// Supersede lists Generated batch IDs to archive in the same commit.
	Supersede []string
}

// Execution is the atomic write of a batch execution.
type Execution struct {
	AccountID string
	Tracking  []model.TrackingEntity
	Batch     model.Batch
	// Transaction is nil when nothing was charged.
	Transaction *model.Transaction
	Contacts    []model.TraceContact
}

// Store is the persistence port of the engine.
type Store interface {
	GetAccount(ctx context.Context, id string) (model.Account, error)
	SaveAccount(ctx context.Context, acct model.Account) error
	ListAccounts(ctx context.Context) ([]model.Account, error)

	UpsertProperties(ctx context.Context, props []model.Property) error
	ListProperties(ctx context.Context) ([]model.Property, error)

	ListTracking(ctx context.Context, accountID string) ([]model.TrackingEntity, error)
	SaveTracking(ctx context.Context, accountID string, entities []model.TrackingEntity) error

	GetBatch(ctx context.Context, accountID, batchID string) (model.Batch, error)
	// LatestGenerated returns the newest batch still in Generated state.
	LatestGenerated(ctx context.Context, accountID string) (model.Batch, bool, error)
	ListBatches(ctx context.Context, accountID string) ([]model.Batch, error)
	SaveBatch(ctx context.Context, b model.Batch) error
	CommitGeneration(ctx context.Context, g Generation) error
	CommitExecution(ctx context.Context, x Execution) error

	// GetWallet returns an empty wallet for accounts that were never funded.
	GetWallet(ctx context.Context, accountID string) (model.Wallet, error)
	AppendTransaction(ctx context.Context, tx model.Transaction) error

	ListContacts(ctx context.Context, accountID string, propertyIDs []string) (map[string]model.TraceContact, error)

	Close() error
}
