package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists engine state in a SQLite database. Wallet
// transactions are append-only.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string, log *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps commits serialized inside the process.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := NewSQLiteStore(db, log)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("sqlite store opened", zap.String("path", path))
	return s, nil
}

// NewSQLiteStore wraps an already opened database without migrating it.
func NewSQLiteStore(db *sql.DB, log *zap.Logger) *SQLiteStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLiteStore{db: db, log: log}
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id         TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS properties (
			id           TEXT PRIMARY KEY,
			jurisdiction TEXT,
			owner_id     TEXT,
			data         TEXT NOT NULL,
			updated_at   INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tracking (
			id                TEXT PRIMARY KEY,
			account_id        TEXT NOT NULL,
			property_id       TEXT NOT NULL,
			lane              TEXT NOT NULL,
			status            TEXT NOT NULL,
			status_reason     TEXT,
			base_score        REAL,
			effective_score   REAL,
			points            REAL,
			touch_count       INTEGER NOT NULL DEFAULT 0,
			source_type       TEXT,
			last_touch_at     INTEGER,
			next_eligible_at  INTEGER,
			cooldown_start_at INTEGER,
			cooldown_end_at   INTEGER,
			skip_traced_at    INTEGER,
			created_at        INTEGER NOT NULL,
			updated_at        INTEGER NOT NULL,
			UNIQUE (account_id, property_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_account ON tracking(account_id, status)`,

		`CREATE TABLE IF NOT EXISTS batches (
			id                 TEXT PRIMARY KEY,
			account_id         TEXT NOT NULL,
			label              TEXT NOT NULL,
			status             TEXT NOT NULL,
			week_start         INTEGER NOT NULL,
			week_end           INTEGER NOT NULL,
			members            TEXT NOT NULL,
			total_records      INTEGER,
			fresh_count        INTEGER,
			repeat_count       INTEGER,
			queue_count        INTEGER,
			blitz_count        INTEGER,
			chase_count        INTEGER,
			nurture_count      INTEGER,
			duplicates_avoided INTEGER,
			skip_trace_count   INTEGER,
			skip_trace_cost    TEXT,
			generated_at       INTEGER NOT NULL,
			first_download_at  INTEGER,
			download_count     INTEGER NOT NULL DEFAULT 0,
			updated_at         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_account ON batches(account_id, generated_at)`,

		`CREATE TABLE IF NOT EXISTS wallets (
			account_id TEXT PRIMARY KEY,
			balance    TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS wallet_transactions (
			id            TEXT PRIMARY KEY,
			account_id    TEXT NOT NULL,
			event         TEXT NOT NULL,
			amount        TEXT NOT NULL,
			balance_after TEXT NOT NULL,
			batch_id      TEXT,
			timestamp     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_tx_account ON wallet_transactions(account_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS trace_contacts (
			account_id  TEXT NOT NULL,
			property_id TEXT NOT NULL,
			phone1      TEXT,
			phone1_type TEXT,
			phone2      TEXT,
			phone2_type TEXT,
			phone3      TEXT,
			phone3_type TEXT,
			email       TEXT,
			provider    TEXT,
			cost        TEXT,
			traced_at   INTEGER NOT NULL,
			PRIMARY KEY (account_id, property_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (model.Account, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM accounts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, apperr.NotFound("account", id)
	}
	if err != nil {
		return model.Account{}, unavailable(err, "get account")
	}
	var a model.Account
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return model.Account{}, fmt.Errorf("decode account %s: %w", id, err)
	}
	return a, nil
}

func (s *SQLiteStore) SaveAccount(ctx context.Context, acct model.Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO accounts (id, data, updated_at) VALUES (?,?,?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		acct.ID, string(data), time.Now().UnixNano())
	if err != nil {
		return unavailable(err, "save account")
	}
	return nil
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM accounts ORDER BY id`)
	if err != nil {
		return nil, unavailable(err, "list accounts")
	}
	defer rows.Close()
	var out []model.Account
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a model.Account
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("decode account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertProperties(ctx context.Context, props []model.Property) error {
	now := time.Now().UnixNano()
	return s.inTx(ctx, "upsert properties", func(tx *sql.Tx) error {
		for _, p := range props {
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO properties (id, jurisdiction, owner_id, data, updated_at)
				VALUES (?,?,?,?,?)
				ON CONFLICT(id) DO UPDATE SET jurisdiction = excluded.jurisdiction,
					owner_id = excluded.owner_id, data = excluded.data, updated_at = excluded.updated_at`,
				p.ID, p.Jurisdiction, p.OwnerID, string(data), now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListProperties(ctx context.Context) ([]model.Property, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM properties ORDER BY id`)
	if err != nil {
		return nil, unavailable(err, "list properties")
	}
	defer rows.Close()
	var out []model.Property
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p model.Property
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decode property: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const trackingColumns = `id, account_id, property_id, lane, status, status_reason,
	base_score, effective_score, points, touch_count, source_type,
	last_touch_at, next_eligible_at, cooldown_start_at, cooldown_end_at, skip_traced_at,
	created_at, updated_at`

func (s *SQLiteStore) ListTracking(ctx context.Context, accountID string) ([]model.TrackingEntity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+trackingColumns+` FROM tracking
		WHERE account_id = ? ORDER BY property_id`, accountID)
	if err != nil {
		return nil, unavailable(err, "list tracking")
	}
	defer rows.Close()

	var out []model.TrackingEntity
	for rows.Next() {
		var (
			e                                            model.TrackingEntity
			reason, source                               sql.NullString
			lastTouch, nextDue, coolStart, coolEnd, trAt sql.NullInt64
			created, updated                             int64
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.PropertyID, &e.Lane, &e.Status, &reason,
			&e.BaseScore, &e.EffectiveScore, &e.FinalAllocationPoints, &e.TouchCount, &source,
			&lastTouch, &nextDue, &coolStart, &coolEnd, &trAt, &created, &updated); err != nil {
			return nil, err
		}
		e.StatusReason = reason.String
		e.SourceType = model.SourceType(source.String)
		e.LastTouchAt = fromNull(lastTouch)
		e.NextEligibleAt = fromNull(nextDue)
		e.CooldownStartAt = fromNull(coolStart)
		e.CooldownEndAt = fromNull(coolEnd)
		e.SkipTracedAt = fromNull(trAt)
		e.CreatedAt = fromNanos(created)
		e.UpdatedAt = fromNanos(updated)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveTracking(ctx context.Context, accountID string, entities []model.TrackingEntity) error {
	return s.inTx(ctx, "save tracking", func(tx *sql.Tx) error {
		return putTracking(ctx, tx, accountID, entities)
	})
}

func putTracking(ctx context.Context, x execer, accountID string, entities []model.TrackingEntity) error {
	for _, e := range entities {
		_, err := x.ExecContext(ctx, `INSERT INTO tracking (`+trackingColumns+`)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET lane = excluded.lane, status = excluded.status,
				status_reason = excluded.status_reason, base_score = excluded.base_score,
				effective_score = excluded.effective_score, points = excluded.points,
				touch_count = excluded.touch_count, source_type = excluded.source_type,
				last_touch_at = excluded.last_touch_at, next_eligible_at = excluded.next_eligible_at,
				cooldown_start_at = excluded.cooldown_start_at, cooldown_end_at = excluded.cooldown_end_at,
				skip_traced_at = excluded.skip_traced_at, updated_at = excluded.updated_at`,
			e.ID, accountID, e.PropertyID, string(e.Lane), string(e.Status), e.StatusReason,
			e.BaseScore, e.EffectiveScore, e.FinalAllocationPoints, e.TouchCount, string(e.SourceType),
			toNull(e.LastTouchAt), toNull(e.NextEligibleAt), toNull(e.CooldownStartAt),
			toNull(e.CooldownEndAt), toNull(e.SkipTracedAt),
			e.CreatedAt.UnixNano(), e.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("upsert tracking %s: %w", e.ID, err)
		}
	}
	return nil
}

const batchColumns = `id, account_id, label, status, week_start, week_end, members,
	total_records, fresh_count, repeat_count, queue_count, blitz_count, chase_count, nurture_count,
	duplicates_avoided, skip_trace_count, skip_trace_cost, generated_at, first_download_at,
	download_count, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(r rowScanner) (model.Batch, error) {
	var (
		b                         model.Batch
		members                   string
		weekStart, weekEnd, genAt int64
		updated                   int64
		firstDownload             sql.NullInt64
	)
	if err := r.Scan(&b.ID, &b.AccountID, &b.Label, &b.Status, &weekStart, &weekEnd, &members,
		&b.TotalRecords, &b.FreshCount, &b.RepeatCount, &b.QueueCount, &b.BlitzCount, &b.ChaseCount, &b.NurtureCount,
		&b.DuplicatesAvoided, &b.SkipTraceCount, &b.SkipTraceCost, &genAt, &firstDownload,
		&b.DownloadCount, &updated); err != nil {
		return model.Batch{}, err
	}
	if err := json.Unmarshal([]byte(members), &b.Members); err != nil {
		return model.Batch{}, fmt.Errorf("decode batch members %s: %w", b.ID, err)
	}
	b.WeekStart = fromNanos(weekStart)
	b.WeekEnd = fromNanos(weekEnd)
	b.GeneratedAt = fromNanos(genAt)
	b.FirstDownloadAt = fromNull(firstDownload)
	b.UpdatedAt = fromNanos(updated)
	return b, nil
}

func (s *SQLiteStore) GetBatch(ctx context.Context, accountID, batchID string) (model.Batch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE account_id = ? AND id = ?`, accountID, batchID)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Batch{}, apperr.NotFound("batch", batchID)
	}
	if err != nil {
		return model.Batch{}, unavailable(err, "get batch")
	}
	return b, nil
}

func (s *SQLiteStore) LatestGenerated(ctx context.Context, accountID string) (model.Batch, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches
		WHERE account_id = ? AND status = ? ORDER BY generated_at DESC, rowid DESC LIMIT 1`,
		accountID, string(model.BatchGenerated))
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Batch{}, false, nil
	}
	if err != nil {
		return model.Batch{}, false, unavailable(err, "latest batch")
	}
	return b, true, nil
}

func (s *SQLiteStore) ListBatches(ctx context.Context, accountID string) ([]model.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+batchColumns+` FROM batches
		WHERE account_id = ? ORDER BY generated_at DESC, rowid DESC`, accountID)
	if err != nil {
		return nil, unavailable(err, "list batches")
	}
	defer rows.Close()
	var out []model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveBatch(ctx context.Context, b model.Batch) error {
	if err := putBatch(ctx, s.db, b); err != nil {
		return unavailable(err, "save batch")
	}
	return nil
}

func putBatch(ctx context.Context, x execer, b model.Batch) error {
	members, err := json.Marshal(b.Members)
	if err != nil {
		return err
	}
	_, err = x.ExecContext(ctx, `INSERT INTO batches (`+batchColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status,
			skip_trace_count = excluded.skip_trace_count, skip_trace_cost = excluded.skip_trace_cost,
			first_download_at = excluded.first_download_at, download_count = excluded.download_count,
			updated_at = excluded.updated_at`,
		b.ID, b.AccountID, b.Label, string(b.Status), b.WeekStart.UnixNano(), b.WeekEnd.UnixNano(), string(members),
		b.TotalRecords, b.FreshCount, b.RepeatCount, b.QueueCount, b.BlitzCount, b.ChaseCount, b.NurtureCount,
		b.DuplicatesAvoided, b.SkipTraceCount, b.SkipTraceCost.String(), b.GeneratedAt.UnixNano(), toNull(b.FirstDownloadAt),
		b.DownloadCount, b.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert batch %s: %w", b.ID, err)
	}
	return nil
}

func (s *SQLiteStore) CommitGeneration(ctx context.Context, g Generation) error {
	return s.inTx(ctx, "commit generation", func(tx *sql.Tx) error {
		for _, id := range g.Supersede {
			res, err := tx.ExecContext(ctx, `UPDATE batches SET status = ?, updated_at = ?
				WHERE account_id = ? AND id = ?`,
				string(model.BatchArchived), g.Batch.GeneratedAt.UnixNano(), g.AccountID, id)
			if err != nil {
				return fmt.Errorf("archive batch %s: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return apperr.NotFound("batch", id)
			}
		}
		if err := putTracking(ctx, tx, g.AccountID, g.Tracking); err != nil {
			return err
		}
		return putBatch(ctx, tx, g.Batch)
	})
}

func (s *SQLiteStore) CommitExecution(ctx context.Context, x Execution) error {
	return s.inTx(ctx, "commit execution", func(tx *sql.Tx) error {
		if x.Transaction != nil {
			if err := appendTx(ctx, tx, *x.Transaction); err != nil {
				return err
			}
		}
		if err := putTracking(ctx, tx, x.AccountID, x.Tracking); err != nil {
			return err
		}
		if err := putBatch(ctx, tx, x.Batch); err != nil {
			return err
		}
		for _, c := range x.Contacts {
			if _, err := tx.ExecContext(ctx, `INSERT INTO trace_contacts
				(account_id, property_id, phone1, phone1_type, phone2, phone2_type, phone3, phone3_type,
				 email, provider, cost, traced_at)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
				ON CONFLICT(account_id, property_id) DO UPDATE SET
					phone1 = excluded.phone1, phone1_type = excluded.phone1_type,
					phone2 = excluded.phone2, phone2_type = excluded.phone2_type,
					phone3 = excluded.phone3, phone3_type = excluded.phone3_type,
					email = excluded.email, provider = excluded.provider,
					cost = excluded.cost, traced_at = excluded.traced_at`,
				x.AccountID, c.PropertyID, c.Phone1, c.Phone1Type, c.Phone2, c.Phone2Type, c.Phone3, c.Phone3Type,
				c.Email, c.Provider, c.Cost.String(), c.TracedAt.UnixNano()); err != nil {
				return fmt.Errorf("upsert contact %s: %w", c.PropertyID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetWallet(ctx context.Context, accountID string) (model.Wallet, error) {
	w := model.Wallet{AccountID: accountID, Transactions: []model.Transaction{}}
	var updated int64
	err := s.db.QueryRowContext(ctx, `SELECT balance, updated_at FROM wallets WHERE account_id = ?`, accountID).
		Scan(&w.Balance, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return w, nil
	}
	if err != nil {
		return model.Wallet{}, unavailable(err, "get wallet")
	}
	w.UpdatedAt = fromNanos(updated)

	rows, err := s.db.QueryContext(ctx, `SELECT id, account_id, event, amount, balance_after, batch_id, timestamp
		FROM wallet_transactions WHERE account_id = ? ORDER BY timestamp, rowid`, accountID)
	if err != nil {
		return model.Wallet{}, unavailable(err, "list transactions")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			tx      model.Transaction
			batchID sql.NullString
			ts      int64
		)
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Event, &tx.Amount, &tx.BalanceAfter, &batchID, &ts); err != nil {
			return model.Wallet{}, err
		}
		tx.BatchID = batchID.String
		tx.Timestamp = fromNanos(ts)
		w.Transactions = append(w.Transactions, tx)
	}
	return w, rows.Err()
}

func (s *SQLiteStore) AppendTransaction(ctx context.Context, t model.Transaction) error {
	return s.inTx(ctx, "append transaction", func(tx *sql.Tx) error {
		return appendTx(ctx, tx, t)
	})
}

func appendTx(ctx context.Context, x execer, t model.Transaction) error {
	if _, err := x.ExecContext(ctx, `INSERT INTO wallet_transactions
		(id, account_id, event, amount, balance_after, batch_id, timestamp)
		VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.AccountID, t.Event, t.Amount.String(), t.BalanceAfter.String(), t.BatchID, t.Timestamp.UnixNano()); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if _, err := x.ExecContext(ctx, `INSERT INTO wallets (account_id, balance, updated_at) VALUES (?,?,?)
		ON CONFLICT(account_id) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`,
		t.AccountID, t.BalanceAfter.String(), t.Timestamp.UnixNano()); err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListContacts(ctx context.Context, accountID string, propertyIDs []string) (map[string]model.TraceContact, error) {
	out := make(map[string]model.TraceContact, len(propertyIDs))
	if len(propertyIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(propertyIDs)+1)
	args = append(args, accountID)
	for _, id := range propertyIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(propertyIDs)), ",")
	rows, err := s.db.QueryContext(ctx, `SELECT property_id, phone1, phone1_type, phone2, phone2_type,
		phone3, phone3_type, email, provider, cost, traced_at
		FROM trace_contacts WHERE account_id = ? AND property_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, unavailable(err, "list contacts")
	}
	defer rows.Close()
	for rows.Next() {
		c := model.TraceContact{AccountID: accountID}
		var tracedAt int64
		if err := rows.Scan(&c.PropertyID, &c.Phone1, &c.Phone1Type, &c.Phone2, &c.Phone2Type,
			&c.Phone3, &c.Phone3Type, &c.Email, &c.Provider, &c.Cost, &tracedAt); err != nil {
			return nil, err
		}
		c.TracedAt = fromNanos(tracedAt)
		out[c.PropertyID] = c
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.log.Info("closing sqlite store")
	return s.db.Close()
}

// inTx runs fn in a transaction, rolling back on any error.
func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err, op)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("rollback failed", zap.String("op", op), zap.Error(rbErr))
		}
		if _, ok := apperr.As(err); ok {
			return err
		}
		return unavailable(err, op)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err, op)
	}
	return nil
}

func unavailable(err error, op string) error {
	return apperr.Wrap(err, apperr.CodeUnavailable, "storage").WithOp(op)
}

func toNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
