package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	pg "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/logger"
	"proxymart/internal/app/model"
	"proxymart/internal/app/storage"
)

// storage.LedgerRepository interface implementation
var _ storage.LedgerRepository = (*LedgerRepository)(nil)

type LedgerRepository struct {
	db *sql.DB
}

func (r *LedgerRepository) LoggerComponent() string {
	return "LedgerRepository"
}

func NewLedgerRepository(db *sql.DB) (*LedgerRepository, error) {
	s := &LedgerRepository{
		db: db,
	}
	return s, nil
}

const txColumns = `id, created_at, user_id, amount, kind, status, external_ref, service_details, provider_data`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	m := &model.Transaction{}
	var (
		extRef  sql.NullString
		details []byte
		pdata   []byte
	)

	if err := row.Scan(&m.ID, &m.CreatedAt, &m.UserID, &m.Amount, &m.Kind, &m.Status, &extRef, &details, &pdata); err != nil {
		return nil, err
	}

	m.ExternalRef = extRef.String
	if len(details) > 0 {
		m.ServiceDetails = &model.ServiceDetails{}
		if err := json.Unmarshal(details, m.ServiceDetails); err != nil {
			return nil, fmt.Errorf("service details decode: %w", err)
		}
	}
	if len(pdata) > 0 {
		m.ProviderData = json.RawMessage(pdata)
	}

	return m, nil
}

func marshalDetails(d *model.ServiceDetails) (interface{}, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("service details encode: %w", err)
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Open implementation of interface storage.LedgerRepository.
//
// Purchases and extensions reserve funds here: the balance check, the debit
// and the pending record land in one serializable transaction with the user
// row locked, so no interleaving can observe one without the other.
func (r *LedgerRepository) Open(ctx context.Context, m *model.Transaction) (*model.Transaction, error) {
	l := logger.Ctx(ctx).With().
		Str("method", "Open").
		Str("kind", m.Kind.String()).
		Str("user_id", m.UserID.String()).
		Logger()
	l.Debug().Msg("Opening ledger transaction")

	if m.Amount.IsZero() {
		return nil, apperr.ErrInvalidInput
	}
	if m.Kind.IsDebit() && m.Amount.Sign() > 0 {
		return nil, apperr.ErrInvalidInput
	}
	if m.Kind == model.KindTopup && m.Amount.Sign() < 0 {
		return nil, apperr.ErrInvalidInput
	}

	details, err := marshalDetails(m.ServiceDetails)
	if err != nil {
		return nil, err
	}

	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.Status = model.StatusPending

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		l.Error().Err(err).Msg("DB transaction begin")
		return nil, err
	}

	if m.Kind.IsDebit() {
		var balance decimal.Decimal
		const sqlLock = `SELECT balance FROM users WHERE id=$1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, sqlLock, m.UserID).Scan(&balance); err != nil {
			_ = tx.Rollback()
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperr.ErrNotFound
			}
			l.Error().Err(err).Msg("DB lock error")
			return nil, err
		}

		if balance.LessThan(m.Amount.Neg()) {
			_ = tx.Rollback()
			return nil, apperr.ErrInsufficientFunds
		}

		const sqlDebit = `UPDATE users SET balance=balance+$1 WHERE id=$2`
		if _, err := tx.ExecContext(ctx, sqlDebit, m.Amount, m.UserID); err != nil {
			_ = tx.Rollback()
			l.Error().Err(err).Msg("Balance debit failed")
			return nil, err
		}
	}

	const sqlInsert = `
		INSERT INTO transactions (id, created_at, user_id, amount, kind, status, external_ref, service_details, provider_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	_, err = tx.ExecContext(ctx, sqlInsert,
		m.ID, m.CreatedAt, m.UserID, m.Amount, m.Kind, m.Status,
		nullString(m.ExternalRef), details, []byte(m.ProviderData),
	)
	if err != nil {
		_ = tx.Rollback()
		if pgErr, ok := err.(*pg.Error); ok {
			if pgerrcode.IsIntegrityConstraintViolation(string(pgErr.Code)) {
				return nil, apperr.ErrConflict
			}
		}
		l.Error().Err(err).Msg("TX insert failed")
		return nil, fmt.Errorf("insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Msg("TX commit failed")
		return nil, err
	}

	return m, nil
}

// Finalize implementation of interface storage.LedgerRepository.
//
// The status flip is a compare-and-swap guarded by the FOR UPDATE lock:
// exactly one finalize observes pending and applies the balance effect,
// every later attempt gets the existing terminal record back unchanged.
func (r *LedgerRepository) Finalize(ctx context.Context, id uuid.UUID, outcome model.TransactionStatus, details *model.ServiceDetails) (*model.Transaction, error) {
	l := logger.Ctx(ctx).With().
		Str("method", "Finalize").
		Str("transaction_id", id.String()).
		Str("outcome", outcome.String()).
		Logger()
	l.Debug().Msg("Finalizing ledger transaction")

	if outcome != model.StatusCompleted && outcome != model.StatusFailed {
		return nil, apperr.ErrInvalidTransition
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		l.Error().Err(err).Msg("DB transaction begin")
		return nil, err
	}

	const sqlLock = `SELECT ` + txColumns + ` FROM transactions WHERE id=$1 FOR UPDATE`
	m, err := scanTransaction(tx.QueryRowContext(ctx, sqlLock, id))
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		l.Error().Err(err).Msg("DB lock error")
		return nil, err
	}

	if m.Status != model.StatusPending {
		_ = tx.Rollback()
		l.Debug().Str("status", m.Status.String()).Msg("Already terminal, finalize is a no-op")
		return m, nil
	}

	if details != nil {
		m.ServiceDetails = details
	}
	rawDetails, err := marshalDetails(m.ServiceDetails)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	const sqlUpdate = `UPDATE transactions SET status=$1, service_details=$2 WHERE id=$3`
	if _, err := tx.ExecContext(ctx, sqlUpdate, outcome, rawDetails, m.ID); err != nil {
		_ = tx.Rollback()
		l.Error().Err(err).Msg("Status update failed")
		return nil, err
	}

	// Balance effects: a settled topup credits its amount; a failed debit
	// returns the reservation. A completed debit is balance-neutral, the
	// funds left at Open time.
	var credit decimal.Decimal
	switch {
	case outcome == model.StatusCompleted && m.Kind == model.KindTopup:
		credit = m.Amount
	case outcome == model.StatusFailed && m.Kind.IsDebit():
		credit = m.Amount.Neg()
	}

	if !credit.IsZero() {
		const sqlCredit = `UPDATE users SET balance=balance+$1 WHERE id=$2`
		if _, err := tx.ExecContext(ctx, sqlCredit, credit, m.UserID); err != nil {
			_ = tx.Rollback()
			l.Error().Err(err).Msg("Balance update failed")
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Msg("TX commit failed")
		return nil, err
	}

	m.Status = outcome

	return m, nil
}

// Cancel implementation of interface storage.LedgerRepository.
func (r *LedgerRepository) Cancel(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	l := logger.Ctx(ctx).With().
		Str("method", "Cancel").
		Str("transaction_id", id.String()).
		Logger()
	l.Debug().Msg("Cancelling ledger transaction")

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		l.Error().Err(err).Msg("DB transaction begin")
		return decimal.Zero, err
	}

	const sqlLock = `SELECT ` + txColumns + ` FROM transactions WHERE id=$1 FOR UPDATE`
	m, err := scanTransaction(tx.QueryRowContext(ctx, sqlLock, id))
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, apperr.ErrNotFound
		}
		l.Error().Err(err).Msg("DB lock error")
		return decimal.Zero, err
	}

	if !m.Kind.IsDebit() || m.Status != model.StatusCompleted {
		_ = tx.Rollback()
		return decimal.Zero, apperr.ErrInvalidTransition
	}

	refund := m.Amount.Neg()

	const sqlUpdate = `UPDATE transactions SET status=$1 WHERE id=$2`
	if _, err := tx.ExecContext(ctx, sqlUpdate, model.StatusCancelled, m.ID); err != nil {
		_ = tx.Rollback()
		l.Error().Err(err).Msg("Status update failed")
		return decimal.Zero, err
	}

	const sqlCredit = `UPDATE users SET balance=balance+$1 WHERE id=$2`
	if _, err := tx.ExecContext(ctx, sqlCredit, refund, m.UserID); err != nil {
		_ = tx.Rollback()
		l.Error().Err(err).Msg("Balance update failed")
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Msg("TX commit failed")
		return decimal.Zero, err
	}

	return refund, nil
}

// Adjust implementation of interface storage.LedgerRepository. The delta
// is recorded as a completed topup even when negative; that keeps the
// balance equal to the sum of completed amounts at the cost of the one
// sanctioned exception to the amount-sign rule (see model.Transaction).
func (r *LedgerRepository) Adjust(ctx context.Context, userID uuid.UUID, target decimal.Decimal) (*model.Transaction, error) {
	l := logger.Ctx(ctx).With().
		Str("method", "Adjust").
		Str("user_id", userID.String()).
		Logger()
	l.Debug().Msg("Adjusting balance")

	if target.Sign() < 0 {
		return nil, apperr.ErrInvalidInput
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		l.Error().Err(err).Msg("DB transaction begin")
		return nil, err
	}

	var balance decimal.Decimal
	const sqlLock = `SELECT balance FROM users WHERE id=$1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, sqlLock, userID).Scan(&balance); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		l.Error().Err(err).Msg("DB lock error")
		return nil, err
	}

	delta := target.Sub(balance)
	if delta.IsZero() {
		_ = tx.Rollback()
		return nil, apperr.ErrSoftConflict
	}

	m := &model.Transaction{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		UserID:    userID,
		Amount:    delta,
		Kind:      model.KindTopup,
		Status:    model.StatusCompleted,
	}

	const sqlInsert = `
		INSERT INTO transactions (id, created_at, user_id, amount, kind, status)
		VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := tx.ExecContext(ctx, sqlInsert, m.ID, m.CreatedAt, m.UserID, m.Amount, m.Kind, m.Status); err != nil {
		_ = tx.Rollback()
		l.Error().Err(err).Msg("TX insert failed")
		return nil, err
	}

	const sqlSet = `UPDATE users SET balance=$1 WHERE id=$2`
	if _, err := tx.ExecContext(ctx, sqlSet, target, userID); err != nil {
		_ = tx.Rollback()
		l.Error().Err(err).Msg("Balance update failed")
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Msg("TX commit failed")
		return nil, err
	}

	return m, nil
}

// FindByExternalRef implementation of interface storage.LedgerRepository.
func (r *LedgerRepository) FindByExternalRef(ctx context.Context, ref string) (*model.Transaction, error) {
	const SQL = `SELECT ` + txColumns + ` FROM transactions WHERE external_ref=$1`

	m, err := scanTransaction(r.db.QueryRowContext(ctx, SQL, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// Read implementation of interface storage.LedgerRepository.
func (r *LedgerRepository) Read(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	const SQL = `SELECT ` + txColumns + ` FROM transactions WHERE id=$1`

	m, err := scanTransaction(r.db.QueryRowContext(ctx, SQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// ReadForUser implementation of interface storage.LedgerRepository.
func (r *LedgerRepository) ReadForUser(ctx context.Context, id, userID uuid.UUID) (*model.Transaction, error) {
	const SQL = `SELECT ` + txColumns + ` FROM transactions WHERE id=$1 AND user_id=$2`

	m, err := scanTransaction(r.db.QueryRowContext(ctx, SQL, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// AllByUserID implementation of interface storage.LedgerRepository.
func (r *LedgerRepository) AllByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Transaction, error) {
	const SQL = `SELECT ` + txColumns + ` FROM transactions WHERE user_id=$1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, SQL, userID)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// All implementation of interface storage.LedgerRepository.
func (r *LedgerRepository) All(ctx context.Context) ([]*model.Transaction, error) {
	const SQL = `SELECT ` + txColumns + ` FROM transactions ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, SQL)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListStalePending implementation of interface storage.LedgerRepository.
func (r *LedgerRepository) ListStalePending(ctx context.Context, kind model.TransactionKind, age time.Duration) ([]*model.Transaction, error) {
	const SQL = `SELECT ` + txColumns + ` FROM transactions WHERE kind=$1 AND status=$2 AND created_at < $3 ORDER BY created_at`

	cutoff := time.Now().Add(-age)

	rows, err := r.db.QueryContext(ctx, SQL, kind, model.StatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]*model.Transaction, error) {
	res := make([]*model.Transaction, 0)
	for rows.Next() {
		m, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}

// GetTopupSum implementation of interface storage.LedgerRepository.
func (r *LedgerRepository) GetTopupSum(ctx context.Context, userID uuid.UUID) (*decimal.Decimal, error) {
	const SQL = `
		SELECT coalesce(sum(amount), 0) as b
		FROM transactions
		WHERE kind=$1 AND status=$2 AND user_id=$3
`
	sum := decimal.NewFromInt(0)

	err := r.db.QueryRowContext(ctx, SQL, model.KindTopup, model.StatusCompleted, userID).Scan(&sum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &sum, nil
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return &sum, nil
}

// GetSpentSum implementation of interface storage.LedgerRepository.
func (r *LedgerRepository) GetSpentSum(ctx context.Context, userID uuid.UUID) (*decimal.Decimal, error) {
	const SQL = `
		SELECT coalesce(-sum(amount), 0) as b
		FROM transactions
		WHERE kind IN ($1, $2) AND status=$3 AND user_id=$4
`
	sum := decimal.NewFromInt(0)

	err := r.db.QueryRowContext(ctx, SQL, model.KindPurchase, model.KindExtension, model.StatusCompleted, userID).Scan(&sum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &sum, nil
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return &sum, nil
}
