package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"conveyr/internal/escrow/models"
	id "conveyr/pkg/domain"
	"conveyr/pkg/platform/sentinel"
)

// Schema is applied by migrations in deployment; EnsureSchema exists for
// integration tests and local bootstrap.
//
// The aggregate is stored as a JSONB document with the hot lookup keys
// denormalized into indexed columns. Execute relies on SELECT ... FOR UPDATE
// to serialize writers per account.
const Schema = `
CREATE TABLE IF NOT EXISTS escrow_accounts (
    id              UUID PRIMARY KEY,
    transaction_id  UUID        NOT NULL,
    property_id     UUID        NOT NULL,
    status          TEXT        NOT NULL,
    version         BIGINT      NOT NULL,
    participant_ids UUID[]      NOT NULL DEFAULT '{}',
    document        JSONB       NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_escrow_accounts_transaction
    ON escrow_accounts (transaction_id);
CREATE INDEX IF NOT EXISTS idx_escrow_accounts_participants
    ON escrow_accounts USING GIN (participant_ids);
`

// Postgres persists escrow aggregates in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the escrow tables when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure escrow schema: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, account *models.EscrowAccount) error {
	document, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshal escrow account: %w", err)
	}
	query := `
		INSERT INTO escrow_accounts (id, transaction_id, property_id, status, version, participant_ids, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		account.ID.String(),
		account.TransactionID.String(),
		account.PropertyID.String(),
		string(account.Status),
		account.Version,
		pq.Array(participantIDs(account)),
		document,
		account.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert escrow account: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, escrowID id.EscrowID) (*models.EscrowAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document FROM escrow_accounts WHERE id = $1`, escrowID.String())
	return scanAccount(row)
}

func (s *Postgres) FindByTransaction(ctx context.Context, transactionID id.TransactionID) ([]*models.EscrowAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM escrow_accounts WHERE transaction_id = $1 ORDER BY created_at, id`,
		transactionID.String())
	if err != nil {
		return nil, fmt.Errorf("query escrows by transaction: %w", err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func (s *Postgres) FindByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*models.EscrowAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM escrow_accounts WHERE $1 = ANY(participant_ids) ORDER BY created_at, id`,
		participantID.String())
	if err != nil {
		return nil, fmt.Errorf("query escrows by participant: %w", err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func (s *Postgres) Execute(ctx context.Context, escrowID id.EscrowID,
	validate func(*models.EscrowAccount) error,
	mutate func(*models.EscrowAccount) error,
) (*models.EscrowAccount, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin escrow tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var document []byte
	var version int
	err = tx.QueryRowContext(ctx,
		`SELECT document, version FROM escrow_accounts WHERE id = $1 FOR UPDATE`,
		escrowID.String()).Scan(&document, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock escrow account: %w", err)
	}

	account := &models.EscrowAccount{}
	if err := json.Unmarshal(document, account); err != nil {
		return nil, fmt.Errorf("unmarshal escrow account: %w", err)
	}

	if validate != nil {
		if err := validate(account); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		if err := mutate(account); err != nil {
			return nil, err
		}
	}
	if err := account.CheckFundConservation(); err != nil {
		return nil, err
	}

	account.Version = version + 1
	updated, err := json.Marshal(account)
	if err != nil {
		return nil, fmt.Errorf("marshal escrow account: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE escrow_accounts
		SET status = $2, version = $3, participant_ids = $4, document = $5, updated_at = now()
		WHERE id = $1 AND version = $6
	`,
		escrowID.String(),
		string(account.Status),
		account.Version,
		pq.Array(participantIDs(account)),
		updated,
		version,
	)
	if err != nil {
		return nil, fmt.Errorf("update escrow account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update escrow account: %w", err)
	}
	if affected != 1 {
		// FOR UPDATE should make this unreachable; losing the version race
		// anyway means another writer slipped in.
		return nil, sentinel.ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit escrow tx: %w", err)
	}
	return account, nil
}

func participantIDs(account *models.EscrowAccount) []string {
	ids := make([]string, len(account.Participants))
	for i, p := range account.Participants {
		ids[i] = p.ID.String()
	}
	return ids
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.EscrowAccount, error) {
	var document []byte
	if err := row.Scan(&document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan escrow account: %w", err)
	}
	account := &models.EscrowAccount{}
	if err := json.Unmarshal(document, account); err != nil {
		return nil, fmt.Errorf("unmarshal escrow account: %w", err)
	}
	return account, nil
}

func scanAccounts(rows *sql.Rows) ([]*models.EscrowAccount, error) {
	var out []*models.EscrowAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escrow accounts: %w", err)
	}
	return out, nil
}
