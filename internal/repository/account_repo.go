package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmsync/internal/model"
)

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
        id, organization_id, name, email,
        imap_host, imap_port, imap_secure, imap_username, imap_password,
        sync_interval_min, max_messages, sync_folders,
        is_active, status, last_sync_at, sync_count, error_message, last_error_at,
        created_at, updated_at
`

func scanAccount(row pgx.Row) (*model.MailboxAccount, error) {
	var a model.MailboxAccount
	err := row.Scan(
		&a.ID,
		&a.OrganizationID,
		&a.Name,
		&a.Email,
		&a.IMAPHost,
		&a.IMAPPort,
		&a.IMAPSecure,
		&a.IMAPUsername,
		&a.IMAPPassword,
		&a.SyncIntervalMin,
		&a.MaxMessages,
		&a.SyncFolders,
		&a.IsActive,
		&a.Status,
		&a.LastSyncAt,
		&a.SyncCount,
		&a.ErrorMessage,
		&a.LastErrorAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByID returns one mailbox account.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*model.MailboxAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM mailbox_accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// ListActive returns all accounts eligible for sync.
func (r *AccountRepository) ListActive(ctx context.Context) ([]model.MailboxAccount, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM mailbox_accounts
        WHERE is_active = TRUE
        ORDER BY created_at
    `
	return r.listAccounts(ctx, query)
}

// ListActiveByOrganization returns sync-eligible accounts of one organization.
func (r *AccountRepository) ListActiveByOrganization(ctx context.Context, organizationID string) ([]model.MailboxAccount, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM mailbox_accounts
        WHERE organization_id = $1 AND is_active = TRUE
        ORDER BY created_at
    `
	return r.listAccounts(ctx, query, organizationID)
}

func (r *AccountRepository) listAccounts(ctx context.Context, query string, args ...any) ([]model.MailboxAccount, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []model.MailboxAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateSyncState records the outcome of a completed sync run. Folder-level
// errors are stored but the account stays ACTIVE; only connect failures go
// through MarkError.
func (r *AccountRepository) UpdateSyncState(ctx context.Context, id string, lastSyncAt time.Time, newMessages int, errorMessage *string) error {
	query := `
        UPDATE mailbox_accounts
        SET status = 'ACTIVE',
            last_sync_at = $2,
            sync_count = sync_count + $3,
            error_message = $4,
            last_error_at = CASE WHEN $4::text IS NULL THEN NULL ELSE NOW() END,
            updated_at = NOW()
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, id, lastSyncAt, newMessages, errorMessage)
	return err
}

// MarkError transitions an account to ERROR with a message and timestamp.
func (r *AccountRepository) MarkError(ctx context.Context, id string, errorMessage string) error {
	query := `
        UPDATE mailbox_accounts
        SET status = 'ERROR',
            error_message = $2,
            last_error_at = NOW(),
            updated_at = NOW()
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, id, errorMessage)
	return err
}

// MarkActive transitions an account to ACTIVE and clears error state.
// Used after a successful connection verification.
func (r *AccountRepository) MarkActive(ctx context.Context, id string) error {
	query := `
        UPDATE mailbox_accounts
        SET status = 'ACTIVE',
            error_message = NULL,
            last_error_at = NULL,
            updated_at = NOW()
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, id)
	return err
}
