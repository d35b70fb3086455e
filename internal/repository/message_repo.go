package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmsync/internal/model"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// ExistsByIMAPKey checks the account-based dedup key (accountId, uid, folder).
func (r *MessageRepository) ExistsByIMAPKey(ctx context.Context, accountID string, uid uint32, folder string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM messages
            WHERE account_id = $1 AND imap_uid = $2 AND imap_folder = $3
        )
    `
	var exists bool
	err := r.db.QueryRow(ctx, query, accountID, uid, folder).Scan(&exists)
	return exists, err
}

// ExistsByChannelMessageID checks the channel-based dedup key.
func (r *MessageRepository) ExistsByChannelMessageID(ctx context.Context, channelID, messageID string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM messages
            WHERE channel_id = $1 AND message_id = $2
        )
    `
	var exists bool
	err := r.db.QueryRow(ctx, query, channelID, messageID).Scan(&exists)
	return exists, err
}

// ExistsByFallbackKey checks the secondary channel dedup key used when a
// message carries no Message-Id header.
func (r *MessageRepository) ExistsByFallbackKey(ctx context.Context, channelID, subject, fromAddress string, sentAt time.Time) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM messages
            WHERE channel_id = $1 AND subject = $2 AND from_address = $3 AND sent_at = $4
        )
    `
	var exists bool
	err := r.db.QueryRow(ctx, query, channelID, subject, fromAddress, sentAt).Scan(&exists)
	return exists, err
}

// Insert persists a message and its attachments in one transaction.
// The unique index on the dedup key is the final arbiter against concurrent
// writers: a conflicting insert is reported as (false, nil), not an error.
func (r *MessageRepository) Insert(ctx context.Context, m *model.CanonicalMessage) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
        INSERT INTO messages (
            id, organization_id, account_id, channel_id,
            message_id, in_reply_to, reference_ids,
            subject, content, html_content,
            from_address, from_name, to_address, cc_address, bcc_address,
            message_type, is_read, is_starred,
            urgency_score, action_needed, needs_response,
            sent_at, received_at, imap_uid, imap_folder,
            created_at
        )
        VALUES (
            $1, $2, NULLIF($3, ''), NULLIF($4, ''),
            $5, $6, $7,
            $8, $9, $10,
            $11, $12, $13, $14, $15,
            $16, $17, $18,
            $19, $20, $21,
            $22, $23, $24, $25,
            NOW()
        )
        ON CONFLICT DO NOTHING
        RETURNING id
    `
	var insertedID string
	err = tx.QueryRow(ctx, query,
		m.ID,
		m.OrganizationID,
		m.AccountID,
		m.ChannelID,
		m.MessageID,
		m.InReplyTo,
		m.References,
		m.Subject,
		m.Content,
		m.HTMLContent,
		m.FromAddress,
		m.FromName,
		m.ToAddress,
		m.CCAddress,
		m.BCCAddress,
		m.MessageType,
		m.IsRead,
		m.IsStarred,
		m.UrgencyScore,
		m.ActionNeeded,
		m.NeedsResponse,
		m.SentAt,
		m.ReceivedAt,
		m.IMAPUID,
		m.IMAPFolder,
	).Scan(&insertedID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Dedup key conflict: someone else won the race.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for _, att := range m.Attachments {
		attQuery := `
            INSERT INTO message_attachments (
                id, message_id, filename, content_type, size, content_id, content, created_at
            )
            VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NOW())
        `
		if _, err := tx.Exec(ctx, attQuery,
			att.ID,
			insertedID,
			att.Filename,
			att.ContentType,
			att.Size,
			att.ContentID,
			att.Content,
		); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteOlderThan removes synced messages received before cutoff.
// Attachments cascade at the schema level. Returns the number of rows removed.
func (r *MessageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
        DELETE FROM messages
        WHERE received_at < $1 AND account_id IS NOT NULL
    `
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
