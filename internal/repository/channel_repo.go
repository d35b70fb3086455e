package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmsync/internal/model"
)

type ChannelRepository struct {
	db *pgxpool.Pool
}

func NewChannelRepository(db *pgxpool.Pool) *ChannelRepository {
	return &ChannelRepository{db: db}
}

const channelColumns = `
        id, organization_id, name, type, email_address, is_active, config, last_sync_at, created_at
`

func scanChannel(row pgx.Row) (*model.CommunicationChannel, error) {
	var c model.CommunicationChannel
	var emailAddress *string
	err := row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Name,
		&c.Type,
		&emailAddress,
		&c.IsActive,
		&c.Config,
		&c.LastSyncAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if emailAddress != nil {
		c.EmailAddress = *emailAddress
	}
	return &c, nil
}

// FindByID returns one communication channel.
func (r *ChannelRepository) FindByID(ctx context.Context, id string) (*model.CommunicationChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM communication_channels WHERE id = $1`
	return scanChannel(r.db.QueryRow(ctx, query, id))
}

// ListActiveEmailByOrganization returns the active EMAIL channels of one
// organization.
func (r *ChannelRepository) ListActiveEmailByOrganization(ctx context.Context, organizationID string) ([]model.CommunicationChannel, error) {
	query := `
        SELECT ` + channelColumns + `
        FROM communication_channels
        WHERE organization_id = $1 AND type = 'EMAIL' AND is_active = TRUE
        ORDER BY created_at
    `
	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []model.CommunicationChannel{}
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *c)
	}
	return channels, rows.Err()
}

// UpdateLastSync stamps a channel after a completed sync.
func (r *ChannelRepository) UpdateLastSync(ctx context.Context, id string, lastSyncAt time.Time) error {
	query := `
        UPDATE communication_channels
        SET last_sync_at = $2
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, id, lastSyncAt)
	return err
}
