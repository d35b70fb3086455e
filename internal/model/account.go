package model

import "time"

type AccountStatus string

const (
	AccountStatusPending AccountStatus = "PENDING"
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusError   AccountStatus = "ERROR"
)

// MailboxAccount is one external mailbox configuration owned by an
// organization. IMAPPassword is sealed at rest (see pkg/secrets).
type MailboxAccount struct {
	ID             string
	OrganizationID string
	Name           string
	Email          string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUsername string
	IMAPPassword string

	SyncIntervalMin int
	MaxMessages     int
	SyncFolders     []string

	IsActive     bool
	Status       AccountStatus
	LastSyncAt   *time.Time
	SyncCount    int
	ErrorMessage *string
	LastErrorAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
