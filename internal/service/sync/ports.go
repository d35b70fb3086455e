package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"crmsync/internal/imapclient"
	"crmsync/internal/model"
	"crmsync/pkg/circuitbreaker"
)

// AccountStore is the persistence boundary for mailbox accounts.
// Implemented by repository.AccountRepository; tests use in-memory fakes.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*model.MailboxAccount, error)
	ListActive(ctx context.Context) ([]model.MailboxAccount, error)
	ListActiveByOrganization(ctx context.Context, organizationID string) ([]model.MailboxAccount, error)
	UpdateSyncState(ctx context.Context, id string, lastSyncAt time.Time, newMessages int, errorMessage *string) error
	MarkError(ctx context.Context, id string, errorMessage string) error
	MarkActive(ctx context.Context, id string) error
}

// MessageStore is the persistence boundary for canonical messages.
type MessageStore interface {
	ExistsByIMAPKey(ctx context.Context, accountID string, uid uint32, folder string) (bool, error)
	ExistsByChannelMessageID(ctx context.Context, channelID, messageID string) (bool, error)
	ExistsByFallbackKey(ctx context.Context, channelID, subject, fromAddress string, sentAt time.Time) (bool, error)
	Insert(ctx context.Context, m *model.CanonicalMessage) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ChannelStore is the persistence boundary for communication channels.
type ChannelStore interface {
	FindByID(ctx context.Context, id string) (*model.CommunicationChannel, error)
	ListActiveEmailByOrganization(ctx context.Context, organizationID string) ([]model.CommunicationChannel, error)
	UpdateLastSync(ctx context.Context, id string, lastSyncAt time.Time) error
}

// Session is one open IMAP session as the orchestrator sees it.
type Session interface {
	SelectFolder(name string, readOnly bool) error
	Search(crit imapclient.Criteria) ([]uint32, error)
	Fetch(uids []uint32, limit int) ([]*imapclient.RawMessage, error)
	MarkSeen(uids []uint32) error
	Close()
}

// Dialer opens and tests IMAP sessions.
type Dialer interface {
	Dial(cfg imapclient.Config, connectTimeout, opTimeout time.Duration) (Session, error)
	Test(cfg imapclient.Config, timeout time.Duration) bool
}

// EventPublisher publishes domain events; satisfied by mq.Publisher.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// CredentialOpener unseals stored mailbox passwords; satisfied by
// secrets.Sealer.
type CredentialOpener interface {
	Open(sealed string) (string, error)
}

// Lease serializes sync runs per account; satisfied by util.SyncLease.
type Lease interface {
	Acquire(ctx context.Context, accountID string) bool
	Release(ctx context.Context, accountID string)
}

// IMAPDialer is the production Dialer backed by internal/imapclient.
// When Breakers is set, connects run under a per-host circuit breaker so a
// flapping server stops burning connect timeouts for every account on it.
type IMAPDialer struct {
	Logger   *zap.Logger
	Breakers *circuitbreaker.Registry
}

func (d *IMAPDialer) Dial(cfg imapclient.Config, connectTimeout, opTimeout time.Duration) (Session, error) {
	if d.Breakers == nil {
		return imapclient.Dial(cfg, connectTimeout, opTimeout, d.Logger)
	}

	var c *imapclient.Client
	err := d.Breakers.Get(cfg.Host).Execute(func() error {
		var dialErr error
		c, dialErr = imapclient.Dial(cfg, connectTimeout, opTimeout, d.Logger)
		return dialErr
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
			return nil, &imapclient.Error{Kind: imapclient.KindConnection, Op: "dial", Err: err}
		}
		return nil, err
	}
	return c, nil
}

func (d *IMAPDialer) Test(cfg imapclient.Config, timeout time.Duration) bool {
	return imapclient.TestConnection(cfg, timeout, d.Logger)
}
