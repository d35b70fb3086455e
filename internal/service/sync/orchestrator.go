package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"crmsync/contracts/mq"
	"crmsync/internal/imapclient"
	"crmsync/internal/model"
	"crmsync/pkg/metrics"
)

// RoutingKeyMessageSynced is published once per newly persisted message.
const RoutingKeyMessageSynced = "email.message.synced"

var defaultFolders = []string{"INBOX"}

// Orchestrator runs the per-account sync pipeline: dial, per-folder
// search/fetch/normalize, account state update, event publication.
type Orchestrator struct {
	accounts    AccountStore
	messages    MessageStore
	normalizer  *Normalizer
	dialer      Dialer
	credentials CredentialOpener
	publisher   EventPublisher
	logger      *zap.Logger

	connectTimeout time.Duration
	opTimeout      time.Duration
}

// NewOrchestrator wires the pipeline. publisher may be nil; event
// publication is then skipped.
func NewOrchestrator(
	accounts AccountStore,
	messages MessageStore,
	normalizer *Normalizer,
	dialer Dialer,
	credentials CredentialOpener,
	publisher EventPublisher,
	logger *zap.Logger,
	connectTimeout, opTimeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		accounts:       accounts,
		messages:       messages,
		normalizer:     normalizer,
		dialer:         dialer,
		credentials:    credentials,
		publisher:      publisher,
		logger:         logger,
		connectTimeout: connectTimeout,
		opTimeout:      opTimeout,
	}
}

// SyncAccount runs one full sync for the account. It returns an error only
// for pipeline-level failures (unknown account, inactive account, unsealing
// failure); connection and folder failures are reported inside SyncResult
// and in the account's stored error state.
func (o *Orchestrator) SyncAccount(ctx context.Context, accountID string, opts Options) (*SyncResult, error) {
	start := time.Now()

	account, err := o.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", accountID, err)
	}
	if !account.IsActive {
		return nil, fmt.Errorf("account %s is not active", accountID)
	}

	password, err := o.credentials.Open(account.IMAPPassword)
	if err != nil {
		return nil, fmt.Errorf("unseal credentials for account %s: %w", accountID, err)
	}

	result := &SyncResult{AccountID: accountID, Errors: []string{}}

	cfg := imapclient.Config{
		Host:     account.IMAPHost,
		Port:     account.IMAPPort,
		TLS:      account.IMAPSecure,
		User:     account.IMAPUsername,
		Password: password,
	}

	session, err := o.dialer.Dial(cfg, o.connectTimeout, o.opTimeout)
	if err != nil {
		msg := fmt.Sprintf("connect failed: %v", err)
		result.Errors = append(result.Errors, msg)
		result.Duration = time.Since(start)

		if markErr := o.accounts.MarkError(ctx, accountID, msg); markErr != nil {
			o.logger.Error("Failed to record account error state",
				zap.String("accountId", accountID),
				zap.Error(markErr),
			)
		}
		metrics.IncrementConnectFailure(string(imapclient.KindOf(err)))
		metrics.RecordAccountSync("error", result.Duration)
		o.logger.Warn("Account sync failed to connect",
			zap.String("accountId", accountID),
			zap.String("host", account.IMAPHost),
			zap.Error(err),
		)
		return result, nil
	}
	defer session.Close()

	folders := opts.Folders
	if len(folders) == 0 {
		folders = account.SyncFolders
	}
	if len(folders) == 0 {
		folders = defaultFolders
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = account.MaxMessages
	}

	crit := imapclient.Criteria{}
	if !opts.ForceSync && account.LastSyncAt != nil {
		// SINCE is day-granular; the dedup keys absorb the overlap.
		crit.Since = *account.LastSyncAt
	}

	newMessages := make([]*model.CanonicalMessage, 0)
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, "sync cancelled")
			break
		}

		processed, fresh, err := o.syncFolder(ctx, session, account, folder, crit, limit, opts.MarkAsRead)
		result.MessagesProcessed += processed
		newMessages = append(newMessages, fresh...)
		if err != nil {
			metrics.IncrementFolderError()
			result.Errors = append(result.Errors, fmt.Sprintf("folder %s: %v", folder, err))
			o.logger.Warn("Folder sync failed",
				zap.String("accountId", accountID),
				zap.String("folder", folder),
				zap.Error(err),
			)
		}
	}
	result.NewMessages = len(newMessages)
	result.Success = true
	result.Duration = time.Since(start)

	var errMsg *string
	if len(result.Errors) > 0 {
		joined := strings.Join(result.Errors, "; ")
		errMsg = &joined
	}
	if err := o.accounts.UpdateSyncState(ctx, accountID, time.Now(), result.NewMessages, errMsg); err != nil {
		return nil, fmt.Errorf("update sync state for account %s: %w", accountID, err)
	}

	o.publishSynced(account, newMessages)

	metrics.RecordAccountSync("success", result.Duration)
	o.logger.Info("Account sync finished",
		zap.String("accountId", accountID),
		zap.Int("processed", result.MessagesProcessed),
		zap.Int("new", result.NewMessages),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// syncFolder searches and fetches one folder. The returned error covers the
// folder as a whole (select/search/fetch); per-message failures are logged,
// counted as processed, and skipped.
func (o *Orchestrator) syncFolder(ctx context.Context, session Session, account *model.MailboxAccount, folder string, crit imapclient.Criteria, limit int, markAsRead bool) (int, []*model.CanonicalMessage, error) {
	if err := session.SelectFolder(folder, !markAsRead); err != nil {
		return 0, nil, err
	}

	uids, err := session.Search(crit)
	if err != nil {
		return 0, nil, err
	}
	if len(uids) == 0 {
		return 0, nil, nil
	}

	raws, err := session.Fetch(uids, limit)
	if err != nil {
		return 0, nil, err
	}

	processed := 0
	fresh := make([]*model.CanonicalMessage, 0, len(raws))
	seen := make([]uint32, 0, len(raws))
	for _, raw := range raws {
		processed++
		// every fetched UID gets flagged, duplicates included
		seen = append(seen, raw.UID)
		msg, err := o.normalizer.ProcessAccountMessage(ctx, account, raw, folder)
		if err != nil {
			metrics.IncrementMessagesProcessed("failed")
			o.logger.Warn("Failed to process message",
				zap.String("accountId", account.ID),
				zap.String("folder", folder),
				zap.Uint32("uid", raw.UID),
				zap.Error(err),
			)
			continue
		}
		if msg == nil {
			metrics.IncrementMessagesProcessed("duplicate")
			continue
		}
		metrics.IncrementMessagesProcessed("new")
		fresh = append(fresh, msg)
	}

	if markAsRead && len(seen) > 0 {
		if err := session.MarkSeen(seen); err != nil {
			o.logger.Warn("Failed to mark messages seen",
				zap.String("accountId", account.ID),
				zap.String("folder", folder),
				zap.Error(err),
			)
		}
	}
	return processed, fresh, nil
}

// publishSynced emits one event per new message. Publication is best
// effort; broker failures never fail the sync.
func (o *Orchestrator) publishSynced(account *model.MailboxAccount, msgs []*model.CanonicalMessage) {
	if o.publisher == nil {
		return
	}
	for _, msg := range msgs {
		payload := mq.MessageSyncedPayload{
			MessageID:      msg.ID,
			AccountID:      account.ID,
			OrganizationID: account.OrganizationID,
			Folder:         msg.IMAPFolder,
			Subject:        msg.Subject,
			FromAddress:    msg.FromAddress,
			MessageType:    string(msg.MessageType),
			UrgencyScore:   msg.UrgencyScore,
			SyncedAt:       msg.ReceivedAt,
		}
		if err := o.publisher.Publish(RoutingKeyMessageSynced, payload); err != nil {
			o.logger.Warn("Failed to publish message.synced event",
				zap.String("messageId", msg.ID),
				zap.Error(err),
			)
		}
	}
}

// VerifyAccount checks reachability and credentials without syncing, then
// records the outcome on the account.
func (o *Orchestrator) VerifyAccount(ctx context.Context, accountID string, timeout time.Duration) (bool, error) {
	account, err := o.accounts.FindByID(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("load account %s: %w", accountID, err)
	}

	password, err := o.credentials.Open(account.IMAPPassword)
	if err != nil {
		return false, fmt.Errorf("unseal credentials for account %s: %w", accountID, err)
	}

	ok := o.dialer.Test(imapclient.Config{
		Host:     account.IMAPHost,
		Port:     account.IMAPPort,
		TLS:      account.IMAPSecure,
		User:     account.IMAPUsername,
		Password: password,
	}, timeout)

	if ok {
		err = o.accounts.MarkActive(ctx, accountID)
	} else {
		err = o.accounts.MarkError(ctx, accountID, "connection test failed")
	}
	if err != nil {
		return ok, fmt.Errorf("record verify result for account %s: %w", accountID, err)
	}
	return ok, nil
}

// CleanupOldMessages removes account-synced messages received before the
// retention window. Channel-synced messages are kept.
func (o *Orchestrator) CleanupOldMessages(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted, err := o.messages.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	o.logger.Info("Old messages cleaned up",
		zap.Int64("deleted", deleted),
		zap.Int("retentionDays", retentionDays),
	)
	return deleted, nil
}
