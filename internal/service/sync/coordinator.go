package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crmsync/internal/model"
	"crmsync/pkg/metrics"
)

// Coordinator fans per-account syncs out over a bounded worker pool.
// One failing account never stops the batch.
type Coordinator struct {
	accounts     AccountStore
	orchestrator *Orchestrator
	lease        Lease
	logger       *zap.Logger

	maxConcurrent int
}

func NewCoordinator(accounts AccountStore, orchestrator *Orchestrator, lease Lease, logger *zap.Logger, maxConcurrent int) *Coordinator {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Coordinator{
		accounts:      accounts,
		orchestrator:  orchestrator,
		lease:         lease,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
}

// SyncAllAccounts syncs every active account.
func (c *Coordinator) SyncAllAccounts(ctx context.Context, opts Options) (*BatchSummary, error) {
	accounts, err := c.accounts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}
	return c.syncBatch(ctx, accounts, opts), nil
}

// SyncOrganizationAccounts syncs every active account of one organization.
func (c *Coordinator) SyncOrganizationAccounts(ctx context.Context, organizationID string, opts Options) (*BatchSummary, error) {
	accounts, err := c.accounts.ListActiveByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list accounts for organization %s: %w", organizationID, err)
	}
	return c.syncBatch(ctx, accounts, opts), nil
}

// SyncDueAccounts syncs the active accounts whose sync interval has elapsed.
// Used by the background scheduler; on-demand triggers ignore the interval.
func (c *Coordinator) SyncDueAccounts(ctx context.Context, now time.Time, opts Options) (*BatchSummary, error) {
	accounts, err := c.accounts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}
	return c.syncBatch(ctx, DueAccounts(accounts, now), opts), nil
}

func (c *Coordinator) syncBatch(ctx context.Context, accounts []model.MailboxAccount, opts Options) *BatchSummary {
	results := make([]SyncResult, len(accounts))

	var eg errgroup.Group
	eg.SetLimit(c.maxConcurrent)
	for i, account := range accounts {
		i, account := i, account
		eg.Go(func() error {
			results[i] = c.syncOne(ctx, account, opts)
			return nil
		})
	}
	eg.Wait() //nolint:errcheck

	summary := Summarize(results)
	c.logger.Info("Batch sync finished",
		zap.Int("accounts", summary.TotalAccounts),
		zap.Int("successful", summary.SuccessfulAccounts),
		zap.Int("processed", summary.TotalProcessed),
		zap.Int("new", summary.TotalNewMessages),
	)
	return &summary
}

// syncOne wraps a single account run for batch use: it respects
// cancellation, holds the per-account lease, and converts panics and
// pipeline errors into failed results instead of letting them escape.
func (c *Coordinator) syncOne(ctx context.Context, account model.MailboxAccount, opts Options) (result SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Account sync panicked",
				zap.String("accountId", account.ID),
				zap.Any("panic", r),
			)
			result = SyncResult{
				AccountID: account.ID,
				Errors:    []string{fmt.Sprintf("panic: %v", r)},
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		return SyncResult{AccountID: account.ID, Errors: []string{"sync cancelled"}}
	}

	if c.lease != nil {
		if !c.lease.Acquire(ctx, account.ID) {
			c.logger.Debug("Account sync already in progress, skipping",
				zap.String("accountId", account.ID),
			)
			metrics.RecordAccountSync("skipped", 0)
			return SyncResult{AccountID: account.ID, Errors: []string{"sync already in progress"}}
		}
		defer c.lease.Release(ctx, account.ID)
	}

	res, err := c.orchestrator.SyncAccount(ctx, account.ID, opts)
	if err != nil {
		return SyncResult{AccountID: account.ID, Errors: []string{err.Error()}}
	}
	return *res
}

// DueAccounts filters accounts whose SyncIntervalMin has elapsed since the
// last run. Never-synced accounts are always due.
func DueAccounts(accounts []model.MailboxAccount, now time.Time) []model.MailboxAccount {
	due := make([]model.MailboxAccount, 0, len(accounts))
	for _, a := range accounts {
		if a.LastSyncAt == nil {
			due = append(due, a)
			continue
		}
		interval := time.Duration(a.SyncIntervalMin) * time.Minute
		if now.Sub(*a.LastSyncAt) >= interval {
			due = append(due, a)
		}
	}
	return due
}
