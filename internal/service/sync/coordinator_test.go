package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crmsync/internal/imapclient"
	"crmsync/internal/model"
)

func newCoordinatorFixture(lease Lease, accounts ...*model.MailboxAccount) (*Coordinator, *orchestratorFixture) {
	f := newOrchestratorFixture(accounts...)
	c := NewCoordinator(f.accounts, f.orch, lease, zap.NewNop(), 3)
	return c, f
}

func TestSyncAllAccountsIsolatesFailures(t *testing.T) {
	accountA := syncableAccount("acc-a", "a.example.com")
	accountB := syncableAccount("acc-b", "b.example.com")
	c, f := newCoordinatorFixture(nil, accountA, accountB)

	f.script("a.example.com", map[string][]*imapclient.RawMessage{
		"INBOX": inboxMessages(3),
	})
	f.dialer.dialErr["b.example.com"] = &imapclient.Error{Kind: imapclient.KindConnection, Op: "dial", Err: errors.New("connection refused")}

	summary, err := c.SyncAllAccounts(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalAccounts)
	assert.Equal(t, 1, summary.SuccessfulAccounts)
	assert.Equal(t, 3, summary.TotalNewMessages)
	require.Len(t, summary.Results, 2)

	assert.Equal(t, model.AccountStatusActive, accountA.Status)
	assert.Equal(t, model.AccountStatusError, accountB.Status)
}

func TestSyncAllAccountsSkipsInactive(t *testing.T) {
	active := syncableAccount("acc-a", "a.example.com")
	inactive := syncableAccount("acc-b", "b.example.com")
	inactive.IsActive = false
	c, f := newCoordinatorFixture(nil, active, inactive)

	f.script("a.example.com", map[string][]*imapclient.RawMessage{
		"INBOX": inboxMessages(1),
	})

	summary, err := c.SyncAllAccounts(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalAccounts)
	assert.Equal(t, "acc-a", summary.Results[0].AccountID)
}

func TestSyncOrganizationAccounts(t *testing.T) {
	mine := syncableAccount("acc-a", "a.example.com")
	other := syncableAccount("acc-b", "b.example.com")
	other.OrganizationID = "org-2"
	c, f := newCoordinatorFixture(nil, mine, other)

	f.script("a.example.com", map[string][]*imapclient.RawMessage{
		"INBOX": inboxMessages(2),
	})

	summary, err := c.SyncOrganizationAccounts(context.Background(), "org-1", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalAccounts)
	assert.Equal(t, 2, summary.TotalNewMessages)
}

func TestSyncAllAccountsCancelled(t *testing.T) {
	account := syncableAccount("acc-a", "a.example.com")
	c, _ := newCoordinatorFixture(nil, account)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := c.SyncAllAccounts(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.False(t, summary.Results[0].Success)
	assert.Contains(t, summary.Results[0].Errors, "sync cancelled")
}

func TestSyncAllAccountsLeaseSkip(t *testing.T) {
	accountA := syncableAccount("acc-a", "a.example.com")
	accountB := syncableAccount("acc-b", "b.example.com")
	lease := &fakeLease{denied: map[string]bool{"acc-b": true}}
	c, f := newCoordinatorFixture(lease, accountA, accountB)

	f.script("a.example.com", map[string][]*imapclient.RawMessage{
		"INBOX": inboxMessages(1),
	})

	summary, err := c.SyncAllAccounts(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SuccessfulAccounts)
	var skipped *SyncResult
	for i := range summary.Results {
		if summary.Results[i].AccountID == "acc-b" {
			skipped = &summary.Results[i]
		}
	}
	require.NotNil(t, skipped)
	assert.Contains(t, skipped.Errors, "sync already in progress")

	assert.Equal(t, []string{"acc-a"}, lease.acquired)
	assert.Equal(t, []string{"acc-a"}, lease.released)
}

func TestSyncDueAccountsSkipsFresh(t *testing.T) {
	now := time.Now()
	justSynced := now.Add(-1 * time.Minute)

	due := syncableAccount("acc-due", "a.example.com")
	due.SyncIntervalMin = 15
	fresh := syncableAccount("acc-fresh", "b.example.com")
	fresh.SyncIntervalMin = 15
	fresh.LastSyncAt = &justSynced
	c, f := newCoordinatorFixture(nil, due, fresh)

	f.script("a.example.com", map[string][]*imapclient.RawMessage{
		"INBOX": inboxMessages(2),
	})

	summary, err := c.SyncDueAccounts(context.Background(), now, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalAccounts)
	assert.Equal(t, "acc-due", summary.Results[0].AccountID)
	assert.Equal(t, 2, summary.TotalNewMessages)
	assert.Equal(t, justSynced, *fresh.LastSyncAt)
}

func TestDueAccounts(t *testing.T) {
	now := time.Now()
	recent := now.Add(-5 * time.Minute)
	stale := now.Add(-30 * time.Minute)

	accounts := []model.MailboxAccount{
		{ID: "never", SyncIntervalMin: 15},
		{ID: "recent", SyncIntervalMin: 15, LastSyncAt: &recent},
		{ID: "stale", SyncIntervalMin: 15, LastSyncAt: &stale},
	}

	due := DueAccounts(accounts, now)
	ids := make([]string, 0, len(due))
	for _, a := range due {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"never", "stale"}, ids)
}
