package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"crmsync/internal/imapclient"
	"crmsync/internal/model"
)

func TestSchedulerTickSyncsDueAccounts(t *testing.T) {
	justSynced := time.Now().Add(-1 * time.Minute)

	due := syncableAccount("acc-due", "a.example.com")
	due.SyncIntervalMin = 15
	fresh := syncableAccount("acc-fresh", "b.example.com")
	fresh.SyncIntervalMin = 15
	fresh.LastSyncAt = &justSynced
	c, f := newCoordinatorFixture(nil, due, fresh)

	f.script("a.example.com", map[string][]*imapclient.RawMessage{
		"INBOX": inboxMessages(3),
	})

	s := NewScheduler(c, time.Minute, zap.NewNop())
	s.tick(context.Background(), time.Now())

	assert.Equal(t, model.AccountStatusActive, due.Status)
	assert.NotNil(t, due.LastSyncAt)
	assert.Equal(t, justSynced, *fresh.LastSyncAt)
	assert.Len(t, f.messages.insertedUIDs(), 3)
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	c, _ := newCoordinatorFixture(nil)
	s := NewScheduler(c, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler kept running after cancel")
	}
}
