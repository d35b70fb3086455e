package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"crmsync/internal/imapclient"
	"crmsync/internal/model"
)

type fakeAccountStore struct {
	mu       gosync.Mutex
	accounts map[string]*model.MailboxAccount
}

func newFakeAccountStore(accounts ...*model.MailboxAccount) *fakeAccountStore {
	s := &fakeAccountStore{accounts: make(map[string]*model.MailboxAccount)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *fakeAccountStore) FindByID(_ context.Context, id string) (*model.MailboxAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s not found", id)
	}
	return a, nil
}

func (s *fakeAccountStore) ListActive(_ context.Context) ([]model.MailboxAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MailboxAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.IsActive {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeAccountStore) ListActiveByOrganization(ctx context.Context, organizationID string) ([]model.MailboxAccount, error) {
	all, _ := s.ListActive(ctx)
	out := make([]model.MailboxAccount, 0, len(all))
	for _, a := range all {
		if a.OrganizationID == organizationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAccountStore) UpdateSyncState(_ context.Context, id string, lastSyncAt time.Time, newMessages int, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}
	a.Status = model.AccountStatusActive
	a.LastSyncAt = &lastSyncAt
	a.SyncCount += newMessages
	a.ErrorMessage = errorMessage
	if errorMessage != nil {
		a.LastErrorAt = &lastSyncAt
	}
	return nil
}

func (s *fakeAccountStore) MarkError(_ context.Context, id string, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}
	now := time.Now()
	a.Status = model.AccountStatusError
	a.ErrorMessage = &errorMessage
	a.LastErrorAt = &now
	return nil
}

func (s *fakeAccountStore) MarkActive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}
	a.Status = model.AccountStatusActive
	a.ErrorMessage = nil
	return nil
}

type fakeMessageStore struct {
	mu           gosync.Mutex
	imapKeys     map[string]bool
	channelKeys  map[string]bool
	fallbackKeys map[string]bool
	inserted     []*model.CanonicalMessage
	insertErr    error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		imapKeys:     make(map[string]bool),
		channelKeys:  make(map[string]bool),
		fallbackKeys: make(map[string]bool),
	}
}

func imapKey(accountID string, uid uint32, folder string) string {
	return fmt.Sprintf("%s|%d|%s", accountID, uid, folder)
}

func channelKey(channelID, messageID string) string {
	return channelID + "|" + messageID
}

func fallbackKey(channelID, subject, fromAddress string, sentAt time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d", channelID, subject, fromAddress, sentAt.Unix())
}

func (s *fakeMessageStore) ExistsByIMAPKey(_ context.Context, accountID string, uid uint32, folder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imapKeys[imapKey(accountID, uid, folder)], nil
}

func (s *fakeMessageStore) ExistsByChannelMessageID(_ context.Context, channelID, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelKeys[channelKey(channelID, messageID)], nil
}

func (s *fakeMessageStore) ExistsByFallbackKey(_ context.Context, channelID, subject, fromAddress string, sentAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallbackKeys[fallbackKey(channelID, subject, fromAddress, sentAt)], nil
}

func (s *fakeMessageStore) Insert(_ context.Context, m *model.CanonicalMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if m.AccountID != "" {
		key := imapKey(m.AccountID, m.IMAPUID, m.IMAPFolder)
		if s.imapKeys[key] {
			return false, nil
		}
		s.imapKeys[key] = true
	}
	if m.ChannelID != "" {
		if m.MessageID != "" {
			key := channelKey(m.ChannelID, m.MessageID)
			if s.channelKeys[key] {
				return false, nil
			}
			s.channelKeys[key] = true
		} else {
			key := fallbackKey(m.ChannelID, m.Subject, m.FromAddress, m.SentAt)
			if s.fallbackKeys[key] {
				return false, nil
			}
			s.fallbackKeys[key] = true
		}
	}
	s.inserted = append(s.inserted, m)
	return true, nil
}

func (s *fakeMessageStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.inserted[:0]
	var deleted int64
	for _, m := range s.inserted {
		if m.AccountID != "" && m.ReceivedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	s.inserted = kept
	return deleted, nil
}

func (s *fakeMessageStore) insertedUIDs() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	uids := make([]uint32, 0, len(s.inserted))
	for _, m := range s.inserted {
		uids = append(uids, m.IMAPUID)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids
}

type fakeChannelStore struct {
	mu       gosync.Mutex
	channels map[string]*model.CommunicationChannel
}

func newFakeChannelStore(channels ...*model.CommunicationChannel) *fakeChannelStore {
	s := &fakeChannelStore{channels: make(map[string]*model.CommunicationChannel)}
	for _, c := range channels {
		s.channels[c.ID] = c
	}
	return s
}

func (s *fakeChannelStore) FindByID(_ context.Context, id string) (*model.CommunicationChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.channels[id]
	if !ok {
		return nil, fmt.Errorf("channel %s not found", id)
	}
	return c, nil
}

func (s *fakeChannelStore) ListActiveEmailByOrganization(_ context.Context, organizationID string) ([]model.CommunicationChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CommunicationChannel, 0, len(s.channels))
	for _, c := range s.channels {
		if c.IsActive && c.Type == model.ChannelTypeEmail && c.OrganizationID == organizationID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeChannelStore) UpdateLastSync(_ context.Context, id string, lastSyncAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.channels[id]
	if !ok {
		return fmt.Errorf("channel %s not found", id)
	}
	c.LastSyncAt = &lastSyncAt
	return nil
}

// fakeSession serves scripted messages per folder and records the calls
// the orchestrator makes against it.
type fakeSession struct {
	folders   map[string][]*imapclient.RawMessage
	selectErr map[string]error

	folder       string
	readOnly     bool
	lastCriteria imapclient.Criteria
	markedSeen   []uint32
	closed       bool
}

func (s *fakeSession) SelectFolder(name string, readOnly bool) error {
	if err := s.selectErr[name]; err != nil {
		return err
	}
	s.folder = name
	s.readOnly = readOnly
	return nil
}

func (s *fakeSession) Search(crit imapclient.Criteria) ([]uint32, error) {
	s.lastCriteria = crit
	var uids []uint32
	for _, m := range s.folders[s.folder] {
		if !crit.Since.IsZero() && m.Date.Before(crit.Since.Truncate(24*time.Hour)) {
			continue
		}
		if crit.Unseen && hasFlag(m.Flags, `\Seen`) {
			continue
		}
		uids = append(uids, m.UID)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (s *fakeSession) Fetch(uids []uint32, limit int) ([]*imapclient.RawMessage, error) {
	want := make(map[uint32]bool, len(uids))
	for _, uid := range imapclient.LatestUIDs(uids, limit) {
		want[uid] = true
	}
	var out []*imapclient.RawMessage
	for _, m := range s.folders[s.folder] {
		if want[m.UID] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (s *fakeSession) MarkSeen(uids []uint32) error {
	s.markedSeen = append(s.markedSeen, uids...)
	return nil
}

func (s *fakeSession) Close() {
	s.closed = true
}

// fakeDialer hands out sessions keyed by host and can fail specific hosts.
type fakeDialer struct {
	sessions   map[string]*fakeSession
	dialErr    map[string]error
	testResult bool
}

func (d *fakeDialer) Dial(cfg imapclient.Config, _, _ time.Duration) (Session, error) {
	if err := d.dialErr[cfg.Host]; err != nil {
		return nil, err
	}
	s, ok := d.sessions[cfg.Host]
	if !ok {
		return nil, fmt.Errorf("no session scripted for host %s", cfg.Host)
	}
	return s, nil
}

func (d *fakeDialer) Test(_ imapclient.Config, _ time.Duration) bool {
	return d.testResult
}

type publishedEvent struct {
	routingKey string
	payload    any
}

type fakePublisher struct {
	mu     gosync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{routingKey: routingKey, payload: payload})
	return nil
}

// identityOpener treats stored passwords as plaintext.
type identityOpener struct{}

func (identityOpener) Open(sealed string) (string, error) {
	return sealed, nil
}

type fakeLease struct {
	mu       gosync.Mutex
	denied   map[string]bool
	acquired []string
	released []string
}

func (l *fakeLease) Acquire(_ context.Context, accountID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denied[accountID] {
		return false
	}
	l.acquired = append(l.acquired, accountID)
	return true
}

func (l *fakeLease) Release(_ context.Context, accountID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, accountID)
}
