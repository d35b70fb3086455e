package imapclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

// Config is the connection configuration for one mailbox.
type Config struct {
	Host     string
	Port     int
	TLS      bool
	User     string
	Password string
}

// Criteria describes a UID search. Zero value means ALL.
type Criteria struct {
	Since  time.Time
	Unseen bool
}

// Client owns exactly one authenticated IMAP session. It is not safe for
// concurrent use; the orchestrator holds one per sync run. The client never
// retries internally.
type Client struct {
	cl     *client.Client
	cfg    Config
	logger *zap.Logger
	folder string
}

// Dial connects and authenticates. connectTimeout bounds dial+login,
// opTimeout bounds every subsequent command on the session.
func Dial(cfg Config, connectTimeout, opTimeout time.Duration, logger *zap.Logger) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dialer := &net.Dialer{Timeout: connectTimeout}

	var cl *client.Client
	var err error
	if cfg.TLS {
		cl, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		})
	} else {
		cl, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, &Error{Kind: connErrKind(err, KindConnection), Op: "dial", Err: err}
	}

	cl.Timeout = opTimeout

	if err := cl.Login(cfg.User, cfg.Password); err != nil {
		cl.Logout() //nolint:errcheck
		// a server that hangs mid-LOGIN is a transport problem, not a
		// credential rejection
		return nil, &Error{Kind: connErrKind(err, KindAuth), Op: "login", Err: err}
	}

	logger.Debug("Connected to IMAP server",
		zap.String("host", cfg.Host),
		zap.String("user", cfg.User),
	)

	return &Client{cl: cl, cfg: cfg, logger: logger}, nil
}

// Close logs out and releases the socket. Safe to call more than once.
func (c *Client) Close() {
	if c.cl == nil {
		return
	}
	if err := c.cl.Logout(); err != nil {
		// Logout can fail on an already-broken session; make sure the
		// socket goes away regardless.
		c.cl.Terminate() //nolint:errcheck
	}
	c.cl = nil
}

// SelectFolder opens a folder; readOnly uses EXAMINE so flags stay untouched.
func (c *Client) SelectFolder(name string, readOnly bool) error {
	if _, err := c.cl.Select(name, readOnly); err != nil {
		return &Error{Kind: KindFolder, Op: "select " + name, Err: err}
	}
	c.folder = name
	return nil
}

// Search runs a UID search in the currently selected folder.
func (c *Client) Search(crit Criteria) ([]uint32, error) {
	sc := imap.NewSearchCriteria()
	if !crit.Since.IsZero() {
		// SINCE is day-granular in IMAP; callers compensate via dedup.
		sc.Since = crit.Since
	}
	if crit.Unseen {
		sc.WithoutFlags = []string{imap.SeenFlag}
	}

	uids, err := c.cl.UidSearch(sc)
	if err != nil {
		return nil, &Error{Kind: KindFolder, Op: "search " + c.folder, Err: err}
	}
	return uids, nil
}

// Fetch retrieves full messages for the given UIDs. When the set exceeds
// limit, only the highest (newest) limit UIDs are fetched so recent mail is
// never starved by backlog. Messages that fail MIME parsing are skipped.
func (c *Client) Fetch(uids []uint32, limit int) ([]*RawMessage, error) {
	uids = LatestUIDs(uids, limit)
	if len(uids) == 0 {
		return []*RawMessage{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		imap.FetchInternalDate,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.cl.UidFetch(seqSet, items, messages)
	}()

	out := make([]*RawMessage, 0, len(uids))
	for msg := range messages {
		raw, err := parseMessage(msg, section)
		if err != nil {
			c.logger.Warn("Skipping unparseable message",
				zap.Uint32("uid", msg.Uid),
				zap.String("folder", c.folder),
				zap.Error(err),
			)
			continue
		}
		out = append(out, raw)
	}

	if err := <-done; err != nil {
		return out, &Error{Kind: KindFolder, Op: "fetch " + c.folder, Err: err}
	}
	return out, nil
}

// MarkSeen adds the \Seen flag to the given UIDs.
func (c *Client) MarkSeen(uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	if err := c.cl.UidStore(seqSet, item, flags, nil); err != nil {
		return &Error{Kind: KindFolder, Op: "store \\Seen", Err: err}
	}
	return nil
}

// uidConn is the slice of the IMAP session that Move and Delete need.
type uidConn interface {
	UidCopy(seqSet *imap.SeqSet, dest string) error
	UidStore(seqSet *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Expunge(ch chan uint32) error
}

// Move copies a message to destFolder and expunges the original.
// COPY + \Deleted + EXPUNGE keeps us off the MOVE extension, which many
// smaller servers do not advertise.
func (c *Client) Move(uid uint32, destFolder string) error {
	return moveMessage(c.cl, uid, destFolder)
}

// Delete flags a message \Deleted and expunges it.
func (c *Client) Delete(uid uint32) error {
	return deleteMessage(c.cl, uid)
}

func moveMessage(conn uidConn, uid uint32, destFolder string) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	if err := conn.UidCopy(seqSet, destFolder); err != nil {
		return &Error{Kind: KindFolder, Op: "copy to " + destFolder, Err: err}
	}
	return deleteMessage(conn, uid)
}

func deleteMessage(conn uidConn, uid uint32) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}

	if err := conn.UidStore(seqSet, item, flags, nil); err != nil {
		return &Error{Kind: KindFolder, Op: "store \\Deleted", Err: err}
	}
	if err := conn.Expunge(nil); err != nil {
		return &Error{Kind: KindFolder, Op: "expunge", Err: err}
	}
	return nil
}

// TestConnection races a full dial+login against timeout. Whatever the
// outcome, any session that did open is torn down; a timed-out dial is
// drained in the background so the socket cannot leak.
func TestConnection(cfg Config, timeout time.Duration, logger *zap.Logger) bool {
	type result struct {
		c   *Client
		err error
	}
	ch := make(chan result, 1)

	go func() {
		c, err := Dial(cfg, timeout, timeout, logger)
		ch <- result{c: c, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return false
		}
		r.c.Close()
		return true
	case <-time.After(timeout):
		go func() {
			if r := <-ch; r.c != nil {
				r.c.Close()
			}
		}()
		return false
	}
}

// connErrKind classifies a transport error, preferring KindTimeout when a
// net.Error deadline fired.
func connErrKind(err error, fallback ErrKind) ErrKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return fallback
}

// LatestUIDs returns the highest limit UIDs in ascending order.
// limit <= 0 means no limit.
func LatestUIDs(uids []uint32, limit int) []uint32 {
	if limit <= 0 || len(uids) <= limit {
		return uids
	}
	sorted := make([]uint32, len(uids))
	copy(sorted, uids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)-limit:]
}
