package imapclient

import (
	"errors"
	"fmt"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUIDConn struct {
	ops         []string
	copyErr     error
	storeErr    error
	expungeErr  error
	copiedTo    string
	copiedSet   *imap.SeqSet
	storedSet   *imap.SeqSet
	storedFlags interface{}
}

func (f *fakeUIDConn) UidCopy(seqSet *imap.SeqSet, dest string) error {
	f.ops = append(f.ops, "copy")
	f.copiedSet = seqSet
	f.copiedTo = dest
	return f.copyErr
}

func (f *fakeUIDConn) UidStore(seqSet *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	f.ops = append(f.ops, "store")
	f.storedSet = seqSet
	f.storedFlags = value
	return f.storeErr
}

func (f *fakeUIDConn) Expunge(ch chan uint32) error {
	f.ops = append(f.ops, "expunge")
	return f.expungeErr
}

func TestMoveCopiesThenExpunges(t *testing.T) {
	conn := &fakeUIDConn{}
	require.NoError(t, moveMessage(conn, 7, "Archive"))

	assert.Equal(t, []string{"copy", "store", "expunge"}, conn.ops)
	assert.Equal(t, "Archive", conn.copiedTo)
	assert.True(t, conn.copiedSet.Contains(7))
	assert.True(t, conn.storedSet.Contains(7))
	assert.Equal(t, []interface{}{imap.DeletedFlag}, conn.storedFlags)
}

func TestMoveStopsAfterCopyFailure(t *testing.T) {
	conn := &fakeUIDConn{copyErr: fmt.Errorf("no such mailbox")}
	err := moveMessage(conn, 7, "Archive")
	require.Error(t, err)

	// the original message must survive a failed copy
	assert.Equal(t, []string{"copy"}, conn.ops)
	assert.Equal(t, KindFolder, KindOf(err))
}

func TestDeleteSkipsExpungeAfterStoreFailure(t *testing.T) {
	conn := &fakeUIDConn{storeErr: fmt.Errorf("store rejected")}
	err := deleteMessage(conn, 3)
	require.Error(t, err)

	assert.Equal(t, []string{"store"}, conn.ops)
	assert.Equal(t, KindFolder, KindOf(err))
}

func TestDeleteSurfacesExpungeFailure(t *testing.T) {
	conn := &fakeUIDConn{expungeErr: fmt.Errorf("expunge failed")}
	err := deleteMessage(conn, 3)
	require.Error(t, err)

	assert.Equal(t, []string{"store", "expunge"}, conn.ops)
	assert.Equal(t, KindFolder, KindOf(err))
}

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "net failure" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestConnErrKind(t *testing.T) {
	assert.Equal(t, KindTimeout, connErrKind(&fakeNetError{timeout: true}, KindConnection))
	assert.Equal(t, KindConnection, connErrKind(&fakeNetError{}, KindConnection))
	assert.Equal(t, KindConnection, connErrKind(errors.New("connection refused"), KindConnection))

	// a deadline that fires mid-LOGIN is a timeout, not a bad credential
	wrapped := fmt.Errorf("login: %w", &fakeNetError{timeout: true})
	assert.Equal(t, KindTimeout, connErrKind(wrapped, KindAuth))
	assert.Equal(t, KindAuth, connErrKind(errors.New("invalid credentials"), KindAuth))
}
