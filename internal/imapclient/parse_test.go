package imapclient

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainFixture = "From: Anna Kowalska <anna@example.com>\r\n" +
	"To: sales@crm.example\r\n" +
	"Subject: Offer question\r\n" +
	"Message-Id: <abc-123@example.com>\r\n" +
	"X-Priority: 1\r\n" +
	"Date: Mon, 13 Jul 2026 10:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hello, please send the offer.\r\n"

const multipartFixture = "From: bob@example.com\r\n" +
	"Subject: Invoice\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"xyz\"\r\n" +
	"\r\n" +
	"--xyz\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Invoice attached.\r\n" +
	"--xyz\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"invoice.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQ=\r\n" +
	"--xyz--\r\n"

func TestParseBodyPlainText(t *testing.T) {
	raw := &RawMessage{Headers: make(map[string]string)}
	err := parseBody(raw, strings.NewReader(plainFixture))
	require.NoError(t, err)

	assert.Contains(t, raw.TextBody, "please send the offer")
	assert.Empty(t, raw.HTMLBody)
	assert.Equal(t, "1", raw.Headers["X-Priority"])
	assert.Equal(t, "<abc-123@example.com>", raw.MessageID)
	assert.Empty(t, raw.Attachments)
}

func TestParseBodyAttachment(t *testing.T) {
	raw := &RawMessage{Headers: make(map[string]string)}
	err := parseBody(raw, strings.NewReader(multipartFixture))
	require.NoError(t, err)

	require.Len(t, raw.Attachments, 1)
	att := raw.Attachments[0]
	assert.Equal(t, "invoice.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, "%PDF-1.4", string(att.Content))
	assert.Equal(t, len(att.Content), att.Size)
	assert.NotNil(t, att.Content)
}

func TestParseMessageEnvelopeOnly(t *testing.T) {
	date := time.Date(2026, 7, 13, 10, 0, 0, 0, time.UTC)
	msg := &imap.Message{
		Uid:   42,
		Flags: []string{imap.SeenFlag},
		Envelope: &imap.Envelope{
			Subject:   "Hello",
			Date:      date,
			MessageId: "<m1@example.com>",
			From: []*imap.Address{{
				PersonalName: "Anna Kowalska",
				MailboxName:  "anna",
				HostName:     "example.com",
			}},
			To: []*imap.Address{{
				MailboxName: "sales",
				HostName:    "crm.example",
			}},
		},
	}

	raw, err := parseMessage(msg, &imap.BodySectionName{Peek: true})
	require.NoError(t, err)

	assert.Equal(t, uint32(42), raw.UID)
	assert.Equal(t, []string{imap.SeenFlag}, raw.Flags)
	assert.Equal(t, "Anna Kowalska <anna@example.com>", raw.From)
	assert.Equal(t, []string{"sales@crm.example"}, raw.To)
	assert.Equal(t, "<m1@example.com>", raw.MessageID)
	assert.Equal(t, date, raw.Date)
	assert.NotNil(t, raw.Attachments)
}

func TestLatestUIDs(t *testing.T) {
	tests := []struct {
		name  string
		uids  []uint32
		limit int
		want  []uint32
	}{
		{"no limit", []uint32{3, 1, 2}, 0, []uint32{3, 1, 2}},
		{"under limit", []uint32{1, 2}, 5, []uint32{1, 2}},
		{"truncates to newest", []uint32{10, 40, 20, 30}, 2, []uint32{30, 40}},
		{"exact limit", []uint32{1, 2, 3}, 3, []uint32{1, 2, 3}},
		{"empty", nil, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LatestUIDs(tt.uids, tt.limit)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAddressWithoutName(t *testing.T) {
	addr := &imap.Address{MailboxName: "bot", HostName: "example.com"}
	assert.Equal(t, "bot@example.com", formatAddress(addr))
	assert.Equal(t, "", formatAddress(nil))
}
