package model

import "time"

type MessageType string

const (
	MessageTypeInbox MessageType = "INBOX"
	MessageTypeSent  MessageType = "SENT"
	MessageTypeDraft MessageType = "DRAFT"
)

// CanonicalMessage is the persisted form of one synced mail message.
//
// Dedup keys: account-based sync uses (AccountID, IMAPUID, IMAPFolder);
// channel-based sync uses (ChannelID, MessageID) and falls back to
// (Subject, FromAddress, SentAt) when the message has no Message-Id header.
type CanonicalMessage struct {
	ID             string
	OrganizationID string
	AccountID      string
	ChannelID      string

	MessageID  string
	InReplyTo  string
	References string

	Subject     string
	Content     string
	HTMLContent string

	FromAddress string
	FromName    string
	ToAddress   string
	CCAddress   []string
	BCCAddress  []string

	MessageType MessageType

	IsRead    bool
	IsStarred bool

	UrgencyScore  float64
	ActionNeeded  bool
	NeedsResponse bool

	SentAt     time.Time
	ReceivedAt time.Time

	IMAPUID    uint32
	IMAPFolder string

	Attachments []Attachment
}

// Attachment is a child record of a CanonicalMessage. Content is never nil;
// zero-length attachments keep an explicit empty buffer.
type Attachment struct {
	ID          string
	MessageID   string
	Filename    string
	ContentType string
	Size        int
	ContentID   string
	Content     []byte
}
