package imapclient

import "time"

// RawMessage is one message as fetched from the server, before
// normalization. Address strings keep the RFC 5322 "Name <addr>" form.
type RawMessage struct {
	UID   uint32
	Flags []string

	From    string
	To      []string
	CC      []string
	BCC     []string
	Subject string
	Date    time.Time

	TextBody string
	HTMLBody string

	MessageID  string
	InReplyTo  string
	References string
	Headers    map[string]string

	Attachments []RawAttachment
}

// RawAttachment carries one decoded MIME part. Content is never nil.
type RawAttachment struct {
	Filename    string
	ContentType string
	Size        int
	ContentID   string
	Content     []byte
}
