package imapclient

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
)

// headersOfInterest are copied from the MIME envelope onto RawMessage.Headers
// for downstream heuristics (priority scoring, threading).
var headersOfInterest = []string{
	"X-Priority",
	"Importance",
	"In-Reply-To",
	"References",
	"List-Unsubscribe",
}

func parseMessage(msg *imap.Message, section *imap.BodySectionName) (*RawMessage, error) {
	raw := &RawMessage{
		UID:     msg.Uid,
		Flags:   append([]string{}, msg.Flags...),
		Headers: make(map[string]string),
	}

	if env := msg.Envelope; env != nil {
		raw.Subject = env.Subject
		raw.Date = env.Date
		raw.MessageID = env.MessageId
		raw.InReplyTo = env.InReplyTo
		if len(env.From) > 0 {
			raw.From = formatAddress(env.From[0])
		}
		raw.To = formatAddressList(env.To)
		raw.CC = formatAddressList(env.Cc)
		raw.BCC = formatAddressList(env.Bcc)
	}
	if raw.Date.IsZero() {
		raw.Date = msg.InternalDate
	}

	body := msg.GetBody(section)
	if body == nil {
		// Envelope-only fetch result; still usable for dedup and metadata.
		raw.Attachments = []RawAttachment{}
		return raw, nil
	}

	if err := parseBody(raw, body); err != nil {
		return nil, &Error{Kind: KindParse, Op: "parse body", Err: err}
	}

	return raw, nil
}

func parseBody(raw *RawMessage, body io.Reader) error {
	env, err := enmime.ReadEnvelope(body)
	if err != nil {
		return fmt.Errorf("failed to read MIME envelope: %w", err)
	}

	raw.TextBody = env.Text
	raw.HTMLBody = env.HTML

	for _, name := range headersOfInterest {
		if v := env.GetHeader(name); v != "" {
			raw.Headers[name] = v
		}
	}
	if raw.References == "" {
		raw.References = env.GetHeader("References")
	}
	if raw.MessageID == "" {
		raw.MessageID = env.GetHeader("Message-Id")
	}

	raw.Attachments = make([]RawAttachment, 0, len(env.Attachments)+len(env.Inlines))
	for _, part := range env.Attachments {
		raw.Attachments = append(raw.Attachments, toRawAttachment(part))
	}
	for _, part := range env.Inlines {
		// Inline parts without a filename or content-id are body fragments,
		// not attachments.
		if part.FileName == "" && part.ContentID == "" {
			continue
		}
		raw.Attachments = append(raw.Attachments, toRawAttachment(part))
	}

	return nil
}

func toRawAttachment(part *enmime.Part) RawAttachment {
	content := part.Content
	if content == nil {
		content = []byte{}
	}

	contentType := part.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	filename := part.FileName
	if filename == "" {
		filename = "attachment"
	}

	return RawAttachment{
		Filename:    filename,
		ContentType: contentType,
		Size:        len(content),
		ContentID:   part.ContentID,
		Content:     content,
	}
}

func formatAddress(addr *imap.Address) string {
	if addr == nil {
		return ""
	}
	email := addr.Address()
	name := strings.TrimSpace(addr.PersonalName)
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func formatAddressList(addrs []*imap.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, formatAddress(a))
	}
	return out
}
