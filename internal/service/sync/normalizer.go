package sync

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"crmsync/internal/imapclient"
	"crmsync/internal/model"
	"crmsync/pkg/util"
)

// Urgency scoring weights. The score lives on a [0,1] scale; tests assert
// exact values for literal fixtures, so these are named constants rather
// than inline numbers.
const (
	urgencyBase          = 0.30
	urgencyKeywordBonus  = 0.30
	urgencyFlaggedBonus  = 0.20
	urgencyPriorityBonus = 0.10

	urgencyRecencyUnderHour  = 0.15
	urgencyRecencyUnderDay   = 0.10
	urgencyRecencyUnder3Days = 0.05

	urgencyMax = 1.0

	// actionNeededThreshold marks messages downstream triage should surface.
	actionNeededThreshold = 0.7

	maxSubjectLength = 500
)

var urgentKeywords = []string{
	"urgent", "asap", "emergency", "immediate", "critical", "deadline",
	"pilne", "nagły",
}

var responseKeywords = []string{
	"?", "please respond", "let me know", "get back to me", "odpowiedz",
}

// Normalizer converts raw protocol messages into canonical records and
// decides persist-or-skip against the message store's dedup keys.
type Normalizer struct {
	messages MessageStore
}

func NewNormalizer(messages MessageStore) *Normalizer {
	return &Normalizer{messages: messages}
}

// ProcessAccountMessage persists one account-synced message unless its dedup
// key (accountId, uid, folder) already exists. Returns the stored message
// when it was newly inserted, nil otherwise.
func (n *Normalizer) ProcessAccountMessage(ctx context.Context, account *model.MailboxAccount, raw *imapclient.RawMessage, folder string) (*model.CanonicalMessage, error) {
	exists, err := n.messages.ExistsByIMAPKey(ctx, account.ID, raw.UID, folder)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	msg := n.buildMessage(raw, time.Now())
	msg.OrganizationID = account.OrganizationID
	msg.AccountID = account.ID
	msg.IMAPUID = raw.UID
	msg.IMAPFolder = folder
	msg.MessageType = ClassifyMessageType(folder, msg.FromAddress, account.Email)

	return n.insert(ctx, msg)
}

// ProcessChannelMessage persists one channel-synced message unless its dedup
// key already exists: (channelId, messageId), falling back to
// (subject, fromAddress, sentAt) when the message has no Message-Id.
func (n *Normalizer) ProcessChannelMessage(ctx context.Context, channel *model.CommunicationChannel, raw *imapclient.RawMessage) (*model.CanonicalMessage, error) {
	var exists bool
	var err error
	if raw.MessageID != "" {
		exists, err = n.messages.ExistsByChannelMessageID(ctx, channel.ID, raw.MessageID)
	} else {
		exists, err = n.messages.ExistsByFallbackKey(ctx, channel.ID, truncate(raw.Subject, maxSubjectLength), ExtractEmailAddress(raw.From), raw.Date)
	}
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	msg := n.buildMessage(raw, time.Now())
	msg.OrganizationID = channel.OrganizationID
	msg.ChannelID = channel.ID
	msg.MessageType = ClassifyMessageType("INBOX", msg.FromAddress, channel.EmailAddress)

	return n.insert(ctx, msg)
}

func (n *Normalizer) insert(ctx context.Context, msg *model.CanonicalMessage) (*model.CanonicalMessage, error) {
	inserted, err := n.messages.Insert(ctx, msg)
	if err != nil {
		if util.IsUniqueViolation(err) {
			// A concurrent writer beat us to the dedup key.
			return nil, nil
		}
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	return msg, nil
}

func (n *Normalizer) buildMessage(raw *imapclient.RawMessage, now time.Time) *model.CanonicalMessage {
	urgency := UrgencyScore(raw, now)

	msg := &model.CanonicalMessage{
		ID:            uuid.NewString(),
		MessageID:     raw.MessageID,
		InReplyTo:     raw.InReplyTo,
		References:    raw.References,
		Subject:       truncate(raw.Subject, maxSubjectLength),
		Content:       raw.TextBody,
		HTMLContent:   raw.HTMLBody,
		FromAddress:   ExtractEmailAddress(raw.From),
		FromName:      ExtractDisplayName(raw.From),
		CCAddress:     extractAddresses(raw.CC),
		BCCAddress:    extractAddresses(raw.BCC),
		IsRead:        hasFlag(raw.Flags, `\Seen`),
		IsStarred:     hasFlag(raw.Flags, `\Flagged`),
		UrgencyScore:  urgency,
		ActionNeeded:  urgency > actionNeededThreshold,
		NeedsResponse: needsResponse(raw),
		SentAt:        raw.Date,
		ReceivedAt:    now,
	}
	if len(raw.To) > 0 {
		msg.ToAddress = ExtractEmailAddress(raw.To[0])
	}

	msg.Attachments = make([]model.Attachment, 0, len(raw.Attachments))
	for _, att := range raw.Attachments {
		content := att.Content
		if content == nil {
			content = []byte{}
		}
		msg.Attachments = append(msg.Attachments, model.Attachment{
			ID:          uuid.NewString(),
			MessageID:   msg.ID,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        len(content),
			ContentID:   att.ContentID,
			Content:     content,
		})
	}

	return msg
}

// UrgencyScore computes the triage heuristic on a [0,1] scale: base score,
// one keyword bonus, flag/priority bonuses, and a tiered recency bonus.
func UrgencyScore(raw *imapclient.RawMessage, now time.Time) float64 {
	score := urgencyBase

	haystack := strings.ToLower(raw.Subject + " " + raw.TextBody)
	for _, keyword := range urgentKeywords {
		if strings.Contains(haystack, keyword) {
			score += urgencyKeywordBonus
			break
		}
	}

	if hasFlag(raw.Flags, `\Flagged`) {
		score += urgencyFlaggedBonus
	}
	if priority := raw.Headers["X-Priority"]; strings.HasPrefix(priority, "1") {
		score += urgencyPriorityBonus
	}

	if !raw.Date.IsZero() {
		age := now.Sub(raw.Date)
		switch {
		case age < time.Hour:
			score += urgencyRecencyUnderHour
		case age < 24*time.Hour:
			score += urgencyRecencyUnderDay
		case age < 72*time.Hour:
			score += urgencyRecencyUnder3Days
		}
	}

	if score > urgencyMax {
		score = urgencyMax
	}
	return score
}

// ClassifyMessageType derives INBOX/SENT/DRAFT from the folder name and
// the sender address.
func ClassifyMessageType(folder, fromAddress, accountEmail string) model.MessageType {
	lower := strings.ToLower(folder)
	if strings.Contains(lower, "sent") {
		return model.MessageTypeSent
	}
	if strings.Contains(lower, "draft") {
		return model.MessageTypeDraft
	}
	if accountEmail != "" && strings.EqualFold(fromAddress, accountEmail) {
		return model.MessageTypeSent
	}
	return model.MessageTypeInbox
}

// ExtractEmailAddress pulls the address out of an RFC 5322 style
// `Name <addr>` string, falling back to the trimmed raw string.
func ExtractEmailAddress(input string) string {
	if open := strings.LastIndex(input, "<"); open != -1 {
		if end := strings.Index(input[open:], ">"); end != -1 {
			return strings.TrimSpace(input[open+1 : open+end])
		}
	}
	return strings.TrimSpace(input)
}

// ExtractDisplayName pulls the display name out of a `Name <addr>` string,
// or "" when there is none.
func ExtractDisplayName(input string) string {
	open := strings.LastIndex(input, "<")
	if open == -1 {
		return ""
	}
	name := strings.TrimSpace(input[:open])
	name = strings.Trim(name, `"'`)
	return strings.TrimSpace(name)
}

func extractAddresses(inputs []string) []string {
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, ExtractEmailAddress(in))
	}
	return out
}

func needsResponse(raw *imapclient.RawMessage) bool {
	content := strings.ToLower(raw.TextBody)
	for _, keyword := range responseKeywords {
		if strings.Contains(content, keyword) {
			return true
		}
	}
	return false
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
