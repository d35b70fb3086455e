package mq

import "time"

// MessageSyncedPayload is published on routing key "email.message.synced"
// for every newly persisted mailbox message. Downstream consumers (pipeline
// rules, notifications) key off this event.
type MessageSyncedPayload struct {
	MessageID      string    `json:"message_id"`
	AccountID      string    `json:"account_id,omitempty"`
	ChannelID      string    `json:"channel_id,omitempty"`
	OrganizationID string    `json:"organization_id"`
	Folder         string    `json:"folder,omitempty"`
	Subject        string    `json:"subject"`
	FromAddress    string    `json:"from_address"`
	MessageType    string    `json:"message_type"`
	UrgencyScore   float64   `json:"urgency_score"`
	SyncedAt       time.Time `json:"synced_at"`
}
