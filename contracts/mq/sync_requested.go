package mq

// SyncRequestedPayload asks the worker to run one sync. Exactly one of
// AccountID / OrganizationID / ChannelID is set.
type SyncRequestedPayload struct {
	AccountID      string `json:"account_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	ChannelID      string `json:"channel_id,omitempty"`

	Limit      int      `json:"limit,omitempty"`
	Folders    []string `json:"folders,omitempty"`
	ForceSync  bool     `json:"force_sync,omitempty"`
	MarkAsRead bool     `json:"mark_as_read,omitempty"`
}
