package model

import "time"

type ChannelType string

const (
	ChannelTypeEmail ChannelType = "EMAIL"
	ChannelTypeSlack ChannelType = "SLACK"
)

// CommunicationChannel is the platform's generic endpoint abstraction.
// For EMAIL channels Config is a free-form blob mapped onto an IMAP
// configuration by the sync service (legacy key aliases included).
type CommunicationChannel struct {
	ID             string
	OrganizationID string
	Name           string
	Type           ChannelType
	EmailAddress   string
	IsActive       bool
	Config         map[string]interface{}
	LastSyncAt     *time.Time
	CreatedAt      time.Time
}
