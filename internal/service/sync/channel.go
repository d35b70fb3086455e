package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"crmsync/internal/imapclient"
	"crmsync/internal/model"
)

const defaultChannelFetchLimit = 100

// ChannelSyncer pulls unseen INBOX mail for EMAIL communication channels.
// Channel config is a free-form blob; ChannelIMAPConfig maps it onto a
// connection configuration, accepting the legacy key aliases.
type ChannelSyncer struct {
	channels   ChannelStore
	normalizer *Normalizer
	dialer     Dialer
	logger     *zap.Logger

	connectTimeout time.Duration
	opTimeout      time.Duration
	fetchLimit     int
}

func NewChannelSyncer(channels ChannelStore, normalizer *Normalizer, dialer Dialer, logger *zap.Logger, connectTimeout, opTimeout time.Duration) *ChannelSyncer {
	return &ChannelSyncer{
		channels:       channels,
		normalizer:     normalizer,
		dialer:         dialer,
		logger:         logger,
		connectTimeout: connectTimeout,
		opTimeout:      opTimeout,
		fetchLimit:     defaultChannelFetchLimit,
	}
}

// SyncChannel fetches unseen INBOX messages for one EMAIL channel. The
// mailbox is opened read-only, so the unseen state survives for other
// consumers of the same mailbox.
func (s *ChannelSyncer) SyncChannel(ctx context.Context, channelID string) (*ChannelSyncResult, error) {
	start := time.Now()

	channel, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("load channel %s: %w", channelID, err)
	}
	if !channel.IsActive {
		return nil, fmt.Errorf("channel %s is not active", channelID)
	}
	if channel.Type != model.ChannelTypeEmail {
		return nil, fmt.Errorf("channel %s is not an email channel", channelID)
	}

	cfg, err := ChannelIMAPConfig(channel.Config)
	if err != nil {
		return nil, fmt.Errorf("channel %s config: %w", channelID, err)
	}

	result := &ChannelSyncResult{ChannelID: channelID, Errors: []string{}}

	session, err := s.dialer.Dial(cfg, s.connectTimeout, s.opTimeout)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("connect failed: %v", err))
		result.Duration = time.Since(start)
		s.logger.Warn("Channel sync failed to connect",
			zap.String("channelId", channelID),
			zap.String("host", cfg.Host),
			zap.Error(err),
		)
		return result, nil
	}
	defer session.Close()

	if err := session.SelectFolder("INBOX", true); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("open INBOX: %v", err))
		result.Duration = time.Since(start)
		return result, nil
	}

	uids, err := session.Search(imapclient.Criteria{Unseen: true})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("search: %v", err))
		result.Duration = time.Since(start)
		return result, nil
	}

	if len(uids) > 0 {
		raws, err := session.Fetch(uids, s.fetchLimit)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("fetch: %v", err))
		}
		for _, raw := range raws {
			result.MessagesProcessed++
			msg, err := s.normalizer.ProcessChannelMessage(ctx, channel, raw)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("uid %d: %v", raw.UID, err))
				continue
			}
			if msg != nil {
				result.NewMessages++
			}
		}
	}

	result.Success = true
	result.Duration = time.Since(start)

	if err := s.channels.UpdateLastSync(ctx, channelID, time.Now()); err != nil {
		s.logger.Warn("Failed to update channel sync timestamp",
			zap.String("channelId", channelID),
			zap.Error(err),
		)
	}

	s.logger.Info("Channel sync finished",
		zap.String("channelId", channelID),
		zap.Int("processed", result.MessagesProcessed),
		zap.Int("new", result.NewMessages),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// SyncAllEmailChannels syncs every active EMAIL channel of the
// organization sequentially. A failing channel is reported in its own
// result and never stops the rest.
func (s *ChannelSyncer) SyncAllEmailChannels(ctx context.Context, organizationID string) ([]ChannelSyncResult, error) {
	channels, err := s.channels.ListActiveEmailByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list channels for organization %s: %w", organizationID, err)
	}

	results := make([]ChannelSyncResult, 0, len(channels))
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			results = append(results, ChannelSyncResult{
				ChannelID: ch.ID,
				Errors:    []string{"sync cancelled"},
			})
			continue
		}
		res, err := s.SyncChannel(ctx, ch.ID)
		if err != nil {
			results = append(results, ChannelSyncResult{
				ChannelID: ch.ID,
				Errors:    []string{err.Error()},
			})
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// ChannelIMAPConfig maps a channel's config blob onto an IMAP connection
// configuration. Accepted keys: host (required), port, secure/useSSL,
// user/username, password (required). Secure defaults to true; port
// defaults to 993 (TLS) or 143.
func ChannelIMAPConfig(config map[string]interface{}) (imapclient.Config, error) {
	host := stringValue(config, "host")
	if host == "" {
		return imapclient.Config{}, fmt.Errorf("missing host")
	}

	password := stringValue(config, "password")
	if password == "" {
		return imapclient.Config{}, fmt.Errorf("missing password")
	}

	user := stringValue(config, "user")
	if user == "" {
		user = stringValue(config, "username")
	}

	secure := true
	if v, ok := boolValue(config, "secure"); ok {
		secure = v
	} else if v, ok := boolValue(config, "useSSL"); ok {
		secure = v
	}

	port := intValue(config, "port")
	if port == 0 {
		if secure {
			port = 993
		} else {
			port = 143
		}
	}

	return imapclient.Config{
		Host:     host,
		Port:     port,
		TLS:      secure,
		User:     user,
		Password: password,
	}, nil
}

func stringValue(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolValue(m map[string]interface{}, key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

// intValue tolerates float64 because JSON decoding stores numbers that way.
func intValue(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
