package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "crmsync/contracts/mq"
	"crmsync/internal/service/sync"
	"crmsync/pkg/mq"
	"crmsync/pkg/util"
)

const maxRetries = 5

// RoutingKeySyncRequested triggers an asynchronous sync run.
const RoutingKeySyncRequested = "email.sync.requested"

// SyncRequestHandler consumes sync requests off the events exchange.
// Retryable failures are nacked back to the queue; after maxRetries the
// request goes to the DLQ and is acked.
type SyncRequestHandler struct {
	orchestrator  *sync.Orchestrator
	coordinator   *sync.Coordinator
	channelSyncer *sync.ChannelSyncer
	retryCounter  *util.RetryCounter
	publisher     *mq.Publisher
	logger        *zap.Logger
}

func NewSyncRequestHandler(
	orchestrator *sync.Orchestrator,
	coordinator *sync.Coordinator,
	channelSyncer *sync.ChannelSyncer,
	retryCounter *util.RetryCounter,
	publisher *mq.Publisher,
	logger *zap.Logger,
) *SyncRequestHandler {
	return &SyncRequestHandler{
		orchestrator:  orchestrator,
		coordinator:   coordinator,
		channelSyncer: channelSyncer,
		retryCounter:  retryCounter,
		publisher:     publisher,
		logger:        logger,
	}
}

func (h *SyncRequestHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var payload mqcontracts.SyncRequestedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// bad JSON never becomes valid, straight to DLQ
		h.logger.Error("Invalid SyncRequestedPayload, sending to DLQ",
			zap.String("raw", string(raw)),
			zap.Error(err),
		)
		h.sendToDLQ(raw, err)
		return nil
	}

	subject := payload.AccountID
	if subject == "" {
		subject = payload.OrganizationID
	}
	if subject == "" {
		subject = payload.ChannelID
	}
	if subject == "" {
		h.logger.Error("SyncRequestedPayload names no subject, sending to DLQ",
			zap.String("raw", string(raw)),
		)
		h.sendToDLQ(raw, fmt.Errorf("empty sync request"))
		return nil
	}

	retryKey := util.FormatRetryKey("sync", subject)
	retryCount, _ := h.retryCounter.IncrementAndGet(ctx, retryKey)
	if retryCount > maxRetries {
		h.logger.Error("Sync request exhausted retries, sending to DLQ",
			zap.String("subject", subject),
			zap.Int64("retries", retryCount),
		)
		h.sendToDLQ(raw, fmt.Errorf("exhausted %d retries", maxRetries))
		h.retryCounter.Reset(ctx, retryKey) //nolint:errcheck
		return nil
	}

	if err := h.dispatch(ctx, payload); err != nil {
		isRetryable, errType := util.IsRetryableError(err)
		h.logger.Error("Sync request failed",
			zap.String("subject", subject),
			zap.String("error_type", errType),
			zap.Bool("retryable", isRetryable),
			zap.Int64("retry", retryCount),
			zap.Error(err),
		)
		if !isRetryable {
			h.sendToDLQ(raw, err)
			h.retryCounter.Reset(ctx, retryKey) //nolint:errcheck
			return nil
		}
		return err // nack, MQ retries
	}

	h.retryCounter.Reset(ctx, retryKey) //nolint:errcheck
	return nil
}

func (h *SyncRequestHandler) dispatch(ctx context.Context, payload mqcontracts.SyncRequestedPayload) error {
	opts := sync.Options{
		Limit:      payload.Limit,
		Folders:    payload.Folders,
		ForceSync:  payload.ForceSync,
		MarkAsRead: payload.MarkAsRead,
	}

	switch {
	case payload.AccountID != "":
		_, err := h.orchestrator.SyncAccount(ctx, payload.AccountID, opts)
		return err
	case payload.ChannelID != "":
		_, err := h.channelSyncer.SyncChannel(ctx, payload.ChannelID)
		return err
	default:
		_, err := h.coordinator.SyncOrganizationAccounts(ctx, payload.OrganizationID, opts)
		return err
	}
}

func (h *SyncRequestHandler) sendToDLQ(raw json.RawMessage, cause error) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishToDLQ(RoutingKeySyncRequested, raw, cause.Error()); err != nil {
		h.logger.Error("Failed to publish to DLQ", zap.Error(err))
	}
}
