package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crmsync/internal/imapclient"
	"crmsync/internal/service/sync"
	"crmsync/pkg/logger"
)

const verifyTimeout = 10 * time.Second

type SyncHandler struct {
	orchestrator  *sync.Orchestrator
	coordinator   *sync.Coordinator
	channelSyncer *sync.ChannelSyncer
	dialer        sync.Dialer
	logger        *zap.Logger
}

func NewSyncHandler(
	orchestrator *sync.Orchestrator,
	coordinator *sync.Coordinator,
	channelSyncer *sync.ChannelSyncer,
	dialer sync.Dialer,
	logger *zap.Logger,
) *SyncHandler {
	return &SyncHandler{
		orchestrator:  orchestrator,
		coordinator:   coordinator,
		channelSyncer: channelSyncer,
		dialer:        dialer,
		logger:        logger,
	}
}

type syncRequest struct {
	Limit      int      `json:"limit"`
	Folders    []string `json:"folders"`
	ForceSync  bool     `json:"forceSync"`
	MarkAsRead bool     `json:"markAsRead"`
}

func (r syncRequest) options() sync.Options {
	return sync.Options{
		Limit:      r.Limit,
		Folders:    r.Folders,
		ForceSync:  r.ForceSync,
		MarkAsRead: r.MarkAsRead,
	}
}

// SyncAccount handles POST /accounts/:id/sync
func (h *SyncHandler) SyncAccount(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	result, err := h.orchestrator.SyncAccount(c.Request.Context(), c.Param("id"), req.options())
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Warn("Account sync rejected",
			zap.String("accountId", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// VerifyAccount handles POST /accounts/:id/verify
func (h *SyncHandler) VerifyAccount(c *gin.Context) {
	ok, err := h.orchestrator.VerifyAccount(c.Request.Context(), c.Param("id"), verifyTimeout)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accountId": c.Param("id"), "reachable": ok})
}

// SyncAll handles POST /sync-all
func (h *SyncHandler) SyncAll(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	summary, err := h.coordinator.SyncAllAccounts(c.Request.Context(), req.options())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch sync failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// SyncOrganization handles POST /organizations/:id/sync
func (h *SyncHandler) SyncOrganization(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	summary, err := h.coordinator.SyncOrganizationAccounts(c.Request.Context(), c.Param("id"), req.options())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch sync failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// SyncChannel handles POST /channels/:id/sync
func (h *SyncHandler) SyncChannel(c *gin.Context) {
	result, err := h.channelSyncer.SyncChannel(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// SyncOrganizationChannels handles POST /organizations/:id/channels/sync
func (h *SyncHandler) SyncOrganizationChannels(c *gin.Context) {
	results, err := h.channelSyncer.SyncAllEmailChannels(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "channel sync failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// TestConnection handles POST /test-connection. It probes an IMAP endpoint
// with caller-supplied settings without touching stored accounts.
func (h *SyncHandler) TestConnection(c *gin.Context) {
	var req struct {
		Host     string `json:"host" binding:"required"`
		Port     int    `json:"port"`
		Secure   *bool  `json:"secure"`
		User     string `json:"user"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	secure := true
	if req.Secure != nil {
		secure = *req.Secure
	}
	port := req.Port
	if port == 0 {
		if secure {
			port = 993
		} else {
			port = 143
		}
	}

	ok := h.dialer.Test(imapclient.Config{
		Host:     req.Host,
		Port:     port,
		TLS:      secure,
		User:     req.User,
		Password: req.Password,
	}, verifyTimeout)

	c.JSON(http.StatusOK, gin.H{"reachable": ok})
}

// Cleanup handles POST /cleanup
func (h *SyncHandler) Cleanup(c *gin.Context) {
	var req struct {
		RetentionDays int `json:"retentionDays"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}
	if req.RetentionDays <= 0 {
		req.RetentionDays = 90
	}

	deleted, err := h.orchestrator.CleanupOldMessages(c.Request.Context(), req.RetentionDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
