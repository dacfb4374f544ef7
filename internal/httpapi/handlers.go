package httpapi

import (
	"context"
	"net/http"
	"time"

	"pbx-console/internal/audit"
	"pbx-console/internal/auth"
	"pbx-console/internal/directory"
	"pbx-console/internal/livecalls"
	"pbx-console/internal/poller"
	"pbx-console/internal/rbac"
	"pbx-console/internal/stream"
	"pbx-console/internal/telephony"
	"pbx-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Commander issues call-control commands against the switch.
// *telephony.Client satisfies it; tests inject fakes.
type Commander interface {
	Hangup(ctx context.Context, channel string) error
	Transfer(ctx context.Context, channel, destination string) error
}

// CommandLog reads back recent audited commands for one account.
type CommandLog interface {
	Recent(ctx context.Context, accountCode string, limit int) ([]audit.Event, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Poller    *poller.Poller
	Commander Commander
	Audit     *audit.Service
	Commands  CommandLog
	Directory directory.Repo
	Durations *livecalls.DurationTracker
	Hub       *stream.Hub
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id"`
	AccountCode string `json:"account_code"`
	Role        string `json:"role"`
	Extension   string `json:"extension"`
}

// Login issues an access token.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.AccountCode == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, account_code, role required"})
		return
	}
	if req.Role == rbac.RoleAgent && req.Extension == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "extension required for agent logins"})
		return
	}
	tok, err := h.Auth.Issue(time.Now(), req.UserID, req.AccountCode, req.Role, req.Extension)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok})
}

// --- Live calls ---

// accountLegs reconciles the latest poller snapshot down to one account. An
// empty extension keeps every leg of the account.
func (h Handlers) accountLegs(accountCode, extension string) ([]livecalls.Leg, poller.Snapshot) {
	snap := h.Poller.Snapshot()
	return livecalls.Reconcile(snap.Legs, accountCode, extension), snap
}

// ActiveCalls returns the caller's live legs with stats, duplicates and
// directory names. Agents only ever see their own extension.
func (h Handlers) ActiveCalls(c *gin.Context) {
	accountCode, err := auth.AccountCode(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_code required"})
		return
	}
	role, _ := auth.Role(c.Request.Context())
	extension := ""
	if role == rbac.RoleAgent {
		extension = auth.Extension(c.Request.Context())
	}

	legs, snap := h.accountLegs(accountCode, extension)

	extensions := make([]string, 0, len(legs))
	for _, l := range legs {
		extensions = append(extensions, l.Extension)
	}
	names := directory.Decorate(c.Request.Context(), h.Directory, accountCode, extensions)

	c.JSON(http.StatusOK, gin.H{
		"legs":       toLegViews(legs, h.Durations, names),
		"stats":      livecalls.Stats(legs),
		"duplicates": toDuplicateViews(livecalls.FindDuplicates(legs)),
		"poller":     toPollerView(snap),
	})
}

// CallStats returns only the aggregate counters for the caller's account.
func (h Handlers) CallStats(c *gin.Context) {
	accountCode, err := auth.AccountCode(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_code required"})
		return
	}
	legs, _ := h.accountLegs(accountCode, "")
	c.JSON(http.StatusOK, livecalls.Stats(legs))
}

// --- Commands ---

type hangupRequest struct {
	Channel string `json:"channel"`
}

type transferRequest struct {
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
}

// ownsChannel reports whether the channel belongs to the caller's current
// snapshot. Admins may target any channel the poller has seen.
func (h Handlers) ownsChannel(c *gin.Context, channel string) bool {
	role, _ := auth.Role(c.Request.Context())
	snap := h.Poller.Snapshot()
	if rbac.IsAdmin(role) {
		for _, l := range snap.Legs {
			if l.Channel == channel {
				return true
			}
		}
		return false
	}
	accountCode, err := auth.AccountCode(c.Request.Context())
	if err != nil {
		return false
	}
	extension := ""
	if role == rbac.RoleAgent {
		extension = auth.Extension(c.Request.Context())
	}
	for _, l := range livecalls.Reconcile(snap.Legs, accountCode, extension) {
		if l.Channel == channel {
			return true
		}
	}
	return false
}

func (h Handlers) Hangup(c *gin.Context) {
	var req hangupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "channel required"})
		return
	}
	if !h.ownsChannel(c, req.Channel) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	err := h.Commander.Hangup(c.Request.Context(), req.Channel)
	h.recordCommand(c, audit.EventTypeHangup, req.Channel, "", err)
	h.respondCommand(c, err)
}

func (h Handlers) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" || req.Destination == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "channel and destination required"})
		return
	}
	if !h.ownsChannel(c, req.Channel) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	err := h.Commander.Transfer(c.Request.Context(), req.Channel, req.Destination)
	h.recordCommand(c, audit.EventTypeTransfer, req.Channel, req.Destination, err)
	h.respondCommand(c, err)
}

// recordCommand audits the attempt best-effort; audit failures never change
// the command response.
func (h Handlers) recordCommand(c *gin.Context, typ audit.EventType, channel, destination string, cmdErr error) {
	if h.Audit == nil {
		return
	}
	accountCode, _ := auth.AccountCode(c.Request.Context())
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())

	var err error
	switch typ {
	case audit.EventTypeHangup:
		err = h.Audit.LogHangup(c.Request.Context(), accountCode, userID, role, channel, cmdErr)
	case audit.EventTypeTransfer:
		err = h.Audit.LogTransfer(c.Request.Context(), accountCode, userID, role, channel, destination, cmdErr)
	}
	if err != nil {
		logger.FromGin(c).Warn("command audit failed", "type", string(typ), "err", err)
	}
}

func (h Handlers) respondCommand(c *gin.Context, err error) {
	if err == nil {
		// State changed on the switch; pull a fresh snapshot out of band so
		// the next dashboard read reflects it.
		if h.Poller != nil {
			go func() { _ = h.Poller.Refresh(context.Background()) }()
		}
		c.JSON(http.StatusOK, gin.H{"status": "accepted"})
		return
	}
	if ext, ok := telephony.IsNoActiveChannel(err); ok {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":     "no active channel for extension",
			"extension": ext,
		})
		return
	}
	if telephony.IsAuth(err) {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "switch rejected credentials"})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

// RecentCommands returns the audited command history for the caller's account.
func (h Handlers) RecentCommands(c *gin.Context) {
	if h.Commands == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "command log not configured"})
		return
	}
	accountCode, err := auth.AccountCode(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_code required"})
		return
	}
	events, err := h.Commands.Recent(c.Request.Context(), accountCode, 50)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "command lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": events})
}

// --- Admin ---

// AdminActiveCalls returns the raw snapshot across all accounts.
func (h Handlers) AdminActiveCalls(c *gin.Context) {
	snap := h.Poller.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"legs":   toLegViews(snap.Legs, h.Durations, nil),
		"poller": toPollerView(snap),
	})
}

// AdminDuplicates reports duplicate extensions across the whole deployment.
func (h Handlers) AdminDuplicates(c *gin.Context) {
	snap := h.Poller.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"duplicates": toDuplicateViews(livecalls.FindDuplicates(snap.Legs)),
	})
}

func (h Handlers) AdminPollerState(c *gin.Context) {
	c.JSON(http.StatusOK, toPollerView(h.Poller.Snapshot()))
}

// AdminPollerResume restarts automatic polling after a pause or failure.
func (h Handlers) AdminPollerResume(c *gin.Context) {
	h.Poller.Resume()
	c.JSON(http.StatusOK, toPollerView(h.Poller.Snapshot()))
}

// AdminPollerRefresh forces one immediate fetch and reports the result.
func (h Handlers) AdminPollerRefresh(c *gin.Context) {
	if err := h.Poller.Refresh(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"poller": toPollerView(h.Poller.Snapshot()),
		})
		return
	}
	c.JSON(http.StatusOK, toPollerView(h.Poller.Snapshot()))
}

// --- Stream ---

// StreamCalls upgrades to a WebSocket pinned to the caller's account.
func (h Handlers) StreamCalls(c *gin.Context) {
	if h.Hub == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stream not configured"})
		return
	}
	accountCode, err := auth.AccountCode(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_code required"})
		return
	}
	h.Hub.Serve(c.Writer, c.Request, accountCode)
}

// Convenience middleware bundles.

func RequireAccountAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireAccount(), rbac.RequireAnyRole(roles...)}
}
