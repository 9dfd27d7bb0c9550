package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/session"
	"github.com/nisfix-tools/authcore/internal/store"
)

// SessionHandler binds SessionService over HTTP (spec section 4.5).
type SessionHandler struct {
	sessions *session.Service
	store    store.Store
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions *session.Service, st store.Store) *SessionHandler {
	return &SessionHandler{sessions: sessions, store: st}
}

// List handles GET /session, gated by RequireSession, returning every
// session belonging to the caller's account.
func (h *SessionHandler) List(c *gin.Context) {
	sess := SessionFromContext(c)
	list, err := h.store.FindSessions(c.Request.Context(), sess.UserID)
	if err != nil {
		RenderError(c, models.DatabaseError("find_sessions", sess.UserID, err))
		return
	}
	c.JSON(http.StatusOK, list)
}

// Logout handles DELETE /session, gated by RequireSession.
func (h *SessionHandler) Logout(c *gin.Context) {
	sess := SessionFromContext(c)
	if err := h.sessions.Logout(c.Request.Context(), sess); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Revoke handles DELETE /session/:id, gated by RequireSession.
func (h *SessionHandler) Revoke(c *gin.Context) {
	sess := SessionFromContext(c)
	if err := h.sessions.Revoke(c.Request.Context(), c.Param("id"), sess); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type revokeAllRequest struct {
	RevokeSelf bool `json:"revoke_self"`
}

// RevokeAll handles DELETE /session/all, gated by RequireSession.
func (h *SessionHandler) RevokeAll(c *gin.Context) {
	sess := SessionFromContext(c)
	var req revokeAllRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.sessions.RevokeAll(c.Request.Context(), sess.UserID, sess, req.RevokeSelf); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type editSessionRequest struct {
	FriendlyName string `json:"friendly_name" binding:"required"`
}

// Edit handles PATCH /session/:id, gated by RequireSession.
func (h *SessionHandler) Edit(c *gin.Context) {
	sess := SessionFromContext(c)
	var req editSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, models.IncorrectData("friendly_name"))
		return
	}
	updated, err := h.sessions.Edit(c.Request.Context(), c.Param("id"), req.FriendlyName, sess)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
