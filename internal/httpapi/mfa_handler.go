package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nisfix-tools/authcore/internal/mfa"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/store"
)

// MFAHandler binds MFAService over HTTP: TOTP enrollment, recovery codes,
// and the ticket-validation step that promotes an UnvalidatedTicket to a
// ValidatedTicket (spec section 4.6/9).
type MFAHandler struct {
	mfa   *mfa.Service
	store store.Store
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(m *mfa.Service, st store.Store) *MFAHandler {
	return &MFAHandler{mfa: m, store: st}
}

func (h *MFAHandler) accountFromSession(c *gin.Context) *models.Account {
	sess := SessionFromContext(c)
	acc, err := h.store.FindAccount(c.Request.Context(), sess.UserID)
	if err != nil {
		RenderError(c, models.DatabaseError("find_account", sess.UserID, err))
		return nil
	}
	return acc
}

// GenerateTOTPSecret handles POST /mfa/totp, gated by RequireSession and
// RequireValidatedTicket.
func (h *MFAHandler) GenerateTOTPSecret(c *gin.Context) {
	acc := h.accountFromSession(c)
	if acc == nil {
		return
	}
	secret, err := h.mfa.GenerateTOTPSecret(c.Request.Context(), acc)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret})
}

type totpResponseRequest struct {
	Response string `json:"response" binding:"required"`
}

// EnableTOTP handles PUT /mfa/totp, gated by RequireSession.
func (h *MFAHandler) EnableTOTP(c *gin.Context) {
	acc := h.accountFromSession(c)
	if acc == nil {
		return
	}
	var req totpResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, models.IncorrectData("response"))
		return
	}
	if err := h.mfa.EnableTOTP(c.Request.Context(), acc, req.Response); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DisableTOTP handles DELETE /mfa/totp, gated by RequireSession and
// RequireValidatedTicket.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	acc := h.accountFromSession(c)
	if acc == nil {
		return
	}
	if err := h.mfa.DisableTOTP(c.Request.Context(), acc); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerateRecoveryCodes handles POST /mfa/recovery_codes, gated by
// RequireSession and RequireValidatedTicket.
func (h *MFAHandler) GenerateRecoveryCodes(c *gin.Context) {
	acc := h.accountFromSession(c)
	if acc == nil {
		return
	}
	codes, err := h.mfa.GenerateRecoveryCodes(c.Request.Context(), acc)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recovery_codes": codes})
}

type mfaValidateRequest struct {
	Password     string `json:"password,omitempty"`
	RecoveryCode string `json:"recovery_code,omitempty"`
	TotpCode     string `json:"totp_code,omitempty"`
}

// ValidateTicket handles POST /mfa/ticket/validate, gated by
// RequireMFATicket (an UnvalidatedTicket suffices here - this is the
// operation that produces a ValidatedTicket per spec section 4.6's state
// diagram). On success the ticket is marked Validated and persisted so a
// subsequent RequireValidatedTicket call accepts it.
func (h *MFAHandler) ValidateTicket(c *gin.Context) {
	ticket := TicketFromContext(c)

	acc, err := h.store.FindAccount(c.Request.Context(), ticket.AccountID)
	if err != nil {
		RenderError(c, models.DatabaseError("find_account", ticket.AccountID, err))
		return
	}

	var req mfaValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, models.IncorrectData("body"))
		return
	}

	response := mfa.Response{
		Password:     req.Password,
		RecoveryCode: req.RecoveryCode,
		TotpCode:     req.TotpCode,
	}
	if err := h.mfa.ConsumeMFAResponse(c.Request.Context(), acc, response, ticket); err != nil {
		RenderError(c, err)
		return
	}

	ticket.Validated = true
	if err := h.store.SaveTicket(c.Request.Context(), ticket); err != nil {
		RenderError(c, models.DatabaseError("save_ticket", ticket.ID, err))
		return
	}
	c.Status(http.StatusNoContent)
}
