package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nisfix-tools/authcore/internal/account"
	"github.com/nisfix-tools/authcore/internal/mfa"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/policy"
	"github.com/nisfix-tools/authcore/internal/store"
)

// AccountHandler binds AccountService over HTTP, grounded on the teacher's
// internal/handlers/auth_handler.go shape: one thin handler per route,
// delegating validation and business rules entirely to the service.
type AccountHandler struct {
	accounts *account.Service
	store    store.Store
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(accounts *account.Service, st store.Store) *AccountHandler {
	return &AccountHandler{accounts: accounts, store: st}
}

type registerRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	InviteCode string `json:"invite,omitempty"`
	Captcha    string `json:"captcha,omitempty"`
}

// Register handles POST /account/register.
func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, models.IncorrectData("body"))
		return
	}

	input := account.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		InviteCode: req.InviteCode,
		Captcha:    req.Captcha,
		Shield: policy.ShieldValidationInput{
			IP:    c.ClientIP(),
			Email: req.Email,
		},
	}

	acc, err := h.accounts.Register(c.Request.Context(), input)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, acc)
}

// VerifyEmail handles POST /account/verify/:token. A successful first
// verification returns an authorised MFA ticket token the client can
// immediately exchange for a session (spec section 4.4); an email-move
// verification returns 204 with nothing further to claim.
func (h *AccountHandler) VerifyEmail(c *gin.Context) {
	token := c.Param("token")
	ticket, err := h.accounts.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		RenderError(c, err)
		return
	}
	if ticket == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket.Token})
}

type emailOnlyRequest struct {
	Email   string `json:"email" binding:"required"`
	Captcha string `json:"captcha,omitempty"`
}

// ResendVerification handles POST /account/resend_verification. Always
// responds 204 regardless of whether the email is known (spec section 7:
// enumeration-safe).
func (h *AccountHandler) ResendVerification(c *gin.Context) {
	var req emailOnlyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, models.IncorrectData("body"))
		return
	}
	if err := h.accounts.ResendVerification(c.Request.Context(), req.Email, req.Captcha); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestPasswordReset handles POST /account/reset_password. Always
// responds 204 regardless of whether the email is known (spec section 8's
// boundary scenario 6: "reset_password with an unknown email returns 204
// with empty body; with a known email also returns 204").
func (h *AccountHandler) RequestPasswordReset(c *gin.Context) {
	var req emailOnlyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, models.IncorrectData("body"))
		return
	}
	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email, req.Captcha); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type completePasswordResetRequest struct {
	Password string `json:"password" binding:"required"`
}

// CompletePasswordReset handles PATCH /account/reset_password/:token.
func (h *AccountHandler) CompletePasswordReset(c *gin.Context) {
	var req completePasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, models.IncorrectData("body"))
		return
	}
	if err := h.accounts.CompletePasswordReset(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type startMoveRequest struct {
	NewEmail string `json:"new_email" binding:"required"`
}

// StartMove handles POST /account/move, gated by RequireSession so the
// Account request guard (spec section 9) resolves the caller's own record.
func (h *AccountHandler) StartMove(c *gin.Context) {
	sess := SessionFromContext(c)
	acc, err := h.store.FindAccount(c.Request.Context(), sess.UserID)
	if err != nil {
		RenderError(c, models.DatabaseError("find_account", sess.UserID, err))
		return
	}

	var req startMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, models.IncorrectData("body"))
		return
	}

	if err := h.accounts.StartMove(c.Request.Context(), acc, req.NewEmail); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StartAccountDeletion handles POST /account/delete, gated by
// RequireValidatedTicket: spec section 4.4 requires a ValidatedTicket
// before this mutation is accepted.
func (h *AccountHandler) StartAccountDeletion(c *gin.Context) {
	ticket := TicketFromContext(c)
	acc, err := h.store.FindAccount(c.Request.Context(), ticket.AccountID)
	if err != nil {
		RenderError(c, models.DatabaseError("find_account", ticket.AccountID, err))
		return
	}
	if err := h.accounts.StartAccountDeletion(c.Request.Context(), acc); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ConfirmDeletion handles POST /account/delete/:token.
func (h *AccountHandler) ConfirmDeletion(c *gin.Context) {
	if err := h.accounts.ConfirmDeletion(c.Request.Context(), c.Param("token")); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Disable handles POST /account/disable, gated by RequireValidatedTicket
// (spec section 4.4).
func (h *AccountHandler) Disable(c *gin.Context) {
	ticket := TicketFromContext(c)
	acc, err := h.store.FindAccount(c.Request.Context(), ticket.AccountID)
	if err != nil {
		RenderError(c, models.DatabaseError("find_account", ticket.AccountID, err))
		return
	}
	if err := h.accounts.Disable(c.Request.Context(), acc); err != nil {
		RenderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type loginRequest struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	FriendlyName string `json:"friendly_name,omitempty"`
}

// loginResultResponse renders the discriminated union of spec section 6:
// {"result":"Success", ...session} | {"result":"MFA", ticket,
// allowed_methods} | {"result":"Disabled", user_id}.
func loginResultResponse(c *gin.Context, result *account.LoginResult) {
	switch result.Kind {
	case account.LoginSuccess:
		c.JSON(http.StatusOK, gin.H{
			"result":  "Success",
			"session": result.Session,
		})
	case account.LoginMFA:
		c.JSON(http.StatusOK, gin.H{
			"result":          "MFA",
			"ticket":          result.Ticket,
			"allowed_methods": result.AllowedMethods,
		})
	case account.LoginDisabled:
		c.JSON(http.StatusOK, gin.H{
			"result":  "Disabled",
			"user_id": result.UserID,
		})
	}
}

// Login handles POST /session/login.
func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, models.IncorrectData("body"))
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password, req.FriendlyName)
	if err != nil {
		RenderError(c, err)
		return
	}
	loginResultResponse(c, result)
}

type loginWithTicketRequest struct {
	MFATicket    string        `json:"mfa_ticket" binding:"required"`
	FriendlyName string        `json:"friendly_name,omitempty"`
	MFAResponse  *mfaResponseJSON `json:"mfa_response,omitempty"`
}

type mfaResponseJSON struct {
	Password     string `json:"password,omitempty"`
	RecoveryCode string `json:"recovery_code,omitempty"`
	TotpCode     string `json:"totp_code,omitempty"`
}

// LoginWithTicket handles POST /session/login/ticket, completing the
// three-legged MFA exchange (spec section 4.4).
func (h *AccountHandler) LoginWithTicket(c *gin.Context) {
	var req loginWithTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, models.IncorrectData("body"))
		return
	}

	var response *mfa.Response
	if req.MFAResponse != nil {
		response = &mfa.Response{
			Password:     req.MFAResponse.Password,
			RecoveryCode: req.MFAResponse.RecoveryCode,
			TotpCode:     req.MFAResponse.TotpCode,
		}
	}

	result, err := h.accounts.LoginWithTicket(c.Request.Context(), req.MFATicket, response, req.FriendlyName)
	if err != nil {
		RenderError(c, err)
		return
	}
	loginResultResponse(c, result)
}
