package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/nisfix-tools/authcore/internal/mfa"
	"github.com/nisfix-tools/authcore/internal/session"
)

// Handlers bundles the four per-subsystem handlers NewRouter wires onto a
// *gin.Engine, grounded on the teacher's cmd/server/main.go
// handler-construction-then-RegisterRoutes shape.
type Handlers struct {
	Account *AccountHandler
	Session *SessionHandler
	MFA     *MFAHandler
	SSO     *SSOHandler
}

// NewRouter builds the Gin engine: global middleware, then one route group
// per subsystem, following the teacher's router.Use(...)/apiV1.Group(...)
// layering in cmd/server/main.go.
func NewRouter(h Handlers, sessions *session.Service, tickets *mfa.Service, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(Recovery())
	router.Use(RequestID())
	router.Use(Logger())
	router.Use(CORS(allowedOrigins))
	router.Use(SecureHeaders())

	router.GET("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	requireSession := RequireSession(sessions)
	requireTicket := RequireMFATicket(tickets)
	requireValidatedTicket := RequireValidatedTicket(tickets)

	account := router.Group("/account")
	{
		account.POST("/register", h.Account.Register)
		account.POST("/verify/:token", h.Account.VerifyEmail)
		account.POST("/resend_verification", h.Account.ResendVerification)
		account.POST("/reset_password", h.Account.RequestPasswordReset)
		account.PATCH("/reset_password/:token", h.Account.CompletePasswordReset)
		account.POST("/move", requireSession, h.Account.StartMove)
		account.POST("/delete", requireValidatedTicket, h.Account.StartAccountDeletion)
		account.POST("/delete/:token", h.Account.ConfirmDeletion)
		account.POST("/disable", requireValidatedTicket, h.Account.Disable)
	}

	sessionGroup := router.Group("/session")
	{
		sessionGroup.POST("/login", h.Account.Login)
		sessionGroup.POST("/login/ticket", h.Account.LoginWithTicket)
		sessionGroup.GET("", requireSession, h.Session.List)
		sessionGroup.DELETE("", requireSession, h.Session.Logout)
		sessionGroup.DELETE("/all", requireSession, h.Session.RevokeAll)
		sessionGroup.DELETE("/:id", requireSession, h.Session.Revoke)
		sessionGroup.PATCH("/:id", requireSession, h.Session.Edit)
	}

	mfaGroup := router.Group("/mfa")
	{
		// GenerateTOTPSecret, DisableTOTP and GenerateRecoveryCodes each
		// require a freshly validated MFA ticket in addition to a session,
		// matching totp_generate_secret.rs/totp_disable.rs/fetch_recovery.rs's
		// (account: Account, _ticket: ValidatedTicket) guards - EnableTOTP
		// (confirming a secret just generated in this same reauth window)
		// does not carry that second guard upstream.
		mfaGroup.POST("/totp", requireSession, requireValidatedTicket, h.MFA.GenerateTOTPSecret)
		mfaGroup.PUT("/totp", requireSession, h.MFA.EnableTOTP)
		mfaGroup.DELETE("/totp", requireSession, requireValidatedTicket, h.MFA.DisableTOTP)
		mfaGroup.POST("/recovery_codes", requireSession, requireValidatedTicket, h.MFA.GenerateRecoveryCodes)
		mfaGroup.POST("/ticket/validate", requireTicket, h.MFA.ValidateTicket)
	}

	ssoGroup := router.Group("/sso")
	{
		ssoGroup.GET("/:idp/authorize", h.SSO.Authorize)
		ssoGroup.GET("/:idp/callback", h.SSO.Callback)
	}

	return router
}
