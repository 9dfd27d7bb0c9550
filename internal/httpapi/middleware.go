package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nisfix-tools/authcore/internal/mfa"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/session"
)

// Context keys the guards below stash their resolved value under, and the
// handlers in this package read back. Named the way the teacher's
// middleware.ContextKey* constants are (internal/middleware/common.go).
const (
	ContextKeyRequestID = "request_id"
	ContextKeySession   = "session"
	ContextKeyTicket    = "mfa_ticket"
)

// headerSessionToken and headerMFATicket are the two headers spec section 6
// names: "X-Session-Token (session token), X-MFA-Ticket (ticket token).
// Absence where required -> MissingHeaders."
const (
	headerSessionToken = "X-Session-Token"
	headerMFATicket    = "X-MFA-Ticket"
)

// RequestID stamps every request with a correlation id, grounded verbatim
// on the teacher's internal/middleware/common.go RequestID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Recovery converts a panic into a 500 InternalError envelope rather than
// crashing the process, grounded on the teacher's Recovery middleware.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, _ interface{}) {
		c.JSON(500, models.ErrInternalError)
	})
}

// SecureHeaders mirrors the teacher's internal/middleware/common.go
// SecureHeaders verbatim.
func SecureHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// CORS configures cross-origin access, grounded on the teacher's
// internal/middleware/common.go CORS.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed[origin] || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, "+headerSessionToken+", "+headerMFATicket+", X-Request-ID")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// Logger emits one access-log line per request, grounded on the teacher's
// internal/middleware/common.go Logger but trimmed to plain log.Printf
// shape (SPEC_FULL.md's Ambient Stack: no structured logging library).
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logRequest(c, time.Since(start))
	}
}

// RequireSession resolves the X-Session-Token header into a *models.Session
// stashed at ContextKeySession (spec section 9's Session request guard),
// aborting with MissingHeaders or the Session service's own InvalidSession
// on failure.
func RequireSession(sessions *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(headerSessionToken)
		if token == "" {
			RenderError(c, models.ErrMissingHeaders)
			c.Abort()
			return
		}
		sess, err := sessions.FindByToken(c.Request.Context(), token)
		if err != nil {
			RenderError(c, err)
			c.Abort()
			return
		}
		c.Set(ContextKeySession, sess)
		c.Next()
	}
}

// RequireMFATicket resolves the X-MFA-Ticket header into a *models.MFATicket
// stashed at ContextKeyTicket (spec section 9's UnvalidatedTicket/
// ValidatedTicket request guards; RequireValidatedTicket further checks
// ticket.Validated where a ValidatedTicket specifically is required).
func RequireMFATicket(tickets *mfa.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(headerMFATicket)
		if token == "" {
			RenderError(c, models.ErrMissingHeaders)
			c.Abort()
			return
		}
		ticket, err := tickets.FindTicketByToken(c.Request.Context(), token)
		if err != nil {
			RenderError(c, err)
			c.Abort()
			return
		}
		c.Set(ContextKeyTicket, ticket)
		c.Next()
	}
}

// RequireValidatedTicket narrows RequireMFATicket's UnvalidatedTicket guard
// down to spec section 9's ValidatedTicket: the ticket must additionally
// have Validated set, proving a prior ConsumeMFAResponse call succeeded
// against it. Matching the original's FromRequest for ValidatedTicket, a
// successful resolution claims (deletes) the ticket unconditionally, so it
// cannot be replayed across two calls. Used ahead of StartAccountDeletion/
// Disable (spec section 4.4) and the reauth-gated MFA management routes
// (spec section 4.6).
func RequireValidatedTicket(tickets *mfa.Service) gin.HandlerFunc {
	inner := RequireMFATicket(tickets)
	return func(c *gin.Context) {
		inner(c)
		if c.IsAborted() {
			return
		}
		ticket := TicketFromContext(c)
		if !ticket.Validated {
			RenderError(c, models.ErrInvalidToken)
			c.Abort()
			return
		}
		if err := tickets.Claim(c.Request.Context(), ticket); err != nil {
			RenderError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// SessionFromContext reads back the value RequireSession stashed.
func SessionFromContext(c *gin.Context) *models.Session {
	v, ok := c.Get(ContextKeySession)
	if !ok {
		return nil
	}
	return v.(*models.Session)
}

// TicketFromContext reads back the value RequireMFATicket stashed.
func TicketFromContext(c *gin.Context) *models.MFATicket {
	v, ok := c.Get(ContextKeyTicket)
	if !ok {
		return nil
	}
	return v.(*models.MFATicket)
}
