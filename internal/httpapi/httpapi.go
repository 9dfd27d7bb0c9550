// Package httpapi is the thin Gin binding layer over the authentication
// core. It is out of scope per spec section 1 ("it does not itself define
// a public web framework") but is contract-bound per section 6 to the
// headers/error-envelope/login-response-union wire semantics, and per
// section 9 to re-express the source's request guards as middleware.
// Grounded on the teacher's internal/handlers + internal/middleware
// packages: thin handlers that delegate to a service and render its error
// through one shared mapping, exactly as internal/handlers/auth_handler.go
// does against services.AuthService.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nisfix-tools/authcore/internal/models"
)

// statusForKind maps a closed error Kind to its HTTP status, per the table
// in spec section 6.
func statusForKind(kind models.Kind) int {
	switch kind {
	case models.KindIncorrectData,
		models.KindMissingHeaders,
		models.KindCaptchaFailed,
		models.KindBlockedByShield,
		models.KindMissingInvite,
		models.KindInvalidInvite,
		models.KindCompromisedPassword,
		models.KindShortPassword,
		models.KindTotpAlreadyEnabled,
		models.KindDisallowedMFAMethod,
		models.KindEmailInUse:
		return http.StatusBadRequest
	case models.KindInvalidSession, models.KindInvalidCredentials, models.KindInvalidToken:
		return http.StatusUnauthorized
	case models.KindBlacklisted:
		return http.StatusUnauthorized
	case models.KindUnverifiedAccount, models.KindLockedOut:
		return http.StatusForbidden
	case models.KindUnknownUser:
		return http.StatusNotFound
	case models.KindDatabaseError, models.KindInternalError, models.KindOperationFailed,
		models.KindRenderFail, models.KindEmailFailed:
		return http.StatusInternalServerError
	// SSO error kinds render per RFC 6749's client-error convention -
	// they all stem from something the caller sent (a replayed code, a
	// stale state), so they map like the rest of section 6's 400 class.
	case models.KindStateMismatch, models.KindInvalidRequest, models.KindInvalidClient,
		models.KindInvalidGrant, models.KindUnauthorizedClient, models.KindUnsupportedGrantType,
		models.KindInvalidScope, models.KindContentTypeMismatch, models.KindInvalidUserinfo,
		models.KindInvalidEndpoints:
		return http.StatusBadRequest
	case models.KindRequestFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RenderError writes err as the JSON error envelope spec section 6
// describes, at its mapped status code. Unreachable branches (a *models.Error
// this layer doesn't otherwise know about) still render rather than panic,
// per section 7's "crash loudly only on programmer error, not on data the
// core itself produced".
func RenderError(c *gin.Context, err error) {
	coreErr, ok := err.(*models.Error)
	if !ok {
		c.JSON(http.StatusInternalServerError, models.ErrInternalError)
		return
	}
	c.JSON(statusForKind(coreErr.Kind), coreErr)
}
