package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nisfix-tools/authcore/internal/crypto"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/sso"
	"github.com/nisfix-tools/authcore/internal/store"
)

// ssoStateCookie is the short-lived, path-scoped cookie name the signed
// OAuth state JWT rides in (spec section 4.7 step 7: "the HTTP glue places
// the signed state in a short-lived, path-scoped cookie"). Callback verifies
// it against the query state to prove the redirect landed on the same
// browser that started the authorization request.
const ssoStateCookie = "authcore_sso_state"

// SSOHandler binds SSOService over HTTP (spec section 4.7).
type SSOHandler struct {
	sso   *sso.Service
	store store.Store
}

// NewSSOHandler constructs an SSOHandler.
func NewSSOHandler(s *sso.Service, st store.Store) *SSOHandler {
	return &SSOHandler{sso: s, store: st}
}

// Authorize handles GET /sso/:idp/authorize.
func (h *SSOHandler) Authorize(c *gin.Context) {
	idp := c.Param("idp")
	redirectURI := c.Query("redirect_uri")
	if redirectURI == "" {
		RenderError(c, models.IncorrectData("redirect_uri"))
		return
	}

	signedState, authorizationURI, err := h.sso.CreateAuthorizationURI(c.Request.Context(), idp, redirectURI)
	if err != nil {
		RenderError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ssoStateCookie, signedState, int((10*time.Minute).Seconds()), "/sso/"+idp+"/callback", "", true, true)
	c.Redirect(http.StatusFound, authorizationURI)
}

// Callback handles GET /sso/:idp/callback.
func (h *SSOHandler) Callback(c *gin.Context) {
	idp := c.Param("idp")
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		RenderError(c, models.IncorrectData("code"))
		return
	}

	cookie, err := c.Cookie(ssoStateCookie)
	if err != nil {
		RenderError(c, models.ErrStateMismatch)
		return
	}
	secret, err := h.store.FindSecret(c.Request.Context())
	if err != nil {
		RenderError(c, err)
		return
	}
	verifiedState, err := crypto.NewStateSigner(secret.Value, models.CallbackExpiry).Verify(cookie)
	if err != nil || verifiedState != state {
		RenderError(c, models.ErrStateMismatch)
		return
	}

	token, err := h.sso.ExchangeAuthorizationCode(c.Request.Context(), idp, code, state)
	if err != nil {
		RenderError(c, err)
		return
	}

	c.SetCookie(ssoStateCookie, "", -1, "/sso/"+idp+"/callback", "", true, true)

	claims, err := h.sso.FetchUserinfo(c.Request.Context(), idp, token.AccessToken)
	if err != nil {
		RenderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token.AccessToken,
		"claims":       claims,
	})
}
