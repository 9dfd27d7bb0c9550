package sso

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/nisfix-tools/authcore/internal/crypto"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/store"
)

const nonceLength = 32

// Service implements SSOService over a fixed set of configured providers.
type Service struct {
	store     store.Store
	providers map[string]Provider
	client    *http.Client
}

// New constructs a Service keyed by each Provider's ID.
func New(st store.Store, providers []Provider) *Service {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.ID] = p
	}
	return &Service{store: st, providers: m, client: &http.Client{Timeout: 30 * time.Second}}
}

func (s *Service) provider(idpID string) (Provider, error) {
	p, ok := s.providers[idpID]
	if !ok {
		return Provider{}, models.ErrInvalidEndpoints
	}
	return p, nil
}

// oauthConfig builds the oauth2.Config for p, resolving its endpoint set
// via OIDC discovery or the provider's manual configuration.
func (s *Service) oauthConfig(ctx context.Context, p Provider, redirectURI string) (oauth2.Config, error) {
	cfg := oauth2.Config{
		ClientID:     p.Credentials.ClientID,
		ClientSecret: p.Credentials.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       p.Scopes,
	}

	switch p.Endpoints.Mode {
	case EndpointsDiscoverable:
		ctx = oidc.ClientContext(ctx, s.client)
		discovered, err := oidc.NewProvider(ctx, p.Issuer)
		if err != nil {
			return oauth2.Config{}, models.ErrInvalidEndpoints
		}
		cfg.Endpoint = discovered.Endpoint()
	case EndpointsManual:
		cfg.Endpoint = oauth2.Endpoint{AuthURL: p.Endpoints.Authorization, TokenURL: p.Endpoints.Token}
	default:
		return oauth2.Config{}, models.ErrInvalidEndpoints
	}

	applyCredentialStyle(&cfg, p.Credentials.Mode)
	return cfg, nil
}

// applyCredentialStyle selects how oauth2.Config attaches client
// credentials to the token request, per the three modes in spec section
// 4.7: None and Post both place parameters in the request body (None
// simply carries an empty secret), Basic moves them into the
// Authorization header per RFC 3986 form-urlencoded client_id:secret.
func applyCredentialStyle(cfg *oauth2.Config, mode CredentialMode) {
	switch mode {
	case CredentialsBasic:
		cfg.Endpoint.AuthStyle = oauth2.AuthStyleInHeader
	default:
		cfg.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
}

// CreateAuthorizationURI begins an OIDC login against idpID, persisting a
// Callback keyed by a fresh ULID state and returning the signed state JWT
// (for the HTTP layer's short-lived cookie) alongside the authorization
// URI to redirect the user-agent to. Grounded on id_provider.rs's
// create_authorization_uri.
func (s *Service) CreateAuthorizationURI(ctx context.Context, idpID, redirectURI string) (signedState, authorizationURI string, err error) {
	p, err := s.provider(idpID)
	if err != nil {
		return "", "", err
	}

	cfg, err := s.oauthConfig(ctx, p, redirectURI)
	if err != nil {
		return "", "", err
	}

	state := models.NewID()

	var nonce string
	if p.Endpoints.Mode == EndpointsDiscoverable {
		nonce = crypto.SecureRandomString(nonceLength)
	}

	var opts []oauth2.AuthCodeOption
	var codeVerifier string
	if p.CodeChallenge {
		codeVerifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(codeVerifier))
	}
	if nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam("nonce", nonce))
	}

	authorizationURI = cfg.AuthCodeURL(state, opts...)

	callback := &models.Callback{
		ID:           state,
		IdpID:        p.ID,
		RedirectURI:  redirectURI,
		Nonce:        nonce,
		CodeVerifier: codeVerifier,
	}
	if err := s.store.SaveCallback(ctx, callback); err != nil {
		return "", "", models.DatabaseError("save_callback", "", err)
	}

	secret, err := s.store.FindSecret(ctx)
	if err != nil {
		return "", "", models.DatabaseError("find_secret", "", err)
	}

	signedState, err = crypto.NewStateSigner(secret.Value, models.CallbackExpiry).Sign(state)
	if err != nil {
		return "", "", models.ErrInternalError
	}
	return signedState, authorizationURI, nil
}

// ExchangeAuthorizationCode redeems code against idpID's token endpoint,
// validating state against the persisted Callback first. Grounded on
// id_provider.rs's exchange_authorization_code, including its state-
// mismatch-deletes-the-callback behaviour and the error-field-to-Kind
// mapping table (spec section 4.7).
func (s *Service) ExchangeAuthorizationCode(ctx context.Context, idpID, code, state string) (*oauth2.Token, error) {
	p, err := s.provider(idpID)
	if err != nil {
		return nil, err
	}

	callback, err := s.store.FindCallback(ctx, state)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, models.ErrStateMismatch
		}
		return nil, models.DatabaseError("find_callback", "", err)
	}

	if state != callback.ID {
		if delErr := s.store.DeleteCallback(ctx, state); delErr != nil {
			return nil, models.DatabaseError("delete_callback", state, delErr)
		}
		return nil, models.ErrStateMismatch
	}

	cfg, err := s.oauthConfig(ctx, p, callback.RedirectURI)
	if err != nil {
		return nil, err
	}

	var opts []oauth2.AuthCodeOption
	if callback.CodeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(callback.CodeVerifier))
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := cfg.Exchange(tokenCtx, code, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, oauthErrorFromBody(retrieveErr.Body)
		}
		return nil, models.ErrRequestFailed
	}

	if err := s.store.DeleteCallback(ctx, state); err != nil {
		return nil, models.DatabaseError("delete_callback", state, err)
	}
	return token, nil
}

// discoveryMetadata captures the one field of the OIDC discovery document
// FetchUserinfo needs, decoded via oidc.Provider.Claims rather than a
// second hand-rolled HTTP round trip.
type discoveryMetadata struct {
	UserinfoEndpoint string `json:"userinfo_endpoint"`
}

func (s *Service) resolveUserinfoEndpoint(ctx context.Context, p Provider) (string, error) {
	switch p.Endpoints.Mode {
	case EndpointsDiscoverable:
		ctx = oidc.ClientContext(ctx, s.client)
		discovered, err := oidc.NewProvider(ctx, p.Issuer)
		if err != nil {
			return "", models.ErrInvalidEndpoints
		}
		var md discoveryMetadata
		if err := discovered.Claims(&md); err != nil {
			return "", models.ErrInvalidEndpoints
		}
		return md.UserinfoEndpoint, nil
	case EndpointsManual:
		return p.Endpoints.Userinfo, nil
	default:
		return "", models.ErrInvalidEndpoints
	}
}

// FetchUserinfo fetches the raw claim set for accessToken. A provider with
// no configured/discovered userinfo endpoint returns (nil, nil): "no
// userinfo" per spec section 4.7, not an error. Grounded on
// id_provider.rs's fetch_userinfo, including its Content-Type and
// WWW-Authenticate handling.
func (s *Service) FetchUserinfo(ctx context.Context, idpID, accessToken string) (map[string]interface{}, error) {
	p, err := s.provider(idpID)
	if err != nil {
		return nil, err
	}

	endpoint, err := s.resolveUserinfoEndpoint(ctx, p)
	if err != nil {
		return nil, err
	}
	if endpoint == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, models.ErrRequestFailed
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, models.ErrRequestFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, userinfoErrorFromHeader(resp.Header.Get("WWW-Authenticate"))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		return nil, models.ErrMissingHeaders
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return nil, models.ErrContentTypeMismatch
	}

	var claims map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, models.ErrInvalidUserinfo
	}
	return claims, nil
}

// oauthErrorFromBody decodes a token-endpoint error body's {"error": ...}
// field and maps it per spec section 4.7's table.
func oauthErrorFromBody(body []byte) *models.Error {
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == "" {
		return models.ErrRequestFailed
	}
	return models.OAuthErrorKind(resp.Error)
}

// userinfoErrorFromHeader parses `WWW-Authenticate: Bearer ... error=...`
// and maps the error value per spec section 4.7's table (a narrower set
// than the token-endpoint table, matching id_provider.rs).
func userinfoErrorFromHeader(header string) *models.Error {
	if header == "" {
		return models.ErrMissingHeaders
	}

	trimmed := strings.TrimPrefix(header, "Bearer ")
	for _, part := range strings.Split(trimmed, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		if strings.TrimSpace(kv[0]) != "error" {
			continue
		}

		switch strings.Trim(strings.TrimSpace(kv[1]), `"`) {
		case "invalid_request":
			return models.ErrInvalidRequest
		case "unsupported_grant_type":
			return models.ErrUnsupportedGrantType
		case "invalid_scope":
			return models.ErrInvalidScope
		default:
			return models.ErrRequestFailed
		}
	}
	return models.ErrMissingHeaders
}
