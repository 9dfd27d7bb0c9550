package sso

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemoryStore()
	if err := st.SaveSecret(context.Background(), &models.Secret{ID: models.SecretDocumentID, Value: []byte("test-signing-secret")}); err != nil {
		t.Fatalf("SaveSecret() error = %v", err)
	}
	return st
}

func manualProvider(id string, srv *httptest.Server, mode CredentialMode, codeChallenge bool) Provider {
	return Provider{
		ID:     id,
		Issuer: srv.URL,
		Scopes: []string{"openid", "email"},
		Endpoints: Endpoints{
			Mode:          EndpointsManual,
			Authorization: srv.URL + "/authorize",
			Token:         srv.URL + "/token",
			Userinfo:      srv.URL + "/userinfo",
		},
		Credentials: Credentials{
			Mode:         mode,
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		},
		CodeChallenge: codeChallenge,
	}
}

func TestCreateAuthorizationURIManual(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	st := newTestStore(t)
	svc := New(st, []Provider{manualProvider("okta", srv, CredentialsPost, true)})

	signedState, authURI, err := svc.CreateAuthorizationURI(ctx, "okta", "https://app.example/callback")
	if err != nil {
		t.Fatalf("CreateAuthorizationURI() error = %v", err)
	}
	if signedState == "" || authURI == "" {
		t.Fatalf("CreateAuthorizationURI() returned empty values: state=%q uri=%q", signedState, authURI)
	}
}

func TestCreateAuthorizationURIUnknownProvider(t *testing.T) {
	ctx := context.Background()
	svc := New(newTestStore(t), nil)

	_, _, err := svc.CreateAuthorizationURI(ctx, "nope", "https://app.example/callback")
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindInvalidEndpoints {
		t.Errorf("CreateAuthorizationURI(unknown) error = %v, want InvalidEndpoints", err)
	}
}

func TestExchangeAuthorizationCodeSuccess(t *testing.T) {
	ctx := context.Background()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "at-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := newTestStore(t)
	svc := New(st, []Provider{manualProvider("okta", srv, CredentialsPost, true)})

	_, authURI, err := svc.CreateAuthorizationURI(ctx, "okta", "https://app.example/callback")
	if err != nil {
		t.Fatalf("CreateAuthorizationURI() error = %v", err)
	}
	state := mustQueryParam(t, authURI, "state")

	token, err := svc.ExchangeAuthorizationCode(ctx, "okta", "auth-code", state)
	if err != nil {
		t.Fatalf("ExchangeAuthorizationCode() error = %v", err)
	}
	if token.AccessToken != "at-123" {
		t.Errorf("AccessToken = %q, want at-123", token.AccessToken)
	}

	if _, err := st.FindCallback(ctx, state); err != store.ErrNotFound {
		t.Errorf("callback should be deleted after a successful exchange, FindCallback() error = %v", err)
	}
}

func TestExchangeAuthorizationCodeUnknownStateIsMismatch(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	st := newTestStore(t)
	svc := New(st, []Provider{manualProvider("okta", srv, CredentialsPost, false)})

	// No Callback was ever persisted under this state (e.g. expired and
	// swept, or never issued by us at all).
	_, err := svc.ExchangeAuthorizationCode(ctx, "okta", "auth-code", "never-issued-state")
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindStateMismatch {
		t.Errorf("ExchangeAuthorizationCode(unknown state) error = %v, want StateMismatch", err)
	}
}

func TestExchangeAuthorizationCodeMapsOAuthError(t *testing.T) {
	ctx := context.Background()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := newTestStore(t)
	svc := New(st, []Provider{manualProvider("okta", srv, CredentialsPost, false)})

	_, authURI, err := svc.CreateAuthorizationURI(ctx, "okta", "https://app.example/callback")
	if err != nil {
		t.Fatalf("CreateAuthorizationURI() error = %v", err)
	}
	state := mustQueryParam(t, authURI, "state")

	_, err = svc.ExchangeAuthorizationCode(ctx, "okta", "bad-code", state)
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindInvalidGrant {
		t.Errorf("ExchangeAuthorizationCode() error = %v, want InvalidGrant", err)
	}
}

func TestFetchUserinfoSuccess(t *testing.T) {
	ctx := context.Background()
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at-123" {
			t.Errorf("Authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"sub": "user-1", "email": "user@example.com"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := New(newTestStore(t), []Provider{manualProvider("okta", srv, CredentialsPost, false)})

	claims, err := svc.FetchUserinfo(ctx, "okta", "at-123")
	if err != nil {
		t.Fatalf("FetchUserinfo() error = %v", err)
	}
	if claims["sub"] != "user-1" {
		t.Errorf("claims[sub] = %v, want user-1", claims["sub"])
	}
}

func TestFetchUserinfoNoEndpointConfigured(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p := manualProvider("okta", srv, CredentialsPost, false)
	p.Endpoints.Userinfo = ""
	svc := New(newTestStore(t), []Provider{p})

	claims, err := svc.FetchUserinfo(ctx, "okta", "at-123")
	if err != nil {
		t.Fatalf("FetchUserinfo() error = %v, want nil (no userinfo)", err)
	}
	if claims != nil {
		t.Errorf("claims = %v, want nil", claims)
	}
}

func TestFetchUserinfoContentTypeMismatch(t *testing.T) {
	ctx := context.Background()
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("sub=user-1"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := New(newTestStore(t), []Provider{manualProvider("okta", srv, CredentialsPost, false)})

	_, err := svc.FetchUserinfo(ctx, "okta", "at-123")
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindContentTypeMismatch {
		t.Errorf("FetchUserinfo() error = %v, want ContentTypeMismatch", err)
	}
}

func TestFetchUserinfoMapsWWWAuthenticateError(t *testing.T) {
	ctx := context.Background()
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="example", error="invalid_request"`)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := New(newTestStore(t), []Provider{manualProvider("okta", srv, CredentialsPost, false)})

	_, err := svc.FetchUserinfo(ctx, "okta", "bad-token")
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindInvalidRequest {
		t.Errorf("FetchUserinfo() error = %v, want InvalidRequest", err)
	}
}

func TestFetchUserinfoMissingHeaderOnFailure(t *testing.T) {
	ctx := context.Background()
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := New(newTestStore(t), []Provider{manualProvider("okta", srv, CredentialsPost, false)})

	_, err := svc.FetchUserinfo(ctx, "okta", "bad-token")
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindMissingHeaders {
		t.Errorf("FetchUserinfo() error = %v, want MissingHeaders", err)
	}
}

// TestDiscoverableProviderFlow exercises oidc.NewProvider's discovery
// document fetch end to end: authorization URI creation resolves the
// endpoint through /.well-known/openid-configuration, and userinfo
// resolution recovers the userinfo_endpoint field via Provider.Claims.
func TestDiscoverableProviderFlow(t *testing.T) {
	ctx := context.Background()
	var issuer string
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/authorize",
			"token_endpoint":         issuer + "/token",
			"userinfo_endpoint":      issuer + "/userinfo",
			"jwks_uri":               issuer + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"sub": "user-1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	issuer = srv.URL

	provider := Provider{
		ID:     "google",
		Issuer: issuer,
		Scopes: []string{"openid"},
		Endpoints: Endpoints{
			Mode: EndpointsDiscoverable,
		},
		Credentials:   Credentials{Mode: CredentialsPost, ClientID: "cid", ClientSecret: "secret"},
		CodeChallenge: true,
	}

	svc := New(newTestStore(t), []Provider{provider})

	_, authURI, err := svc.CreateAuthorizationURI(ctx, "google", "https://app.example/callback")
	if err != nil {
		t.Fatalf("CreateAuthorizationURI() error = %v", err)
	}
	if mustQueryParam(t, authURI, "nonce") == "" {
		t.Errorf("discoverable provider should carry a nonce")
	}
	if got := mustQueryParam(t, authURI, "code_challenge_method"); got != "S256" {
		t.Errorf("code_challenge_method = %q, want S256", got)
	}

	claims, err := svc.FetchUserinfo(ctx, "google", "at-123")
	if err != nil {
		t.Fatalf("FetchUserinfo() error = %v", err)
	}
	if claims["sub"] != "user-1" {
		t.Errorf("claims[sub] = %v, want user-1", claims["sub"])
	}
}

func mustQueryParam(t *testing.T, rawURL, key string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	return u.Query().Get(key)
}
