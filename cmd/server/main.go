// Package main is the entry point for the authcore authentication server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nisfix-tools/authcore/internal/account"
	"github.com/nisfix-tools/authcore/internal/config"
	"github.com/nisfix-tools/authcore/internal/events"
	"github.com/nisfix-tools/authcore/internal/httpapi"
	"github.com/nisfix-tools/authcore/internal/mailer"
	"github.com/nisfix-tools/authcore/internal/mfa"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/policy"
	"github.com/nisfix-tools/authcore/internal/session"
	"github.com/nisfix-tools/authcore/internal/sso"
	"github.com/nisfix-tools/authcore/internal/store"
)

// Build-time variables (set via ldflags), kept in the teacher's shape.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	mongoClient, db, err := connectMongo(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if closeErr := mongoClient.Disconnect(ctx); closeErr != nil {
			log.Printf("Error closing database connection: %v", closeErr)
		}
	}()

	st := store.NewMongoStore(db)

	log.Println("Running database migrations...")
	if err := st.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if err := bootstrapSigningSecret(ctx, st, cfg.SigningSecret); err != nil {
		log.Fatalf("Failed to bootstrap signing secret: %v", err)
	}

	providers, err := loadSSOProviders(cfg.SSOProvidersJSON)
	if err != nil {
		log.Fatalf("Failed to parse AUTHCORE_SSO_PROVIDERS_JSON: %v", err)
	}

	sink := events.NewSink(cfg.EventChannelBufferSize)
	policyEngine := policy.NewEngine(cfg)
	mailService := mailer.NewHTTPMailer(cfg.MailServiceURL, cfg.MailAPIKey)
	sessionService := session.New(st, sink)
	mfaService := mfa.New(st)
	ssoService := sso.New(st, providers)
	accountService := account.New(st, policyEngine, mailService, mfaService, sessionService, sink, account.Config{
		EmailVerificationEnabled: cfg.EmailVerificationEnabled,
		InviteOnly:               cfg.InviteOnly,
		VerificationExpiry:       cfg.VerificationExpiry,
		PasswordResetExpiry:      cfg.PasswordResetExpiry,
		AccountDeletionExpiry:    cfg.AccountDeletionExpiry,
		DeletionGracePeriod:      cfg.DeletionGracePeriod,
		BaseURL:                  cfg.MagicLinkBaseURL,
	})

	handlers := httpapi.Handlers{
		Account: httpapi.NewAccountHandler(accountService, st),
		Session: httpapi.NewSessionHandler(sessionService, st),
		MFA:     httpapi.NewMFAHandler(mfaService, st),
		SSO:     httpapi.NewSSOHandler(ssoService, st),
	}

	router := httpapi.NewRouter(handlers, sessionService, mfaService, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting authcore server v%s on port %s", Version, cfg.ServerPort)
		log.Printf("Build: %s | Commit: %s", BuildTime, GitCommit)
		log.Printf("Environment: %s", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server shutdown complete")
}

// connectMongo mirrors the teacher's database.NewClient connection sequence
// (client options, connect, ping) but returns the raw driver handles
// directly rather than the teacher's own Client wrapper, since MongoStore
// (internal/store/mongo.go) takes a *mongo.Database rather than a
// repository-per-aggregate set like the teacher's.
func connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.DatabaseURI).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(30 * time.Minute)

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, nil, err
	}

	return client, client.Database(cfg.DatabaseName), nil
}

// bootstrapSigningSecret persists the configured signing secret as the
// Store's singleton Secret document on first boot, and is a no-op on
// subsequent boots once that document exists (spec section 4.1/4.7: the
// signed-state JWT and any other process secret come from this document,
// not straight from the environment, so every replica of the server signs
// consistently once RunMigrations/bootstrap has run against a shared
// database).
func bootstrapSigningSecret(ctx context.Context, st store.Store, configured string) error {
	_, err := st.FindSecret(ctx)
	if err == nil {
		return nil
	}
	if err != store.ErrNotFound {
		return err
	}

	value := []byte(configured)
	if len(value) == 0 {
		value = make([]byte, 32)
		if _, err := rand.Read(value); err != nil {
			return err
		}
	}

	return st.SaveSecret(ctx, &models.Secret{ID: models.SecretDocumentID, Value: value})
}

// loadSSOProviders decodes AUTHCORE_SSO_PROVIDERS_JSON into the configured
// identity providers (spec section 4.7). An empty/absent value yields no
// providers, which disables the /sso routes functionally without disabling
// them at the router level.
func loadSSOProviders(raw string) ([]sso.Provider, error) {
	if raw == "" {
		return nil, nil
	}
	var providers []sso.Provider
	if err := json.Unmarshal([]byte(raw), &providers); err != nil {
		return nil, err
	}
	return providers, nil
}
