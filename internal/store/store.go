// Package store defines the persistence abstraction the authentication core
// is built against, plus two implementations: an in-memory Store for tests
// and a MongoDB-backed Store for production.
// #ORM_PATTERN: interface-per-aggregate, mirroring the teacher's
// repository package, collapsed into a single Store interface per spec
// section 4.1/9 ("a trait-object store... maps to an interface with two
// concrete implementations").
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nisfix-tools/authcore/internal/models"
)

// ErrNotFound is returned by any Find* method when no matching document
// exists (or, for token lookups, when the matching document's expiry has
// already passed - spec section 4.1 folds "expired" and "absent" together).
// Callers translate this into the context-appropriate Kind (UnknownUser,
// InvalidToken, InvalidSession, ...).
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateKey is returned by Save* methods that violate a uniqueness
// constraint (spec section 4.1's "Uniqueness contract"). AccountService
// surfaces this as EmailInUse.
var ErrDuplicateKey = errors.New("store: duplicate key")

// Store is the uniform, suspending interface over accounts, sessions,
// tickets, invites, callbacks and the signing secret (spec section 4.1).
// #QUERY_INTERFACE: every method takes a context.Context so cancellation
// propagates into the backing transport, per spec section 5.
type Store interface {
	FindAccount(ctx context.Context, id string) (*models.Account, error)
	FindAccountByNormalisedEmail(ctx context.Context, normalised string) (*models.Account, error)
	FindAccountWithEmailVerification(ctx context.Context, token string) (*models.Account, error)
	FindAccountWithPasswordReset(ctx context.Context, token string) (*models.Account, error)
	FindAccountWithDeletionToken(ctx context.Context, token string) (*models.Account, error)
	FindAccountsDueForDeletion(ctx context.Context, now time.Time) ([]*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error

	FindSession(ctx context.Context, id string) (*models.Session, error)
	FindSessionByToken(ctx context.Context, token string) (*models.Session, error)
	FindSessions(ctx context.Context, userID string) ([]*models.Session, error)
	FindSessionsWithSubscription(ctx context.Context, userIDs []string) ([]*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, id string) error
	// DeleteAllSessions deletes every session for userID, except the one
	// named by exceptSessionID (pass "" to delete all of them), returning
	// the number of sessions removed.
	DeleteAllSessions(ctx context.Context, userID, exceptSessionID string) (int, error)

	FindTicketByToken(ctx context.Context, token string) (*models.MFATicket, error)
	SaveTicket(ctx context.Context, ticket *models.MFATicket) error
	DeleteTicket(ctx context.Context, id string) error

	FindInvite(ctx context.Context, id string) (*models.Invite, error)
	SaveInvite(ctx context.Context, invite *models.Invite) error

	FindCallback(ctx context.Context, id string) (*models.Callback, error)
	SaveCallback(ctx context.Context, callback *models.Callback) error
	DeleteCallback(ctx context.Context, id string) error

	FindSecret(ctx context.Context) (*models.Secret, error)
	SaveSecret(ctx context.Context, secret *models.Secret) error

	// RunMigrations creates collections/tables and indices (spec section
	// 4.1). Idempotent: repeated calls perform no destructive change.
	RunMigrations(ctx context.Context) error
}
