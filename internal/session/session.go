// Package session implements SessionService (spec section 4.5): session
// lifecycle and the revoke/edit operations gated by session ownership.
// Grounded on original_source's crates/authifier/src/models/session.rs and
// the rocket_authifier session routes, reshaped into a Go service struct the
// way the teacher's services package wraps a repository (here, a Store).
package session

import (
	"context"
	"fmt"

	"github.com/nisfix-tools/authcore/internal/crypto"
	"github.com/nisfix-tools/authcore/internal/events"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/store"
)

const sessionTokenLength = 64

// Service implements SessionService over a Store, emitting lifecycle
// events as it mutates sessions.
type Service struct {
	store store.Store
	sink  *events.Sink
}

// New constructs a Service.
func New(st store.Store, sink *events.Sink) *Service {
	return &Service{store: st, sink: sink}
}

// Create mints a new Session for account, naming it name (spec section
// 4.5). Emits SessionCreated.
func (s *Service) Create(ctx context.Context, accountID, name string) (*models.Session, error) {
	sess := &models.Session{
		UserID: accountID,
		Token:  crypto.SecureRandomString(sessionTokenLength),
		Name:   name,
	}
	sess.BeforeCreate()

	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, classifySaveErr(err)
	}

	s.sink.Emit(events.SessionCreated(sess))
	return sess, nil
}

// Logout deletes session and emits SessionDeleted (spec section 4.5).
func (s *Service) Logout(ctx context.Context, sess *models.Session) error {
	if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
		return models.DatabaseError("delete_session", sess.ID, err)
	}
	s.sink.Emit(events.SessionDeleted(sess.UserID, sess.ID))
	return nil
}

// Revoke deletes the session named by sessionID on behalf of by, failing
// with InvalidToken if by does not own that session (spec section 4.5).
func (s *Service) Revoke(ctx context.Context, sessionID string, by *models.Session) error {
	target, err := s.store.FindSession(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return models.ErrInvalidToken
		}
		return models.DatabaseError("find_session", sessionID, err)
	}

	if target.UserID != by.UserID {
		return models.ErrInvalidToken
	}

	if err := s.store.DeleteSession(ctx, target.ID); err != nil {
		return models.DatabaseError("delete_session", target.ID, err)
	}
	s.sink.Emit(events.SessionDeleted(target.UserID, target.ID))
	return nil
}

// RevokeAll deletes every session for userID, keeping the caller's session
// (by.ID) unless revokeSelf is set (spec section 4.5). Emits
// AllSessionsDeleted.
func (s *Service) RevokeAll(ctx context.Context, userID string, by *models.Session, revokeSelf bool) error {
	except := ""
	if by != nil && !revokeSelf {
		except = by.ID
	}

	if _, err := s.store.DeleteAllSessions(ctx, userID, except); err != nil {
		return models.DatabaseError("delete_all_sessions", userID, err)
	}

	s.sink.Emit(events.AllSessionsDeleted(userID, except))
	return nil
}

// Edit renames the session named by sessionID to friendlyName on behalf of
// by, failing with InvalidSession unless by owns the target (spec section
// 4.5).
func (s *Service) Edit(ctx context.Context, sessionID, friendlyName string, by *models.Session) (*models.Session, error) {
	target, err := s.store.FindSession(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, models.ErrInvalidSession
		}
		return nil, models.DatabaseError("find_session", sessionID, err)
	}

	if target.UserID != by.UserID {
		return nil, models.ErrInvalidSession
	}

	target.Name = friendlyName
	if err := s.store.SaveSession(ctx, target); err != nil {
		return nil, models.DatabaseError("save_session", target.ID, err)
	}
	return target, nil
}

// FindByToken resolves the X-Session-Token header value to its Session
// (spec section 6), failing with InvalidSession when absent.
func (s *Service) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	sess, err := s.store.FindSessionByToken(ctx, token)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, models.ErrInvalidSession
		}
		return nil, models.DatabaseError("find_session_by_token", "", err)
	}
	return sess, nil
}

func classifySaveErr(err error) error {
	if err == store.ErrDuplicateKey {
		// Session tokens are enforced unique by index (spec section 4.1);
		// a collision here means the random generator produced a
		// duplicate, which is astronomically unlikely and not a
		// documented Kind - surface it as an internal failure.
		return models.DatabaseError("save_session", "token", fmt.Errorf("duplicate session token"))
	}
	return models.DatabaseError("save_session", "", err)
}
