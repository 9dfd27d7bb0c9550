package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nisfix-tools/authcore/internal/models"
)

// MemoryStore is an in-memory Store implementation for tests. It honors
// every uniqueness constraint a real backend would enforce (spec section
// 9: "the in-memory variant must honor all uniqueness constraints").
type MemoryStore struct {
	mu sync.RWMutex

	accounts        map[string]*models.Account
	accountsByEmail map[string]string // email_normalised -> account id

	sessions        map[string]*models.Session
	sessionsByToken map[string]string // token -> session id

	tickets        map[string]*models.MFATicket
	ticketsByToken map[string]string // token -> ticket id

	invites   map[string]*models.Invite
	callbacks map[string]*models.Callback

	secret *models.Secret
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:        make(map[string]*models.Account),
		accountsByEmail: make(map[string]string),
		sessions:        make(map[string]*models.Session),
		sessionsByToken: make(map[string]string),
		tickets:         make(map[string]*models.MFATicket),
		ticketsByToken:  make(map[string]string),
		invites:         make(map[string]*models.Invite),
		callbacks:       make(map[string]*models.Callback),
	}
}

var _ Store = (*MemoryStore)(nil)

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// FindAccount finds an account by its primary key.
func (s *MemoryStore) FindAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(account), nil
}

// FindAccountByNormalisedEmail performs a case-insensitive lookup (spec
// section 4.1: "case-insensitive match required").
func (s *MemoryStore) FindAccountByNormalisedEmail(ctx context.Context, normalised string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.accountsByEmail[strings.ToLower(normalised)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.accounts[id]), nil
}

// FindAccountWithEmailVerification looks up the account whose pending or
// moving verification token matches, requiring the token's expiry to still
// be in the future (spec section 4.1).
func (s *MemoryStore) FindAccountWithEmailVerification(ctx context.Context, token string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now().UTC()
	for _, account := range s.accounts {
		v := account.Verification
		if v.Token == token && v.Status != models.VerificationVerified && v.Expiry.After(now) {
			return clone(account), nil
		}
	}
	return nil, ErrNotFound
}

// FindAccountWithPasswordReset looks up the account whose password-reset
// token matches and has not yet expired.
func (s *MemoryStore) FindAccountWithPasswordReset(ctx context.Context, token string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now().UTC()
	for _, account := range s.accounts {
		pr := account.PasswordReset
		if pr != nil && pr.Token == token && pr.Expiry.After(now) {
			return clone(account), nil
		}
	}
	return nil, ErrNotFound
}

// FindAccountWithDeletionToken looks up the account whose
// WaitingForVerification deletion token matches and has not yet expired.
func (s *MemoryStore) FindAccountWithDeletionToken(ctx context.Context, token string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now().UTC()
	for _, account := range s.accounts {
		d := account.Deletion
		if d != nil && d.Status == models.DeletionWaitingForVerification && d.Token == token && d.Expiry.After(now) {
			return clone(account), nil
		}
	}
	return nil, ErrNotFound
}

// FindAccountsDueForDeletion returns every Scheduled-deletion account whose
// After timestamp has passed. Supplemented per SPEC_FULL.md - a real query
// primitive with no driving sweep worker in this repo.
func (s *MemoryStore) FindAccountsDueForDeletion(ctx context.Context, now time.Time) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*models.Account
	for _, account := range s.accounts {
		d := account.Deletion
		if d != nil && d.Status == models.DeletionScheduled && !d.After.After(now) {
			due = append(due, clone(account))
		}
	}
	return due, nil
}

// SaveAccount upserts account by primary key, enforcing email_normalised
// uniqueness (spec section 4.1's Uniqueness contract).
func (s *MemoryStore) SaveAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == "" {
		account.BeforeCreate()
	} else {
		account.BeforeUpdate()
	}

	key := strings.ToLower(account.EmailNormalised)
	if existingID, ok := s.accountsByEmail[key]; ok && existingID != account.ID {
		return ErrDuplicateKey
	}

	// Remove any stale email index entry from a prior email on this account.
	for email, id := range s.accountsByEmail {
		if id == account.ID && email != key {
			delete(s.accountsByEmail, email)
		}
	}

	s.accounts[account.ID] = clone(account)
	s.accountsByEmail[key] = account.ID
	return nil
}

// FindSession finds a session by its primary key.
func (s *MemoryStore) FindSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(session), nil
}

// FindSessionByToken finds a session by its bearer token.
func (s *MemoryStore) FindSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sessionsByToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.sessions[id]), nil
}

// FindSessions returns every session belonging to userID.
func (s *MemoryStore) FindSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			result = append(result, clone(session))
		}
	}
	return result, nil
}

// FindSessionsWithSubscription returns sessions among userIDs that carry a
// push subscription (spec section 4.1).
func (s *MemoryStore) FindSessionsWithSubscription(ctx context.Context, userIDs []string) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}

	var result []*models.Session
	for _, session := range s.sessions {
		if session.Subscription != nil && wanted[session.UserID] {
			result = append(result, clone(session))
		}
	}
	return result, nil
}

// SaveSession upserts session by primary key, enforcing token uniqueness.
func (s *MemoryStore) SaveSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.BeforeCreate()
	}

	if existingID, ok := s.sessionsByToken[session.Token]; ok && existingID != session.ID {
		return ErrDuplicateKey
	}

	for token, id := range s.sessionsByToken {
		if id == session.ID && token != session.Token {
			delete(s.sessionsByToken, token)
		}
	}

	s.sessions[session.ID] = clone(session)
	s.sessionsByToken[session.Token] = session.ID
	return nil
}

// DeleteSession removes the session with the given id.
func (s *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil
	}
	delete(s.sessionsByToken, session.Token)
	delete(s.sessions, id)
	return nil
}

// DeleteAllSessions removes every session for userID except exceptSessionID.
func (s *MemoryStore) DeleteAllSessions(ctx context.Context, userID, exceptSessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.UserID != userID || id == exceptSessionID {
			continue
		}
		delete(s.sessionsByToken, session.Token)
		delete(s.sessions, id)
		removed++
	}
	return removed, nil
}

// FindTicketByToken finds a ticket by its token, requiring the ULID-encoded
// creation time to be within TicketExpiry (spec section 4.1).
func (s *MemoryStore) FindTicketByToken(ctx context.Context, token string) (*models.MFATicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ticketsByToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	ticket := s.tickets[id]
	if ticket.IsExpired(time.Now().UTC()) {
		return nil, ErrNotFound
	}
	return clone(ticket), nil
}

// SaveTicket upserts ticket by primary key, enforcing token uniqueness.
func (s *MemoryStore) SaveTicket(ctx context.Context, ticket *models.MFATicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.ticketsByToken[ticket.Token]; ok && existingID != ticket.ID {
		return ErrDuplicateKey
	}

	for token, id := range s.ticketsByToken {
		if id == ticket.ID && token != ticket.Token {
			delete(s.ticketsByToken, token)
		}
	}

	s.tickets[ticket.ID] = clone(ticket)
	s.ticketsByToken[ticket.Token] = ticket.ID
	return nil
}

// DeleteTicket removes the ticket with the given id.
func (s *MemoryStore) DeleteTicket(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil
	}
	delete(s.ticketsByToken, ticket.Token)
	delete(s.tickets, id)
	return nil
}

// FindInvite finds an invite by its primary key.
func (s *MemoryStore) FindInvite(ctx context.Context, id string) (*models.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invite, ok := s.invites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(invite), nil
}

// SaveInvite upserts invite by primary key.
func (s *MemoryStore) SaveInvite(ctx context.Context, invite *models.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[invite.ID] = clone(invite)
	return nil
}

// FindCallback finds an SSO callback by its primary key (the OAuth state).
func (s *MemoryStore) FindCallback(ctx context.Context, id string) (*models.Callback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	callback, ok := s.callbacks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(callback), nil
}

// SaveCallback upserts callback by primary key.
func (s *MemoryStore) SaveCallback(ctx context.Context, callback *models.Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[callback.ID] = clone(callback)
	return nil
}

// DeleteCallback removes the callback with the given id.
func (s *MemoryStore) DeleteCallback(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.callbacks, id)
	return nil
}

// FindSecret returns the process-scoped signing secret.
func (s *MemoryStore) FindSecret(ctx context.Context) (*models.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.secret == nil {
		return nil, ErrNotFound
	}
	return clone(s.secret), nil
}

// SaveSecret stores the process-scoped signing secret.
func (s *MemoryStore) SaveSecret(ctx context.Context, secret *models.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = clone(secret)
	return nil
}

// RunMigrations is a no-op for the in-memory store; there is no schema to
// create.
func (s *MemoryStore) RunMigrations(ctx context.Context) error {
	return nil
}
