package account

import (
	"context"
	"time"

	"github.com/nisfix-tools/authcore/internal/mfa"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/store"
)

// LoginResultKind discriminates the three login outcomes of spec section
// 4.4/6 (ResponseLogin's Success/MFA/Disabled variants).
type LoginResultKind string

const (
	LoginSuccess  LoginResultKind = "Success"
	LoginMFA      LoginResultKind = "MFA"
	LoginDisabled LoginResultKind = "Disabled"
)

// LoginResult is the outcome of Login/LoginWithTicket.
type LoginResult struct {
	Kind LoginResultKind

	// Set when Kind == LoginSuccess.
	Session *models.Session

	// Set when Kind == LoginMFA.
	Ticket         string
	AllowedMethods []models.MFAMethod

	// Set when Kind == LoginDisabled.
	UserID string
}

// Login authenticates email+password directly, grounded on login.rs's
// DataLogin::Email branch. An unverified account, a compromised-password
// scan hit, an active lockout, or a wrong password each fail outright; a
// correct password against an MFA-active account returns an unauthorised
// MFA ticket instead of a session.
func (s *Service) Login(ctx context.Context, email, password, friendlyName string) (*LoginResult, error) {
	account, err := s.store.FindAccountByNormalisedEmail(ctx, models.NormaliseEmail(email))
	if err != nil {
		if err == store.ErrNotFound {
			return nil, models.ErrInvalidCredentials
		}
		return nil, models.DatabaseError("find_account_by_normalised_email", "", err)
	}

	if account.Verification.Status == models.VerificationPending {
		return nil, models.ErrUnverifiedAccount
	}

	// Checked unconditionally, even against a wrong password, matching
	// login.rs's ordering ahead of the lockout/verify_password checks.
	if err := s.policy.Password.AssertSafe(ctx, password); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := account.CheckLockout(now); err != nil {
		return nil, err
	}

	if !account.CheckPassword(password) {
		account.RecordPasswordFailure(now)
		if saveErr := s.store.SaveAccount(ctx, account); saveErr != nil {
			return nil, models.DatabaseError("save_account", account.ID, saveErr)
		}
		return nil, models.ErrInvalidCredentials
	}

	account.ClearLockout()
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return nil, models.DatabaseError("save_account", account.ID, err)
	}

	if account.MFAActive() {
		ticket, err := s.mfa.IssueTicket(ctx, account.ID, false)
		if err != nil {
			return nil, err
		}
		return &LoginResult{
			Kind:           LoginMFA,
			Ticket:         ticket.Token,
			AllowedMethods: s.mfa.AllowedMethods(account),
		}, nil
	}

	return s.finishLogin(ctx, account, friendlyName)
}

// LoginWithTicket completes a three-legged login started by Login's MFA
// branch, or rides a ticket issued authorised by VerifyEmail, grounded on
// login.rs's DataLogin::MFA branch. response is nil when the caller is
// presenting an already-authorised ticket with no further proof required.
func (s *Service) LoginWithTicket(ctx context.Context, ticketToken string, response *mfa.Response, friendlyName string) (*LoginResult, error) {
	ticket, err := s.mfa.FindTicketByToken(ctx, ticketToken)
	if err != nil {
		return nil, err
	}

	account, err := s.store.FindAccount(ctx, ticket.AccountID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, models.ErrInvalidToken
		}
		return nil, models.DatabaseError("find_account", ticket.AccountID, err)
	}

	if response != nil {
		if err := s.mfa.ConsumeMFAResponse(ctx, account, *response, ticket); err != nil {
			return nil, err
		}
	} else if !ticket.Authorised {
		return nil, models.ErrInvalidToken
	}

	return s.finishLogin(ctx, account, friendlyName)
}

// finishLogin applies the disabled-account check - which resolves to the
// Disabled result, not an error - ahead of minting a session (spec section
// 4.4: "Prevent disabled accounts from logging in" runs after MFA
// resolution, not before).
func (s *Service) finishLogin(ctx context.Context, account *models.Account, friendlyName string) (*LoginResult, error) {
	if friendlyName == "" {
		friendlyName = "Unknown"
	}

	if account.Disabled {
		return &LoginResult{Kind: LoginDisabled, UserID: account.ID}, nil
	}

	sess, err := s.session.Create(ctx, account.ID, friendlyName)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Kind: LoginSuccess, Session: sess}, nil
}
