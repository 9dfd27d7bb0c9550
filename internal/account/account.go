// Package account implements AccountService (spec section 4.4): account
// creation, email verification/move, password reset, the deletion state
// machine and account disabling. Grounded on original_source's
// crates/rocket_authifier/src/routes/account/{create_account,verify_email,
// resend_verification,send_password_reset,password_reset,confirm_deletion,
// delete_account,disable_account}.rs, reshaped into a Go service struct the
// way the teacher's internal/services package wraps a Store (here, the
// Store, PolicyEngine, Mailer, MFAService, SessionService and event Sink
// collaborators AccountService is built on).
package account

import (
	"context"
	"time"

	"github.com/nisfix-tools/authcore/internal/crypto"
	"github.com/nisfix-tools/authcore/internal/events"
	"github.com/nisfix-tools/authcore/internal/mailer"
	"github.com/nisfix-tools/authcore/internal/mfa"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/policy"
	"github.com/nisfix-tools/authcore/internal/session"
	"github.com/nisfix-tools/authcore/internal/store"
)

const (
	verificationTokenLength  = 32
	passwordResetTokenLength = 32
	deletionTokenLength      = 32
)

// Config holds the AccountService lifecycle parameters sourced from
// config.Config (spec section 4.4).
type Config struct {
	EmailVerificationEnabled bool
	InviteOnly               bool
	VerificationExpiry       time.Duration
	PasswordResetExpiry      time.Duration
	AccountDeletionExpiry    time.Duration
	DeletionGracePeriod      time.Duration
	// BaseURL prefixes the verify/reset/delete tokens AccountService mails
	// out, matching the teacher's MagicLinkBaseURL config field.
	BaseURL string
}

// Service implements AccountService over its collaborators.
type Service struct {
	store   store.Store
	policy  *policy.Engine
	mailer  mailer.Mailer
	mfa     *mfa.Service
	session *session.Service
	sink    *events.Sink
	cfg     Config
}

// New constructs a Service.
func New(st store.Store, pe *policy.Engine, m mailer.Mailer, mfaSvc *mfa.Service, sessSvc *session.Service, sink *events.Sink, cfg Config) *Service {
	return &Service{store: st, policy: pe, mailer: m, mfa: mfaSvc, session: sessSvc, sink: sink, cfg: cfg}
}

// RegisterInput is the payload for Register (spec section 4.4/9).
type RegisterInput struct {
	Email      string
	Password   string
	InviteCode string
	Captcha    string
	Shield     policy.ShieldValidationInput
}

// Register creates a new Account, gated by the PolicyEngine's documented
// registration order (captcha -> shield -> email -> password) and, when
// configured invite_only, a valid unused Invite. Grounded on
// create_account.rs.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	if err := s.policy.CheckRegistration(ctx, input.Shield, input.Captcha, input.Email, input.Password); err != nil {
		return nil, err
	}

	var invite *models.Invite
	if s.cfg.InviteOnly {
		if input.InviteCode == "" {
			return nil, models.ErrMissingInvite
		}
		found, err := s.store.FindInvite(ctx, input.InviteCode)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, models.ErrInvalidInvite
			}
			return nil, models.DatabaseError("find_invite", input.InviteCode, err)
		}
		if found.Used {
			return nil, models.ErrInvalidInvite
		}
		invite = found
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, models.ErrInternalError
	}

	account := &models.Account{
		Email:           input.Email,
		EmailNormalised: models.NormaliseEmail(input.Email),
		PasswordHash:    hash,
	}
	if s.cfg.EmailVerificationEnabled {
		account.Verification = models.Verification{
			Status: models.VerificationPending,
			Token:  crypto.SecureRandomString(verificationTokenLength),
			Expiry: time.Now().UTC().Add(s.cfg.VerificationExpiry),
		}
	} else {
		account.Verification = models.Verification{Status: models.VerificationVerified}
	}
	account.BeforeCreate()

	if err := s.store.SaveAccount(ctx, account); err != nil {
		if err == store.ErrDuplicateKey {
			return nil, models.ErrEmailInUse
		}
		return nil, models.DatabaseError("save_account", "", err)
	}

	if invite != nil {
		invite.Claim(account.ID)
		if err := s.store.SaveInvite(ctx, invite); err != nil {
			return nil, models.DatabaseError("save_invite", invite.ID, err)
		}
	}

	if s.cfg.EmailVerificationEnabled {
		url := s.cfg.BaseURL + "/verify/" + account.Verification.Token
		if err := s.mailer.SendVerification(ctx, account.Email, url); err != nil {
			return nil, models.ErrEmailFailed
		}
	}

	s.sink.Emit(events.AccountCreated(account))
	return account, nil
}

// VerifyEmail resolves the verify/<code> token, completing either a first
// verification (issuing an authorised MFA ticket usable to log straight in)
// or an in-flight email move (no ticket). Grounded on verify_email.rs.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.MFATicket, error) {
	account, err := s.store.FindAccountWithEmailVerification(ctx, token)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, models.ErrInvalidToken
		}
		return nil, models.DatabaseError("find_account_with_email_verification", "", err)
	}

	var ticket *models.MFATicket
	if account.Verification.Status == models.VerificationMoving {
		account.Email = account.Verification.NewEmail
		account.EmailNormalised = models.NormaliseEmail(account.Verification.NewEmail)
	} else {
		ticket, err = s.mfa.IssueTicket(ctx, account.ID, true)
		if err != nil {
			return nil, err
		}
	}

	account.Verification = models.Verification{Status: models.VerificationVerified}
	account.BeforeUpdate()
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return nil, models.DatabaseError("save_account", account.ID, err)
	}
	return ticket, nil
}

// StartMove begins changing account's email, dispatching a verification
// mail to the new address (spec section 4.4). Reuses VerifyEmail's
// Moving-status branch to complete the swap.
func (s *Service) StartMove(ctx context.Context, account *models.Account, newEmail string) error {
	if err := s.policy.Email.ValidateEmail(newEmail); err != nil {
		return err
	}

	token := crypto.SecureRandomString(verificationTokenLength)
	account.Verification = models.Verification{
		Status:   models.VerificationMoving,
		Token:    token,
		Expiry:   time.Now().UTC().Add(s.cfg.VerificationExpiry),
		NewEmail: newEmail,
	}
	account.BeforeUpdate()
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return models.DatabaseError("save_account", account.ID, err)
	}

	url := s.cfg.BaseURL + "/verify/" + token
	if err := s.mailer.SendEmailMove(ctx, newEmail, url); err != nil {
		return models.ErrEmailFailed
	}
	return nil
}

// startEmailVerification (re)issues a Pending verification token, used by
// both a stalled Register and ResendVerification.
func (s *Service) startEmailVerification(ctx context.Context, account *models.Account) error {
	token := crypto.SecureRandomString(verificationTokenLength)
	account.Verification = models.Verification{
		Status: models.VerificationPending,
		Token:  token,
		Expiry: time.Now().UTC().Add(s.cfg.VerificationExpiry),
	}
	account.BeforeUpdate()
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return models.DatabaseError("save_account", account.ID, err)
	}

	url := s.cfg.BaseURL + "/verify/" + token
	if err := s.mailer.SendVerification(ctx, account.Email, url); err != nil {
		return models.ErrEmailFailed
	}
	return nil
}

// startPasswordReset mints a reset token and mails it.
func (s *Service) startPasswordReset(ctx context.Context, account *models.Account) error {
	token := crypto.SecureRandomString(passwordResetTokenLength)
	account.PasswordReset = &models.PasswordReset{
		Token:  token,
		Expiry: time.Now().UTC().Add(s.cfg.PasswordResetExpiry),
	}
	account.BeforeUpdate()
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return models.DatabaseError("save_account", account.ID, err)
	}

	url := s.cfg.BaseURL + "/reset_password/" + token
	if err := s.mailer.SendPasswordReset(ctx, account.Email, url); err != nil {
		return models.ErrEmailFailed
	}
	return nil
}

// RequestPasswordReset sends a reset mail if email resolves to an account.
// Captcha and email-syntax failures are reported; beyond that point, the
// call never fails visibly, to avoid account enumeration (spec section 7,
// grounded on send_password_reset.rs).
func (s *Service) RequestPasswordReset(ctx context.Context, email, captchaResponse string) error {
	if err := s.policy.Captcha.Check(ctx, captchaResponse); err != nil {
		return err
	}
	if err := s.policy.Email.ValidateEmail(email); err != nil {
		return err
	}

	account, err := s.store.FindAccountByNormalisedEmail(ctx, models.NormaliseEmail(email))
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return models.DatabaseError("find_account_by_normalised_email", "", err)
	}

	return s.startPasswordReset(ctx, account)
}

// CompletePasswordReset consumes a reset token, replacing the account's
// password and clearing any lockout (spec section 4.4, grounded on
// password_reset.rs's PATCH route).
func (s *Service) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	account, err := s.store.FindAccountWithPasswordReset(ctx, token)
	if err != nil {
		if err == store.ErrNotFound {
			return models.ErrInvalidToken
		}
		return models.DatabaseError("find_account_with_password_reset", "", err)
	}

	if err := s.policy.Password.AssertSafe(ctx, newPassword); err != nil {
		return err
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return models.ErrInternalError
	}

	account.PasswordHash = hash
	account.PasswordReset = nil
	account.ClearLockout()
	account.BeforeUpdate()
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return models.DatabaseError("save_account", account.ID, err)
	}
	return nil
}

// ResendVerification re-sends either a password reset (already-verified
// accounts) or a fresh verification mail (still-pending accounts). Moving
// accounts are left untouched, matching resend_verification.rs: "this
// should be re-initiated from settings". Captcha and email-syntax failures
// are reported; the lookup itself never fails visibly.
func (s *Service) ResendVerification(ctx context.Context, email, captchaResponse string) error {
	if err := s.policy.Captcha.Check(ctx, captchaResponse); err != nil {
		return err
	}
	if err := s.policy.Email.ValidateEmail(email); err != nil {
		return err
	}

	account, err := s.store.FindAccountByNormalisedEmail(ctx, models.NormaliseEmail(email))
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return models.DatabaseError("find_account_by_normalised_email", "", err)
	}

	switch account.Verification.Status {
	case models.VerificationVerified:
		return s.startPasswordReset(ctx, account)
	case models.VerificationPending:
		return s.startEmailVerification(ctx, account)
	default:
		return nil
	}
}

// StartAccountDeletion begins the deletion confirmation handshake, mailing
// a delete/<token> link. Callers must have already proven a ValidatedTicket
// for account (spec section 4.4/9), grounded on delete_account.rs.
func (s *Service) StartAccountDeletion(ctx context.Context, account *models.Account) error {
	token := crypto.SecureRandomString(deletionTokenLength)
	account.Deletion = &models.Deletion{
		Status: models.DeletionWaitingForVerification,
		Token:  token,
		Expiry: time.Now().UTC().Add(s.cfg.AccountDeletionExpiry),
	}
	account.BeforeUpdate()
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return models.DatabaseError("save_account", account.ID, err)
	}

	url := s.cfg.BaseURL + "/delete/" + token
	if err := s.mailer.SendDeletionConfirmation(ctx, account.Email, url); err != nil {
		return models.ErrEmailFailed
	}
	return nil
}

// ConfirmDeletion consumes a delete token, scheduling the account for
// deletion after the configured grace period (spec section 4.4, grounded on
// confirm_deletion.rs's schedule_deletion).
func (s *Service) ConfirmDeletion(ctx context.Context, token string) error {
	account, err := s.store.FindAccountWithDeletionToken(ctx, token)
	if err != nil {
		if err == store.ErrNotFound {
			return models.ErrInvalidToken
		}
		return models.DatabaseError("find_account_with_deletion_token", "", err)
	}

	account.Deletion = &models.Deletion{
		Status: models.DeletionScheduled,
		After:  time.Now().UTC().Add(s.cfg.DeletionGracePeriod),
	}
	account.BeforeUpdate()
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return models.DatabaseError("save_account", account.ID, err)
	}
	return nil
}

// Disable marks account disabled and revokes every session it holds,
// including the one the caller authenticated this request with. Callers
// must have already proven a ValidatedTicket for account (spec section
// 4.4/9), grounded on disable_account.rs.
func (s *Service) Disable(ctx context.Context, account *models.Account) error {
	account.Disabled = true
	account.BeforeUpdate()
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return models.DatabaseError("save_account", account.ID, err)
	}
	return s.session.RevokeAll(ctx, account.ID, nil, true)
}
