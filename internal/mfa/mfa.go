// Package mfa implements MFAService (spec section 4.6): ticket issuance,
// TOTP enrollment, recovery codes and mfa-response validation. Grounded on
// original_source's crates/authifier/src/impl/mfa/totp.rs,
// crates/rauth/src/impl/mfa/mod.rs and the ticket-consuming branch of
// rocket_authifier's session/login.rs route.
package mfa

import (
	"context"
	"time"

	"github.com/nisfix-tools/authcore/internal/crypto"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/store"
)

const mfaTicketTokenLength = 32

// Response is one of {password}, {recovery_code} or {totp_code}, the
// mfa_response payload of spec section 4.6/6.
type Response struct {
	Password     string
	RecoveryCode string
	TotpCode     string
}

// method reports which MFAMethod this response satisfies.
func (r Response) method() (models.MFAMethod, bool) {
	switch {
	case r.Password != "":
		return models.MFAMethodPassword, true
	case r.RecoveryCode != "":
		return models.MFAMethodRecovery, true
	case r.TotpCode != "":
		return models.MFAMethodTotp, true
	default:
		return "", false
	}
}

// Service implements MFAService over a Store.
type Service struct {
	store store.Store
}

// New constructs a Service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// AllowedMethods returns the authentication factors discoverable for
// account (spec section 4.6).
func (s *Service) AllowedMethods(account *models.Account) []models.MFAMethod {
	return account.MFAMethods()
}

// IssueTicket creates an MFATicket for accountID, authorised as given (spec
// section 4.6: "MFATicket::new(account_id, authorised)").
func (s *Service) IssueTicket(ctx context.Context, accountID string, authorised bool) (*models.MFATicket, error) {
	ticket := models.NewMFATicket(accountID, crypto.SecureRandomString(mfaTicketTokenLength), authorised)
	if err := s.store.SaveTicket(ctx, ticket); err != nil {
		return nil, models.DatabaseError("save_ticket", "", err)
	}
	return ticket, nil
}

// FindTicketByToken resolves the X-MFA-Ticket header value, mapping an
// absent-or-expired ticket to InvalidToken (spec section 6).
func (s *Service) FindTicketByToken(ctx context.Context, token string) (*models.MFATicket, error) {
	ticket, err := s.store.FindTicketByToken(ctx, token)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, models.ErrInvalidToken
		}
		return nil, models.DatabaseError("find_ticket_by_token", "", err)
	}
	return ticket, nil
}

// Claim verifies ticket is not expired and deletes it, returning nil on
// success (spec section 4.6: "claim() (used for
// authorised tickets): verify not expired (60 s), delete the ticket, return
// success. Any failure -> InvalidToken.").
func (s *Service) Claim(ctx context.Context, ticket *models.MFATicket) error {
	if ticket.IsExpired(time.Now().UTC()) {
		return models.ErrInvalidToken
	}
	if err := s.store.DeleteTicket(ctx, ticket.ID); err != nil {
		return models.DatabaseError("delete_ticket", ticket.ID, err)
	}
	return nil
}

// ConsumeMFAResponse validates response against account, updating and
// persisting account (and ticket, when present) as a side effect (spec
// section 4.6). The caller is responsible for marking the ticket validated
// once this returns without error; ConsumeMFAResponse itself only proves
// the response, it does not mutate ticket.Validated.
func (s *Service) ConsumeMFAResponse(ctx context.Context, account *models.Account, response Response, ticket *models.MFATicket) error {
	method, ok := response.method()
	if !ok {
		return models.ErrInvalidToken
	}

	allowed := false
	for _, m := range account.MFAMethods() {
		if m == method {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.ErrDisallowedMFAMethod
	}

	switch method {
	case models.MFAMethodPassword:
		return s.consumePassword(ctx, account, response.Password)
	case models.MFAMethodRecovery:
		return s.consumeRecoveryCode(ctx, account, response.RecoveryCode)
	case models.MFAMethodTotp:
		return s.consumeTotpCode(ctx, account, response.TotpCode, ticket)
	default:
		return models.ErrInvalidToken
	}
}

// consumePassword drives the same lockout escalation table as
// AccountService's direct login path (spec section 4.4/4.6).
func (s *Service) consumePassword(ctx context.Context, account *models.Account, password string) error {
	now := time.Now().UTC()
	if err := account.CheckLockout(now); err != nil {
		return err
	}

	if !account.CheckPassword(password) {
		account.RecordPasswordFailure(now)
		if saveErr := s.store.SaveAccount(ctx, account); saveErr != nil {
			return models.DatabaseError("save_account", account.ID, saveErr)
		}
		return models.ErrInvalidCredentials
	}

	account.ClearLockout()
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return models.DatabaseError("save_account", account.ID, err)
	}
	return nil
}

// consumeRecoveryCode matches-and-removes a recovery code on success (spec
// section 4.6).
func (s *Service) consumeRecoveryCode(ctx context.Context, account *models.Account, code string) error {
	codes := account.MFA.RecoveryCodes
	for i, candidate := range codes {
		if candidate == code {
			account.MFA.RecoveryCodes = append(codes[:i], codes[i+1:]...)
			if err := s.store.SaveAccount(ctx, account); err != nil {
				return models.DatabaseError("save_account", account.ID, err)
			}
			return nil
		}
	}
	return models.ErrInvalidCredentials
}

// consumeTotpCode accepts the current code, or the ticket's last accepted
// code (replay allowance within the same ticket window), and records the
// accepted code back onto the ticket (spec section 4.6).
func (s *Service) consumeTotpCode(ctx context.Context, account *models.Account, code string, ticket *models.MFATicket) error {
	if account.MFA.TotpStatus != models.TotpEnabled {
		return models.ErrDisallowedMFAMethod
	}

	current, err := crypto.GenerateTOTPCode(account.MFA.TotpSecret)
	if err != nil {
		return models.ErrInternalError
	}

	accepted := code == current || (ticket != nil && ticket.LastTotpCode != "" && code == ticket.LastTotpCode)
	if !accepted {
		return models.ErrInvalidToken
	}

	if ticket != nil {
		ticket.LastTotpCode = code
		if err := s.store.SaveTicket(ctx, ticket); err != nil {
			return models.DatabaseError("save_ticket", ticket.ID, err)
		}
	}
	return nil
}

// GenerateTOTPSecret begins TOTP enrollment, failing OperationFailed if
// TOTP is already Enabled (spec section 4.6).
func (s *Service) GenerateTOTPSecret(ctx context.Context, account *models.Account) (string, error) {
	if account.MFA.TotpStatus == models.TotpEnabled {
		return "", models.ErrOperationFailed
	}

	secret, err := crypto.GenerateTOTPSecret()
	if err != nil {
		return "", models.ErrInternalError
	}

	account.MFA.TotpStatus = models.TotpPending
	account.MFA.TotpSecret = secret
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return "", models.DatabaseError("save_account", account.ID, err)
	}
	return secret, nil
}

// EnableTOTP promotes a Pending TOTP secret to Enabled once response proves
// possession of it (spec section 4.6).
func (s *Service) EnableTOTP(ctx context.Context, account *models.Account, response string) error {
	if account.MFA.TotpStatus != models.TotpPending {
		return models.ErrOperationFailed
	}

	ok, err := crypto.VerifyTOTPCode(account.MFA.TotpSecret, response)
	if err != nil || !ok {
		return models.ErrInvalidToken
	}

	account.MFA.TotpStatus = models.TotpEnabled
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return models.DatabaseError("save_account", account.ID, err)
	}
	return nil
}

// DisableTOTP clears TOTP enrollment entirely (spec section 4.6).
func (s *Service) DisableTOTP(ctx context.Context, account *models.Account) error {
	account.MFA.TotpStatus = models.TotpDisabled
	account.MFA.TotpSecret = ""
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return models.DatabaseError("save_account", account.ID, err)
	}
	return nil
}

// GenerateRecoveryCodes replaces account's recovery codes with 10 freshly
// minted ones (spec section 4.6).
func (s *Service) GenerateRecoveryCodes(ctx context.Context, account *models.Account) ([]string, error) {
	codes, err := crypto.GenerateRecoveryCodes()
	if err != nil {
		return nil, models.ErrInternalError
	}

	account.MFA.RecoveryCodes = codes
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return nil, models.DatabaseError("save_account", account.ID, err)
	}
	return codes, nil
}
