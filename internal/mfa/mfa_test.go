package mfa

import (
	"context"
	"testing"

	"github.com/nisfix-tools/authcore/internal/crypto"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/store"
)

func newTestAccount(t *testing.T, st store.Store, password string) *models.Account {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	account := &models.Account{
		Email:           "example@validemail.com",
		EmailNormalised: "example@validemail.com",
		PasswordHash:    hash,
		Verification:    models.Verification{Status: models.VerificationVerified},
	}
	if err := st.SaveAccount(context.Background(), account); err != nil {
		t.Fatalf("SaveAccount() error = %v", err)
	}
	return account
}

func TestTOTPEnrollmentAndConsume(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := New(st)
	account := newTestAccount(t, st, "password_insecure")

	secret, err := svc.GenerateTOTPSecret(ctx, account)
	if err != nil {
		t.Fatalf("GenerateTOTPSecret() error = %v", err)
	}
	if account.MFA.TotpStatus != models.TotpPending {
		t.Fatalf("after GenerateTOTPSecret: status = %v, want Pending", account.MFA.TotpStatus)
	}

	code, err := crypto.GenerateTOTPCode(secret)
	if err != nil {
		t.Fatalf("GenerateTOTPCode() error = %v", err)
	}

	if err := svc.EnableTOTP(ctx, account, code); err != nil {
		t.Fatalf("EnableTOTP() error = %v", err)
	}
	if account.MFA.TotpStatus != models.TotpEnabled {
		t.Fatalf("after EnableTOTP: status = %v, want Enabled", account.MFA.TotpStatus)
	}

	methods := svc.AllowedMethods(account)
	found := false
	for _, m := range methods {
		if m == models.MFAMethodTotp {
			found = true
		}
	}
	if !found {
		t.Fatalf("AllowedMethods() = %v, want to include Totp", methods)
	}

	if err := svc.ConsumeMFAResponse(ctx, account, Response{TotpCode: code}, nil); err != nil {
		t.Errorf("ConsumeMFAResponse(current code) error = %v", err)
	}
}

func TestConsumeTotpCodeAllowsLastTotpCodeReplay(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := New(st)
	account := newTestAccount(t, st, "password_insecure")
	account.MFA.TotpStatus = models.TotpEnabled
	account.MFA.TotpSecret = "secret"
	if err := st.SaveAccount(ctx, account); err != nil {
		t.Fatalf("SaveAccount() error = %v", err)
	}

	ticket := models.NewMFATicket(account.ID, "tok", true)
	ticket.LastTotpCode = "token from earlier"
	if err := st.SaveTicket(ctx, ticket); err != nil {
		t.Fatalf("SaveTicket() error = %v", err)
	}

	if err := svc.ConsumeMFAResponse(ctx, account, Response{TotpCode: "token from earlier"}, ticket); err != nil {
		t.Errorf("ConsumeMFAResponse(last_totp_code) error = %v, want nil", err)
	}
}

func TestConsumeTotpCodeRejectsWrongCode(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := New(st)
	account := newTestAccount(t, st, "password_insecure")
	account.MFA.TotpStatus = models.TotpEnabled
	account.MFA.TotpSecret = "secret"
	if err := st.SaveAccount(ctx, account); err != nil {
		t.Fatalf("SaveAccount() error = %v", err)
	}

	err := svc.ConsumeMFAResponse(ctx, account, Response{TotpCode: "some random data"}, nil)
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindInvalidToken {
		t.Errorf("ConsumeMFAResponse(wrong code) error = %v, want InvalidToken", err)
	}
}

func TestConsumeRecoveryCode(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := New(st)
	account := newTestAccount(t, st, "password_insecure")

	codes, err := svc.GenerateRecoveryCodes(ctx, account)
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes() error = %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("GenerateRecoveryCodes() returned %d codes, want 10", len(codes))
	}

	used := codes[0]
	if err := svc.ConsumeMFAResponse(ctx, account, Response{RecoveryCode: used}, nil); err != nil {
		t.Fatalf("ConsumeMFAResponse(recovery) error = %v", err)
	}
	if len(account.MFA.RecoveryCodes) != 9 {
		t.Errorf("recovery codes remaining = %d, want 9", len(account.MFA.RecoveryCodes))
	}

	// Re-using the same code fails: it has been removed.
	err = svc.ConsumeMFAResponse(ctx, account, Response{RecoveryCode: used}, nil)
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindInvalidCredentials {
		t.Errorf("ConsumeMFAResponse(reused recovery) error = %v, want InvalidCredentials", err)
	}
}

func TestConsumeMFAResponseRejectsDisallowedMethod(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := New(st)
	account := newTestAccount(t, st, "password_insecure")

	err := svc.ConsumeMFAResponse(ctx, account, Response{TotpCode: "123456"}, nil)
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindDisallowedMFAMethod {
		t.Errorf("ConsumeMFAResponse(totp, not enrolled) error = %v, want DisallowedMFAMethod", err)
	}
}

func TestClaimTicket(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := New(st)

	ticket, err := svc.IssueTicket(ctx, "account1", true)
	if err != nil {
		t.Fatalf("IssueTicket() error = %v", err)
	}

	if err := svc.Claim(ctx, ticket); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	if _, err := st.FindTicketByToken(ctx, ticket.Token); err != store.ErrNotFound {
		t.Errorf("ticket should be deleted after claim, FindTicketByToken() error = %v", err)
	}
}
