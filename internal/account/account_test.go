package account

import (
	"context"
	"testing"
	"time"

	"github.com/nisfix-tools/authcore/internal/events"
	"github.com/nisfix-tools/authcore/internal/mfa"
	"github.com/nisfix-tools/authcore/internal/models"
	"github.com/nisfix-tools/authcore/internal/policy"
	"github.com/nisfix-tools/authcore/internal/session"
	"github.com/nisfix-tools/authcore/internal/store"
)

type fakeMailer struct {
	verificationTo  string
	verificationURL string
	resetTo         string
	resetURL        string
	moveTo          string
	moveURL         string
	deletionTo      string
	deletionURL     string
}

func (f *fakeMailer) SendVerification(ctx context.Context, email, url string) error {
	f.verificationTo, f.verificationURL = email, url
	return nil
}

func (f *fakeMailer) SendPasswordReset(ctx context.Context, email, url string) error {
	f.resetTo, f.resetURL = email, url
	return nil
}

func (f *fakeMailer) SendEmailMove(ctx context.Context, email, url string) error {
	f.moveTo, f.moveURL = email, url
	return nil
}

func (f *fakeMailer) SendDeletionConfirmation(ctx context.Context, email, url string) error {
	f.deletionTo, f.deletionURL = email, url
	return nil
}

func newTestService(t *testing.T, cfg Config) (*Service, store.Store, *fakeMailer) {
	t.Helper()
	st := store.NewMemoryStore()
	pe := &policy.Engine{
		Email:    policy.NewEmailPolicy(policy.EmailBlocklistDisabled, nil),
		Password: policy.NewPasswordPolicy(policy.PasswordScannerNone, nil, ""),
		Captcha:  policy.NewCaptchaPolicy(policy.CaptchaDisabled, ""),
		Shield:   policy.NewShieldPolicy(policy.ShieldDisabled, "", false),
	}
	fm := &fakeMailer{}
	sink := events.NewSink(16)
	mfaSvc := mfa.New(st)
	sessSvc := session.New(st, sink)
	return New(st, pe, fm, mfaSvc, sessSvc, sink, cfg), st, fm
}

func TestRegisterWithVerificationEnabled(t *testing.T) {
	ctx := context.Background()
	svc, st, fm := newTestService(t, Config{
		EmailVerificationEnabled: true,
		VerificationExpiry:       time.Hour,
		BaseURL:                  "https://auth.example.test",
	})

	acc, err := svc.Register(ctx, RegisterInput{Email: "new.user@validemail.com", Password: "a very good password"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if acc.Verification.Status != models.VerificationPending {
		t.Errorf("Verification.Status = %v, want Pending", acc.Verification.Status)
	}
	if fm.verificationTo != acc.Email {
		t.Errorf("mailer received verification for %q, want %q", fm.verificationTo, acc.Email)
	}

	stored, err := st.FindAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindAccount() error = %v", err)
	}
	if stored.EmailNormalised != "newuser@validemail.com" {
		t.Errorf("EmailNormalised = %q", stored.EmailNormalised)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, Config{VerificationExpiry: time.Hour, BaseURL: "https://x"})

	input := RegisterInput{Email: "dup@validemail.com", Password: "a very good password"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := svc.Register(ctx, input)
	merr, ok := err.(*models.Error)
	if !ok || merr.Kind != models.KindEmailInUse {
		t.Errorf("second Register() error = %v, want EmailInUse", err)
	}
}

func TestRegisterInviteOnlyRequiresValidInvite(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t, Config{InviteOnly: true, BaseURL: "https://x"})

	_, err := svc.Register(ctx, RegisterInput{Email: "a@validemail.com", Password: "a very good password"})
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindMissingInvite {
		t.Fatalf("Register() without invite = %v, want MissingInvite", err)
	}

	invite := &models.Invite{ID: "invite-1"}
	if err := st.SaveInvite(ctx, invite); err != nil {
		t.Fatalf("SaveInvite() error = %v", err)
	}

	acc, err := svc.Register(ctx, RegisterInput{Email: "a@validemail.com", Password: "a very good password", InviteCode: "invite-1"})
	if err != nil {
		t.Fatalf("Register() with invite error = %v", err)
	}

	claimed, err := st.FindInvite(ctx, "invite-1")
	if err != nil {
		t.Fatalf("FindInvite() error = %v", err)
	}
	if !claimed.Used || claimed.ClaimedBy != acc.ID {
		t.Errorf("invite not claimed: %+v", claimed)
	}

	_, err = svc.Register(ctx, RegisterInput{Email: "b@validemail.com", Password: "a very good password", InviteCode: "invite-1"})
	if merr, ok := err.(*models.Error); !ok || merr.Kind != models.KindInvalidInvite {
		t.Errorf("Register() with reused invite = %v, want InvalidInvite", err)
	}
}

func TestVerifyEmailIssuesAuthorisedTicket(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t, Config{EmailVerificationEnabled: true, VerificationExpiry: time.Hour, BaseURL: "https://x"})

	acc, err := svc.Register(ctx, RegisterInput{Email: "verify@validemail.com", Password: "a very good password"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	token := acc.Verification.Token

	ticket, err := svc.VerifyEmail(ctx, token)
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	if ticket == nil || !ticket.Authorised {
		t.Fatalf("VerifyEmail() ticket = %+v, want authorised", ticket)
	}

	stored, err := st.FindAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindAccount() error = %v", err)
	}
	if !stored.IsVerified() {
		t.Errorf("account not marked verified after VerifyEmail()")
	}

	if _, err := svc.VerifyEmail(ctx, token); err != store.ErrNotFound && !isInvalidToken(err) {
		t.Errorf("reusing a verify token should fail, got %v", err)
	}
}

func TestVerifyEmailCompletesMoveWithoutTicket(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t, Config{EmailVerificationEnabled: true, VerificationExpiry: time.Hour, BaseURL: "https://x"})

	acc, err := svc.Register(ctx, RegisterInput{Email: "mover@validemail.com", Password: "a very good password"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.VerifyEmail(ctx, acc.Verification.Token); err != nil {
		t.Fatalf("initial VerifyEmail() error = %v", err)
	}

	if err := svc.StartMove(ctx, acc, "moved@validemail.com"); err != nil {
		t.Fatalf("StartMove() error = %v", err)
	}

	ticket, err := svc.VerifyEmail(ctx, acc.Verification.Token)
	if err != nil {
		t.Fatalf("VerifyEmail(move) error = %v", err)
	}
	if ticket != nil {
		t.Errorf("VerifyEmail(move) ticket = %+v, want nil", ticket)
	}

	stored, err := st.FindAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindAccount() error = %v", err)
	}
	if stored.Email != "moved@validemail.com" {
		t.Errorf("Email = %q, want moved@validemail.com", stored.Email)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	svc, st, fm := newTestService(t, Config{PasswordResetExpiry: time.Hour, BaseURL: "https://x"})

	acc, err := svc.Register(ctx, RegisterInput{Email: "reset@validemail.com", Password: "original password"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, "reset@validemail.com", ""); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if fm.resetTo != acc.Email {
		t.Fatalf("mailer received reset for %q, want %q", fm.resetTo, acc.Email)
	}

	stored, err := st.FindAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindAccount() error = %v", err)
	}
	token := stored.PasswordReset.Token

	if err := svc.CompletePasswordReset(ctx, token, "a brand new password"); err != nil {
		t.Fatalf("CompletePasswordReset() error = %v", err)
	}

	stored, err = st.FindAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindAccount() error = %v", err)
	}
	if stored.PasswordReset != nil {
		t.Errorf("PasswordReset not cleared after completion")
	}
	if !stored.CheckPassword("a brand new password") {
		t.Errorf("new password does not verify")
	}
}

func TestRequestPasswordResetIsEnumerationSafe(t *testing.T) {
	ctx := context.Background()
	svc, _, fm := newTestService(t, Config{PasswordResetExpiry: time.Hour, BaseURL: "https://x"})

	if err := svc.RequestPasswordReset(ctx, "nobody@validemail.com", ""); err != nil {
		t.Fatalf("RequestPasswordReset(unknown) error = %v, want nil", err)
	}
	if fm.resetTo != "" {
		t.Errorf("mailer should not have been invoked for an unknown account")
	}
}

func TestAccountDeletionStateMachine(t *testing.T) {
	ctx := context.Background()
	svc, st, fm := newTestService(t, Config{
		AccountDeletionExpiry: time.Hour,
		DeletionGracePeriod:   7 * 24 * time.Hour,
		BaseURL:               "https://x",
	})

	acc, err := svc.Register(ctx, RegisterInput{Email: "del@validemail.com", Password: "a very good password"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := svc.StartAccountDeletion(ctx, acc); err != nil {
		t.Fatalf("StartAccountDeletion() error = %v", err)
	}
	if acc.Deletion.Status != models.DeletionWaitingForVerification {
		t.Fatalf("Deletion.Status = %v, want WaitingForVerification", acc.Deletion.Status)
	}
	if fm.deletionTo != acc.Email {
		t.Errorf("mailer received deletion mail for %q, want %q", fm.deletionTo, acc.Email)
	}

	if err := svc.ConfirmDeletion(ctx, acc.Deletion.Token); err != nil {
		t.Fatalf("ConfirmDeletion() error = %v", err)
	}

	stored, err := st.FindAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindAccount() error = %v", err)
	}
	if stored.Deletion.Status != models.DeletionScheduled {
		t.Errorf("Deletion.Status = %v, want Scheduled", stored.Deletion.Status)
	}
	if stored.Deletion.After.Before(time.Now().UTC()) {
		t.Errorf("Deletion.After = %v, want in the future", stored.Deletion.After)
	}
}

func TestDisableRevokesAllSessionsIncludingCurrent(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t, Config{BaseURL: "https://x"})

	acc, err := svc.Register(ctx, RegisterInput{Email: "disable@validemail.com", Password: "a very good password"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	sess, err := svc.session.Create(ctx, acc.ID, "device")
	if err != nil {
		t.Fatalf("session.Create() error = %v", err)
	}

	if err := svc.Disable(ctx, acc); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}

	stored, err := st.FindAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindAccount() error = %v", err)
	}
	if !stored.Disabled {
		t.Errorf("account not marked disabled")
	}

	if _, err := st.FindSession(ctx, sess.ID); err != store.ErrNotFound {
		t.Errorf("FindSession() after Disable() error = %v, want ErrNotFound", err)
	}
}

func isInvalidToken(err error) bool {
	merr, ok := err.(*models.Error)
	return ok && merr.Kind == models.KindInvalidToken
}
