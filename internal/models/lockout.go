package models

import (
	"time"

	"github.com/nisfix-tools/authcore/internal/crypto"
)

// CheckLockout reports LockedOut if the account's lockout expiry is still
// in the future, per spec section 4.4 ("A login attempt arriving while
// lockout.expiry is in the future returns LockedOut (password check not
// even attempted)"). Shared by AccountService's direct password login and
// MFAService's password-ticket-response branch, since both paths drive the
// same escalation table.
func (a *Account) CheckLockout(now time.Time) *Error {
	if a.Lockout.IsActive(now) {
		return ErrLockedOut
	}
	return nil
}

// CheckPassword reports whether plaintext matches the account's stored
// hash. Verification failure modes are collapsed by crypto.VerifyPassword
// itself (spec section 4.2: no distinguishing output).
func (a *Account) CheckPassword(plaintext string) bool {
	return crypto.VerifyPassword(a.PasswordHash, plaintext)
}

// RecordPasswordFailure increments the lockout attempt counter and sets the
// escalating expiry per the table in spec section 4.4:
//
//	attempts 1-2: no lock
//	attempts 3:   60s
//	attempts 4:   300s
//	attempts >=5: 3600s
func (a *Account) RecordPasswordFailure(now time.Time) {
	if a.Lockout == nil {
		a.Lockout = &Lockout{Attempts: 1}
		return
	}

	a.Lockout.Attempts++

	switch {
	case a.Lockout.Attempts >= 5:
		expiry := now.Add(3600 * time.Second)
		a.Lockout.Expiry = &expiry
	case a.Lockout.Attempts == 4:
		expiry := now.Add(300 * time.Second)
		a.Lockout.Expiry = &expiry
	case a.Lockout.Attempts == 3:
		expiry := now.Add(60 * time.Second)
		a.Lockout.Expiry = &expiry
	}
}

// ClearLockout resets lockout state after a successful password check
// (spec section 4.4).
func (a *Account) ClearLockout() {
	a.Lockout = nil
}

// MFAMethod names an authentication factor a ticket response may satisfy
// (spec section 4.6).
type MFAMethod string

const (
	MFAMethodPassword MFAMethod = "Password"
	MFAMethodRecovery MFAMethod = "Recovery"
	MFAMethodTotp     MFAMethod = "Totp"
)

// MFAMethods returns the authentication factors discoverable for a, per
// spec section 4.6: Password if a password is set, Recovery if recovery
// codes remain, Totp if TOTP is Enabled.
func (a *Account) MFAMethods() []MFAMethod {
	var methods []MFAMethod
	if a.PasswordHash != "" {
		methods = append(methods, MFAMethodPassword)
	}
	if len(a.MFA.RecoveryCodes) > 0 {
		methods = append(methods, MFAMethodRecovery)
	}
	if a.MFA.TotpStatus == TotpEnabled {
		methods = append(methods, MFAMethodTotp)
	}
	return methods
}

// MFAActive reports whether any second factor beyond password is
// configured, which gates whether login issues an MFA ticket instead of a
// session directly (spec section 4.6/8's TOTP MFA login scenario).
func (a *Account) MFAActive() bool {
	return a.MFA.TotpStatus == TotpEnabled || len(a.MFA.RecoveryCodes) > 0
}
