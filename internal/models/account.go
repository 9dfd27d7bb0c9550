package models

import (
	"regexp"
	"strings"
	"time"
)

// VerificationStatus discriminates the Account.Verification tagged union.
// #IMPLEMENTATION_DECISION: mirrors the teacher's string-enum + MarshalJSON
// pattern (user.go's UserRole) but the JSON tag here is "status", matching
// spec section 9's {"status": "<Variant>", ...} convention for tagged unions.
type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "Verified"
	VerificationPending  VerificationStatus = "Pending"
	VerificationMoving   VerificationStatus = "Moving"
)

// Verification is the account's email-verification state.
// #DATA_ASSUMPTION: Token/Expiry are only meaningful when Status != Verified.
type Verification struct {
	Status   VerificationStatus `bson:"status" json:"status"`
	Token    string             `bson:"token,omitempty" json:"-"`
	Expiry   time.Time          `bson:"expiry,omitempty" json:"-"`
	NewEmail string             `bson:"new_email,omitempty" json:"-"`
}

// PasswordReset holds an in-flight password reset token, if any.
type PasswordReset struct {
	Token  string    `bson:"token" json:"-"`
	Expiry time.Time `bson:"expiry" json:"-"`
}

// DeletionStatus discriminates the Account.Deletion tagged union.
type DeletionStatus string

const (
	DeletionWaitingForVerification DeletionStatus = "WaitingForVerification"
	DeletionScheduled              DeletionStatus = "Scheduled"
	DeletionDeleted                DeletionStatus = "Deleted"
)

// Deletion is the account's scheduled-deletion state.
type Deletion struct {
	Status DeletionStatus `bson:"status" json:"status"`
	Token  string         `bson:"token,omitempty" json:"-"`
	Expiry time.Time      `bson:"expiry,omitempty" json:"-"`
	After  time.Time      `bson:"after,omitempty" json:"-"`
}

// Lockout tracks consecutive password-verification failures.
// #SECURITY_ASSUMPTION: Expiry in the future means the account is locked;
// the escalation table lives in Account.RecordPasswordFailure (lockout.go).
type Lockout struct {
	Attempts int        `bson:"attempts" json:"-"`
	Expiry   *time.Time `bson:"expiry,omitempty" json:"-"`
}

// IsActive reports whether the lockout currently blocks a password attempt.
func (l *Lockout) IsActive(now time.Time) bool {
	return l != nil && l.Expiry != nil && l.Expiry.After(now)
}

// TotpStatus discriminates the MFA.Totp tagged union.
type TotpStatus string

const (
	TotpDisabled TotpStatus = "Disabled"
	TotpPending  TotpStatus = "Pending"
	TotpEnabled  TotpStatus = "Enabled"
)

// MFA holds the account's multi-factor enrollment state.
// #DATA_ASSUMPTION: Secret is base32 (RFC 4648, no padding); Enabled never
// carries an empty Secret (spec invariant 6).
type MFA struct {
	TotpStatus     TotpStatus `bson:"totp_status" json:"-"`
	TotpSecret     string     `bson:"totp_secret,omitempty" json:"-"`
	RecoveryCodes  []string   `bson:"recovery_codes,omitempty" json:"-"`
}

// Account is the root aggregate: the persistent identity record for one user.
// #CARDINALITY_ASSUMPTION: one Account has many Sessions and many MFATickets.
type Account struct {
	ID               string `bson:"_id" json:"id"`
	Email            string `bson:"email" json:"email"`
	EmailNormalised  string `bson:"email_normalised" json:"-"`
	PasswordHash     string `bson:"password_hash" json:"-"`
	Disabled         bool   `bson:"disabled" json:"disabled"`

	Verification  Verification   `bson:"verification" json:"-"`
	PasswordReset *PasswordReset `bson:"password_reset,omitempty" json:"-"`
	Deletion      *Deletion      `bson:"deletion,omitempty" json:"-"`
	Lockout       *Lockout       `bson:"lockout,omitempty" json:"-"`
	MFA           MFA            `bson:"mfa" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CollectionName returns the MongoDB collection name for accounts.
func (Account) CollectionName() string {
	return "accounts"
}

// BeforeCreate assigns the ULID primary key and creation/update timestamps.
// #IMPLEMENTATION_DECISION: ID is minted here rather than by the store, so
// in-memory and Mongo-backed Store implementations mint identical ID shapes.
func (a *Account) BeforeCreate() {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = NewID()
	}
	a.CreatedAt = now
	a.UpdatedAt = now
}

// BeforeUpdate refreshes UpdatedAt ahead of a save.
func (a *Account) BeforeUpdate() {
	a.UpdatedAt = time.Now().UTC()
}

// IsVerified reports whether the account has completed email verification.
func (a *Account) IsVerified() bool {
	return a.Verification.Status == VerificationVerified
}

// IsDeleted reports whether the account has reached the terminal Deleted state.
func (a *Account) IsDeleted() bool {
	return a.Deletion != nil && a.Deletion.Status == DeletionDeleted
}

var dotsAndPlusTag = regexp.MustCompile(`\+.*$`)

// NormaliseEmail lowercases the domain+local part, strips a "+tag" suffix
// and removes dots from the local part, per spec section 3's definition of
// "Normalised email". Grounded on original_source's Account::normalise,
// which applies the same local-part transform before the "@".
func NormaliseEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return strings.ToLower(email)
	}
	local, domain := email[:at], email[at+1:]
	local = dotsAndPlusTag.ReplaceAllString(local, "")
	local = strings.ReplaceAll(local, ".", "")
	return strings.ToLower(local) + "@" + strings.ToLower(domain)
}
