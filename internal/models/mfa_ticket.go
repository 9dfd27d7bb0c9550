package models

import "time"

// TicketExpiry is the lifetime of an MFATicket, counted from the creation
// time encoded in its ULID (spec section 3/8: expiry enforced at read time,
// not by background sweep).
const TicketExpiry = 60 * time.Second

// MFATicket mediates the three-legged password -> ticket -> session exchange.
// #DATA_ASSUMPTION: ID is a ULID; its embedded timestamp is the sole source
// of truth for expiry, checked by the store at read time.
type MFATicket struct {
	ID            string  `bson:"_id" json:"id"`
	AccountID     string  `bson:"account_id" json:"account_id"`
	Token         string  `bson:"token" json:"token"`
	Validated     bool    `bson:"validated" json:"validated"`
	Authorised    bool    `bson:"authorised" json:"authorised"`
	LastTotpCode  string  `bson:"last_totp_code,omitempty" json:"-"`
}

// CollectionName returns the MongoDB collection name for MFA tickets.
func (MFATicket) CollectionName() string {
	return "mfa_tickets"
}

// NewMFATicket creates an unvalidated ticket for accountID using token as
// its random token value (minted by the caller via
// crypto.SecureRandomString). authorised
// marks a ticket issued straight off email verification (spec section 4.4)
// that can complete a first login without a further password check.
func NewMFATicket(accountID, token string, authorised bool) *MFATicket {
	return &MFATicket{
		ID:         NewID(),
		AccountID:  accountID,
		Token:      token,
		Validated:  false,
		Authorised: authorised,
	}
}

// IsExpired reports whether the ticket's ULID-encoded creation time is more
// than TicketExpiry in the past, relative to now.
func (t *MFATicket) IsExpired(now time.Time) bool {
	created, ok := IDTimestamp(t.ID)
	if !ok {
		return true
	}
	return now.Sub(created) > TicketExpiry
}
