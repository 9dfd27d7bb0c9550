// Package models defines the persistent aggregates of the authentication core:
// accounts, sessions, MFA tickets, invites, SSO callbacks and the process secret.
// #DATA_ASSUMPTION: every primary key is a 26-character ULID, not a database-native id
package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID mints a fresh, time-ordered, lexicographically sortable identifier.
// #LIBRARY_CHOICE: oklog/ulid/v2 - canonical ULID implementation, crypto/rand entropy
func NewID() string {
	t := ulid.Timestamp(time.Now().UTC())
	id, err := ulid.New(t, rand.Reader)
	if err != nil {
		// crypto/rand.Reader does not fail in practice; the retry uses
		// ulid.MustNew, which panics if the entropy source fails again.
		return ulid.MustNew(t, rand.Reader).String()
	}
	return id.String()
}

// IDTimestamp recovers the creation time encoded in a ULID-shaped id.
// Returns the zero time if id is not a valid ULID.
func IDTimestamp(id string) (time.Time, bool) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}
