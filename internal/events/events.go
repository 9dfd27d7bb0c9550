// Package events implements the bounded, best-effort lifecycle broadcaster
// that carries AccountService/SessionService/MFAService notifications to
// downstream consumers (spec section 2/5/9). Grounded on the Rust
// AuthifierEvent enum (original_source/crates/authifier/src/events/mod.rs);
// reshaped into a Go sum type plus a non-blocking channel sink, the way the
// teacher favors plain channels over an external pub/sub library for
// in-process fan-out (nothing in the retrieval pack pulls in a message
// broker client for this kind of internal notification).
package events

import (
	"log"

	"github.com/nisfix-tools/authcore/internal/models"
)

// Kind discriminates the closed set of lifecycle notifications.
type Kind string

const (
	KindAccountCreated     Kind = "AccountCreated"
	KindSessionCreated     Kind = "SessionCreated"
	KindSessionDeleted     Kind = "SessionDeleted"
	KindAllSessionsDeleted Kind = "AllSessionsDeleted"
)

// Event is the tagged union emitted onto the Sink.
type Event struct {
	Kind Kind `json:"event_type"`

	Account *models.Account `json:"account,omitempty"`
	Session *models.Session `json:"session,omitempty"`

	UserID            string `json:"user_id,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
	ExcludeSessionID  string `json:"exclude_session_id,omitempty"`
}

// AccountCreated builds a CreateAccount-equivalent event.
func AccountCreated(account *models.Account) Event {
	return Event{Kind: KindAccountCreated, Account: account}
}

// SessionCreated builds a CreateSession-equivalent event.
func SessionCreated(session *models.Session) Event {
	return Event{Kind: KindSessionCreated, Session: session}
}

// SessionDeleted builds a DeleteSession-equivalent event.
func SessionDeleted(userID, sessionID string) Event {
	return Event{Kind: KindSessionDeleted, UserID: userID, SessionID: sessionID}
}

// AllSessionsDeleted builds a DeleteAllSessions-equivalent event. exclude is
// "" when every session (including the caller's) was removed.
func AllSessionsDeleted(userID, exclude string) Event {
	return Event{Kind: KindAllSessionsDeleted, UserID: userID, ExcludeSessionID: exclude}
}

// Sink is a bounded, many-producer single-consumer broadcaster. Emit never
// blocks the caller and never fails the originating operation (spec section
// 5: "the core does not wait for subscribers and must not fail an operation
// because event delivery failed"); an overflowing buffer drops the event and
// logs it instead.
type Sink struct {
	ch chan Event
}

// NewSink constructs a Sink with the given channel buffer size.
func NewSink(bufferSize int) *Sink {
	return &Sink{ch: make(chan Event, bufferSize)}
}

// Emit attempts a non-blocking send. On a full buffer the event is dropped
// and logged rather than applying backpressure to the caller.
func (s *Sink) Emit(event Event) {
	if s == nil {
		return
	}
	select {
	case s.ch <- event:
	default:
		log.Printf("[EVENTS] dropped %s event: channel buffer full", event.Kind)
	}
}

// Subscribe returns the receive-only channel consumers drain events from.
func (s *Sink) Subscribe() <-chan Event {
	return s.ch
}
