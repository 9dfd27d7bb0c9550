package models

import "time"

// Subscription is a push-notification endpoint attached to a session.
// #DATA_ASSUMPTION: opaque to the core; only find_sessions_with_subscription
// filters on its presence (section 4.1).
type Subscription struct {
	Endpoint string `bson:"endpoint" json:"endpoint"`
	P256DH   string `bson:"p256dh" json:"p256dh"`
	Auth     string `bson:"auth" json:"auth"`
}

// Session is an authenticated bearer token binding a client device to an account.
type Session struct {
	ID           string        `bson:"_id" json:"id"`
	UserID       string        `bson:"user_id" json:"user_id"`
	Token        string        `bson:"token" json:"token"`
	Name         string        `bson:"name,omitempty" json:"name,omitempty"`
	LastSeen     time.Time     `bson:"last_seen" json:"last_seen"`
	Origin       string        `bson:"origin,omitempty" json:"origin,omitempty"`
	Subscription *Subscription `bson:"subscription,omitempty" json:"subscription,omitempty"`
}

// CollectionName returns the MongoDB collection name for sessions.
func (Session) CollectionName() string {
	return "sessions"
}

// BeforeCreate assigns the ULID primary key and LastSeen timestamp.
func (s *Session) BeforeCreate() {
	if s.ID == "" {
		s.ID = NewID()
	}
	s.LastSeen = time.Now().UTC()
}
