package models

// Invite gates registration when the service is configured invite_only.
type Invite struct {
	ID        string `bson:"_id" json:"id"`
	Used      bool   `bson:"used" json:"used"`
	ClaimedBy string `bson:"claimed_by,omitempty" json:"claimed_by,omitempty"`
}

// CollectionName returns the MongoDB collection name for invites.
func (Invite) CollectionName() string {
	return "invites"
}

// Claim marks the invite consumed by accountID. Callers must persist the
// result; Claim itself only mutates the in-memory struct.
func (i *Invite) Claim(accountID string) {
	i.Used = true
	i.ClaimedBy = accountID
}
