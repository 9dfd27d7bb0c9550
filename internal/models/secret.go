package models

// Secret is the process-scoped symmetric key used to sign OAuth state
// cookies. It is loaded once at startup and never mutated.
type Secret struct {
	ID    string `bson:"_id" json:"-"`
	Value []byte `bson:"value" json:"-"`
}

// CollectionName returns the MongoDB collection name for the signing secret.
func (Secret) CollectionName() string {
	return "secrets"
}

// SecretDocumentID is the fixed id under which the singleton Secret is
// stored; there is exactly one document in this collection.
const SecretDocumentID = "signing_secret"
