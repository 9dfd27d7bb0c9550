package store

import (
	"context"
	"time"

	"github.com/nisfix-tools/authcore/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store over a MongoDB database. It mirrors the
// teacher's MongoUserRepository shape (internal/repository/user_repo.go) -
// one *mongo.Collection per aggregate, FindOne/UpdateOne with an upsert
// option standing in for the teacher's separate Create/Update methods,
// since spec section 4.1's Store contract only exposes a single save_*
// upsert per aggregate.
type MongoStore struct {
	db *mongo.Database

	accounts  *mongo.Collection
	sessions  *mongo.Collection
	tickets   *mongo.Collection
	invites   *mongo.Collection
	callbacks *mongo.Collection
	secrets   *mongo.Collection
}

// NewMongoStore wraps an already-connected *mongo.Database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:        db,
		accounts:  db.Collection(models.Account{}.CollectionName()),
		sessions:  db.Collection(models.Session{}.CollectionName()),
		tickets:   db.Collection(models.MFATicket{}.CollectionName()),
		invites:   db.Collection(models.Invite{}.CollectionName()),
		callbacks: db.Collection(models.Callback{}.CollectionName()),
		secrets:   db.Collection(models.Secret{}.CollectionName()),
	}
}

var _ Store = (*MongoStore)(nil)

func translateWriteErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

// FindAccount finds an account by its primary key.
func (s *MongoStore) FindAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := s.accounts.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindAccountByNormalisedEmail performs a case-insensitive lookup over the
// email_normalised index (spec section 4.1: "implementations backed by a
// case-sensitive index must apply a case-insensitive collation" - here via
// a regex anchored with the "i" option rather than relying on the
// collection-level collation alone, so this also works against a plain
// secondary index).
func (s *MongoStore) FindAccountByNormalisedEmail(ctx context.Context, normalised string) (*models.Account, error) {
	var account models.Account
	filter := bson.M{"email_normalised": bson.M{"$regex": "^" + regexEscape(normalised) + "$", "$options": "i"}}
	err := s.accounts.FindOne(ctx, filter).Decode(&account)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindAccountWithEmailVerification looks up the account whose pending or
// moving verification token matches and has not yet expired.
func (s *MongoStore) FindAccountWithEmailVerification(ctx context.Context, token string) (*models.Account, error) {
	filter := bson.M{
		"verification.token":  token,
		"verification.status": bson.M{"$ne": string(models.VerificationVerified)},
		"verification.expiry": bson.M{"$gt": time.Now().UTC()},
	}
	var account models.Account
	err := s.accounts.FindOne(ctx, filter).Decode(&account)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindAccountWithPasswordReset looks up the account whose password-reset
// token matches and has not yet expired.
func (s *MongoStore) FindAccountWithPasswordReset(ctx context.Context, token string) (*models.Account, error) {
	filter := bson.M{
		"password_reset.token":  token,
		"password_reset.expiry": bson.M{"$gt": time.Now().UTC()},
	}
	var account models.Account
	err := s.accounts.FindOne(ctx, filter).Decode(&account)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindAccountWithDeletionToken looks up the account whose
// WaitingForVerification deletion token matches and has not yet expired.
func (s *MongoStore) FindAccountWithDeletionToken(ctx context.Context, token string) (*models.Account, error) {
	filter := bson.M{
		"deletion.status": string(models.DeletionWaitingForVerification),
		"deletion.token":  token,
		"deletion.expiry": bson.M{"$gt": time.Now().UTC()},
	}
	var account models.Account
	err := s.accounts.FindOne(ctx, filter).Decode(&account)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindAccountsDueForDeletion returns every Scheduled-deletion account whose
// After timestamp has passed. Spec section 9's open question leaves the
// sweep worker itself out of scope; this only exposes the query primitive.
func (s *MongoStore) FindAccountsDueForDeletion(ctx context.Context, now time.Time) ([]*models.Account, error) {
	filter := bson.M{
		"deletion.status": string(models.DeletionScheduled),
		"deletion.after":  bson.M{"$lte": now},
	}
	cursor, err := s.accounts.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var due []*models.Account
	if err := cursor.All(ctx, &due); err != nil {
		return nil, err
	}
	return due, nil
}

// SaveAccount upserts account by primary key. Uniqueness on email and
// email_normalised is enforced by the unique indices created in
// RunMigrations; a collision surfaces as ErrDuplicateKey.
func (s *MongoStore) SaveAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.BeforeCreate()
	} else {
		account.BeforeUpdate()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.accounts.ReplaceOne(ctx, bson.M{"_id": account.ID}, account, opts)
	return translateWriteErr(err)
}

// FindSession finds a session by its primary key.
func (s *MongoStore) FindSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindSessionByToken finds a session by its bearer token.
func (s *MongoStore) FindSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	err := s.sessions.FindOne(ctx, bson.M{"token": token}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindSessions returns every session belonging to userID.
func (s *MongoStore) FindSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	cursor, err := s.sessions.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// FindSessionsWithSubscription returns sessions among userIDs that carry a
// push subscription.
func (s *MongoStore) FindSessionsWithSubscription(ctx context.Context, userIDs []string) ([]*models.Session, error) {
	filter := bson.M{
		"user_id":      bson.M{"$in": userIDs},
		"subscription": bson.M{"$ne": nil},
	}
	cursor, err := s.sessions.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SaveSession upserts session by primary key. Token uniqueness is enforced
// by the unique index created in RunMigrations.
func (s *MongoStore) SaveSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.BeforeCreate()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.sessions.ReplaceOne(ctx, bson.M{"_id": session.ID}, session, opts)
	return translateWriteErr(err)
}

// DeleteSession removes the session with the given id.
func (s *MongoStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.sessions.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteAllSessions removes every session for userID except exceptSessionID.
func (s *MongoStore) DeleteAllSessions(ctx context.Context, userID, exceptSessionID string) (int, error) {
	filter := bson.M{"user_id": userID}
	if exceptSessionID != "" {
		filter["_id"] = bson.M{"$ne": exceptSessionID}
	}
	result, err := s.sessions.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(result.DeletedCount), nil
}

// FindTicketByToken finds a ticket by its token, requiring the ULID-encoded
// creation time to be within models.TicketExpiry (spec section 4.1).
func (s *MongoStore) FindTicketByToken(ctx context.Context, token string) (*models.MFATicket, error) {
	var ticket models.MFATicket
	err := s.tickets.FindOne(ctx, bson.M{"token": token}).Decode(&ticket)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ticket.IsExpired(time.Now().UTC()) {
		return nil, ErrNotFound
	}
	return &ticket, nil
}

// SaveTicket upserts ticket by primary key. Token uniqueness is enforced by
// the unique index created in RunMigrations.
func (s *MongoStore) SaveTicket(ctx context.Context, ticket *models.MFATicket) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.tickets.ReplaceOne(ctx, bson.M{"_id": ticket.ID}, ticket, opts)
	return translateWriteErr(err)
}

// DeleteTicket removes the ticket with the given id.
func (s *MongoStore) DeleteTicket(ctx context.Context, id string) error {
	_, err := s.tickets.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// FindInvite finds an invite by its primary key.
func (s *MongoStore) FindInvite(ctx context.Context, id string) (*models.Invite, error) {
	var invite models.Invite
	err := s.invites.FindOne(ctx, bson.M{"_id": id}).Decode(&invite)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// SaveInvite upserts invite by primary key.
func (s *MongoStore) SaveInvite(ctx context.Context, invite *models.Invite) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.invites.ReplaceOne(ctx, bson.M{"_id": invite.ID}, invite, opts)
	return translateWriteErr(err)
}

// FindCallback finds an SSO callback by its primary key (the OAuth state).
func (s *MongoStore) FindCallback(ctx context.Context, id string) (*models.Callback, error) {
	var callback models.Callback
	err := s.callbacks.FindOne(ctx, bson.M{"_id": id}).Decode(&callback)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &callback, nil
}

// SaveCallback upserts callback by primary key.
func (s *MongoStore) SaveCallback(ctx context.Context, callback *models.Callback) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.callbacks.ReplaceOne(ctx, bson.M{"_id": callback.ID}, callback, opts)
	return translateWriteErr(err)
}

// DeleteCallback removes the callback with the given id.
func (s *MongoStore) DeleteCallback(ctx context.Context, id string) error {
	_, err := s.callbacks.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// FindSecret returns the process-scoped signing secret.
func (s *MongoStore) FindSecret(ctx context.Context) (*models.Secret, error) {
	var secret models.Secret
	err := s.secrets.FindOne(ctx, bson.M{"_id": models.SecretDocumentID}).Decode(&secret)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

// SaveSecret stores the process-scoped signing secret under its fixed id.
func (s *MongoStore) SaveSecret(ctx context.Context, secret *models.Secret) error {
	secret.ID = models.SecretDocumentID
	opts := options.Replace().SetUpsert(true)
	_, err := s.secrets.ReplaceOne(ctx, bson.M{"_id": secret.ID}, secret, opts)
	return translateWriteErr(err)
}

// RunMigrations creates the indices named in spec section 4.1, grounded on
// the teacher's Client.EnsureIndexes (internal/database/mongodb.go):
// CreateMany is itself idempotent against an already-existing equivalent
// index, so no pre-check is needed beyond what the driver already does.
func (s *MongoStore) RunMigrations(ctx context.Context) error {
	collation := &options.Collation{Locale: "en", Strength: 2}

	indexSets := []struct {
		collection *mongo.Collection
		models     []mongo.IndexModel
	}{
		{
			collection: s.accounts,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "email_normalised", Value: 1}},
					Options: options.Index().SetUnique(true).SetCollation(collation),
				},
				{
					Keys:    bson.D{{Key: "email", Value: 1}},
					Options: options.Index().SetUnique(true).SetCollation(collation),
				},
				{
					Keys:    bson.D{{Key: "verification.token", Value: 1}},
					Options: options.Index().SetSparse(true),
				},
				{
					Keys:    bson.D{{Key: "password_reset.token", Value: 1}},
					Options: options.Index().SetSparse(true),
				},
				{
					Keys:    bson.D{{Key: "deletion.token", Value: 1}},
					Options: options.Index().SetSparse(true),
				},
				{
					Keys:    bson.D{{Key: "deletion.status", Value: 1}, {Key: "deletion.after", Value: 1}},
					Options: options.Index().SetSparse(true),
				},
			},
		},
		{
			collection: s.sessions,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "token", Value: 1}},
					Options: options.Index().SetUnique(true),
				},
				{
					Keys: bson.D{{Key: "user_id", Value: 1}},
				},
			},
		},
		{
			collection: s.tickets,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "token", Value: 1}},
					Options: options.Index().SetUnique(true),
				},
			},
		},
		{
			collection: s.callbacks,
			models: []mongo.IndexModel{
				{
					Keys: bson.D{{Key: "idp_id", Value: 1}},
				},
			},
		},
	}

	for _, set := range indexSets {
		if _, err := set.collection.Indexes().CreateMany(ctx, set.models); err != nil {
			return err
		}
	}
	return nil
}

// regexEscape escapes Mongo regex metacharacters in a literal value used as
// an anchored-equality filter (the case-insensitive email lookup above).
func regexEscape(s string) string {
	special := `.*+?()[]{}|^$\`
	out := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		if indexByte(special, s[i]) {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func indexByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}
