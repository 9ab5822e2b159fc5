package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/charlesng35/accountd/internal/models"
)

// MongoConfig describes how to reach the users collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore persists users as documents.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// OpenMongo connects to MongoDB, verifies the connection and ensures indexes.
func OpenMongo(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, errors.New("store: mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = "accountd"
	}
	if cfg.Collection == "" {
		cfg.Collection = "users"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, &Error{Op: "connect", Err: err}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &Error{Op: "ping", Err: err}
	}

	s := &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}
	if err := s.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique email index and the reset token lookup index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "reset_password_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return &Error{Op: "ensure indexes", Err: err}
	}
	return nil
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, "find by email", bson.M{"email": email})
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, "find by id", bson.M{"_id": id})
}

func (s *MongoStore) FindByResetToken(ctx context.Context, hash string) (*models.User, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, "find by reset token", bson.M{"reset_password_token": hash})
}

func (s *MongoStore) findOne(ctx context.Context, op string, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateMongoError(op, err)
	}
	return &user, nil
}

func (s *MongoStore) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("store: user is required")
	}
	prepareMongoInsert(user, time.Now().UTC())
	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		return translateMongoError("create", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, fields Fields) (*models.User, error) {
	if fields.Empty() {
		return s.FindByID(ctx, id)
	}

	result := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		mongoUpdate(fields, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if err := result.Err(); err != nil {
		return nil, translateMongoError("update", err)
	}

	var updated models.User
	if err := result.Decode(&updated); err != nil {
		return nil, &Error{Op: "decode", Err: err}
	}
	return &updated, nil
}

func (s *MongoStore) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.collection.UpdateMany(ctx, expiredResetFilter(now), bson.M{
		"$unset": bson.M{
			"reset_password_token":  "",
			"reset_password_expire": "",
		},
	})
	if err != nil {
		return 0, translateMongoError("clear expired reset tokens", err)
	}
	return result.ModifiedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return &Error{Op: "ping", Err: err}
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func prepareMongoInsert(user *models.User, now time.Time) {
	user.EnsureID()
	user.Email = models.NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
}

func expiredResetFilter(now time.Time) bson.M {
	return bson.M{"reset_password_expire": bson.M{"$lte": now.UTC()}}
}

// mongoUpdate builds a single update document. Each secret is set or unset together with its expiry.
func mongoUpdate(fields Fields, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	unset := bson.M{}

	if fields.FirstName != nil {
		set["first_name"] = *fields.FirstName
	}
	if fields.LastName != nil {
		set["last_name"] = *fields.LastName
	}
	if fields.Email != nil {
		set["email"] = models.NormalizeEmail(*fields.Email)
	}
	if fields.Phone != nil {
		set["phone"] = *fields.Phone
	}
	if fields.Password != nil {
		set["password"] = *fields.Password
	}
	applyTokenState(set, unset, fields.ResetToken, "reset_password_token", "reset_password_expire")
	applyTokenState(set, unset, fields.BVNCode, "bvn_code", "bvn_code_expire")
	if fields.Verified != nil {
		set["is_verified"] = *fields.Verified
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func applyTokenState(set, unset bson.M, state *TokenState, hashKey, expiryKey string) {
	if state == nil {
		return
	}
	if state.Cleared() {
		unset[hashKey] = ""
		unset[expiryKey] = ""
		return
	}
	set[hashKey] = state.Hash
	set[expiryKey] = state.ExpiresAt.UTC()
}

func translateMongoError(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicateEmail
	default:
		return &Error{Op: op, Err: err}
	}
}
