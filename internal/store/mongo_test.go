package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/charlesng35/accountd/internal/models"
)

func TestMongoUpdateSetsSecretWithExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(10 * time.Minute)

	update := mongoUpdate(Fields{BVNCode: SetToken("codehash", expiry), Phone: String("123")}, now)

	set := update["$set"].(bson.M)
	require.Equal(t, "codehash", set["bvn_code"])
	require.Equal(t, expiry, set["bvn_code_expire"])
	require.Equal(t, "123", set["phone"])
	require.Equal(t, now, set["updated_at"])
	require.NotContains(t, update, "$unset")
}

func TestMongoUpdateUnsetsClearedSecret(t *testing.T) {
	now := time.Now().UTC()

	update := mongoUpdate(Fields{ResetToken: ClearToken(), Password: String("hash")}, now)

	set := update["$set"].(bson.M)
	unset := update["$unset"].(bson.M)
	require.Equal(t, "hash", set["password"])
	require.Contains(t, unset, "reset_password_token")
	require.Contains(t, unset, "reset_password_expire")
	require.NotContains(t, set, "reset_password_token")
}

func TestMongoUpdateNormalisesEmail(t *testing.T) {
	update := mongoUpdate(Fields{Email: String(" Ada@Example.COM")}, time.Now())
	require.Equal(t, "ada@example.com", update["$set"].(bson.M)["email"])
}

func TestPrepareMongoInsert(t *testing.T) {
	now := time.Now().UTC()
	user := &models.User{Email: "ADA@example.com"}

	prepareMongoInsert(user, now)

	require.NotEmpty(t, user.ID)
	require.Equal(t, "ada@example.com", user.Email)
	require.Equal(t, models.RoleUser, user.Role)
	require.Equal(t, now, user.CreatedAt)
	require.Equal(t, now, user.UpdatedAt)
}

func TestUserDocumentShape(t *testing.T) {
	user := models.User{BaseModel: models.BaseModel{ID: "u1"}, Email: "ada@example.com"}

	raw, err := bson.Marshal(user)
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	require.Equal(t, "u1", doc["_id"])
	require.Equal(t, "ada@example.com", doc["email"])
	require.NotContains(t, doc, "reset_password_token", "empty secrets are omitted")
	require.NotContains(t, doc, "BaseModel")
}

func TestExpiredResetFilter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	filter := expiredResetFilter(now)
	require.Equal(t, bson.M{"$lte": now}, filter["reset_password_expire"])
}

func TestTranslateMongoError(t *testing.T) {
	require.ErrorIs(t, translateMongoError("find", mongo.ErrNoDocuments), ErrNotFound)

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	require.ErrorIs(t, translateMongoError("create", dup), ErrDuplicateEmail)

	cause := errors.New("connection refused")
	var storeErr *Error
	require.ErrorAs(t, translateMongoError("find", cause), &storeErr)
	require.Equal(t, "find", storeErr.Op)
}
