package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/models"
)

// GormStore persists users in a relational database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore. The schema must already be migrated.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("store: db is required")
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	return s.first(ctx, "find by email", "email = ?", email)
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	return s.first(ctx, "find by id", "id = ?", id)
}

func (s *GormStore) FindByResetToken(ctx context.Context, hash string) (*models.User, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	return s.first(ctx, "find by reset token", "reset_password_token = ?", hash)
}

func (s *GormStore) first(ctx context.Context, op, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		return nil, translateGormError(op, err)
	}
	return &user, nil
}

func (s *GormStore) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("store: user is required")
	}
	user.Email = models.NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return translateGormError("create", err)
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, id string, fields Fields) (*models.User, error) {
	if fields.Empty() {
		return s.FindByID(ctx, id)
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(gormValues(fields, time.Now().UTC()))
	if result.Error != nil {
		return nil, translateGormError("update", result.Error)
	}

	// Zero affected rows is ambiguous on MySQL; the reload reports a missing user.
	return s.FindByID(ctx, id)
}

func (s *GormStore) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("reset_password_expire IS NOT NULL AND reset_password_expire <= ?", now.UTC()).
		Updates(map[string]any{
			"reset_password_token":  "",
			"reset_password_expire": nil,
		})
	if result.Error != nil {
		return 0, translateGormError("clear expired reset tokens", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &Error{Op: "ping", Err: err}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &Error{Op: "ping", Err: err}
	}
	return nil
}

// Close releases the connection pool.
func (s *GormStore) Close(context.Context) error {
	return database.Close(s.db)
}

// gormValues maps fields to columns. Each secret is written together with its expiry.
func gormValues(fields Fields, now time.Time) map[string]any {
	values := map[string]any{"updated_at": now}

	if fields.FirstName != nil {
		values["first_name"] = *fields.FirstName
	}
	if fields.LastName != nil {
		values["last_name"] = *fields.LastName
	}
	if fields.Email != nil {
		values["email"] = models.NormalizeEmail(*fields.Email)
	}
	if fields.Phone != nil {
		values["phone"] = *fields.Phone
	}
	if fields.Password != nil {
		values["password"] = *fields.Password
	}
	if token := fields.ResetToken; token != nil {
		if token.Cleared() {
			values["reset_password_token"] = ""
			values["reset_password_expire"] = nil
		} else {
			values["reset_password_token"] = token.Hash
			values["reset_password_expire"] = token.ExpiresAt.UTC()
		}
	}
	if code := fields.BVNCode; code != nil {
		if code.Cleared() {
			values["bvn_code"] = ""
			values["bvn_code_expire"] = nil
		} else {
			values["bvn_code"] = code.Hash
			values["bvn_code_expire"] = code.ExpiresAt.UTC()
		}
	}
	if fields.Verified != nil {
		values["is_verified"] = *fields.Verified
	}

	return values
}

func translateGormError(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueConstraintError(err):
		return ErrDuplicateEmail
	default:
		return &Error{Op: op, Err: err}
	}
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}
