package models

import (
	"strings"
	"time"
)

// Roles a user may register with.
const (
	RoleUser     = "user"
	RoleMerchant = "merchant"
)

// User is an account holder. Secrets and their expiries never leave the service.
type User struct {
	BaseModel `bson:",inline"`

	FirstName string `gorm:"size:100" json:"first_name" bson:"first_name"`
	LastName  string `gorm:"size:100" json:"last_name" bson:"last_name"`
	Email     string `gorm:"size:255;uniqueIndex;not null" json:"email" bson:"email"`
	Password  string `gorm:"not null" json:"-" bson:"password"`
	Role      string `gorm:"size:32;default:user" json:"role" bson:"role"`
	Phone     string `gorm:"size:32" json:"phone" bson:"phone"`

	ResetPasswordToken  string     `gorm:"size:64;index" json:"-" bson:"reset_password_token,omitempty"`
	ResetPasswordExpire *time.Time `json:"-" bson:"reset_password_expire,omitempty"`

	BVNCode       string     `gorm:"column:bvn_code;size:64" json:"-" bson:"bvn_code,omitempty"`
	BVNCodeExpire *time.Time `gorm:"column:bvn_code_expire" json:"-" bson:"bvn_code_expire,omitempty"`

	IsVerified bool `gorm:"default:false" json:"is_verified" bson:"is_verified"`
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidRole reports whether role may be chosen at registration.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleMerchant
}

// HasResetToken reports whether a reset token is outstanding.
func (u *User) HasResetToken() bool {
	return u.ResetPasswordToken != "" && u.ResetPasswordExpire != nil
}

// HasBVNCode reports whether a verification code has been issued.
func (u *User) HasBVNCode() bool {
	return u.BVNCode != "" && u.BVNCodeExpire != nil
}
