package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type registration struct {
	FirstName string `json:"first_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"role" validate:"omitempty,oneof=user merchant"`
	Phone     string `json:"phone" validate:"omitempty,max=5"`
}

type bvnPayload struct {
	BVN string `json:"bvn" validate:"required,bvn"`
}

func TestValidatePasses(t *testing.T) {
	require.NoError(t, Validate(registration{FirstName: "Ada", Email: "ada@example.com", Role: "merchant"}))
}

func TestValidateReportsFieldsByJSONName(t *testing.T) {
	err := Validate(registration{Email: "not-an-email", Role: "admin", Phone: "0803123456"})

	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Len(t, fe, 4)

	require.Equal(t, FieldError{Field: "first_name", Tag: "required"}, fe[0])
	require.Equal(t, "email", fe[1].Field)
	require.Equal(t, "role", fe[2].Field)
	require.Equal(t, "user merchant", fe[2].Param)

	require.Equal(t, []string{
		"Please add a first name",
		"Please add a valid email",
		"role must be one of: user, merchant",
		"phone must be at most 5 characters",
	}, fe.Messages())
	require.Contains(t, err.Error(), "Please add a first name; ")
}

func TestRequiredMessageUsesArticle(t *testing.T) {
	require.Equal(t, "Please add an email", FieldError{Field: "email", Tag: "required"}.Message())
	require.Equal(t, "Please add a password", FieldError{Field: "password", Tag: "required"}.Message())
}

func TestUnknownTagMessage(t *testing.T) {
	require.Equal(t, "bvn code is invalid (len=6)", FieldError{Field: "bvn_code", Tag: "len", Param: "6"}.Message())
	require.Equal(t, "field is invalid (uuid)", FieldError{Tag: "uuid"}.Message())
}

func TestBVNRule(t *testing.T) {
	require.NoError(t, Validate(bvnPayload{BVN: "22212345678"}))

	for _, bad := range []string{"", "2221234567", "222123456789", "2221234567a"} {
		err := Validate(bvnPayload{BVN: bad})
		require.Error(t, err, bad)
	}

	err := Validate(bvnPayload{BVN: "12345"})
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "bvn must be 11 digits", fe[0].Message())
}

func TestIsBVN(t *testing.T) {
	require.True(t, IsBVN("00000000000"))
	require.False(t, IsBVN("0000000000O"))
	require.False(t, IsBVN(" 2221234567"))
}

func TestValidateNonStruct(t *testing.T) {
	err := Validate("plain")
	require.Error(t, err)
	_, ok := err.(FieldErrors)
	require.False(t, ok)
}
