package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/userconsole/internal/users"
)

func validCreate() users.CreateUserRequest {
	return users.CreateUserRequest{
		Name:     "Ann",
		Email:    "a@b.com",
		Phone:    "1234567890",
		Password: "secret1",
		Role:     "picking",
		Type:     "read_only",
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *Error
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}

func TestCreateUserAcceptsValidForm(t *testing.T) {
	assert.NoError(t, CreateUser(validCreate()))

	req := validCreate()
	req.Role = "all_ops"
	req.Type = "Read only"
	assert.NoError(t, CreateUser(req))
}

func TestCreateUserPasswordBounds(t *testing.T) {
	for _, pw := range []string{"", "12345", "12345678901"} {
		req := validCreate()
		req.Password = pw
		fields := fieldsOf(t, CreateUser(req))
		assert.Contains(t, fields, "password", pw)
	}
	for _, pw := range []string{"123456", "1234567890"} {
		req := validCreate()
		req.Password = pw
		assert.NoError(t, CreateUser(req), pw)
	}
}

func TestCreateUserRejectsEachField(t *testing.T) {
	req := users.CreateUserRequest{
		Name:  "   ",
		Email: "not-an-email",
		Phone: "12345",
		Role:  "janitor",
		Type:  "superuser",
	}
	fields := fieldsOf(t, CreateUser(req))
	for _, key := range []string{"user_name", "user_email", "user_phone", "password", "user_role", "user_type"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "The field 'user_phone' must be exactly 10 digits.", fields["user_phone"])
	assert.Equal(t, "The field 'password' is required.", fields["password"])
}

func TestEmailShape(t *testing.T) {
	for _, bad := range []string{"a@b", "a b@c.com", "@b.com", "a@.com"} {
		req := validCreate()
		req.Email = bad
		assert.Contains(t, fieldsOf(t, CreateUser(req)), "user_email", bad)
	}
}

func TestUpdateUserIsSparse(t *testing.T) {
	assert.NoError(t, UpdateUser("1234567890", users.UpdateUserRequest{Name: "Ann2"}))
	assert.NoError(t, UpdateUser("1234567890", users.UpdateUserRequest{Password: "   "}))

	fields := fieldsOf(t, UpdateUser("1234567890", users.UpdateUserRequest{Email: "broken", Password: "123"}))
	assert.Len(t, fields, 2)
	assert.Contains(t, fields, "user_email")
	assert.Equal(t, "The field 'password' must be at least 6 characters long.", fields["password"])
}

func TestUpdateUserRequiresPhoneKey(t *testing.T) {
	fields := fieldsOf(t, UpdateUser("12345678", users.UpdateUserRequest{Name: "Ann"}))
	assert.Contains(t, fields, "user_phone")
}

func TestPhoneAndOTP(t *testing.T) {
	assert.NoError(t, Phone("9998887777"))
	assert.Error(t, Phone("999888777a"))
	assert.Error(t, Phone("99988877771"))

	assert.NoError(t, OTP("123456"))
	assert.Error(t, OTP("12345"))
	assert.Error(t, OTP("12345a"))
}

func TestCredentials(t *testing.T) {
	assert.NoError(t, Credentials("1234567890", "x"))
	fields := fieldsOf(t, Credentials("123", ""))
	assert.Len(t, fields, 2)
}

func TestNewPassword(t *testing.T) {
	assert.NoError(t, NewPassword("newpass1", "newpass1"))

	fields := fieldsOf(t, NewPassword("newpass1", "newpass2"))
	assert.Equal(t, "The field 'confirm_password' must match the new password.", fields["confirm_password"])

	fields = fieldsOf(t, NewPassword("12345678901", "12345678901"))
	assert.Contains(t, fields, "password")
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Fields: map[string]string{"b": "second", "a": "first"}}
	assert.Equal(t, "validation failed: a: first; b: second", err.Error())
	assert.Equal(t, "first", err.First())
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "9998887777", Digits("(999) 888-7777 ext 12", PhoneLength))
	assert.Equal(t, "123456", Digits("12a34b5678", OTPLength))
	assert.Equal(t, "", Digits("abc", OTPLength))
	assert.Equal(t, "12345678", Digits("1234-5678", 0))
}
