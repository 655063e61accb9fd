package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    error
	}{
		{"Valid address", "test@example.com", nil},
		{"Valid address with subdomain", "user@mail.example.com", nil},
		{"Valid address with plus", "user+tag@example.com", nil},
		{"Valid address is normalized", "  Anne@Example.COM ", nil},
		{"Invalid - no @", "testexample.com", ErrInvalidEmail},
		{"Invalid - no domain", "test@", ErrInvalidEmail},
		{"Invalid - no local part", "@example.com", ErrInvalidEmail},
		{"Invalid - empty", "", ErrInvalidEmail},
		{"Invalid - spaces", "test user@example.com", ErrInvalidEmail},
		{"Invalid - display name form", "Anne <anne@example.com>", ErrInvalidEmail},
		{"Invalid - too long", strings.Repeat("a", 250) + "@example.com", ErrEmailTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateAddress(tt.address), tt.want)
		})
	}
}

func TestValidateListName(t *testing.T) {
	assert.NoError(t, ValidateListName("foo"))
	assert.NoError(t, ValidateListName("foo-bar.announce"))
	assert.ErrorIs(t, ValidateListName(""), ErrMissingListName)
	assert.ErrorIs(t, ValidateListName("Foo"), ErrInvalidListName)
	assert.ErrorIs(t, ValidateListName("foo@bar"), ErrInvalidListName)
	assert.ErrorIs(t, ValidateListName("-foo"), ErrInvalidListName)
}

func TestValidateMailHost(t *testing.T) {
	assert.NoError(t, ValidateMailHost("bar.com"))
	assert.NoError(t, ValidateMailHost("lists.example.org"))
	assert.ErrorIs(t, ValidateMailHost(""), ErrInvalidDomain)
	assert.ErrorIs(t, ValidateMailHost("bar..com"), ErrInvalidDomain)
	assert.ErrorIs(t, ValidateMailHost("-bar.com"), ErrInvalidDomain)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("correct horse"))
	assert.ErrorIs(t, ValidatePassword("short"), ErrPasswordTooShort)
	assert.ErrorIs(t, ValidatePassword(strings.Repeat("x", 129)), ErrPasswordTooLong)
}
