package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("Str0ng&Secret!")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng&Secret!", hash)

	assert.NoError(t, ComparePassword(hash, "Str0ng&Secret!"))
	assert.Error(t, ComparePassword(hash, "Wr0ng&Secret!"))
}

func TestHashPassword_EmptyRejected(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"valid", "Str0ng&Secret!", true},
		{"too short", "Sh0rt&pw!", false},
		{"no uppercase", "str0ng&secret!", false},
		{"no lowercase", "STR0NG&SECRET!", false},
		{"no digit", "Strong&Secret!", false},
		{"no special", "Str0ngSecret123", false},
		{"weak list", "Password123!", false},
		{"over max length", string(make([]byte, MaxPasswordLen+1)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPasswordValidationError_GenericMessage(t *testing.T) {
	err := ValidatePassword("weak")
	require.Error(t, err)

	// The public message never lists the unmet requirements.
	assert.Equal(t, "invalid password", err.Error())

	var vErr *PasswordValidationError
	require.ErrorAs(t, err, &vErr)
	assert.NotEmpty(t, vErr.Errors)
}
