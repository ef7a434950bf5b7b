package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	assert.Empty(t, validatePassword("Passw0rd!"))
	assert.Empty(t, validatePassword("Str0ng#Pass"))

	msg := validatePassword("abc")
	assert.Contains(t, msg, "at least 8 characters")
	assert.Contains(t, msg, "an uppercase letter")
	assert.Contains(t, msg, "a number")
	assert.Contains(t, msg, "a special character")
	assert.NotContains(t, msg, "a lowercase letter")

	assert.Contains(t, validatePassword("Password1"), "a special character")
}

func TestUsernameAndEmail(t *testing.T) {
	assert.True(t, isValidUsername("student_01"))
	assert.False(t, isValidUsername("ab"))
	assert.False(t, isValidUsername("has space"))
	assert.False(t, isValidUsername("semi;colon"))

	assert.True(t, isValidEmail("someone@example.com"))
	assert.False(t, isValidEmail("not-an-email"))
	assert.False(t, isValidEmail(""))
}

func TestNormalizeClock(t *testing.T) {
	got, err := normalizeClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30", got)

	got, err = normalizeClock(" 14:00:00 ")
	require.NoError(t, err)
	assert.Equal(t, "14:00", got)

	_, err = normalizeClock("25:00")
	assert.Error(t, err)
	_, err = normalizeClock("9am")
	assert.Error(t, err)
}
