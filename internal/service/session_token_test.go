package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	svc := NewSessionTokenService("test-secret")

	token, err := svc.Issue(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.QuizID)
	assert.NotEmpty(t, claims.SessionID)
}

func TestSessionTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewSessionTokenService("secret-a").Issue(42)
	require.NoError(t, err)

	_, err = NewSessionTokenService("secret-b").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionTokenRejectsGarbage(t *testing.T) {
	_, err := NewSessionTokenService("secret").Validate("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
