package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("acc", "ref", time.Hour, 24*time.Hour)

	tok, exp, err := m.GenerateAccessToken("user-1", []string{"user", "admin"})
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := m.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, []string{"user", "admin"}, claims.Roles)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestJWTSecretsAreNotInterchangeable(t *testing.T) {
	m := NewJWTManager("acc", "ref", time.Hour, 24*time.Hour)

	access, _, err := m.GenerateAccessToken("user-1", nil)
	require.NoError(t, err)
	refresh, _, err := m.GenerateRefreshToken("user-1", nil)
	require.NoError(t, err)

	_, err = m.ParseRefreshToken(access)
	assert.Error(t, err)
	_, err = m.ParseAccessToken(refresh)
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	m := NewJWTManager("acc", "ref", -time.Minute, 24*time.Hour)

	tok, _, err := m.GenerateAccessToken("user-1", nil)
	require.NoError(t, err)

	_, err = m.ParseAccessToken(tok)
	assert.Error(t, err)
}

func TestJWTGarbage(t *testing.T) {
	m := NewJWTManager("acc", "ref", time.Hour, 24*time.Hour)
	_, err := m.ParseAccessToken("not.a.token")
	assert.Error(t, err)
}
