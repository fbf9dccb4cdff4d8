package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestManager_IssueAndParse(t *testing.T) {
	m := NewManager(secret, time.Hour)

	token, exp, err := m.Issue("user-42", true)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	s, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", s.UserID)
	assert.True(t, s.Admin)
}

func TestManager_ParseRejects(t *testing.T) {
	m := NewManager(secret, time.Hour)
	valid, _, err := m.Issue("user-1", false)
	require.NoError(t, err)

	expired := NewManager(secret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	oldToken, _, err := expired.Issue("user-1", false)
	require.NoError(t, err)

	otherKey, _, err := NewManager("another-secret-another-secret-xx", time.Hour).Issue("user-1", false)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "Expired", token: oldToken},
		{name: "Wrong key", token: otherKey},
		{name: "Unsigned", token: none},
		{name: "Missing subject", token: noSubject},
		{name: "Garbage", token: "not-a-token"},
		{name: "Tampered", token: valid + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := m.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, s)
		})
	}
}
