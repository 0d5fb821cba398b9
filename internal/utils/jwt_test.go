package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	tok, err := NewSessionToken("secret", "session-1", 10)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(10*time.Minute), tok.Exp, 5*time.Second)

	id, err := ParseSessionToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", id)
}

func TestParseSessionToken_Rejects(t *testing.T) {
	valid, err := NewSessionToken("secret", "session-1", 10)
	require.NoError(t, err)
	expired, err := NewSessionToken("secret", "session-1", -1)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "session-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	testCases := []struct {
		description string
		secret      string
		raw         string
	}{
		{description: "wrong secret", secret: "other", raw: valid.Token},
		{description: "expired", secret: "secret", raw: expired.Token},
		{description: "missing subject", secret: "secret", raw: noSubject},
		{description: "alg none", secret: "secret", raw: unsigned},
		{description: "garbage", secret: "secret", raw: "not-a-token"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			_, err := ParseSessionToken(testCase.secret, testCase.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
