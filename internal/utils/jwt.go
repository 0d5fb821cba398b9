package utils // package utils provides helper functions for session token creation and parsing

import (
    "errors" // sentinel errors for token validation
    "time"   // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// ErrInvalidToken is returned by ParseSessionToken for tokens that are
// malformed, expired, signed with another key or missing a subject.
var ErrInvalidToken = errors.New("invalid session token")

// SessionToken represents a signed JWT that identifies a booking session.
// The Token field contains the JWT string and Exp its expiry.  Clients send
// it in the Authorization header when calling the chart endpoints.
type SessionToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT for a booking session.  The
// claims carry the session ID as subject (sub), the expiration (exp) and
// the issue time (iat).
func NewSessionToken(secret, sessionID string, ttlMin int) (SessionToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.RegisteredClaims{
        Subject:   sessionID,
        ExpiresAt: jwt.NewNumericDate(exp),
        IssuedAt:  jwt.NewNumericDate(now),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return SessionToken{}, err
    }
    return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies raw against secret and returns the session ID
// stored in its subject claim.  Only HMAC signing methods are accepted.
func ParseSessionToken(secret, raw string) (string, error) {
    var claims jwt.RegisteredClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        // Reject tokens signed with anything other than HMAC.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid || claims.Subject == "" {
        return "", ErrInvalidToken
    }
    return claims.Subject, nil
}
