package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenWithoutExpiry = errors.New("access token has no exp claim")

// AccessClaims is what the app reads out of the API's access token.
type AccessClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// ReadAccessToken decodes the claims of a JWT issued by the API. The app has
// no signing key, so the signature is not checked: the API remains the
// authority, this only tells the app when to stop presenting the session.
func ReadAccessToken(token string) (*AccessClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return nil, ErrTokenWithoutExpiry
	}
	return &AccessClaims{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// NewRandomKey returns nBytes of crypto/rand entropy, hex encoded.
func NewRandomKey(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
