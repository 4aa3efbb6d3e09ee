package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"swapmarket/internal/models"
)

const tokenIssuer = "swapmarket"

var ErrInvalidToken = errors.New("invalid access token")

// AccessClaims binds an access token to one device session.
type AccessClaims struct {
	UserID    string          `json:"uid"`
	SessionID string          `json:"sid"`
	DeviceID  string          `json:"did"`
	Role      models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies HS512 access tokens.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSigner(secret string, ttl time.Duration, now func() time.Time) *TokenSigner {
	if now == nil {
		now = time.Now
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl, now: now}
}

func (s *TokenSigner) Sign(session models.Session, role models.UserRole) (string, error) {
	now := s.now()
	claims := AccessClaims{
		UserID:    session.UserID,
		SessionID: session.ID,
		DeviceID:  session.DeviceID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   session.UserID,
			ID:        session.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer and expiry against the signer's clock.
func (s *TokenSigner) Parse(raw string) (AccessClaims, error) {
	var claims AccessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.SessionID == "" || claims.UserID == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// GenerateRefreshToken returns an opaque token and the hash to store.
// Only the hash is persisted.
func GenerateRefreshToken(length int) (string, []byte, error) {
	if length <= 0 {
		length = 64
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate refresh token: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(buf)
	return token, HashRefreshToken(token), nil
}

func HashRefreshToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
