package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// MinSecretLength is the shortest accepted HMAC signing secret.
const MinSecretLength = 16

var (
	// ErrExpiredToken indicates the token was valid but its expiry has passed.
	ErrExpiredToken = errors.New("token has expired")
	// ErrInvalidToken indicates the token is malformed, tampered with or signed with another key.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWeakSecret indicates the signing secret is too short.
	ErrWeakSecret = errors.New("token secret too short")
)

// Claims is the JWT payload carried by bearer tokens.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for userID and its expiry time.
func (i *TokenIssuer) Issue(userID string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates a token and returns its claims.
// Errors are always ErrExpiredToken or ErrInvalidToken.
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.UserID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
