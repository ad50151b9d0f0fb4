package tokengenerator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type claim values. Access and refresh tokens share the signing key,
// so the typ claim is what keeps them from being interchangeable.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims carries the identity embedded in every signed token. Roles hold the
// user's effective role names, sorted so the claim content is deterministic.
type Claims struct {
	TokenType string   `json:"typ,omitempty"`
	Username  string   `json:"username,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenGenerator defines signing and verification of identity tokens.
type TokenGenerator interface {
	// GenerateToken signs a token of the given type for the subject with the
	// given expiry and identity claims.
	GenerateToken(subject, tokenType string, expiry time.Duration, username, email string, roles []string) (string, time.Time, error)

	// ParseToken parses and validates a token string, returning its claims.
	ParseToken(tokenStr string) (*Claims, error)
}

// JwtTokenGenerator implements TokenGenerator with HMAC-SHA256 signing.
type JwtTokenGenerator struct {
	Secret   string
	Issuer   string
	Audience string
}

// NewJwtTokenGenerator creates a new JwtTokenGenerator.
func NewJwtTokenGenerator(secret, issuer, audience string) *JwtTokenGenerator {
	return &JwtTokenGenerator{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
	}
}

// GenerateToken creates a signed token for the subject with the given claims.
func (g *JwtTokenGenerator) GenerateToken(subject, tokenType string, expiry time.Duration, username, email string, roles []string) (string, time.Time, error) {
	now := time.Now().UTC()
	claims := Claims{
		TokenType: tokenType,
		Username:  username,
		Email:     email,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   subject,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{g.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed signing JWT claims", "err", err)
		return "", time.Time{}, err
	}
	return ss, claims.ExpiresAt.Time, nil
}

// ParseToken parses and validates a token string.
func (g *JwtTokenGenerator) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token invalid")
	}
	return claims, nil
}
