package tokengenerator

import (
	"fmt"
	"time"
)

// Token type constants
const (
	ACCESS_TOKEN_NAME  = "access_token"
	REFRESH_TOKEN_NAME = "refresh_token"
)

// Default token expiry durations
const (
	DefaultAccessTokenExpiry  = 1 * time.Hour
	DefaultRefreshTokenExpiry = 24 * time.Hour
)

// TokenBundle is the wire shape of an issuance result. RefreshToken is only
// present when the caller asked for the access+refresh pair.
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// JwtService issues access and refresh tokens with a fixed expiry policy.
type JwtService struct {
	generator TokenGenerator

	// Configurable token expiry durations
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// JwtServiceOption is a function that configures a JwtService
type JwtServiceOption func(*JwtService)

// WithAccessTokenExpiry sets the access token expiry duration
func WithAccessTokenExpiry(expiry time.Duration) JwtServiceOption {
	return func(js *JwtService) {
		if expiry > 0 {
			js.AccessTokenExpiry = expiry
		}
	}
}

// WithRefreshTokenExpiry sets the refresh token expiry duration
func WithRefreshTokenExpiry(expiry time.Duration) JwtServiceOption {
	return func(js *JwtService) {
		if expiry > 0 {
			js.RefreshTokenExpiry = expiry
		}
	}
}

// NewJwtService creates a new JwtService backed by the given generator.
func NewJwtService(generator TokenGenerator, options ...JwtServiceOption) *JwtService {
	js := &JwtService{
		generator:          generator,
		AccessTokenExpiry:  DefaultAccessTokenExpiry,
		RefreshTokenExpiry: DefaultRefreshTokenExpiry,
	}

	for _, option := range options {
		option(js)
	}

	return js
}

// ExpiresIn reports the access token lifetime in whole seconds.
func (js *JwtService) ExpiresIn() int64 {
	return int64(js.AccessTokenExpiry / time.Second)
}

// Issue builds a signed access token for the subject, and a refresh token as
// well when withRefresh is set. The refresh token carries the subject only;
// identity claims are recomputed when it is redeemed.
func (js *JwtService) Issue(subject, username, email string, roles []string, withRefresh bool) (TokenBundle, error) {
	accessToken, _, err := js.generator.GenerateToken(subject, TokenTypeAccess, js.AccessTokenExpiry, username, email, roles)
	if err != nil {
		return TokenBundle{}, fmt.Errorf("failed generating access token: %w", err)
	}

	bundle := TokenBundle{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   js.ExpiresIn(),
	}

	if withRefresh {
		refreshToken, _, err := js.generator.GenerateToken(subject, TokenTypeRefresh, js.RefreshTokenExpiry, "", "", nil)
		if err != nil {
			return TokenBundle{}, fmt.Errorf("failed generating refresh token: %w", err)
		}
		bundle.RefreshToken = refreshToken
	}

	return bundle, nil
}

// ParseToken parses and validates a token issued by this service.
func (js *JwtService) ParseToken(tokenStr string) (*Claims, error) {
	return js.generator.ParseToken(tokenStr)
}
