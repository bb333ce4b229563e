package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/piiscan/analyzer/config"
)

const JwtAlg = "HS256"

var ErrSecretNotSet = errors.New(
	"auth secret not set. Ensure ANALYZER_AUTH_SECRET is set in your environment",
)

// GenerateJWT generates a bearer token signed with the configured secret.
func GenerateJWT(cfg *config.Config) (string, error) {
	tokenAuth, err := newTokenAuth(cfg)
	if err != nil {
		return "", err
	}

	_, tokenString, err := tokenAuth.Encode(nil)
	if err != nil {
		return "", fmt.Errorf("error generating auth token: %w", err)
	}

	return tokenString, nil
}

// JWTVerifier finds and verifies a bearer token. Pair it with jwtauth.Authenticator to reject
// requests without a valid token.
func JWTVerifier(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	tokenAuth, err := newTokenAuth(cfg)
	if err != nil {
		return nil, err
	}
	return jwtauth.Verifier(tokenAuth), nil
}

func newTokenAuth(cfg *config.Config) (*jwtauth.JWTAuth, error) {
	secret := []byte(cfg.Auth.Secret)
	if len(secret) == 0 {
		return nil, ErrSecretNotSet
	}
	return jwtauth.New(JwtAlg, secret, nil), nil
}
