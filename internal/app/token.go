package app

import (
	"errors"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/auth"
	"github.com/heartmarshall/safety-pulse/internal/config"
)

// IssueToken signs a bearer token for subject. A nil subject gets a fresh id.
func IssueToken(cfg *config.Config, subject uuid.UUID) (string, uuid.UUID, error) {
	if cfg.Auth.JWTSecret == "" {
		return "", uuid.Nil, errors.New("auth.jwt_secret is not configured")
	}
	if subject == uuid.Nil {
		subject = uuid.New()
	}
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	token, err := tokens.GenerateAccessToken(subject)
	if err != nil {
		return "", uuid.Nil, err
	}
	return token, subject, nil
}
