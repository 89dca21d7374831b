package app

import (
	"parcelsort/internal/config"
	"parcelsort/internal/domain/auth"
	"parcelsort/pkg/logger"
)

// devJWTSecret signs tokens in development when JWT_SECRET is unset.
const devJWTSecret = "parcelsort-development-secret"

// NewJWTService builds the token service the server verifies with and the
// importer token command signs with.
func NewJWTService(cfg *config.Config, log *logger.Logger) *auth.JWTService {
	secret := cfg.JWT.Secret
	if secret == "" {
		log.Warn("JWT_SECRET not set, using development secret")
		secret = devJWTSecret
	}
	jwtConfig := auth.DefaultJWTConfig(secret)
	if cfg.JWT.Issuer != "" {
		jwtConfig.Issuer = cfg.JWT.Issuer
	}
	return auth.NewJWTService(jwtConfig)
}
