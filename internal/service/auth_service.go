package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/observability"
	"github.com/boddenberg/invoicer-reports-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

var authTracer = otel.Tracer("service/auth")

// supabaseAudience is the aud claim Supabase puts on user access tokens.
const supabaseAudience = "authenticated"

// AuthService turns a bearer access token into the user id that owns it.
// Token issuance stays with the identity provider.
type AuthService struct {
	resolver  port.UserResolver
	jwtSecret []byte
	cache     port.Cache[string]
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAuthService creates an auth service. With a non-empty jwtSecret tokens
// are verified locally; otherwise each unseen token is looked up through
// resolver and the answer cached.
func NewAuthService(resolver port.UserResolver, jwtSecret string, cache port.Cache[string], metrics *observability.Metrics, logger *zap.Logger) *AuthService {
	return &AuthService{
		resolver:  resolver,
		jwtSecret: []byte(jwtSecret),
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

// ResolveUser returns the user id for accessToken.
func (s *AuthService) ResolveUser(ctx context.Context, accessToken string) (string, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.ResolveUser")
	defer span.End()

	if accessToken == "" {
		return "", &domain.ErrUnauthorized{Message: "missing bearer token"}
	}

	if len(s.jwtSecret) > 0 {
		return s.verify(accessToken)
	}
	if s.resolver == nil {
		return "", &domain.ErrUnauthorized{Message: "token verification is not configured"}
	}

	key := cacheKey(accessToken)
	if userID, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("auth")
		return userID, nil
	}
	s.metrics.IncrCacheMiss("auth")

	userID, err := s.resolver.GetUserID(ctx, accessToken)
	if err != nil {
		var unauthorized *domain.ErrUnauthorized
		if !errors.As(err, &unauthorized) {
			s.logger.Warn("auth: user lookup failed", zap.Error(err))
		}
		return "", err
	}

	s.cache.Set(key, userID)
	return userID, nil
}

// verify checks an HS256 Supabase access token and returns its subject.
func (s *AuthService) verify(accessToken string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(supabaseAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		s.logger.Debug("auth: token rejected", zap.Error(err))
		return "", &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}
	if claims.Subject == "" {
		return "", &domain.ErrUnauthorized{Message: "token has no subject"}
	}
	return claims.Subject, nil
}

// cacheKey is the blake2b-256 digest of the token; raw tokens are never stored.
func cacheKey(accessToken string) string {
	sum := blake2b.Sum256([]byte(accessToken))
	return "auth:" + hex.EncodeToString(sum[:])
}
