package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/cyphera/cyphera-notify/internal/helpers"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Identity is the principal carried by a verified credential.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Principal is the identity used for role lookups: the normalized email when
// present, otherwise the subject.
func (i Identity) Principal() string {
	if email := helpers.NormalizeEmail(i.Email); email != "" {
		return email
	}
	return strings.TrimSpace(i.Subject)
}

// Verifier verifies an opaque bearer credential issued by the identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims represents the expected structure of the identity provider's JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// JWTVerifier validates signed JWTs against a key source, issuer and audience.
type JWTVerifier struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
	jwks    *keyfunc.JWKS
	logger  *zap.Logger
}

// NewJWKSVerifier verifies tokens signed by keys published at jwksURL. Keys are
// refreshed in the background every hour.
func NewJWKSVerifier(jwksURL, issuer, audience string) (*JWTVerifier, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("jwks url is required")
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: time.Minute,
		RefreshTimeout:   time.Second * 10,
		RefreshErrorHandler: func(err error) {
			logger.OrNop(nil).Error("JWKS refresh error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS: %w", err)
	}

	v := NewVerifierWithKeyfunc(jwks.Keyfunc, issuer, audience, "RS256", "RS384", "RS512", "ES256", "ES384")
	v.jwks = jwks
	return v, nil
}

// NewHMACVerifier verifies HS256 tokens signed with a shared secret.
func NewHMACVerifier(secret []byte, issuer, audience string) *JWTVerifier {
	kf := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}
	return NewVerifierWithKeyfunc(kf, issuer, audience, "HS256")
}

// NewVerifierWithKeyfunc builds a verifier around an arbitrary key source.
// Issuer and audience are enforced only when non-empty.
func NewVerifierWithKeyfunc(kf jwt.Keyfunc, issuer, audience string, methods ...string) *JWTVerifier {
	opts := []jwt.ParserOption{jwt.WithLeeway(time.Minute)}
	if len(methods) > 0 {
		opts = append(opts, jwt.WithValidMethods(methods))
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &JWTVerifier{
		keyfunc: kf,
		parser:  jwt.NewParser(opts...),
		logger:  logger.OrNop(nil),
	}
}

// Verify parses and validates the token. Every failure is reported as
// ErrInvalidToken; the cause is logged at debug level.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	parsed, err := v.parser.ParseWithClaims(token, &Claims{}, v.keyfunc)
	if err != nil {
		v.logger.Debug("Token parsing failed", zap.Error(err))
		return Identity{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	identity := Identity{Subject: claims.Subject, Email: claims.Email, Name: claims.Name}
	if identity.Principal() == "" {
		v.logger.Debug("Token carries no usable identity", zap.Error(ErrInvalidSubject))
		return Identity{}, ErrInvalidToken
	}

	return identity, nil
}

// Close stops the background JWKS refresh, if any.
func (v *JWTVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
