package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/toko-carriers/internal/common"
)

const (
	defaultAccessTTL = 15 * time.Minute
	defaultIssuer    = "backend-toko"
	defaultAudience  = "toko-admin"

	// RolesClaim is the private claim listing the caller's roles.
	RolesClaim = "roles"

	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// signingAlg is the only algorithm accepted; tokens signed with anything else,
// including "none", fail verification.
var signingAlg = jwa.HS256

// Service verifies the access tokens issued by the storefront's identity service.
// It shares the HS256 secret, issuer and audience with that service.
type Service struct {
	secret    []byte
	accessTTL time.Duration
	claims    ClaimPolicy
	now       func() time.Time
}

// Config configures the auth service.
type Config struct {
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
}

// NewService requires a secret; the rest falls back to the identity service's defaults.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	svc := &Service{
		secret:    []byte(secret),
		accessTTL: cfg.AccessTokenTTL,
		claims: ClaimPolicy{
			Issuer:    orDefault(cfg.Issuer, defaultIssuer),
			Audience:  orDefault(cfg.Audience, defaultAudience),
			ClockSkew: max(cfg.ClockSkew, 0),
		},
		now: time.Now,
	}
	if svc.accessTTL <= 0 {
		svc.accessTTL = defaultAccessTTL
	}
	return svc, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ParseAccessToken verifies the signature, then the claims, and returns the caller.
func (s *Service) ParseAccessToken(token string) (common.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return common.Principal{}, unauthorized("missing token", nil)
	}
	parsed, err := jwt.ParseString(token, jwt.WithKey(signingAlg, s.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	principal, err := s.claims.Principal(parsed, s.now())
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	return principal, nil
}

// IssueAccessToken signs a token for subject with the given roles. The identity
// service owns issuance in production; this serves local tooling and tests.
func (s *Service) IssueAccessToken(subject string, roles []string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	tok, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.claims.Issuer).
		Audience([]string{s.claims.Audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.claims.ClockSkew)).
		Expiration(expiresAt).
		Claim(RolesClaim, roles).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(signingAlg, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func unauthorized(message string, err error) *common.AppError {
	return common.NewAppError(common.CodeUnauthorized, message, http.StatusUnauthorized, err)
}
