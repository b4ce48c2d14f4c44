package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/toko-carriers/internal/common"
)

// ClaimPolicy is what an admin token must carry besides a valid signature:
// the identity service's issuer and audience, an expiry and a subject.
type ClaimPolicy struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Principal checks tok against the policy at now and returns who it speaks for.
func (p ClaimPolicy) Principal(tok jwt.Token, now time.Time) (common.Principal, error) {
	if tok == nil {
		return common.Principal{}, errors.New("auth: token is nil")
	}
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(max(p.ClockSkew, 0)),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithRequiredClaim(jwt.SubjectKey),
	}
	if p.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.Issuer))
	}
	if p.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.Audience))
	}
	if err := jwt.Validate(tok, opts...); err != nil {
		return common.Principal{}, fmt.Errorf("auth: %w", err)
	}
	subject := strings.TrimSpace(tok.Subject())
	if subject == "" {
		return common.Principal{}, errors.New("auth: blank subject")
	}
	return common.Principal{Subject: subject, Roles: rolesOf(tok)}, nil
}

// rolesOf accepts the claim as a JSON array or as a comma or space separated string.
func rolesOf(tok jwt.Token) []string {
	raw, ok := tok.Get(RolesClaim)
	if !ok {
		return nil
	}
	var out []string
	switch v := raw.(type) {
	case []string:
		out = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		out = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}
	roles := out[:0:0]
	for _, r := range out {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
