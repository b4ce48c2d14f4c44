package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-carriers/internal/auth"
	"github.com/noah-isme/toko-carriers/internal/common"
)

func newService(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(auth.Config{Secret: "test-secret", AccessTokenTTL: time.Minute})
	require.NoError(t, err)
	return svc
}

func adminChain(svc *auth.Service, reached *common.Principal) http.Handler {
	mw := auth.Middleware{Service: svc, AccessCookie: "access_token"}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := common.PrincipalFrom(r.Context())
		*reached = p
		w.WriteHeader(http.StatusNoContent)
	})
	return mw.RequireAuth(auth.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin)(final))
}

func TestRequireRoleAdmitsAdmins(t *testing.T) {
	svc := newService(t)
	for _, role := range []string{auth.RoleAdmin, auth.RoleSuperAdmin} {
		token, _, err := svc.IssueAccessToken("staff-"+role, []string{role})
		require.NoError(t, err)

		var reached common.Principal
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/carriers", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		adminChain(svc, &reached).ServeHTTP(rr, req)

		require.Equal(t, http.StatusNoContent, rr.Code, role)
		require.Equal(t, "staff-"+role, reached.Subject)
	}
}

func TestRequireRoleAcceptsCookie(t *testing.T) {
	svc := newService(t)
	token, _, err := svc.IssueAccessToken("staff-1", []string{auth.RoleAdmin})
	require.NoError(t, err)

	var reached common.Principal
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/carriers", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rr := httptest.NewRecorder()
	adminChain(svc, &reached).ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequireRoleRejectsCustomers(t *testing.T) {
	svc := newService(t)
	token, _, err := svc.IssueAccessToken("customer-1", []string{"customer"})
	require.NoError(t, err)

	var reached common.Principal
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/carriers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	adminChain(svc, &reached).ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Body.String(), `"FORBIDDEN"`)
	require.Empty(t, reached.Subject)
}

func TestRequireAuthRejectsMissingOrInvalidToken(t *testing.T) {
	svc := newService(t)
	var reached common.Principal

	rr := httptest.NewRecorder()
	adminChain(svc, &reached).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/carriers", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/carriers", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = httptest.NewRecorder()
	adminChain(svc, &reached).ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Body.String(), `"UNAUTHORIZED"`)
	require.Empty(t, reached.Subject)
}
