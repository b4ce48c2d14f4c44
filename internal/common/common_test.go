package common_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-carriers/internal/common"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.8:5123"
	require.Equal(t, "10.0.0.8", common.ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.4")
	require.Equal(t, "198.51.100.4", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	require.Equal(t, "203.0.113.9", common.ClientIP(req))
}

func TestWriteErrorRendersAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	cause := errors.New("dial tcp: timeout")
	common.WriteError(rr, common.NewAppError(common.CodeCarrierUnavailable, "Mondial Relay is unavailable", http.StatusBadGateway, cause))

	require.Equal(t, http.StatusBadGateway, rr.Code)
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, common.CodeCarrierUnavailable, body.Error.Code)
	require.Equal(t, "Mondial Relay is unavailable", body.Error.Message)
	require.NotContains(t, rr.Body.String(), "dial tcp")
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, errors.New("pq: password authentication failed"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.JSONEq(t, `{"error":{"code":"INTERNAL","message":"internal error"}}`, rr.Body.String())
}

func TestDataEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	common.Data(rr, http.StatusCreated, map[string]string{"trackingNumber": "31236189"})

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.JSONEq(t, `{"data":{"trackingNumber":"31236189"}}`, rr.Body.String())
}

func TestPrincipalRoundTrip(t *testing.T) {
	_, ok := common.PrincipalFrom(context.Background())
	require.False(t, ok)

	ctx := common.WithPrincipal(context.Background(), common.Principal{Subject: "u_1", Roles: []string{"admin"}})
	p, ok := common.PrincipalFrom(ctx)
	require.True(t, ok)
	require.True(t, p.HasAnyRole("super_admin", "admin"))
	require.False(t, p.HasAnyRole("customer"))

	_, ok = common.PrincipalFrom(common.WithPrincipal(context.Background(), common.Principal{Roles: []string{"admin"}}))
	require.False(t, ok)
}
