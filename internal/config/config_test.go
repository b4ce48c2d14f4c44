package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-carriers/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":             "postgres://localhost/toko",
		"REDIS_URL":                "redis://localhost:6379/0",
		"JWT_SECRET":               "secret",
		"OUTBOUND_TIMEOUT":         "",
		"RELAY_POINTS_MAX_RESULTS": "",
		"MONDIAL_RELAY_ENSEIGNE":   "",
		"MONDIAL_RELAY_KEY":        "",
		"LAPOSTE_API_KEY":          "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 8*time.Second, cfg.Outbound.Timeout)
	require.Equal(t, 2, cfg.Outbound.RetryMaxAttempts)
	require.Equal(t, 10, cfg.RelayPointsMaxResults)
	require.Equal(t, "https://api.mondialrelay.com/Web_Services.asmx", cfg.MondialRelayEndpoint)
	require.Equal(t, "https://api.laposte.fr", cfg.LaPosteBaseURL)
	require.Empty(t, cfg.CarrierEnv.MondialRelayEnseigne)
}

func TestLoadCarrierFallbacks(t *testing.T) {
	env := baseEnv()
	env["MONDIAL_RELAY_ENSEIGNE"] = " BDTEST13 "
	env["MONDIAL_RELAY_KEY"] = "mr-s3cr3t"
	env["LAPOSTE_API_KEY"] = "okapi"
	env["OUTBOUND_TIMEOUT"] = "3s"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "BDTEST13", cfg.CarrierEnv.MondialRelayEnseigne)
	require.Equal(t, "mr-s3cr3t", cfg.CarrierEnv.MondialRelayPrivateKey)
	require.Equal(t, "okapi", cfg.CarrierEnv.LaPosteAPIKey)
	require.Equal(t, 3*time.Second, cfg.Outbound.Timeout)
}

func TestLoadRequiresSecrets(t *testing.T) {
	env := baseEnv()
	env["JWT_SECRET"] = ""
	_, err := config.LoadForTests(env)
	require.EqualError(t, err, "JWT_SECRET is required")
}

func TestLoadRejectsOutOfRangeResults(t *testing.T) {
	env := baseEnv()
	env["RELAY_POINTS_MAX_RESULTS"] = "99"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}
