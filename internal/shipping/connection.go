package shipping

import (
	"context"
	"errors"
	"strings"

	"github.com/noah-isme/toko-carriers/internal/carrier"
	"github.com/noah-isme/toko-carriers/internal/credentials"
	"github.com/noah-isme/toko-carriers/internal/laposte"
	"github.com/noah-isme/toko-carriers/internal/mondialrelay"
	"github.com/noah-isme/toko-carriers/internal/obs"
)

// Connection test subjects. "laposte" names the shared Suivi key rather than a carrier.
const (
	subjectLaPoste = "laposte"

	probeZipCode = "75001"
)

// ConnectionTestRequest carries credentials typed into the settings form, before
// they are saved.
type ConnectionTestRequest struct {
	Carrier    string `json:"carrier" validate:"required"`
	APIKey     string `json:"apiKey"`
	Enseigne   string `json:"enseigne"`
	PrivateKey string `json:"privateKey"`
}

// ConnectionResult is the outcome reported back to the settings page.
type ConnectionResult = laposte.ConnectionResult

type keyChecker interface {
	TestConnection(ctx context.Context, apiKey string) laposte.ConnectionResult
}

// ConnectionTester checks submitted credentials against the live carrier APIs.
type ConnectionTester struct {
	LaPoste      keyChecker
	MondialRelay relaySearcher
	// Registry limits tests to the first-class carriers; nil means the default table.
	Registry *carrier.Registry
}

// Test never fails: every problem is described in the result.
func (t ConnectionTester) Test(ctx context.Context, req ConnectionTestRequest) (res ConnectionResult) {
	subject := carrier.Normalize(req.Carrier)
	defer func() {
		if obs.ConnectionTestTotal == nil {
			return
		}
		result := "ok"
		if !res.OK {
			result = "failed"
		}
		obs.ConnectionTestTotal.WithLabelValues(metricSubject(subject), result).Inc()
	}()

	if subject == subjectLaPoste {
		return t.testLaPoste(ctx, req.APIKey)
	}
	c, ok := carrier.Parse(subject)
	switch {
	case !ok || !registryOrDefault(t.Registry).IsSupported(c):
		return ConnectionResult{OK: false, Error: "unsupported carrier"}
	case c == carrier.MondialRelay:
		return t.testMondialRelay(ctx, req.Enseigne, req.PrivateKey)
	default:
		return t.testLaPoste(ctx, req.APIKey)
	}
}

func (t ConnectionTester) testLaPoste(ctx context.Context, apiKey string) ConnectionResult {
	if t.LaPoste == nil {
		return ConnectionResult{OK: false, Error: "La Poste client not configured"}
	}
	return t.LaPoste.TestConnection(ctx, strings.TrimSpace(apiKey))
}

func (t ConnectionTester) testMondialRelay(ctx context.Context, enseigne, privateKey string) ConnectionResult {
	account := credentials.MondialRelay{Enseigne: strings.TrimSpace(enseigne), PrivateKey: strings.TrimSpace(privateKey)}
	if account.Enseigne == "" || account.PrivateKey == "" {
		return ConnectionResult{OK: false, Error: "enseigne and private key are required"}
	}
	if t.MondialRelay == nil {
		return ConnectionResult{OK: false, Error: "Mondial Relay client not configured"}
	}
	_, err := t.MondialRelay.SearchRelayPoints(ctx, mondialrelay.SearchParams{
		Account:    account,
		Country:    mondialrelay.DefaultCountry,
		ZipCode:    probeZipCode,
		MaxResults: 1,
	})
	switch {
	case err == nil:
		return ConnectionResult{OK: true}
	case errors.Is(err, mondialrelay.ErrAuthentication):
		return ConnectionResult{OK: false, Error: "invalid Mondial Relay credentials"}
	default:
		return ConnectionResult{OK: false, Error: err.Error()}
	}
}

// metricSubject keeps the label set bounded to known names.
func metricSubject(subject string) string {
	if subject == subjectLaPoste {
		return subject
	}
	if c, ok := carrier.Parse(subject); ok {
		return c.String()
	}
	return "unknown"
}
