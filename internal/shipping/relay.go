package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-carriers/internal/credentials"
	"github.com/noah-isme/toko-carriers/internal/mondialrelay"
)

var (
	// ErrNotConfigured is returned when a carrier integration has no credentials.
	ErrNotConfigured = errors.New("carrier credentials not configured")
	// ErrCredentialsLookup wraps failures of the credential store itself.
	ErrCredentialsLookup = errors.New("carrier credentials lookup failed")
)

// Relay search outcomes, used as log field and metric label.
const (
	OutcomeOK            = "ok"
	OutcomeEmpty         = "empty"
	OutcomeNotConfigured = "not_configured"
	OutcomeAuthFailed    = "auth_failed"
	OutcomeUnavailable   = "unavailable"
	OutcomeError         = "error"
	OutcomeThrottled     = "throttled"
)

type mondialRelayCredentials interface {
	MondialRelay(ctx context.Context) (credentials.MondialRelay, bool, error)
}

type relaySearcher interface {
	SearchRelayPoints(ctx context.Context, p mondialrelay.SearchParams) ([]mondialrelay.RelayPoint, error)
}

// RelayQuery is the caller-supplied part of a relay-point search.
type RelayQuery struct {
	ZipCode string `json:"zipCode" validate:"required,max=12,printascii"`
	Country string `json:"country" validate:"omitempty,len=2,alpha"`
}

// RelaySearch is the result of a search. Configured is false when Mondial Relay has
// no credentials, in which case no call was made and Points is empty.
type RelaySearch struct {
	Points     []mondialrelay.RelayPoint
	Configured bool
}

// RelayLocator is the single relay-point search shared by the admin and checkout
// endpoints. Credentials are resolved on every call.
type RelayLocator struct {
	Credentials mondialRelayCredentials
	Client      relaySearcher
	MaxResults  int
}

// Find searches relay points near the query's postal code.
func (l RelayLocator) Find(ctx context.Context, q RelayQuery) (res RelaySearch, err error) {
	q.ZipCode = strings.TrimSpace(q.ZipCode)
	q.Country = strings.ToUpper(strings.TrimSpace(q.Country))
	if q.Country == "" {
		q.Country = mondialrelay.DefaultCountry
	}

	ctx, span := otel.Tracer("shipping.RelayLocator").Start(ctx, "RelayLocator.Find")
	defer span.End()
	span.SetAttributes(attribute.String("relay.country", q.Country))

	logger := zerolog.Ctx(ctx)
	defer func() {
		outcome := Classify(res, err)
		span.SetAttributes(attribute.String("relay.outcome", outcome))
		evt := logger.Info()
		if err != nil {
			span.RecordError(err)
			evt = logger.Warn().Err(err)
		}
		evt.Str("outcome", outcome).
			Str("country", q.Country).
			Str("zip_code", q.ZipCode).
			Int("count", len(res.Points)).
			Msg("relay_search")
	}()

	if l.Credentials == nil || l.Client == nil {
		return RelaySearch{Points: []mondialrelay.RelayPoint{}}, fmt.Errorf("shipping: relay locator not configured")
	}
	creds, ok, err := l.Credentials.MondialRelay(ctx)
	if err != nil {
		return RelaySearch{Points: []mondialrelay.RelayPoint{}}, fmt.Errorf("%w: %v", ErrCredentialsLookup, err)
	}
	if !ok {
		return RelaySearch{Points: []mondialrelay.RelayPoint{}}, nil
	}

	points, err := l.Client.SearchRelayPoints(ctx, mondialrelay.SearchParams{
		Account:    creds,
		Country:    q.Country,
		ZipCode:    q.ZipCode,
		MaxResults: l.MaxResults,
	})
	if err != nil {
		return RelaySearch{Points: []mondialrelay.RelayPoint{}, Configured: true}, err
	}
	if points == nil {
		points = []mondialrelay.RelayPoint{}
	}
	return RelaySearch{Points: points, Configured: true}, nil
}

// Classify reduces a search result to one of the Outcome constants. Zero results and
// an authentication failure always land in different buckets.
func Classify(res RelaySearch, err error) string {
	switch {
	case err == nil && !res.Configured:
		return OutcomeNotConfigured
	case err == nil && len(res.Points) == 0:
		return OutcomeEmpty
	case err == nil:
		return OutcomeOK
	case errors.Is(err, mondialrelay.ErrAuthentication):
		return OutcomeAuthFailed
	case errors.Is(err, mondialrelay.ErrUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}
