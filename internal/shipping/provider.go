package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/toko-carriers/internal/carrier"
	"github.com/noah-isme/toko-carriers/internal/credentials"
	"github.com/noah-isme/toko-carriers/internal/laposte"
)

// ErrNotTrackable is returned for carriers without live tracking support.
var ErrNotTrackable = errors.New("carrier has no live tracking")

// TrackReq encapsulates tracking lookup parameters for a shipment provider.
type TrackReq struct {
	Carrier        carrier.Carrier
	TrackingNumber string
}

// Provider models a tracking provider capable of fetching a shipment history.
type Provider interface {
	Track(ctx context.Context, req TrackReq) (laposte.TrackingResult, error)
}

type laPosteCredentials interface {
	LaPoste(ctx context.Context) (credentials.LaPoste, bool, error)
}

type laPosteTracker interface {
	Track(ctx context.Context, apiKey, trackingNumber string) (laposte.TrackingResult, error)
}

// LaPosteProvider tracks Colissimo and Chronopost parcels through the Suivi API,
// resolving the API key on every call.
type LaPosteProvider struct {
	Credentials laPosteCredentials
	Client      laPosteTracker
}

// Track implements Provider.
func (p LaPosteProvider) Track(ctx context.Context, req TrackReq) (laposte.TrackingResult, error) {
	if !req.Carrier.TrackedByLaPoste() {
		return laposte.TrackingResult{}, fmt.Errorf("%w: %s", ErrNotTrackable, req.Carrier)
	}
	creds, ok, err := p.Credentials.LaPoste(ctx)
	if err != nil {
		return laposte.TrackingResult{}, fmt.Errorf("%w: %v", ErrCredentialsLookup, err)
	}
	if !ok {
		return laposte.TrackingResult{}, ErrNotConfigured
	}
	return p.Client.Track(ctx, creds.APIKey, req.TrackingNumber)
}

// Tracking is a shipment history plus the public page a customer can follow.
type Tracking struct {
	laposte.TrackingResult
	TrackingURL string `json:"trackingUrl"`
}

// Tracker resolves a carrier name and asks the provider for the parcel history.
type Tracker struct {
	Provider Provider
	Registry *carrier.Registry
}

// Track looks up a shipment by raw carrier name and tracking number.
func (t Tracker) Track(ctx context.Context, rawCarrier, trackingNumber string) (Tracking, error) {
	reg := t.Registry
	if reg == nil {
		reg = carrier.Default()
	}
	c, ok := reg.Lookup(rawCarrier)
	if !ok {
		return Tracking{}, fmt.Errorf("%w: %q", ErrNotTrackable, rawCarrier)
	}
	trackingNumber = strings.TrimSpace(trackingNumber)
	res, err := t.Provider.Track(ctx, TrackReq{Carrier: c, TrackingNumber: trackingNumber})
	if err != nil {
		return Tracking{}, err
	}
	if res.Events == nil {
		res.Events = []laposte.Event{}
	}
	return Tracking{TrackingResult: res, TrackingURL: reg.TrackingURL(string(c), trackingNumber)}, nil
}
