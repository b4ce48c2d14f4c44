package credentials

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/toko-carriers/internal/carrier"
)

// Resolver assembles credential bundles on every call. A value found in Store wins
// over the one in Fallback, field by field. A bundle is returned only when all of
// its fields are non-blank; otherwise ok is false and the integration is disabled.
type Resolver struct {
	Store    Store
	Fallback Store
}

// MondialRelay returns the relay-point locator credentials.
func (r Resolver) MondialRelay(ctx context.Context) (MondialRelay, bool, error) {
	v, err := r.values(ctx)
	if err != nil {
		return MondialRelay{}, false, err
	}
	creds := MondialRelay{Enseigne: v[KeyMondialRelayEnseigne], PrivateKey: v[KeyMondialRelayPrivateKey]}
	if creds.Enseigne == "" || creds.PrivateKey == "" {
		return MondialRelay{}, false, nil
	}
	return creds, true, nil
}

// LaPoste returns the Suivi API key.
func (r Resolver) LaPoste(ctx context.Context) (LaPoste, bool, error) {
	v, err := r.values(ctx)
	if err != nil {
		return LaPoste{}, false, err
	}
	creds := LaPoste{APIKey: v[KeyLaPosteAPIKey]}
	if creds.APIKey == "" {
		return LaPoste{}, false, nil
	}
	return creds, true, nil
}

// Colissimo returns the contract credentials.
func (r Resolver) Colissimo(ctx context.Context) (Colissimo, bool, error) {
	v, err := r.values(ctx)
	if err != nil {
		return Colissimo{}, false, err
	}
	creds := Colissimo{ContractNumber: v[KeyColissimoContract], Password: v[KeyColissimoPassword]}
	if creds.ContractNumber == "" || creds.Password == "" {
		return Colissimo{}, false, nil
	}
	return creds, true, nil
}

// Configured reports, per supported carrier, whether its integration can be used.
// Chronopost parcels are tracked through La Poste; Colissimo also counts as configured
// with its own contract.
func (r Resolver) Configured(ctx context.Context) (map[carrier.Carrier]bool, error) {
	_, relay, err := r.MondialRelay(ctx)
	if err != nil {
		return nil, err
	}
	_, suivi, err := r.LaPoste(ctx)
	if err != nil {
		return nil, err
	}
	_, contract, err := r.Colissimo(ctx)
	if err != nil {
		return nil, err
	}
	return map[carrier.Carrier]bool{
		carrier.Colissimo:    suivi || contract,
		carrier.Chronopost:   suivi,
		carrier.MondialRelay: relay,
	}, nil
}

func (r Resolver) values(ctx context.Context) (map[string]string, error) {
	var stored, fallback map[string]string
	if r.Store != nil {
		v, err := r.Store.Values(ctx, Prefix)
		if err != nil {
			return nil, fmt.Errorf("credentials: load: %w", err)
		}
		stored = v
	}
	if r.Fallback != nil {
		v, err := r.Fallback.Values(ctx, Prefix)
		if err != nil {
			return nil, fmt.Errorf("credentials: load fallback: %w", err)
		}
		fallback = v
	}
	out := make(map[string]string, len(knownKeys))
	for _, key := range knownKeys {
		if value := strings.TrimSpace(stored[key]); value != "" {
			out[key] = value
			continue
		}
		out[key] = strings.TrimSpace(fallback[key])
	}
	return out, nil
}
