package carrier

import (
	"net/url"
	"strings"
)

const fallbackSearchURL = "https://www.google.com/search?q="

type entry struct {
	carrier     Carrier
	trackingURL string
}

// Registry is an immutable table of carriers and their public tracking portals.
// The zero value is not usable; build one with NewRegistry or use Default.
type Registry struct {
	byKey     map[string]entry
	supported []Carrier
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry built at start-up.
func Default() *Registry { return defaultRegistry }

// NewRegistry builds the carrier table. The returned registry is never mutated.
func NewRegistry() *Registry {
	entries := []entry{
		{carrier: Colissimo, trackingURL: "https://www.laposte.fr/outils/suivre-vos-envois?code="},
		{carrier: Chronopost, trackingURL: "https://www.chronopost.fr/tracking-no-cms/suivi-page?liession="},
		{carrier: MondialRelay, trackingURL: "https://www.mondialrelay.fr/suivi-de-colis/?numeroExpedition="},
		{carrier: UPS, trackingURL: "https://www.ups.com/track?tracknum="},
		{carrier: DHL, trackingURL: "https://www.dhl.com/fr-fr/home/tracking.html?tracking-id="},
	}
	byKey := make(map[string]entry, len(entries))
	for _, e := range entries {
		byKey[Normalize(string(e.carrier))] = e
	}
	return &Registry{
		byKey:     byKey,
		supported: []Carrier{Colissimo, Chronopost, MondialRelay},
	}
}

// SupportedCarriers returns the first-class carriers offered in selection lists, in
// display order. The slice is a copy.
func (r *Registry) SupportedCarriers() []Carrier {
	out := make([]Carrier, len(r.supported))
	copy(out, r.supported)
	return out
}

// IsSupported reports whether c is one of the first-class carriers.
func (r *Registry) IsSupported(c Carrier) bool {
	for _, s := range r.supported {
		if s == c {
			return true
		}
	}
	return false
}

// Lookup resolves a free-form carrier name against the table.
func (r *Registry) Lookup(raw string) (Carrier, bool) {
	e, ok := r.byKey[Normalize(raw)]
	if !ok {
		return "", false
	}
	return e.carrier, true
}

// TrackingURL returns the public tracking page for the shipment. Unknown carriers get
// a web search for the carrier name and tracking number, so the result is never empty.
func (r *Registry) TrackingURL(carrierRaw, trackingNumber string) string {
	if e, ok := r.byKey[Normalize(carrierRaw)]; ok {
		return e.trackingURL + trackingNumber
	}
	terms := append([]string{"suivi", "colis"}, strings.Fields(carrierRaw)...)
	terms = append(terms, strings.Fields(trackingNumber)...)
	return fallbackSearchURL + url.QueryEscape(strings.Join(terms, " "))
}

// SupportedCarriers returns the first-class carriers of the default registry.
func SupportedCarriers() []Carrier { return defaultRegistry.SupportedCarriers() }

// TrackingURL resolves a tracking URL with the default registry.
func TrackingURL(carrierRaw, trackingNumber string) string {
	return defaultRegistry.TrackingURL(carrierRaw, trackingNumber)
}
