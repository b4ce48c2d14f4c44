package carrier

import (
	"strings"
	"unicode"
)

// Carrier is the canonical identifier of a shipping company known to the storefront.
type Carrier string

const (
	Colissimo    Carrier = "colissimo"
	Chronopost   Carrier = "chronopost"
	MondialRelay Carrier = "mondial-relay"
	UPS          Carrier = "ups"
	DHL          Carrier = "dhl"
)

var displayNames = map[Carrier]string{
	Colissimo:    "Colissimo",
	Chronopost:   "Chronopost",
	MondialRelay: "Mondial Relay",
	UPS:          "UPS",
	DHL:          "DHL",
}

// String implements fmt.Stringer.
func (c Carrier) String() string { return string(c) }

// DisplayName returns the label shown in carrier selection lists.
func (c Carrier) DisplayName() string {
	if name, ok := displayNames[c]; ok {
		return name
	}
	return string(c)
}

// TrackedByLaPoste reports whether shipments of this carrier can be followed through
// the La Poste Suivi API.
func (c Carrier) TrackedByLaPoste() bool {
	return c == Colissimo || c == Chronopost
}

// Normalize reduces a free-form carrier name to its lookup key: surrounding and inner
// whitespace, hyphens and underscores are dropped and the result is lower-cased.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Parse resolves a free-form carrier name to a canonical Carrier.
func Parse(raw string) (Carrier, bool) {
	return defaultRegistry.Lookup(raw)
}
