// Package credentials resolves carrier API credentials from the site configuration
// store, falling back to environment-provided values.
package credentials

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prefix scopes every carrier key in the site_config table.
const Prefix = "carriers."

const (
	KeyLaPosteAPIKey          = "carriers.laposteApiKey"
	KeyColissimoContract      = "carriers.colissimoContractNumber"
	KeyColissimoPassword      = "carriers.colissimoPassword"
	KeyMondialRelayEnseigne   = "carriers.mondialRelayEnseigne"
	KeyMondialRelayPrivateKey = "carriers.mondialRelayPrivateKey"
)

var knownKeys = []string{
	KeyLaPosteAPIKey,
	KeyColissimoContract,
	KeyColissimoPassword,
	KeyMondialRelayEnseigne,
	KeyMondialRelayPrivateKey,
}

// MondialRelay identifies the merchant account on the Mondial Relay web service.
type MondialRelay struct {
	Enseigne   string
	PrivateKey string
}

func (m MondialRelay) String() string {
	return fmt.Sprintf("MondialRelay{Enseigne:%s PrivateKey:%s}", m.Enseigne, redact(m.PrivateKey))
}

func (m MondialRelay) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"enseigne": m.Enseigne, "privateKey": redact(m.PrivateKey)})
}

// LaPoste holds the Okapi key used by the Suivi tracking API.
type LaPoste struct {
	APIKey string
}

func (l LaPoste) String() string {
	return fmt.Sprintf("LaPoste{APIKey:%s}", redact(l.APIKey))
}

func (l LaPoste) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"apiKey": redact(l.APIKey)})
}

// Colissimo holds the contract used for label generation.
type Colissimo struct {
	ContractNumber string
	Password       string
}

func (c Colissimo) String() string {
	return fmt.Sprintf("Colissimo{ContractNumber:%s Password:%s}", c.ContractNumber, redact(c.Password))
}

func (c Colissimo) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"contractNumber": c.ContractNumber, "password": redact(c.Password)})
}

func redact(secret string) string {
	if strings.TrimSpace(secret) == "" {
		return ""
	}
	return "[redacted]"
}
