package mondialrelay

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/toko-carriers/internal/carrier"
	"github.com/noah-isme/toko-carriers/internal/credentials"
	"github.com/noah-isme/toko-carriers/internal/resilience"
)

const (
	labelAction  = "WSI2_CreationEtiquette"
	labelBaseURL = "https://www.mondialrelay.com"

	maxNameLen = 32
	maxCityLen = 26
)

// DeliveryMode selects where the parcel is handed to the recipient.
type DeliveryMode string

const (
	DeliverToRelay DeliveryMode = "relay"
	DeliverToHome  DeliveryMode = "home"
)

// Address is a sender or recipient as printed on the label.
type Address struct {
	Name        string `json:"name" validate:"required"`
	Street      string `json:"address" validate:"required"`
	City        string `json:"city" validate:"required"`
	ZipCode     string `json:"zipCode" validate:"required"`
	CountryCode string `json:"countryCode" validate:"required,len=2"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
}

// LabelParams describes one single-parcel shipment.
type LabelParams struct {
	Account      credentials.MondialRelay
	Sender       Address
	Recipient    Address
	WeightKg     float64
	OrderNumber  string
	Mode         DeliveryMode
	RelayPointID string
}

// Label is the created shipment.
type Label struct {
	ExpeditionNumber string `json:"trackingNumber"`
	LabelURL         string `json:"labelUrl,omitempty"`
	TrackingURL      string `json:"trackingUrl"`
}

// CreateLabel registers the shipment and returns its expedition number and label link.
func (c *Client) CreateLabel(ctx context.Context, p LabelParams) (Label, error) {
	params, err := p.ordered()
	if err != nil {
		return Label{}, err
	}

	// a lost answer may still have registered the shipment
	var env labelEnvelope
	if err := c.call(resilience.WithoutRetry(ctx), labelAction, signed(params, p.Account.PrivateKey), &env); err != nil {
		return Label{}, err
	}
	result := env.Body.Response.Result
	if result == nil {
		return Label{}, fmt.Errorf("%w: missing %sResult", ErrMalformedResponse, labelAction)
	}
	if err := checkStatus(labelAction, result.Stat); err != nil {
		return Label{}, err
	}
	number := strings.TrimSpace(result.ExpeditionNum)
	if number == "" {
		return Label{}, fmt.Errorf("%w: no expedition number", ErrMalformedResponse)
	}
	return Label{
		ExpeditionNumber: number,
		LabelURL:         absoluteLabelURL(result.LabelURL),
		TrackingURL:      carrier.TrackingURL(carrier.MondialRelay.String(), number),
	}, nil
}

func (p LabelParams) ordered() ([]Param, error) {
	if strings.TrimSpace(p.Account.Enseigne) == "" || strings.TrimSpace(p.Account.PrivateKey) == "" {
		return nil, fmt.Errorf("%w: enseigne and private key are required", ErrInvalidParams)
	}
	if p.WeightKg <= 0 {
		return nil, fmt.Errorf("%w: weight must be positive", ErrInvalidParams)
	}
	mode := p.Mode
	if mode == "" {
		mode = DeliverToRelay
	}
	var modeLiv, relayCountry, relayID string
	switch mode {
	case DeliverToRelay:
		if strings.TrimSpace(p.RelayPointID) == "" {
			return nil, fmt.Errorf("%w: relay point is required for relay delivery", ErrInvalidParams)
		}
		modeLiv = "24R"
		relayCountry = strings.ToUpper(p.Recipient.CountryCode)
		relayID = strings.TrimSpace(p.RelayPointID)
	case DeliverToHome:
		modeLiv = "HOM"
	default:
		return nil, fmt.Errorf("%w: unknown delivery mode %q", ErrInvalidParams, mode)
	}

	s, r := p.Sender, p.Recipient
	return []Param{
		{Name: "Enseigne", Value: strings.TrimSpace(p.Account.Enseigne)},
		{Name: "ModeCol", Value: "CCC"},
		{Name: "ModeLiv", Value: modeLiv},
		{Name: "NDossier", Value: p.OrderNumber},
		{Name: "NClient", Value: ""},
		{Name: "Expe_Langage", Value: "FR"},
		{Name: "Expe_Ad1", Value: truncate(s.Name, maxNameLen)},
		{Name: "Expe_Ad2", Value: ""},
		{Name: "Expe_Ad3", Value: truncate(s.Street, maxNameLen)},
		{Name: "Expe_Ad4", Value: ""},
		{Name: "Expe_Ville", Value: truncate(s.City, maxCityLen)},
		{Name: "Expe_CP", Value: s.ZipCode},
		{Name: "Expe_Pays", Value: strings.ToUpper(s.CountryCode)},
		{Name: "Expe_Tel1", Value: compactPhone(s.Phone)},
		{Name: "Expe_Tel2", Value: ""},
		{Name: "Expe_Mail", Value: s.Email},
		{Name: "Dest_Langage", Value: "FR"},
		{Name: "Dest_Ad1", Value: truncate(r.Name, maxNameLen)},
		{Name: "Dest_Ad2", Value: ""},
		{Name: "Dest_Ad3", Value: truncate(r.Street, maxNameLen)},
		{Name: "Dest_Ad4", Value: ""},
		{Name: "Dest_Ville", Value: truncate(r.City, maxCityLen)},
		{Name: "Dest_CP", Value: r.ZipCode},
		{Name: "Dest_Pays", Value: strings.ToUpper(r.CountryCode)},
		{Name: "Dest_Tel1", Value: compactPhone(r.Phone)},
		{Name: "Dest_Tel2", Value: ""},
		{Name: "Dest_Mail", Value: r.Email},
		{Name: "Poids", Value: strconv.Itoa(int(math.Round(p.WeightKg * 1000)))},
		{Name: "Longueur", Value: ""},
		{Name: "Taille", Value: ""},
		{Name: "NbColis", Value: "1"},
		{Name: "CRT_Valeur", Value: "0"},
		{Name: "CRT_Devise", Value: "EUR"},
		{Name: "Exp_Valeur", Value: ""},
		{Name: "Exp_Devise", Value: ""},
		{Name: "COL_Rel_Pays", Value: ""},
		{Name: "COL_Rel", Value: ""},
		{Name: "LIV_Rel_Pays", Value: relayCountry},
		{Name: "LIV_Rel", Value: relayID},
		{Name: "TAvisage", Value: ""},
		{Name: "TRepworking", Value: ""},
		{Name: "TInstructions", Value: ""},
		{Name: "Insurance", Value: "0"},
		{Name: "Assembly", Value: "0"},
		{Name: "TEXTE", Value: ""},
	}, nil
}

type labelEnvelope struct {
	Body struct {
		Response struct {
			Result *labelResult `xml:"WSI2_CreationEtiquetteResult"`
		} `xml:"WSI2_CreationEtiquetteResponse"`
	} `xml:"Body"`
}

type labelResult struct {
	Stat          string `xml:"STAT"`
	ExpeditionNum string `xml:"ExpeditionNum"`
	LabelURL      string `xml:"URL_Etiquette"`
}

func absoluteLabelURL(path string) string {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return ""
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	default:
		return labelBaseURL + path
	}
}

// truncate cuts s to n runes after trimming.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func compactPhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}
