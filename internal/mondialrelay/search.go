package mondialrelay

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/toko-carriers/internal/credentials"
)

const (
	searchAction = "WSI4_PointRelais_Recherche"

	DefaultCountry    = "FR"
	DefaultMaxResults = 10
	maxResultsCap     = 30
)

// SearchParams describes a relay-point search around a postal code.
type SearchParams struct {
	Account    credentials.MondialRelay
	Country    string
	ZipCode    string
	City       string
	Latitude   string
	Longitude  string
	MaxResults int
}

// RelayPoint is a pickup location returned by the search.
type RelayPoint struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	ZipCode      string   `json:"zipCode"`
	Country      string   `json:"country"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	OpeningHours []string `json:"openingHours"`
	Distance     float64  `json:"distance,omitempty"`
}

// SearchRelayPoints lists relay points near the postal code. A successful call with
// no match returns an empty, non-nil slice.
func (c *Client) SearchRelayPoints(ctx context.Context, p SearchParams) ([]RelayPoint, error) {
	params, err := p.ordered()
	if err != nil {
		return nil, err
	}

	var env searchEnvelope
	if err := c.call(ctx, searchAction, signed(params, p.Account.PrivateKey), &env); err != nil {
		return nil, err
	}
	result := env.Body.Response.Result
	if result == nil {
		return nil, fmt.Errorf("%w: missing %sResult", ErrMalformedResponse, searchAction)
	}
	if err := checkStatus(searchAction, result.Stat); err != nil {
		return nil, err
	}

	points := make([]RelayPoint, 0, len(result.Points))
	for _, d := range result.Points {
		points = append(points, d.toRelayPoint())
	}
	return points, nil
}

func (p SearchParams) ordered() ([]Param, error) {
	if strings.TrimSpace(p.Account.Enseigne) == "" || strings.TrimSpace(p.Account.PrivateKey) == "" {
		return nil, fmt.Errorf("%w: enseigne and private key are required", ErrInvalidParams)
	}
	zip := strings.TrimSpace(p.ZipCode)
	if zip == "" {
		return nil, fmt.Errorf("%w: zip code is required", ErrInvalidParams)
	}
	country := strings.ToUpper(strings.TrimSpace(p.Country))
	if country == "" {
		country = DefaultCountry
	}
	if len(country) != 2 {
		return nil, fmt.Errorf("%w: country must be an ISO 3166 alpha-2 code", ErrInvalidParams)
	}
	limit := p.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	if limit > maxResultsCap {
		limit = maxResultsCap
	}
	return []Param{
		{Name: "Enseigne", Value: strings.TrimSpace(p.Account.Enseigne)},
		{Name: "Pays", Value: country},
		{Name: "Ville", Value: strings.TrimSpace(p.City)},
		{Name: "CP", Value: zip},
		{Name: "Latitude", Value: strings.TrimSpace(p.Latitude)},
		{Name: "Longitude", Value: strings.TrimSpace(p.Longitude)},
		{Name: "Taille", Value: ""},
		{Name: "Poids", Value: ""},
		{Name: "Action", Value: ""},
		{Name: "DelaiEnvoi", Value: "0"},
		{Name: "RayonRecherche", Value: ""},
		{Name: "TypeActivite", Value: ""},
		{Name: "NACE", Value: ""},
		{Name: "NombreResultats", Value: strconv.Itoa(limit)},
	}, nil
}

type searchEnvelope struct {
	Body struct {
		Response struct {
			Result *searchResult `xml:"WSI4_PointRelais_RechercheResult"`
		} `xml:"WSI4_PointRelais_RechercheResponse"`
	} `xml:"Body"`
}

type searchResult struct {
	Stat   string         `xml:"STAT"`
	Points []pointDetails `xml:"PointsRelais>PointRelais_Details"`
}

type pointDetails struct {
	Num       string       `xml:"Num"`
	LgAdr1    string       `xml:"LgAdr1"`
	LgAdr3    string       `xml:"LgAdr3"`
	Ville     string       `xml:"Ville"`
	CP        string       `xml:"CP"`
	Pays      string       `xml:"Pays"`
	Latitude  string       `xml:"Latitude"`
	Longitude string       `xml:"Longitude"`
	Distance  string       `xml:"Distance"`
	Other     []anyElement `xml:",any"`
}

type anyElement struct {
	XMLName xml.Name
	Text    string   `xml:",chardata"`
	Slots   []string `xml:"string"`
}

func (d pointDetails) toRelayPoint() RelayPoint {
	return RelayPoint{
		ID:           strings.TrimSpace(d.Num),
		Name:         strings.TrimSpace(d.LgAdr1),
		Address:      strings.TrimSpace(d.LgAdr3),
		City:         strings.TrimSpace(d.Ville),
		ZipCode:      strings.TrimSpace(d.CP),
		Country:      strings.TrimSpace(d.Pays),
		Latitude:     parseDecimal(d.Latitude),
		Longitude:    parseDecimal(d.Longitude),
		OpeningHours: openingHours(d.Other),
		Distance:     parseDecimal(d.Distance),
	}
}

// parseDecimal accepts the French decimal comma. Unparseable values become 0.
func parseDecimal(raw string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}
