package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-carriers/internal/carrier"
	"github.com/noah-isme/toko-carriers/internal/common"
	"github.com/noah-isme/toko-carriers/internal/laposte"
	"github.com/noah-isme/toko-carriers/internal/mondialrelay"
	"github.com/noah-isme/toko-carriers/internal/obs"
	"github.com/noah-isme/toko-carriers/internal/resilience"
)

const (
	surfaceAdmin  = "admin"
	surfacePublic = "public"

	// publicSearchError is the only failure text shown at checkout.
	publicSearchError = "relay point search is temporarily unavailable"
	configureHint     = "configure credentials in Settings > Carriers"

	integrationMondialRelay = "Mondial Relay"
	integrationLaPoste      = "La Poste"
)

type relayFinder interface {
	Find(ctx context.Context, q RelayQuery) (RelaySearch, error)
}

type configuredReader interface {
	Configured(ctx context.Context) (map[carrier.Carrier]bool, error)
}

type connectionTester interface {
	Test(ctx context.Context, req ConnectionTestRequest) ConnectionResult
}

type shipmentTracker interface {
	Track(ctx context.Context, rawCarrier, trackingNumber string) (Tracking, error)
}

type labelMaker interface {
	Create(ctx context.Context, req LabelRequest) (mondialrelay.Label, error)
}

type carrierView struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type adminCarrierView struct {
	carrierView
	Configured bool `json:"configured"`
}

// PublicHandler serves the storefront endpoints. None of them require a session.
type PublicHandler struct {
	Relays   relayFinder
	Registry *carrier.Registry
}

// RelayPoints lists relay points for the checkout. It always answers 200 once the
// query is valid; failures surface as an empty list with a generic message.
func (h *PublicHandler) RelayPoints(w http.ResponseWriter, r *http.Request) {
	q, ok := relayQuery(w, r)
	if !ok {
		return
	}
	if h.Relays == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "relay search not configured", nil)
		return
	}
	res, err := h.Relays.Find(r.Context(), q)
	recordRelaySearch(surfacePublic, Classify(res, err))
	if err != nil {
		common.JSON(w, http.StatusOK, map[string]any{
			"relayPoints": []mondialrelay.RelayPoint{},
			"error":       publicSearchError,
		})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"relayPoints": res.Points})
}

// RelayPointsThrottled answers a rate-limited checkout search. The status is 429 but
// the body keeps the relayPoints shape so the checkout degrades to an empty list.
func (h *PublicHandler) RelayPointsThrottled(w http.ResponseWriter, _ *http.Request) {
	recordRelaySearch(surfacePublic, OutcomeThrottled)
	common.JSON(w, http.StatusTooManyRequests, map[string]any{
		"relayPoints": []mondialrelay.RelayPoint{},
		"error":       publicSearchError,
	})
}

// Carriers lists the supported carriers.
func (h *PublicHandler) Carriers(w http.ResponseWriter, r *http.Request) {
	reg := registryOrDefault(h.Registry)
	supported := reg.SupportedCarriers()
	out := make([]carrierView, 0, len(supported))
	for _, c := range supported {
		out = append(out, carrierView{Code: c.String(), Name: c.DisplayName()})
	}
	common.JSON(w, http.StatusOK, map[string]any{"carriers": out})
}

// TrackingURL resolves the public tracking page of a parcel. Unknown carriers still
// get a search-engine link.
func (h *PublicHandler) TrackingURL(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimSpace(r.URL.Query().Get("trackingNumber"))
	if number == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "trackingNumber is required", nil)
		return
	}
	reg := registryOrDefault(h.Registry)
	common.JSON(w, http.StatusOK, map[string]any{
		"url": reg.TrackingURL(r.URL.Query().Get("carrier"), number),
	})
}

// AdminHandler serves the back-office carrier endpoints. Routes are mounted behind
// the admin role check.
type AdminHandler struct {
	Relays      relayFinder
	Tester      connectionTester
	Tracker     shipmentTracker
	Labels      labelMaker
	Credentials configuredReader
	Registry    *carrier.Registry
	Breakers    []*resilience.Breaker
}

// RelayPoints lists relay points near an order's delivery address.
func (h *AdminHandler) RelayPoints(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "id"))
	if orderID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "order id is required", nil)
		return
	}
	q, ok := relayQuery(w, r)
	if !ok {
		return
	}
	if h.Relays == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "relay search not configured", nil)
		return
	}
	res, err := h.Relays.Find(r.Context(), q)
	recordRelaySearch(surfaceAdmin, Classify(res, err))
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("order_id", orderID).Msg("admin relay search failed")
		common.WriteError(w, carrierError(integrationMondialRelay, err))
		return
	}
	if !res.Configured {
		common.WriteError(w, carrierError(integrationMondialRelay, ErrNotConfigured))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"relayPoints": res.Points})
}

// TestConnection checks credentials typed into the settings page.
func (h *AdminHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectionTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request", validationDetails(err))
		return
	}
	if h.Tester == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "connection tester not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, h.Tester.Test(r.Context(), req))
}

// Carriers lists the supported carriers with their configuration state and the
// breaker state of each outbound integration.
func (h *AdminHandler) Carriers(w http.ResponseWriter, r *http.Request) {
	configured := map[carrier.Carrier]bool{}
	if h.Credentials != nil {
		var err error
		configured, err = h.Credentials.Configured(r.Context())
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("load carrier configuration failed")
			common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "failed to load carrier credentials", nil)
			return
		}
	}
	reg := registryOrDefault(h.Registry)
	supported := reg.SupportedCarriers()
	out := make([]adminCarrierView, 0, len(supported))
	for _, c := range supported {
		out = append(out, adminCarrierView{
			carrierView: carrierView{Code: c.String(), Name: c.DisplayName()},
			Configured:  configured[c],
		})
	}
	integrations := make(map[string]string, len(h.Breakers))
	for _, b := range h.Breakers {
		if b == nil {
			continue
		}
		integrations[b.Target()] = b.State().String()
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"carriers":     out,
		"integrations": integrations,
	})
}

// Track fetches the live history of a Colissimo or Chronopost parcel.
func (h *AdminHandler) Track(w http.ResponseWriter, r *http.Request) {
	rawCarrier := strings.TrimSpace(r.URL.Query().Get("carrier"))
	number := strings.TrimSpace(r.URL.Query().Get("trackingNumber"))
	if rawCarrier == "" || number == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "carrier and trackingNumber are required", nil)
		return
	}
	if h.Tracker == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "tracking not configured", nil)
		return
	}
	res, err := h.Tracker.Track(r.Context(), rawCarrier, number)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("carrier", rawCarrier).Msg("shipment tracking failed")
		common.WriteError(w, carrierError(integrationLaPoste, err))
		return
	}
	common.Data(w, http.StatusOK, res)
}

// CreateMondialRelayLabel registers a Mondial Relay shipment for an order.
func (h *AdminHandler) CreateMondialRelayLabel(w http.ResponseWriter, r *http.Request) {
	var req LabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid label request", validationDetails(err))
		return
	}
	if h.Labels == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "label service not configured", nil)
		return
	}
	label, err := h.Labels.Create(r.Context(), req)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("order_number", req.OrderNumber).Msg("mondial relay label failed")
		common.WriteError(w, carrierError(integrationMondialRelay, err))
		return
	}
	zerolog.Ctx(r.Context()).Info().
		Str("order_number", req.OrderNumber).
		Str("expedition", label.ExpeditionNumber).
		Msg("mondial relay label created")
	common.Data(w, http.StatusCreated, label)
}

func relayQuery(w http.ResponseWriter, r *http.Request) (RelayQuery, bool) {
	q := RelayQuery{
		ZipCode: strings.TrimSpace(r.URL.Query().Get("zipCode")),
		Country: strings.TrimSpace(r.URL.Query().Get("country")),
	}
	if err := validate.Struct(q); err != nil {
		msg := "invalid relay point query"
		if q.ZipCode == "" {
			msg = "zipCode is required"
		}
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, msg, validationDetails(err))
		return RelayQuery{}, false
	}
	return q, true
}

// carrierError maps service and provider errors to the admin error envelope.
func carrierError(integration string, err error) *common.AppError {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return common.NewAppError(common.CodeCarrierNotConfigured,
			integration+" credentials are missing; "+configureHint, http.StatusBadRequest, err)
	case errors.Is(err, ErrCredentialsLookup):
		return common.NewAppError(common.CodeInternal, "failed to load carrier credentials", http.StatusInternalServerError, err)
	case errors.Is(err, ErrNotTrackable):
		return common.NewAppError(common.CodeCarrierNotSupported,
			"live tracking is only available for Colissimo and Chronopost", http.StatusBadRequest, err)
	case errors.Is(err, mondialrelay.ErrInvalidParams):
		return common.NewAppError(common.CodeBadRequest, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, mondialrelay.ErrAuthentication), errors.Is(err, laposte.ErrInvalidKey):
		return common.NewAppError(common.CodeCarrierAuthFailed, err.Error(), http.StatusBadGateway, err)
	case errors.Is(err, laposte.ErrNotFound):
		return common.NewAppError(common.CodeNotFound, "shipment not found", http.StatusNotFound, err)
	default:
		return common.NewAppError(common.CodeCarrierUnavailable, err.Error(), http.StatusBadGateway, err)
	}
}

func recordRelaySearch(surface, outcome string) {
	if obs.RelaySearchTotal == nil {
		return
	}
	obs.RelaySearchTotal.WithLabelValues(surface, outcome).Inc()
}

func registryOrDefault(reg *carrier.Registry) *carrier.Registry {
	if reg == nil {
		return carrier.Default()
	}
	return reg
}
