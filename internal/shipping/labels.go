package shipping

import (
	"context"
	"fmt"

	"github.com/noah-isme/toko-carriers/internal/mondialrelay"
)

type labelCreator interface {
	CreateLabel(ctx context.Context, p mondialrelay.LabelParams) (mondialrelay.Label, error)
}

// LabelRequest is the admin payload for a Mondial Relay shipment.
type LabelRequest struct {
	OrderNumber  string                    `json:"orderNumber" validate:"required,max=15"`
	Sender       mondialrelay.Address      `json:"sender"`
	Recipient    mondialrelay.Address      `json:"recipient"`
	WeightKg     float64                   `json:"weightKg" validate:"gt=0,lte=30"`
	Mode         mondialrelay.DeliveryMode `json:"mode" validate:"required,oneof=relay home"`
	RelayPointID string                    `json:"relayPointId" validate:"required_if=Mode relay,max=6"`
}

// LabelService creates Mondial Relay shipments with the stored account.
type LabelService struct {
	Credentials mondialRelayCredentials
	Client      labelCreator
}

// Create registers the shipment and returns its tracking number and label link.
func (s LabelService) Create(ctx context.Context, req LabelRequest) (mondialrelay.Label, error) {
	creds, ok, err := s.Credentials.MondialRelay(ctx)
	if err != nil {
		return mondialrelay.Label{}, fmt.Errorf("%w: %v", ErrCredentialsLookup, err)
	}
	if !ok {
		return mondialrelay.Label{}, ErrNotConfigured
	}
	return s.Client.CreateLabel(ctx, mondialrelay.LabelParams{
		Account:      creds,
		Sender:       req.Sender,
		Recipient:    req.Recipient,
		WeightKg:     req.WeightKg,
		OrderNumber:  req.OrderNumber,
		Mode:         req.Mode,
		RelayPointID: req.RelayPointID,
	})
}
