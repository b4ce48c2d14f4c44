package carrier

import "strings"

// Status is the normalised lifecycle state of a parcel.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusLabelCreated   Status = "LABEL_CREATED"
	StatusPickedUp       Status = "PICKED_UP"
	StatusInTransit      Status = "IN_TRANSIT"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusReturned       Status = "RETURNED"
)

// IsFinal reports whether no further carrier updates are expected.
func (s Status) IsFinal() bool {
	return s == StatusDelivered || s == StatusReturned
}

// externalStatuses covers generic provider labels and the La Poste Suivi event codes.
var externalStatuses = map[string]Status{
	"label_created": StatusLabelCreated,
	"created":       StatusLabelCreated,
	"dr1":           StatusLabelCreated,

	"picked_up": StatusPickedUp,
	"pickup":    StatusPickedUp,
	"pc1":       StatusPickedUp,
	"pc2":       StatusPickedUp,

	"shipped":    StatusInTransit,
	"in_transit": StatusInTransit,
	"transit":    StatusInTransit,
	"et1":        StatusInTransit,
	"et2":        StatusInTransit,
	"et3":        StatusInTransit,
	"et4":        StatusInTransit,
	"ep1":        StatusInTransit,
	"do1":        StatusInTransit,
	"do2":        StatusInTransit,

	"out_for_delivery": StatusOutForDelivery,
	"md2":              StatusOutForDelivery,
	"ar1":              StatusOutForDelivery,

	"delivered": StatusDelivered,
	"di1":       StatusDelivered,
	"di2":       StatusDelivered,

	"returned": StatusReturned,
	"return":   StatusReturned,
	"re1":      StatusReturned,
}

// MapExternalStatus converts a provider status label or event code into a Status.
// Anything unrecognised is pending.
func MapExternalStatus(external string) Status {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(external)), "-", "_")
	if st, ok := externalStatuses[key]; ok {
		return st
	}
	return StatusPending
}
