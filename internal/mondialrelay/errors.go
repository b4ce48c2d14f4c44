package mondialrelay

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication means the web service rejected the enseigne or the signature.
	ErrAuthentication = errors.New("mondialrelay: authentication rejected")
	// ErrProvider covers any other non-zero STAT code.
	ErrProvider = errors.New("mondialrelay: provider error")
	// ErrUnavailable covers transport failures, timeouts, an open breaker and non-2xx responses.
	ErrUnavailable = errors.New("mondialrelay: service unavailable")
	// ErrMalformedResponse means the payload could not be decoded.
	ErrMalformedResponse = errors.New("mondialrelay: malformed response")
	// ErrInvalidParams is returned before any network call when inputs are unusable.
	ErrInvalidParams = errors.New("mondialrelay: invalid parameters")
)

// authStatuses are the STAT codes Mondial Relay uses for account and signature problems.
var authStatuses = map[string]bool{"1": true, "2": true, "3": true, "8": true, "97": true}

// StatusError carries the STAT code of a failed call. It unwraps to ErrAuthentication
// or ErrProvider.
type StatusError struct {
	Action string
	Code   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mondialrelay: %s returned STAT %s (%s)", e.Action, e.Code, statusText(e.Code))
}

func (e *StatusError) Unwrap() error {
	if authStatuses[e.Code] {
		return ErrAuthentication
	}
	return ErrProvider
}

func statusText(code string) string {
	switch code {
	case "1":
		return "invalid enseigne"
	case "2":
		return "empty or invalid enseigne number"
	case "3":
		return "invalid enseigne account number"
	case "8":
		return "invalid password or hash"
	case "9":
		return "city not recognised or not unique"
	case "10":
		return "invalid collection type"
	case "20":
		return "invalid parcel weight"
	case "21":
		return "invalid parcel height"
	case "24":
		return "invalid shipment number"
	case "30":
		return "invalid sender address"
	case "33":
		return "invalid recipient address"
	case "37":
		return "invalid recipient country"
	case "41":
		return "invalid relay point"
	case "94":
		return "unknown parcel"
	case "97":
		return "invalid security key"
	case "99":
		return "generic service error"
	default:
		return "unknown status"
	}
}
