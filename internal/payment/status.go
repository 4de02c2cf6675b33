package payment

import "strings"

// Status is the lifecycle state of a payment intent as reported by the gateway.
type Status string

const (
	StatusUnknown               Status = ""
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusRequiresConfirmation  Status = "requires_confirmation"
	StatusRequiresAction        Status = "requires_action"
	StatusRequiresCapture       Status = "requires_capture"
	StatusProcessing            Status = "processing"
	StatusSucceeded             Status = "succeeded"
	StatusCanceled              Status = "canceled"
)

// Older API versions still report these names.
const (
	legacyRequiresSource       = "requires_source"
	legacyRequiresSourceAction = "requires_source_action"
)

// ParseStatus maps a gateway status string onto Status. Legacy source names
// collapse onto their current equivalents; anything unrecognised is StatusUnknown.
func ParseStatus(raw string) Status {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case legacyRequiresSource:
		return StatusRequiresPaymentMethod
	case legacyRequiresSourceAction:
		return StatusRequiresAction
	default:
		switch st := Status(s); st {
		case StatusRequiresPaymentMethod, StatusRequiresConfirmation, StatusRequiresAction,
			StatusRequiresCapture, StatusProcessing, StatusSucceeded, StatusCanceled:
			return st
		}
		return StatusUnknown
	}
}

// String returns the gateway spelling, or "unknown".
func (s Status) String() string {
	if s == StatusUnknown {
		return "unknown"
	}
	return string(s)
}
