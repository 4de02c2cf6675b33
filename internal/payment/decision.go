package payment

import (
	"encoding/json"
	"net/http"

	"github.com/noah-isme/card-hold/internal/common"
)

// DeclinedMessage is shown to the shopper when the card needs replacing.
const DeclinedMessage = "Your card was denied, please provide a new payment method"

// Outcome classifies what the browser should do next.
type Outcome int

const (
	// OutcomeAcknowledge means nothing is expected from the browser.
	OutcomeAcknowledge Outcome = iota
	// OutcomeRequiresAction asks the browser to run customer authentication.
	OutcomeRequiresAction
	// OutcomeDeclined asks the shopper for a different payment method.
	OutcomeDeclined
	// OutcomeSucceeded reports a completed payment.
	OutcomeSucceeded
	// OutcomeError carries a gateway failure message.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRequiresAction:
		return "requires_action"
	case OutcomeDeclined:
		return "declined"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeError:
		return "error"
	default:
		return "acknowledge"
	}
}

// Decision is the browser-facing response derived from an intent.
type Decision struct {
	Outcome         Outcome
	PaymentIntentID string
	ClientSecret    string
	Message         string
}

// Decide maps an intent onto the browser response. It is pure.
func Decide(in Intent) Decision {
	switch in.Status {
	case StatusRequiresAction:
		return Decision{Outcome: OutcomeRequiresAction, PaymentIntentID: in.ID, ClientSecret: in.ClientSecret}
	case StatusRequiresPaymentMethod:
		return Decision{Outcome: OutcomeDeclined, Message: DeclinedMessage}
	case StatusSucceeded:
		return Decision{Outcome: OutcomeSucceeded, ClientSecret: in.ClientSecret}
	case StatusRequiresConfirmation, StatusRequiresCapture, StatusProcessing, StatusCanceled, StatusUnknown:
	}
	return Decision{Outcome: OutcomeAcknowledge}
}

// Failure wraps a gateway error message as a decision.
func Failure(message string) Decision {
	return Decision{Outcome: OutcomeError, Message: message}
}

// MarshalJSON renders the exact body the checkout script expects. The
// acknowledgement has no body and marshals to null.
func (d Decision) MarshalJSON() ([]byte, error) {
	switch d.Outcome {
	case OutcomeRequiresAction:
		return json.Marshal(struct {
			RequiresAction  bool   `json:"requiresAction"`
			PaymentIntentID string `json:"paymentIntentId"`
			ClientSecret    string `json:"clientSecret"`
		}{true, d.PaymentIntentID, d.ClientSecret})
	case OutcomeDeclined, OutcomeError:
		return json.Marshal(errorBody{Error: d.Message})
	case OutcomeSucceeded:
		return json.Marshal(struct {
			ClientSecret string `json:"clientSecret"`
		}{d.ClientSecret})
	default:
		return []byte("null"), nil
	}
}

// Write sends the decision with status 200.
func (d Decision) Write(w http.ResponseWriter) {
	if d.Outcome == OutcomeAcknowledge {
		w.WriteHeader(http.StatusOK)
		return
	}
	common.JSON(w, http.StatusOK, d)
}

type errorBody struct {
	Error string `json:"error"`
}
