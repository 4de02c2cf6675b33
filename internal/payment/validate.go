package payment

import (
	"errors"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/card-hold/internal/common"
	"github.com/noah-isme/card-hold/internal/pricing"
)

// PayRequest is the body of POST /pay. Either PaymentIntentID is set (second
// leg after authentication) or the order fields are.
type PayRequest struct {
	PaymentMethodID string         `json:"paymentMethodId" validate:"omitempty,max=255"`
	PaymentIntentID string         `json:"paymentIntentId" validate:"omitempty,max=255"`
	Items           []pricing.Item `json:"items" validate:"omitempty,max=50,dive"`
	Currency        string         `json:"currency" validate:"omitempty,len=3,alpha"`
}

// CreateIntentRequest is the optional body of POST /create-payment-intent.
type CreateIntentRequest struct {
	Items    []pricing.Item `json:"items" validate:"omitempty,max=50,dive"`
	Currency string         `json:"currency" validate:"omitempty,len=3,alpha"`
}

// FieldError names one failed rule using the JSON field path.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// NewValidator returns a validator reporting JSON field names and enforcing
// the pay request's either/or rule.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(payRequestRules, PayRequest{})
	return v
}

func payRequestRules(sl validator.StructLevel) {
	req := sl.Current().Interface().(PayRequest)
	if strings.TrimSpace(req.PaymentIntentID) != "" {
		return
	}
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		sl.ReportError(req.PaymentMethodID, "paymentMethodId", "PaymentMethodID", "required", "")
	}
	if len(req.Items) == 0 {
		sl.ReportError(req.Items, "items", "Items", "required", "")
	}
	if strings.TrimSpace(req.Currency) == "" {
		sl.ReportError(req.Currency, "currency", "Currency", "required", "")
	}
}

// validateStruct runs v and converts failures into a 400 AppError.
func validateStruct(v *validator.Validate, s any) error {
	if v == nil {
		v = NewValidator()
	}
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.NewValidationError("invalid request", nil, err)
	}
	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: trimRoot(fe.Namespace()), Rule: fe.Tag()})
	}
	return common.NewValidationError("invalid request", details, err)
}

// trimRoot drops the struct name prefix, e.g. "PayRequest.items[0].id" -> "items[0].id".
func trimRoot(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
