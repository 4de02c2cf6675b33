package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteErrorUsesAppErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, NewValidationError("currency is required", map[string]string{"currency": "required"}, nil))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	require.Equal(t, "currency is required", body.Error.Message)
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("dial tcp: secret host"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "secret host")
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewAppError("X", "wrapped", http.StatusConflict, cause)
	require.ErrorIs(t, err, cause)
	require.True(t, IsAppError(err))
	require.Equal(t, "boom", err.Error())
}
