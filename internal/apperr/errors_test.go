package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	wrapped := fmt.Errorf("load subscription: %w", NotFound("subscription", "42"))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.True(t, IsNotFound(wrapped))

	assert.True(t, errors.Is(Invalid("unit", "oneof"), ErrValidation))
	assert.True(t, IsConflict(Conflict("transaction", "pay exists")))
	assert.True(t, IsUnsupported(Unsupported("helcim", "create_merchant")))
}

func TestProviderStatusClassification(t *testing.T) {
	err := ProviderStatus("dwolla", "initiate_transfer", http.StatusServiceUnavailable, "", "down", "req-1")
	assert.True(t, IsRetryable(err))
	assert.True(t, IsTransient(err))
	assert.True(t, errors.Is(err, ErrProviderCall))

	err = ProviderStatus("dwolla", "initiate_transfer", http.StatusBadRequest, "ValidationError", "bad amount", "")
	assert.False(t, IsRetryable(err))
	assert.False(t, IsTransient(err))

	rich := ToServiceError(err)
	require.NotNil(t, rich)
	assert.Equal(t, http.StatusUnprocessableEntity, rich.Code)
	assert.Equal(t, goerrors.CategoryBadInput, rich.Category)
	assert.Equal(t, TextProviderCall, rich.TextCode)
}

func TestProviderFailureTimeoutIsAmbiguous(t *testing.T) {
	err := ProviderFailure("stripe", "initiate_transfer", context.DeadlineExceeded)
	assert.True(t, IsAmbiguous(err))
	assert.False(t, IsRetryable(err))
	assert.True(t, IsTransient(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	again := ProviderFailure("stripe", "initiate_transfer", err)
	assert.Same(t, err, again)
}

func TestToServiceErrorMapsEachType(t *testing.T) {
	cases := []struct {
		err  error
		code int
		text string
	}{
		{NotFound("funding_source", "7"), http.StatusNotFound, TextNotFound},
		{Invalid("recurrence_unit", "oneof=day month year"), http.StatusBadRequest, TextValidation},
		{Conflict("transaction", "in flight"), http.StatusConflict, TextConflict},
		{Unsupported("dwolla", "initiate_payment"), http.StatusNotImplemented, TextUnsupported},
		{errors.New("boom"), http.StatusInternalServerError, TextInternal},
	}
	for _, tc := range cases {
		rich := ToServiceError(tc.err)
		require.NotNil(t, rich)
		assert.Equal(t, tc.code, rich.Code, tc.err.Error())
		assert.Equal(t, tc.text, rich.TextCode, tc.err.Error())
	}
}

func TestValidateReportsFirstField(t *testing.T) {
	type request struct {
		CorrelationID string `validate:"required"`
		Currency      string `validate:"required,len=3"`
	}

	err := Validate(request{Currency: "USD"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "correlation_id", verr.Field)
	assert.Equal(t, "required", verr.Reason)

	assert.NoError(t, Validate(request{CorrelationID: "c-1", Currency: "USD"}))
}
