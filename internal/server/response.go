package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/gateway"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Type     string         `json:"type"`
	Message  string         `json:"message"`
	Code     string         `json:"code"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

const textInvalidSignature = "PAYCORE_INVALID_SIGNATURE"

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, DataResponse{Data: data})
}

func invalidRequestError(err error) error {
	return apperr.Invalid("body", err.Error())
}

// AbortWithError records err for the access log and renders it.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := renderError(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}

func renderError(err error) (int, ErrorBody) {
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		return http.StatusUnauthorized, ErrorBody{Type: "auth", Message: "signature verification failed", Code: textInvalidSignature}
	case errors.Is(err, gateway.ErrInvalidPayload):
		return http.StatusBadRequest, ErrorBody{Type: "bad_input", Message: err.Error(), Code: apperr.TextValidation}
	}

	rich := apperr.ToServiceError(err)
	status := rich.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	body := ErrorBody{
		Type:    strings.ToLower(fmt.Sprint(rich.Category)),
		Message: rich.Message,
		Code:    rich.TextCode,
	}
	if status < http.StatusInternalServerError {
		body.Metadata = rich.Metadata
	}
	return status, body
}
