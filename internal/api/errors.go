package api

import (
	"net/http"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errInvalidBody = apperr.New(apperr.KindValidation, "invalid request body")

const internalMessage = "internal server error"

// ErrorBody is the envelope of every failed response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation, apperr.KindInvalidTransition:
		return http.StatusBadRequest
	case apperr.KindInsufficientStock, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err in the error envelope. Internal errors are logged
// and replaced by a generic message.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()
	if kind == apperr.KindInternal {
		logging.FromContext(c.Request.Context()).Error("request_failed", zap.Error(err))
		message = internalMessage
	}
	c.AbortWithStatusJSON(StatusFor(kind), ErrorBody{
		Error: ErrorDetail{Kind: kind, Message: message},
	})
}
