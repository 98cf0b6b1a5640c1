package serializer

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/decorly-io/decorly/internal/modules/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var log = zap.NewNop()

// SetLogger installs the package logger used for 5xx responses.
func SetLogger(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

// Response
type Response struct {
	Code  int         `json:"code"`
	Data  interface{} `json:"data,omitempty"`
	Msg   string      `json:"msg"`
	Error string      `json:"error,omitempty"`
}

// TrackedErrorResponse
type TrackedErrorResponse struct {
	Response
	TraceID string `json:"trace_id"`
}

// OK
func OK(data interface{}) Response {
	return Response{
		Code: http.StatusOK,
		Data: data,
		Msg:  "success",
	}
}

// Err
func Err(errCode int, msg string, err error) Response {
	res := Response{
		Code: errCode,
		Msg:  msg,
	}
	if err != nil && errCode >= http.StatusInternalServerError {
		log.Error(msg, zap.Error(err))
	}
	// development mode, show error detail
	if err != nil && gin.Mode() != gin.ReleaseMode {
		res.Error = fmt.Sprintf("%+v", err)
	}
	return res
}

// DBErr
func DBErr(msg string, err error) Response {
	if msg == "" {
		msg = "database error"
	}
	return Err(http.StatusInternalServerError, msg, err)
}

// ParamErr
func ParamErr(msg string, err error) Response {
	if msg == "" {
		msg = "parameter error"
	}
	return Err(http.StatusBadRequest, msg, err)
}

// AuthErr
func AuthErr(msg string) Response {
	if msg == "" {
		msg = "authentication error"
	}
	return Err(http.StatusUnauthorized, msg, nil)
}

// SvcErr maps a service-layer error to its HTTP status and message.
func SvcErr(err error) Response {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return Err(http.StatusBadRequest, "invalid input", err)
	case errors.Is(err, service.ErrInsufficientCredits):
		return Err(http.StatusPaymentRequired, "insufficient credits", err)
	case errors.Is(err, service.ErrDuplicateSubmission):
		return Err(http.StatusConflict, "duplicate submission", err)
	case errors.Is(err, service.ErrProjectNotFound):
		return Err(http.StatusNotFound, "project not found", err)
	case errors.Is(err, service.ErrObjectNotFound):
		return Err(http.StatusNotFound, "object not found", err)
	case errors.Is(err, service.ErrContentBlocked):
		return Err(http.StatusUnprocessableEntity, "content blocked by safety filter", err)
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return Err(http.StatusServiceUnavailable, "generation service unavailable", err)
	case errors.Is(err, service.ErrImageMissing), errors.Is(err, service.ErrEmptyResponse):
		return Err(http.StatusBadGateway, "generation produced no usable result", err)
	default:
		return Err(http.StatusInternalServerError, "internal error", err)
	}
}

// HTTPStatus returns the transport status for a service-layer error.
func HTTPStatus(err error) int {
	return SvcErr(err).Code
}
