package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"static-ads-backend/internal/apperr"
	"static-ads-backend/internal/store"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error      apiError          `json:"error"`
	Generation *store.Generation `json:"generation,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindConfig:
		return http.StatusServiceUnavailable
	case apperr.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	respondErrorWith(c, err, nil)
}

func respondErrorWith(c *gin.Context, err error, g *store.Generation) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
		_ = c.Error(err)
	}

	kind := apperr.KindOf(err)
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		msg = "internal error"
	}
	c.JSON(statusFor(kind), errorEnvelope{
		Error:      apiError{Message: msg, Code: apperr.CodeOf(err)},
		Generation: g,
	})
}

func badRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, errorEnvelope{Error: apiError{Message: msg, Code: code}})
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func respondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
