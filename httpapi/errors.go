package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"quoteflow/auth"
	"quoteflow/garage"
	"quoteflow/quote"
	"quoteflow/request"
)

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// writeError maps core error kinds onto transport status codes without
// inventing new semantics. Unexpected errors are logged and reported as 500.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("httpapi: internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		msg = "internal error"
	}
	c.JSON(status, errorBody{Error: msg, Status: status})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, quote.ErrNotFound),
		errors.Is(err, request.ErrNotFound),
		errors.Is(err, garage.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, quote.ErrForbidden),
		errors.Is(err, request.ErrCancelForbidden),
		errors.Is(err, request.ErrProjectionForbidden):
		return http.StatusForbidden
	case errors.Is(err, quote.ErrAlreadyAccepted),
		errors.Is(err, quote.ErrRequestInactive),
		errors.Is(err, quote.ErrQuoteNotAcceptable),
		errors.Is(err, quote.ErrQuoteExpired),
		errors.Is(err, request.ErrCancelInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, quote.ErrTransactionConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
