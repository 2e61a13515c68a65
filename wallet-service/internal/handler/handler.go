// Package handler exposes wallet-service's HTTP surface: OTP request/verify
// and balance lookup, following the same request/response and
// error-translation shape used across the other services.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/shared/middleware"
)

// respondErr translates a core/errs.Kind into the shared error envelope,
// the HTTP-status/error-code pairing every handler in this service uses.
func respondErr(c *gin.Context, err error) {
	if e := errs.As(err); e != nil {
		middleware.RespondWithErrorCode(c, e.Kind.HTTPStatus(), e.Kind.Code(), e.Message)
		return
	}
	middleware.RespondWithError(c, http.StatusInternalServerError, "internal error")
}
