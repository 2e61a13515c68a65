// Package handler exposes payment-service's HTTP surface: send, withdraw,
// and transaction history, following a command/query handler shape.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/shared/middleware"
)

func respondErr(c *gin.Context, err error) {
	if e := errs.As(err); e != nil {
		middleware.RespondWithErrorCode(c, e.Kind.HTTPStatus(), e.Kind.Code(), e.Message)
		return
	}
	middleware.RespondWithError(c, http.StatusInternalServerError, "internal error")
}
