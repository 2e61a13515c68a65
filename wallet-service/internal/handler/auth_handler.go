package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerwire/shared/cqrs"
	"github.com/ledgerwire/shared/middleware"
	"github.com/ledgerwire/shared/utils"
)

// AuthCommander is the write-side boundary AuthHandler routes
// request-otp/verify-otp through.
type AuthCommander interface {
	RequestOTP(ctx context.Context, cmd cqrs.RequestOTPCommand) error
	VerifyOTP(ctx context.Context, cmd cqrs.VerifyOTPCommand) (token string, err error)
}

type AuthHandler struct {
	commands AuthCommander
}

func NewAuthHandler(commands AuthCommander) *AuthHandler {
	return &AuthHandler{commands: commands}
}

type requestOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Code        string `json:"code" validate:"required,len=6"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req requestOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	phone, ok := utils.NormalizePhoneNumber(req.PhoneNumber)
	if !ok {
		middleware.RespondWithError(c, http.StatusBadRequest, "phone number is not a valid E.164 number")
		return
	}

	if err := h.commands.RequestOTP(c.Request.Context(), cqrs.RequestOTPCommand{PhoneNumber: phone}); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "otp sent"})
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	phone, ok := utils.NormalizePhoneNumber(req.PhoneNumber)
	if !ok {
		middleware.RespondWithError(c, http.StatusBadRequest, "phone number is not a valid E.164 number")
		return
	}

	token, err := h.commands.VerifyOTP(c.Request.Context(), cqrs.VerifyOTPCommand{PhoneNumber: phone, Code: req.Code})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token})
}
