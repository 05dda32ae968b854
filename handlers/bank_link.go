package handlers

import (
	"context"
	"net/http"

	"github.com/LovationAdmin/horizon-api/middleware"
	"github.com/LovationAdmin/horizon-api/models"
	"github.com/LovationAdmin/horizon-api/services"

	"github.com/gin-gonic/gin"
)

type LinkService interface {
	CreateLinkToken(ctx context.Context, user *models.User) (string, error)
	ExchangePublicToken(ctx context.Context, in services.ExchangeInput) (*services.ExchangeResult, error)
}

type BankLinkHandler struct {
	Links LinkService
}

// CreateLinkToken starts the Link flow for the signed-in user.
func (h *BankLinkHandler) CreateLinkToken(c *gin.Context) {
	token, err := h.Links.CreateLinkToken(c.Request.Context(), middleware.GetUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.LinkTokenResponse{LinkToken: token})
}

// ExchangePublicToken completes the Link flow with the public token the
// client received from Link.
func (h *BankLinkHandler) ExchangePublicToken(c *gin.Context) {
	var req models.ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.Links.ExchangePublicToken(c.Request.Context(), services.ExchangeInput{
		PublicToken: req.PublicToken,
		User:        middleware.GetUser(c),
		AccountID:   req.AccountID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"publicTokenExchange": "complete",
		"bankAccount":         result.BankAccount,
		"account":             result.Account,
	})
}
