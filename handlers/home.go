package handlers

import (
	"context"
	"net/http"

	"github.com/LovationAdmin/horizon-api/middleware"
	"github.com/LovationAdmin/horizon-api/models"

	"github.com/gin-gonic/gin"
)

type HomeReader interface {
	GetHome(ctx context.Context, user *models.User) (*models.HomeSummary, error)
	GetAccount(ctx context.Context, user *models.User, shareableID string) (*models.AccountSummary, error)
}

type HomeHandler struct {
	Home HomeReader
}

func (h *HomeHandler) GetHome(c *gin.Context) {
	summary, err := h.Home.GetHome(c.Request.Context(), middleware.GetUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *HomeHandler) GetAccount(c *gin.Context) {
	account, err := h.Home.GetAccount(c.Request.Context(), middleware.GetUser(c), c.Param("shareableId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}
