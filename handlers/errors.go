package handlers

import (
	"net/http"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/utils"

	"github.com/gin-gonic/gin"
)

// respondError writes {"error", "kind"} with the status for the error's kind.
func respondError(c *gin.Context, err error) {
	writeError(c, apperr.HTTPStatus(err), err)
}

// respondSessionError is respondError for calls that act on the session
// itself, where a missing session means the caller is not signed in.
func respondSessionError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if apperr.Is(err, apperr.NotFound) {
		status = http.StatusUnauthorized
	}
	writeError(c, status, err)
}

func writeError(c *gin.Context, status int, err error) {
	msg := utils.MaskString(err.Error())
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		msg = "Internal server error"
	}
	c.JSON(status, gin.H{
		"error": msg,
		"kind":  apperr.KindOf(err).String(),
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
