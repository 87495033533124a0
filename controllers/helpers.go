package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/homedash/middleware"
	"github.com/cppla/homedash/utils"
)

// requireUser writes a 401 and returns false when the request carries no user.
func requireUser(ctx *gin.Context) (uint, bool) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return 0, false
	}
	return userID, true
}
