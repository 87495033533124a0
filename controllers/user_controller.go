package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/homedash/models"
	"github.com/cppla/homedash/services"
	"github.com/cppla/homedash/utils"
)

// UserController serves the caller's own profile.
type UserController struct {
	svc *services.HabitService
}

// NewUserController creates a new UserController instance.
func NewUserController(svc *services.HabitService) *UserController {
	return &UserController{svc: svc}
}

// Me returns the current authenticated user's information with XP and level.
func (u *UserController) Me(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	user, err := u.svc.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		respondServiceError(ctx, err, 50001, "failed to load user")
		return
	}
	utils.Success(ctx, userResponse(*user))
}

func userResponse(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"habit_xp":   user.HabitXP,
		"level":      user.Level(),
		"created_at": user.CreatedAt,
	}
}
