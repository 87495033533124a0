package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/homedash/services"
	"github.com/cppla/homedash/streak"
	"github.com/cppla/homedash/utils"
)

// HabitController exposes the habit engine over HTTP.
type HabitController struct {
	svc *services.HabitService
}

// NewHabitController creates a new HabitController instance.
func NewHabitController(svc *services.HabitService) *HabitController {
	return &HabitController{svc: svc}
}

// ListHabits returns the caller's active habits with stats.
func (h *HabitController) ListHabits(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	habits, err := h.svc.ListHabits(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50040, "failed to list habits")
		return
	}
	utils.Success(ctx, habits)
}

// CreateHabit adds a habit for the caller.
func (h *HabitController) CreateHabit(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req services.HabitInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	habit, err := h.svc.CreateHabit(ctx.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(ctx, err, 50041, "failed to create habit")
		return
	}
	utils.Created(ctx, habit)
}

// GetHabit returns one habit with stats.
func (h *HabitController) GetHabit(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	habit, err := h.svc.GetHabit(ctx.Request.Context(), ctx.Param("id"), userID)
	if err != nil {
		respondServiceError(ctx, err, 50042, "failed to load habit")
		return
	}
	utils.Success(ctx, habit)
}

// UpdateHabit applies a partial update.
func (h *HabitController) UpdateHabit(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req services.HabitPatch
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	habit, err := h.svc.UpdateHabit(ctx.Request.Context(), ctx.Param("id"), userID, req)
	if err != nil {
		respondServiceError(ctx, err, 50043, "failed to update habit")
		return
	}
	utils.Success(ctx, habit)
}

// DeleteHabit soft deletes a habit.
func (h *HabitController) DeleteHabit(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	if err := h.svc.SoftDeleteHabit(ctx.Request.Context(), ctx.Param("id"), userID); err != nil {
		respondServiceError(ctx, err, 50044, "failed to delete habit")
		return
	}
	utils.Success(ctx, gin.H{"deleted": true})
}

// LogCompletion records a completion; logged_date (YYYY-MM-DD) defaults to today.
func (h *HabitController) LogCompletion(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req struct {
		LoggedDate string `json:"logged_date"`
		Notes      string `json:"notes"`
	}
	// an empty body means "today, no notes"
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
			return
		}
	}
	date, err := optionalDay(req.LoggedDate)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "logged_date must be YYYY-MM-DD")
		return
	}

	res, err := h.svc.LogCompletion(ctx.Request.Context(), ctx.Param("id"), userID, date, req.Notes)
	if err != nil {
		respondServiceError(ctx, err, 50045, "failed to log completion")
		return
	}
	utils.Created(ctx, res)
}

// ListLogs returns the habit's logs newest first, optionally bounded by ?start= and ?end=.
func (h *HabitController) ListLogs(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	start, err := optionalDay(ctx.Query("start"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "start must be YYYY-MM-DD")
		return
	}
	end, err := optionalDay(ctx.Query("end"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "end must be YYYY-MM-DD")
		return
	}
	logs, err := h.svc.GetLogHistory(ctx.Request.Context(), ctx.Param("id"), userID, start, end)
	if err != nil {
		respondServiceError(ctx, err, 50046, "failed to load logs")
		return
	}
	utils.Success(ctx, logs)
}

// UndoLog deletes one log entry.
func (h *HabitController) UndoLog(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	if err := h.svc.UndoLog(ctx.Request.Context(), ctx.Param("logId"), userID); err != nil {
		respondServiceError(ctx, err, 50047, "failed to undo log")
		return
	}
	utils.Success(ctx, gin.H{"deleted": true})
}

// Summary returns the dashboard overview.
func (h *HabitController) Summary(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	summary, err := h.svc.GetSummary(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50048, "failed to build summary")
		return
	}
	utils.Success(ctx, summary)
}

// Badges lists earned badges.
func (h *HabitController) Badges(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	badges, err := h.svc.ListBadges(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50049, "failed to list badges")
		return
	}
	utils.Success(ctx, badges)
}

// Challenges lists progress on active challenges.
func (h *HabitController) Challenges(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	rows, err := h.svc.ListChallengeProgress(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50050, "failed to list challenges")
		return
	}
	utils.Success(ctx, rows)
}

func optionalDay(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := streak.ParseDay(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// respondServiceError maps service errors onto the JSON envelope.
func respondServiceError(ctx *gin.Context, err error, code int, message string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.Error(ctx, http.StatusBadRequest, 40042, verr.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40440, "not found")
	case errors.Is(err, utils.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		utils.Error(ctx, http.StatusServiceUnavailable, 50340, "busy, try again")
	default:
		utils.Logger.Error(message, zap.Error(err), zap.String("path", ctx.FullPath()))
		utils.Error(ctx, http.StatusInternalServerError, code, message)
	}
}
