package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/homedash/config"
	"github.com/cppla/homedash/models"
	"github.com/cppla/homedash/services"
	"github.com/cppla/homedash/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiClient struct {
	t     *testing.T
	r     *gin.Engine
	token string
}

func (c apiClient) do(method, path string, body interface{}) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)

	var env envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func setup(t *testing.T) (*gin.Engine, *gorm.DB, *services.FakeClock) {
	t.Helper()
	config.Set(config.AppConfig{
		JWTSecret:          "router-test-secret",
		GinMode:            "test",
		RateLimitPerMinute: 10000,
	})

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		LogLevel:    "silent",
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clock := services.NewFakeClock(time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC))
	svc := services.NewHabitService(db, services.WithClock(clock))
	return SetupRouter(svc), db, clock
}

func clientFor(t *testing.T, r *gin.Engine, db *gorm.DB, username string) apiClient {
	t.Helper()
	u := models.User{Username: username}
	require.NoError(t, db.Create(&u).Error)
	token, err := utils.GenerateToken(u.ID, u.Username, time.Hour)
	require.NoError(t, err)
	return apiClient{t: t, r: r, token: token}
}

func TestHealthAndAuth(t *testing.T) {
	r, _, _ := setup(t)
	anon := apiClient{t: t, r: r}

	status, env := anon.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Code)

	status, _ = anon.do(http.MethodGet, "/api/v1/habits", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = anon.do(http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, env.Code)
}

func TestHabitLifecycleOverHTTP(t *testing.T) {
	r, db, _ := setup(t)
	alice := clientFor(t, r, db, "alice")

	status, env := alice.do(http.MethodPost, "/api/v1/habits", gin.H{"name": "Read", "target_count": 1})
	require.Equal(t, http.StatusCreated, status, string(env.Data))
	var habit models.Habit
	require.NoError(t, json.Unmarshal(env.Data, &habit))
	assert.Equal(t, "Read", habit.Name)
	assert.Equal(t, models.DefaultHabitEmoji, habit.Emoji)

	status, env = alice.do(http.MethodPost, "/api/v1/habits/"+habit.ID+"/logs", gin.H{"logged_date": "2024-03-14", "notes": "chapter 3"})
	require.Equal(t, http.StatusCreated, status, string(env.Data))
	status, env = alice.do(http.MethodPost, "/api/v1/habits/"+habit.ID+"/logs", nil)
	require.Equal(t, http.StatusCreated, status, string(env.Data))
	var logged services.LogResult
	require.NoError(t, json.Unmarshal(env.Data, &logged))
	assert.Equal(t, "2024-03-15", logged.Log.LoggedDate)
	assert.Equal(t, 2, logged.Stats.CurrentStreak)
	assert.Equal(t, 12, logged.XPGranted)

	status, env = alice.do(http.MethodGet, "/api/v1/habits/"+habit.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var got models.Habit
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.NotNil(t, got.Stats)
	assert.Equal(t, 2, got.Stats.TotalCompletions)

	status, env = alice.do(http.MethodGet, "/api/v1/habits/"+habit.ID+"/logs?start=2024-03-15", nil)
	require.Equal(t, http.StatusOK, status)
	var logs []models.HabitLog
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	require.Len(t, logs, 1)

	status, env = alice.do(http.MethodGet, "/api/v1/habits/summary", nil)
	require.Equal(t, http.StatusOK, status)
	var summary services.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 1, summary.TotalHabits)
	assert.Equal(t, 1, summary.CompletedToday)
	assert.Equal(t, 2, summary.BestStreak)

	status, env = alice.do(http.MethodGet, "/api/v1/habits/badges", nil)
	require.Equal(t, http.StatusOK, status)
	var badges []models.HabitBadge
	require.NoError(t, json.Unmarshal(env.Data, &badges))
	require.Len(t, badges, 1)
	assert.Equal(t, models.BadgeFirstLog, badges[0].BadgeType)

	status, env = alice.do(http.MethodGet, "/api/v1/habits/challenges", nil)
	require.Equal(t, http.StatusOK, status)
	var progress []models.HabitChallengeProgress
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	assert.Len(t, progress, 2)

	status, env = alice.do(http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, status)
	var me struct {
		HabitXP int `json:"habit_xp"`
		Level   int `json:"level"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, summary.UserXP, me.HabitXP)
	assert.Equal(t, 1, me.Level)

	status, _ = alice.do(http.MethodDelete, "/api/v1/habits/"+habit.ID+"/logs/"+logged.Log.ID, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = alice.do(http.MethodDelete, "/api/v1/habits/"+habit.ID+"/logs/"+logged.Log.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = alice.do(http.MethodPatch, "/api/v1/habits/"+habit.ID, gin.H{"color": "#ff0000"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "#ff0000", got.Color)
	assert.Equal(t, "Read", got.Name)

	status, _ = alice.do(http.MethodDelete, "/api/v1/habits/"+habit.ID, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = alice.do(http.MethodGet, "/api/v1/habits/"+habit.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHabitErrorsOverHTTP(t *testing.T) {
	r, db, _ := setup(t)
	alice := clientFor(t, r, db, "alice")
	bob := clientFor(t, r, db, "bob")

	status, env := alice.do(http.MethodPost, "/api/v1/habits", gin.H{"name": "Yoga", "frequency_type": "custom"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40042, env.Code)
	assert.Contains(t, env.Message, "period_days")

	status, env = alice.do(http.MethodPost, "/api/v1/habits", gin.H{"name": "Yoga"})
	require.Equal(t, http.StatusCreated, status)
	var habit models.Habit
	require.NoError(t, json.Unmarshal(env.Data, &habit))

	status, _ = bob.do(http.MethodGet, "/api/v1/habits/"+habit.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = bob.do(http.MethodPost, "/api/v1/habits/"+habit.ID+"/logs", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = alice.do(http.MethodPost, "/api/v1/habits/"+habit.ID+"/logs", gin.H{"logged_date": "15/03/2024"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40041, env.Code)

	status, _ = alice.do(http.MethodGet, "/api/v1/habits/"+habit.ID+"/logs?start=2024-03-15&end=2024-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
