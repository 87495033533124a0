package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/homedash/config"
	"github.com/cppla/homedash/models"
	"github.com/cppla/homedash/streak"
)

// March 15 2024, midday UTC
var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: "file:" + name + "?mode=memory&cache=shared",
		LogLevel:    "silent",
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestService(t *testing.T, opts ...Option) (*HabitService, *gorm.DB, *FakeClock) {
	t.Helper()
	db := newTestDB(t)
	clock := NewFakeClock(testNow)
	svc := NewHabitService(db, append([]Option{WithClock(clock)}, opts...)...)
	return svc, db, clock
}

func createUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func createHabit(t *testing.T, svc *HabitService, userID uint, in HabitInput) *models.Habit {
	t.Helper()
	if in.Name == "" {
		in.Name = "Read"
	}
	h, err := svc.CreateHabit(context.Background(), userID, in)
	require.NoError(t, err)
	return h
}

func logOn(t *testing.T, svc *HabitService, habitID string, userID uint, day time.Time) *LogResult {
	t.Helper()
	res, err := svc.LogCompletion(context.Background(), habitID, userID, &day, "")
	require.NoError(t, err)
	return res
}

func userXP(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, userID).Error)
	return u.HabitXP
}

func intPtr(v int) *int { return &v }

func day(offset int) time.Time {
	return streak.AddDays(streak.DayOf(testNow), offset)
}
