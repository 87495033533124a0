package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/homedash/models"
)

func countChallenges(t *testing.T, svc *HabitService) int64 {
	t.Helper()
	var n int64
	require.NoError(t, svc.db.Model(&models.HabitChallenge{}).Count(&n).Error)
	return n
}

func TestDefaultChallengeSeedingIsIdempotent(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	u := createUser(t, db, "alice")

	for i := 0; i < 3; i++ {
		rows, err := svc.ListChallengeProgress(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	}
	assert.EqualValues(t, 2, countChallenges(t, svc))

	var challenges []models.HabitChallenge
	require.NoError(t, db.Order("name").Find(&challenges).Error)
	assert.Equal(t, "Streak Master", challenges[0].Name)
	assert.Equal(t, models.ChallengeStreak, challenges[0].ChallengeType)
	assert.Equal(t, "2024-04-14", challenges[0].EndsAt)
	assert.Equal(t, "Weekly Warrior", challenges[1].Name)
	assert.Equal(t, models.ChallengeCount, challenges[1].ChallengeType)
	assert.Equal(t, 5, challenges[1].Target)
	assert.Equal(t, "2024-03-15", challenges[1].StartsAt)
	assert.Equal(t, "2024-03-22", challenges[1].EndsAt)
	assert.True(t, challenges[1].IsSystemGenerated)
}

func TestDefaultChallengeSeedingConcurrent(t *testing.T) {
	svc, db, _ := newTestService(t)
	u := createUser(t, db, "alice")

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ListChallengeProgress(context.Background(), u.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 2, countChallenges(t, svc))
}

func TestChallengeProgressAfterLogging(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	u := createUser(t, db, "alice")
	h := createHabit(t, svc, u.ID, HabitInput{})

	logOn(t, svc, h.ID, u.ID, day(0))
	logOn(t, svc, h.ID, u.ID, day(-1))

	rows, err := svc.ListChallengeProgress(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Streak Master", rows[0].Challenge.Name)
	assert.Equal(t, 2, rows[0].CurrentValue)
	assert.Equal(t, "Weekly Warrior", rows[1].Challenge.Name)
	// the log dated before the challenge started does not count
	assert.Equal(t, 1, rows[1].CurrentValue)
	assert.Nil(t, rows[1].CompletedAt)

	other := createUser(t, db, "bob")
	theirs, err := svc.ListChallengeProgress(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	// past the weekly window only the monthly challenge is listed
	clock.Advance(8 * 24 * time.Hour)
	rows, err = svc.ListChallengeProgress(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Streak Master", rows[0].Challenge.Name)
	assert.EqualValues(t, 2, countChallenges(t, svc))
}

func TestCountChallengeCompletesOnce(t *testing.T) {
	svc, db, _ := newTestService(t)
	u := createUser(t, db, "alice")
	h := createHabit(t, svc, u.ID, HabitInput{})

	for i := 0; i < 4; i++ {
		res := logOn(t, svc, h.ID, u.ID, day(0))
		assert.Empty(t, res.CompletedChallenges)
	}
	fifth := logOn(t, svc, h.ID, u.ID, day(0))
	require.Len(t, fifth.CompletedChallenges, 1)
	assert.Equal(t, "Weekly Warrior", fifth.CompletedChallenges[0].Name)
	assert.Equal(t, 11+100, fifth.XPGranted)
	assert.Equal(t, 11*5+50+100, userXP(t, db, u.ID))

	sixth := logOn(t, svc, h.ID, u.ID, day(0))
	assert.Empty(t, sixth.CompletedChallenges)
	assert.Equal(t, 11*6+50+100, userXP(t, db, u.ID))

	var weekly models.HabitChallenge
	require.NoError(t, db.Where("name = ?", "Weekly Warrior").First(&weekly).Error)
	var progress models.HabitChallengeProgress
	require.NoError(t, db.Where("user_id = ? AND challenge_id = ?", u.ID, weekly.ID).First(&progress).Error)
	require.NotNil(t, progress.CompletedAt)
	// frozen once completed
	assert.Equal(t, 5, progress.CurrentValue)
}

func TestPerfectDayChallengeIncrementsPerRefresh(t *testing.T) {
	svc, db, _ := newTestService(t)
	u := createUser(t, db, "alice")
	h := createHabit(t, svc, u.ID, HabitInput{})
	require.NoError(t, db.Create(&models.HabitChallenge{
		Name:          "Perfect Pair",
		ChallengeType: models.ChallengePerfectDay,
		Target:        2,
		Period:        models.PeriodWeekly,
		StartsAt:      "2024-03-10",
		EndsAt:        "2024-03-20",
	}).Error)

	first := logOn(t, svc, h.ID, u.ID, day(0))
	assert.Empty(t, first.CompletedChallenges)
	second := logOn(t, svc, h.ID, u.ID, day(0))
	require.Len(t, second.CompletedChallenges, 1)
	assert.Equal(t, "Perfect Pair", second.CompletedChallenges[0].Name)

	// an existing challenge suppresses default seeding
	assert.EqualValues(t, 1, countChallenges(t, svc))
}
