package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/homedash/streak"
)

func TestLevelForXP(t *testing.T) {
	cases := map[int]int{0: 1, 499: 1, 500: 2, 1250: 3, -10: 1}
	for xp, level := range cases {
		assert.Equal(t, level, LevelForXP(xp), xp)
	}
	assert.Equal(t, 3, User{HabitXP: 1000}.Level())
}

func TestHabitSchedule(t *testing.T) {
	period := 3
	h := Habit{FrequencyType: streak.Custom, TargetCount: 2, PeriodDays: &period}
	assert.Equal(t, streak.Schedule{Frequency: streak.Custom, TargetCount: 2, PeriodDays: 3}, h.Schedule())

	daily := Habit{FrequencyType: streak.Daily, TargetCount: 1}
	assert.Equal(t, 0, daily.Schedule().PeriodDays)
}

func TestHabitTypeValid(t *testing.T) {
	assert.True(t, HabitPositive.Valid())
	assert.True(t, HabitNegative.Valid())
	assert.False(t, HabitType("neutral").Valid())
}
