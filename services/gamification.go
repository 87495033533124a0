package services

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/homedash/models"
	"github.com/cppla/homedash/streak"
)

// Award is what one completion earned before challenge bonuses.
type Award struct {
	XPGranted int
	Badges    []models.BadgeType
}

// badgeRules are evaluated in order after every completion. perfect_day and
// sharp_focus exist as types but have no rule yet.
var badgeRules = []struct {
	badge  models.BadgeType
	earned func(streak.Stats) bool
}{
	{models.BadgeFirstLog, func(s streak.Stats) bool { return s.TotalCompletions >= 1 }},
	{models.BadgeStreak7, func(s streak.Stats) bool { return s.CurrentStreak >= 7 }},
	{models.BadgeStreak30, func(s streak.Stats) bool { return s.CurrentStreak >= 30 }},
	{models.BadgeStreak100, func(s streak.Stats) bool { return s.CurrentStreak >= 100 }},
}

// awardForCompletion grants the per-log XP (base plus current streak) and any
// newly earned badges. Must run inside the logging transaction.
func (s *HabitService) awardForCompletion(tx *gorm.DB, userID uint, stats streak.Stats) (Award, error) {
	award := Award{XPGranted: s.rewards.BaseXP + stats.CurrentStreak}
	if err := awardXP(tx, userID, award.XPGranted); err != nil {
		return Award{}, err
	}

	badges, err := s.awardBadges(tx, userID, stats)
	if err != nil {
		return Award{}, err
	}
	award.Badges = badges
	award.XPGranted += len(badges) * s.rewards.BadgeXP
	return award, nil
}

func (s *HabitService) awardBadges(tx *gorm.DB, userID uint, stats streak.Stats) ([]models.BadgeType, error) {
	var owned []models.BadgeType
	if err := tx.Model(&models.HabitBadge{}).
		Where("user_id = ?", userID).
		Pluck("badge_type", &owned).Error; err != nil {
		return nil, fmt.Errorf("load badges: %w", err)
	}
	has := make(map[models.BadgeType]bool, len(owned))
	for _, b := range owned {
		has[b] = true
	}

	var earned []models.BadgeType
	for _, rule := range badgeRules {
		if has[rule.badge] || !rule.earned(stats) {
			continue
		}
		// the unique (user_id, badge_type) index turns a lost race into a no-op
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.HabitBadge{UserID: userID, BadgeType: rule.badge})
		if res.Error != nil {
			return nil, fmt.Errorf("insert badge %s: %w", rule.badge, res.Error)
		}
		if res.RowsAffected != 1 {
			continue
		}
		if err := awardXP(tx, userID, s.rewards.BadgeXP); err != nil {
			return nil, err
		}
		earned = append(earned, rule.badge)
	}
	return earned, nil
}

// awardXP adds n to the user's XP with a single UPDATE ... SET habit_xp = habit_xp + n.
func awardXP(tx *gorm.DB, userID uint, n int) error {
	if n <= 0 {
		return nil
	}
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("habit_xp", gorm.Expr("habit_xp + ?", n))
	if res.Error != nil {
		return fmt.Errorf("award xp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
