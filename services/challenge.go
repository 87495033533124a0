package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/homedash/models"
	"github.com/cppla/homedash/streak"
	"github.com/cppla/homedash/utils"
)

const seedLockKey = "challenges:seed"

func defaultChallenges(todayDay time.Time) []models.HabitChallenge {
	start := streak.FormatDay(todayDay)
	return []models.HabitChallenge{
		{
			ID:                systemChallengeID("Weekly Warrior", start),
			Name:              "Weekly Warrior",
			Description:       "Complete 5 habits this week",
			ChallengeType:     models.ChallengeCount,
			Target:            5,
			Period:            models.PeriodWeekly,
			StartsAt:          start,
			EndsAt:            streak.FormatDay(streak.AddDays(todayDay, 7)),
			IsSystemGenerated: true,
		},
		{
			ID:                systemChallengeID("Streak Master", start),
			Name:              "Streak Master",
			Description:       "Achieve a 7-day streak on any habit",
			ChallengeType:     models.ChallengeStreak,
			Target:            7,
			Period:            models.PeriodMonthly,
			StartsAt:          start,
			EndsAt:            streak.FormatDay(streak.AddDays(todayDay, 30)),
			IsSystemGenerated: true,
		},
	}
}

// ensureDefaultChallenges creates the system challenges when the table is empty.
// Used by read paths; LogCompletion seeds inside its own transaction.
func (s *HabitService) ensureDefaultChallenges(ctx context.Context, todayDay time.Time) error {
	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.HabitChallenge{}).Count(&n).Error; err != nil {
		return fmt.Errorf("count challenges: %w", err)
	}
	if n > 0 {
		return nil
	}

	unlock, err := s.locker.Lock(ctx, seedLockKey)
	if err != nil {
		return fmt.Errorf("lock challenge seeding: %w", err)
	}
	defer unlock()

	return db.Transaction(func(tx *gorm.DB) error {
		return seedDefaultChallenges(tx, todayDay)
	})
}

// seedDefaultChallenges inserts the system challenges inside tx when the table
// is empty. Their ids derive from name and start date, so concurrent seeders of
// the same day collide on the primary key and only one set is kept.
func seedDefaultChallenges(tx *gorm.DB, todayDay time.Time) error {
	var n int64
	if err := tx.Model(&models.HabitChallenge{}).Count(&n).Error; err != nil {
		return fmt.Errorf("count challenges: %w", err)
	}
	if n > 0 {
		return nil
	}
	seed := defaultChallenges(todayDay)
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed)
	if res.Error != nil {
		return fmt.Errorf("seed challenges: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		utils.Sugar.Infow("seeded default challenges", "count", res.RowsAffected, "starts_at", seed[0].StartsAt)
	}
	return nil
}

func systemChallengeID(name, start string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("homedash:challenge:"+name+":"+start)).String()
}

// refreshProgress recomputes the user's progress on every challenge active on
// todayDay and returns the challenges completed by this refresh.
func (s *HabitService) refreshProgress(tx *gorm.DB, userID uint, todayDay, now time.Time) ([]models.HabitChallenge, error) {
	day := streak.FormatDay(todayDay)
	var challenges []models.HabitChallenge
	if err := tx.Where("starts_at <= ? AND ends_at >= ?", day, day).
		Order("starts_at ASC, name ASC").
		Find(&challenges).Error; err != nil {
		return nil, fmt.Errorf("load active challenges: %w", err)
	}

	var completed []models.HabitChallenge
	var maxStreak *int
	for _, c := range challenges {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.HabitChallengeProgress{UserID: userID, ChallengeID: c.ID}).Error; err != nil {
			return nil, fmt.Errorf("create progress: %w", err)
		}
		var progress models.HabitChallengeProgress
		if err := tx.Where("user_id = ? AND challenge_id = ?", userID, c.ID).First(&progress).Error; err != nil {
			return nil, fmt.Errorf("load progress: %w", err)
		}
		if progress.CompletedAt != nil {
			continue
		}

		var value int
		switch c.ChallengeType {
		case models.ChallengeCount:
			var n int64
			if err := tx.Model(&models.HabitLog{}).
				Where("user_id = ? AND logged_date >= ? AND logged_date <= ?", userID, c.StartsAt, c.EndsAt).
				Count(&n).Error; err != nil {
				return nil, fmt.Errorf("count logs: %w", err)
			}
			value = int(n)
		case models.ChallengeStreak:
			if maxStreak == nil {
				best, err := bestCurrentStreak(tx, userID, todayDay)
				if err != nil {
					return nil, err
				}
				maxStreak = &best
			}
			value = *maxStreak
		case models.ChallengePerfectDay:
			// TODO: count days on which every active habit met its target instead of one per refresh
			value = progress.CurrentValue + 1
		default:
			value = progress.CurrentValue
		}

		updates := map[string]interface{}{"current_value": value}
		finished := value >= c.Target
		if finished {
			updates["completed_at"] = now
		}
		res := tx.Model(&models.HabitChallengeProgress{}).
			Where("id = ? AND completed_at IS NULL", progress.ID).
			Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update progress: %w", res.Error)
		}
		if finished && res.RowsAffected == 1 {
			if err := awardXP(tx, userID, s.rewards.ChallengeXP); err != nil {
				return nil, err
			}
			completed = append(completed, c)
		}
	}
	return completed, nil
}

func bestCurrentStreak(tx *gorm.DB, userID uint, todayDay time.Time) (int, error) {
	var habits []models.Habit
	if err := tx.Where("user_id = ? AND is_active = ?", userID, true).Find(&habits).Error; err != nil {
		return 0, fmt.Errorf("load habits: %w", err)
	}
	if err := attachStats(tx, habits, todayDay); err != nil {
		return 0, err
	}
	best := 0
	for _, h := range habits {
		if h.Stats.CurrentStreak > best {
			best = h.Stats.CurrentStreak
		}
	}
	return best, nil
}

// ListChallengeProgress seeds the default challenges when needed and returns
// the user's existing progress rows on currently active challenges.
func (s *HabitService) ListChallengeProgress(ctx context.Context, userID uint) ([]models.HabitChallengeProgress, error) {
	todayDay := today(s.clock)
	if err := s.ensureDefaultChallenges(ctx, todayDay); err != nil {
		return nil, err
	}

	day := streak.FormatDay(todayDay)
	var rows []models.HabitChallengeProgress
	if err := s.db.WithContext(ctx).
		Select("habit_challenge_progress.*").
		Joins("JOIN habit_challenges ON habit_challenges.id = habit_challenge_progress.challenge_id").
		Where("habit_challenge_progress.user_id = ?", userID).
		Where("habit_challenges.starts_at <= ? AND habit_challenges.ends_at >= ?", day, day).
		Order("habit_challenges.starts_at ASC, habit_challenges.name ASC").
		Preload("Challenge").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list challenge progress: %w", err)
	}
	return rows, nil
}
