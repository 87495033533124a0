package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BadgeType is one of the fixed achievement kinds.
type BadgeType string

const (
	BadgeFirstLog   BadgeType = "first_log"
	BadgeStreak7    BadgeType = "streak_7"
	BadgeStreak30   BadgeType = "streak_30"
	BadgeStreak100  BadgeType = "streak_100"
	BadgePerfectDay BadgeType = "perfect_day"
	BadgeSharpFocus BadgeType = "sharp_focus"
)

// HabitBadge is earned at most once per user and type; the composite unique
// index backs the insert-or-ignore used when awarding.
type HabitBadge struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_habit_badges_user_type" json:"user_id"`
	BadgeType BadgeType `gorm:"size:50;not null;uniqueIndex:idx_habit_badges_user_type" json:"badge_type"`
	EarnedAt  time.Time `gorm:"not null" json:"earned_at"`
}

// BeforeCreate assigns a UUID and the earned timestamp.
func (b *HabitBadge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.EarnedAt.IsZero() {
		b.EarnedAt = time.Now()
	}
	return nil
}
