package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChallengeType selects how progress is measured.
type ChallengeType string

const (
	ChallengeStreak     ChallengeType = "streak"
	ChallengeCount      ChallengeType = "count"
	ChallengePerfectDay ChallengeType = "perfect_day"
)

// ChallengePeriod is informational; the actual window is StartsAt..EndsAt.
type ChallengePeriod string

const (
	PeriodWeekly  ChallengePeriod = "weekly"
	PeriodMonthly ChallengePeriod = "monthly"
)

// HabitChallenge is a global, time-boxed goal. StartsAt and EndsAt are
// inclusive calendar dates (YYYY-MM-DD).
type HabitChallenge struct {
	ID                string          `gorm:"primaryKey;size:36" json:"id"`
	Name              string          `gorm:"size:100;not null" json:"name"`
	Description       string          `gorm:"type:text" json:"description"`
	ChallengeType     ChallengeType   `gorm:"size:16;not null" json:"challenge_type"`
	Target            int             `gorm:"not null" json:"target"`
	Period            ChallengePeriod `gorm:"size:16;not null" json:"period"`
	StartsAt          string          `gorm:"size:10;index;not null" json:"starts_at"`
	EndsAt            string          `gorm:"size:10;index;not null" json:"ends_at"`
	IsSystemGenerated bool            `gorm:"not null" json:"is_system_generated"`
	CreatedAt         time.Time       `json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (c *HabitChallenge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// HabitChallengeProgress is a user's advancement on one challenge. Once
// CompletedAt is set the row is no longer recomputed.
type HabitChallengeProgress struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	UserID       uint           `gorm:"not null;uniqueIndex:idx_challenge_progress_user_challenge" json:"user_id"`
	ChallengeID  string         `gorm:"size:36;not null;uniqueIndex:idx_challenge_progress_user_challenge" json:"challenge_id"`
	CurrentValue int            `gorm:"not null;default:0" json:"current_value"`
	CompletedAt  *time.Time     `json:"completed_at"`
	Challenge    HabitChallenge `gorm:"foreignKey:ChallengeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"challenge"`
}

// TableName keeps the singular "progress" table name.
func (HabitChallengeProgress) TableName() string {
	return "habit_challenge_progress"
}

// BeforeCreate assigns a UUID when the caller did not.
func (p *HabitChallengeProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// All lists every model the habit engine migrates.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Habit{},
		&HabitLog{},
		&HabitBadge{},
		&HabitChallenge{},
		&HabitChallengeProgress{},
	}
}
