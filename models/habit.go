package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/homedash/streak"
)

// HabitType tells whether the habit is something to do or to avoid.
type HabitType string

const (
	HabitPositive HabitType = "positive"
	HabitNegative HabitType = "negative"
)

// Valid reports whether t is a known habit type.
func (t HabitType) Valid() bool {
	return t == HabitPositive || t == HabitNegative
}

const (
	DefaultHabitEmoji = "✨"
	DefaultHabitColor = "#228be6"
)

// Habit is a tracked habit. It is never hard-deleted; IsActive=false hides it.
type Habit struct {
	ID            string           `gorm:"primaryKey;size:36" json:"id"`
	UserID        uint             `gorm:"index;not null" json:"user_id"`
	Name          string           `gorm:"size:100;not null" json:"name"`
	Emoji         string           `gorm:"size:16" json:"emoji"`
	Color         string           `gorm:"size:7" json:"color"`
	Category      string           `gorm:"size:50" json:"category"`
	Description   string           `gorm:"type:text" json:"description"`
	HabitType     HabitType        `gorm:"size:16;not null" json:"habit_type"`
	FrequencyType streak.Frequency `gorm:"size:16;not null" json:"frequency_type"`
	TargetCount   int              `gorm:"not null;default:1" json:"target_count"`
	PeriodDays    *int             `json:"period_days"`
	IsActive      bool             `gorm:"index;not null" json:"is_active"`
	Order         int              `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Logs          []HabitLog       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Stats         *streak.Stats    `gorm:"-" json:"stats,omitempty"`
}

// Schedule extracts what the streak calculator needs.
func (h Habit) Schedule() streak.Schedule {
	s := streak.Schedule{Frequency: h.FrequencyType, TargetCount: h.TargetCount}
	if h.PeriodDays != nil {
		s.PeriodDays = *h.PeriodDays
	}
	return s
}

// BeforeCreate assigns a UUID when the caller did not.
func (h *Habit) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// HabitLog is one completion event. LoggedDate is a calendar date (YYYY-MM-DD)
// without time-of-day; several logs may share a date.
type HabitLog struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	HabitID    string    `gorm:"size:36;index;not null" json:"habit_id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	LoggedDate string    `gorm:"size:10;index;not null" json:"logged_date"`
	Notes      string    `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (l *HabitLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
