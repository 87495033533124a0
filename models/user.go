package models

import (
	"time"

	"gorm.io/gorm"
)

// XPPerLevel is the experience needed to advance one level.
const XPPerLevel = 500

// User is the account owning habits. Identity and credentials live outside the
// habit engine; it only reads the row and increments HabitXP.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"size:64;not null" json:"username"`
	Email     string         `gorm:"size:255" json:"email"`
	HabitXP   int            `gorm:"column:habit_xp;not null;default:0" json:"habit_xp"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Habits    []Habit        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// Level derives the user level from accumulated XP.
func (u User) Level() int {
	return LevelForXP(u.HabitXP)
}

// LevelForXP is xp div 500 + 1.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
