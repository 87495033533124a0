// Package services holds the habit engine: CRUD, completion logging,
// gamification and challenge tracking on top of gorm.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/homedash/config"
	"github.com/cppla/homedash/models"
	"github.com/cppla/homedash/streak"
	"github.com/cppla/homedash/utils"
)

const maxHabitNameLen = 100

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Rewards are the XP amounts granted by the gamification engine.
type Rewards struct {
	BaseXP      int
	BadgeXP     int
	ChallengeXP int
}

// DefaultRewards mirrors the configuration defaults.
var DefaultRewards = Rewards{BaseXP: 10, BadgeXP: 50, ChallengeXP: 100}

// RewardsFromConfig reads reward amounts from the application config.
func RewardsFromConfig(c config.AppConfig) Rewards {
	return Rewards{BaseXP: c.HabitBaseXP, BadgeXP: c.BadgeBonusXP, ChallengeXP: c.ChallengeBonusXP}
}

// HabitService implements the habit engine for one database.
type HabitService struct {
	db       *gorm.DB
	clock    Clock
	locker   *utils.KeyedLocker
	rewards  Rewards
	cacheTTL time.Duration
}

// Option customizes a HabitService.
type Option func(*HabitService)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option { return func(s *HabitService) { s.clock = c } }

// WithLocker sets the per-user locker (Redis backed in production).
func WithLocker(l *utils.KeyedLocker) Option { return func(s *HabitService) { s.locker = l } }

// WithRewards overrides the XP amounts.
func WithRewards(r Rewards) Option { return func(s *HabitService) { s.rewards = r } }

// WithCacheTTL sets how long summaries stay cached; zero disables caching.
func WithCacheTTL(d time.Duration) Option { return func(s *HabitService) { s.cacheTTL = d } }

// NewHabitService creates a service with a process-local locker and default rewards.
func NewHabitService(db *gorm.DB, opts ...Option) *HabitService {
	s := &HabitService{
		db:      db,
		clock:   RealClock{},
		locker:  utils.NewKeyedLocker(nil),
		rewards: DefaultRewards,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HabitInput is the payload for creating a habit. Empty optional fields take defaults.
type HabitInput struct {
	Name          string           `json:"name"`
	Emoji         string           `json:"emoji"`
	Color         string           `json:"color"`
	Category      string           `json:"category"`
	Description   string           `json:"description"`
	HabitType     models.HabitType `json:"habit_type"`
	FrequencyType streak.Frequency `json:"frequency_type"`
	TargetCount   *int             `json:"target_count"`
	PeriodDays    *int             `json:"period_days"`
}

// HabitPatch changes only the fields that are set.
type HabitPatch struct {
	Name          *string           `json:"name"`
	Emoji         *string           `json:"emoji"`
	Color         *string           `json:"color"`
	Category      *string           `json:"category"`
	Description   *string           `json:"description"`
	HabitType     *models.HabitType `json:"habit_type"`
	FrequencyType *streak.Frequency `json:"frequency_type"`
	TargetCount   *int              `json:"target_count"`
	PeriodDays    *int              `json:"period_days"`
	IsActive      *bool             `json:"is_active"`
	Order         *int              `json:"order"`
}

// LogResult is what a successful completion produced.
type LogResult struct {
	Log                 models.HabitLog         `json:"log"`
	Stats               streak.Stats            `json:"stats"`
	XPGranted           int                     `json:"xp_granted"`
	NewBadges           []models.BadgeType      `json:"new_badges"`
	CompletedChallenges []models.HabitChallenge `json:"completed_challenges"`
}

// SummaryItem is the per-habit line of the dashboard summary.
type SummaryItem struct {
	HabitID       string `json:"habit_id"`
	Name          string `json:"name"`
	Emoji         string `json:"emoji"`
	Color         string `json:"color"`
	TargetCount   int    `json:"target_count"`
	TodayCount    int    `json:"today_count"`
	IsComplete    bool   `json:"is_complete"`
	CurrentStreak int    `json:"current_streak"`
}

// Summary is the dashboard overview of a user's habits.
type Summary struct {
	TotalHabits    int           `json:"total_habits"`
	CompletedToday int           `json:"completed_today"`
	BestStreak     int           `json:"best_streak"`
	UserLevel      int           `json:"user_level"`
	UserXP         int           `json:"user_xp"`
	Habits         []SummaryItem `json:"habits"`
}

// ListHabits returns the user's active habits ordered for display, each with stats.
func (s *HabitService) ListHabits(ctx context.Context, userID uint) ([]models.Habit, error) {
	db := s.db.WithContext(ctx)
	var habits []models.Habit
	if err := db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("sort_order ASC, created_at ASC").
		Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	if err := attachStats(db, habits, today(s.clock)); err != nil {
		return nil, err
	}
	return habits, nil
}

// GetHabit returns one active habit of the user with stats.
func (s *HabitService) GetHabit(ctx context.Context, habitID string, userID uint) (*models.Habit, error) {
	db := s.db.WithContext(ctx)
	habit, err := findHabit(db, habitID, userID, true)
	if err != nil {
		return nil, err
	}
	habits := []models.Habit{*habit}
	if err := attachStats(db, habits, today(s.clock)); err != nil {
		return nil, err
	}
	return &habits[0], nil
}

// CreateHabit validates input, fills defaults and appends the habit after the user's last one.
func (s *HabitService) CreateHabit(ctx context.Context, userID uint, in HabitInput) (*models.Habit, error) {
	habit := models.Habit{
		UserID:        userID,
		Name:          utils.Sanitize(in.Name),
		Emoji:         in.Emoji,
		Color:         in.Color,
		Category:      utils.Sanitize(in.Category),
		Description:   utils.Sanitize(in.Description),
		HabitType:     in.HabitType,
		FrequencyType: in.FrequencyType,
		TargetCount:   1,
		PeriodDays:    in.PeriodDays,
		IsActive:      true,
	}
	if habit.Emoji == "" {
		habit.Emoji = models.DefaultHabitEmoji
	}
	if habit.Color == "" {
		habit.Color = models.DefaultHabitColor
	}
	if habit.HabitType == "" {
		habit.HabitType = models.HabitPositive
	}
	if habit.FrequencyType == "" {
		habit.FrequencyType = streak.Daily
	}
	if in.TargetCount != nil {
		habit.TargetCount = *in.TargetCount
	}
	if err := validateHabit(&habit); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		var maxOrder sql.NullInt64
		if err := tx.Model(&models.Habit{}).
			Where("user_id = ?", userID).
			Select("MAX(sort_order)").
			Row().Scan(&maxOrder); err != nil {
			return fmt.Errorf("next order: %w", err)
		}
		if maxOrder.Valid {
			habit.Order = int(maxOrder.Int64) + 1
		}
		if err := tx.Create(&habit).Error; err != nil {
			return fmt.Errorf("create habit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	habit.Stats = &streak.Stats{}
	return &habit, nil
}

// UpdateHabit applies a partial update. A soft-deleted habit is not found
// unless the patch reactivates it with is_active=true.
func (s *HabitService) UpdateHabit(ctx context.Context, habitID string, userID uint, patch HabitPatch) (*models.Habit, error) {
	db := s.db.WithContext(ctx)
	habit, err := findHabit(db, habitID, userID, false)
	if err != nil {
		return nil, err
	}
	if !habit.IsActive && (patch.IsActive == nil || !*patch.IsActive) {
		return nil, ErrNotFound
	}
	patch.apply(habit)
	if err := validateHabit(habit); err != nil {
		return nil, err
	}

	// Select("*") so that zero values (is_active=false, order=0) are written too
	if err := db.Model(habit).Select("*").Omit("id", "user_id", "created_at").Updates(habit).Error; err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	s.invalidate(ctx, userID)

	habits := []models.Habit{*habit}
	if err := attachStats(db, habits, today(s.clock)); err != nil {
		return nil, err
	}
	return &habits[0], nil
}

// SoftDeleteHabit hides a habit; its logs stay in place.
func (s *HabitService) SoftDeleteHabit(ctx context.Context, habitID string, userID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Habit{}).
		Where("id = ? AND user_id = ? AND is_active = ?", habitID, userID, true).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("delete habit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx, userID)
	return nil
}

// LogCompletion records one completion of an active habit and runs the
// gamification side effects in the same transaction. date defaults to today.
func (s *HabitService) LogCompletion(ctx context.Context, habitID string, userID uint, date *time.Time, notes string) (*LogResult, error) {
	now := s.clock.Now()
	todayDay := streak.DayOf(now)
	day := todayDay
	if date != nil {
		day = streak.DayOf(*date)
	}

	unlock, err := s.locker.Lock(ctx, userLockKey(userID))
	if err != nil {
		return nil, fmt.Errorf("lock user %d: %w", userID, err)
	}
	defer unlock()

	var result LogResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		habit, err := findHabit(tx, habitID, userID, true)
		if err != nil {
			return err
		}
		if err := seedDefaultChallenges(tx, todayDay); err != nil {
			return err
		}

		entry := models.HabitLog{
			HabitID:    habit.ID,
			UserID:     userID,
			LoggedDate: streak.FormatDay(day),
			Notes:      utils.Sanitize(notes),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("insert log: %w", err)
		}

		habits := []models.Habit{*habit}
		if err := attachStats(tx, habits, todayDay); err != nil {
			return err
		}
		stats := *habits[0].Stats

		award, err := s.awardForCompletion(tx, userID, stats)
		if err != nil {
			return err
		}
		completed, err := s.refreshProgress(tx, userID, todayDay, now)
		if err != nil {
			return err
		}

		result = LogResult{
			Log:                 entry,
			Stats:               stats,
			XPGranted:           award.XPGranted + len(completed)*s.rewards.ChallengeXP,
			NewBadges:           award.Badges,
			CompletedChallenges: completed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.Sugar.Infow("habit logged",
		"user_id", userID,
		"habit_id", habitID,
		"date", result.Log.LoggedDate,
		"xp", result.XPGranted,
		"badges", len(result.NewBadges),
	)
	s.invalidate(ctx, userID)
	return &result, nil
}

// UndoLog deletes one of the user's logs. XP, badges and challenge progress are kept.
func (s *HabitService) UndoLog(ctx context.Context, logID string, userID uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", logID, userID).
		Delete(&models.HabitLog{})
	if res.Error != nil {
		return fmt.Errorf("undo log: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx, userID)
	return nil
}

// GetLogHistory lists a habit's logs newest first. Nil bounds are open; both are inclusive.
func (s *HabitService) GetLogHistory(ctx context.Context, habitID string, userID uint, start, end *time.Time) ([]models.HabitLog, error) {
	if start != nil && end != nil && streak.DayOf(*end).Before(streak.DayOf(*start)) {
		return nil, invalid("end", "end date is before start date")
	}
	db := s.db.WithContext(ctx)
	if _, err := findHabit(db, habitID, userID, false); err != nil {
		return nil, err
	}

	q := db.Where("habit_id = ? AND user_id = ?", habitID, userID)
	if start != nil {
		q = q.Where("logged_date >= ?", streak.FormatDay(streak.DayOf(*start)))
	}
	if end != nil {
		q = q.Where("logged_date <= ?", streak.FormatDay(streak.DayOf(*end)))
	}
	var logs []models.HabitLog
	if err := q.Order("logged_date DESC, created_at DESC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("log history: %w", err)
	}
	return logs, nil
}

// GetSummary builds the dashboard overview; it is cached per user and day when
// Redis is available. The key carries the user's cache version, so a summary
// computed while a write happened lands under a version nobody reads anymore.
func (s *HabitService) GetSummary(ctx context.Context, userID uint) (*Summary, error) {
	var key string
	if s.cacheTTL > 0 {
		key = utils.SummaryCacheKey(userID, streak.FormatDay(today(s.clock)), utils.CacheVersion(ctx, userID))
		var cached Summary
		if utils.CacheGetJSON(ctx, key, &cached) {
			return &cached, nil
		}
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "habit_xp").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	habits, err := s.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := Summary{
		TotalHabits: len(habits),
		UserXP:      user.HabitXP,
		UserLevel:   user.Level(),
		Habits:      make([]SummaryItem, 0, len(habits)),
	}
	for _, h := range habits {
		st := h.Stats
		if st.IsCompleteToday {
			summary.CompletedToday++
		}
		if st.CurrentStreak > summary.BestStreak {
			summary.BestStreak = st.CurrentStreak
		}
		summary.Habits = append(summary.Habits, SummaryItem{
			HabitID:       h.ID,
			Name:          h.Name,
			Emoji:         h.Emoji,
			Color:         h.Color,
			TargetCount:   h.TargetCount,
			TodayCount:    st.TodayCount,
			IsComplete:    st.IsCompleteToday,
			CurrentStreak: st.CurrentStreak,
		})
	}

	if s.cacheTTL > 0 {
		utils.CacheSetJSON(ctx, key, summary, s.cacheTTL)
	}
	return &summary, nil
}

// ListBadges returns the user's badges, newest first.
func (s *HabitService) ListBadges(ctx context.Context, userID uint) ([]models.HabitBadge, error) {
	var badges []models.HabitBadge
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at DESC").
		Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

// GetUser loads a user for the profile endpoint.
func (s *HabitService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

func (s *HabitService) invalidate(ctx context.Context, userID uint) {
	if s.cacheTTL > 0 {
		utils.BumpCacheVersion(ctx, userID)
		utils.InvalidateByPrefix(ctx, utils.HabitCachePrefix(userID))
	}
}

func userLockKey(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

func findHabit(db *gorm.DB, habitID string, userID uint, activeOnly bool) (*models.Habit, error) {
	q := db.Where("id = ? AND user_id = ?", habitID, userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var habit models.Habit
	if err := q.First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load habit: %w", err)
	}
	return &habit, nil
}

// attachStats loads the per-day counts of all given habits in one query and
// sets Stats on each of them.
func attachStats(db *gorm.DB, habits []models.Habit, todayDay time.Time) error {
	if len(habits) == 0 {
		return nil
	}
	counts, err := loadCounts(db, habits)
	if err != nil {
		return err
	}
	for i := range habits {
		st := streak.Compute(habits[i].Schedule(), counts[habits[i].ID], todayDay)
		habits[i].Stats = &st
	}
	return nil
}

func loadCounts(db *gorm.DB, habits []models.Habit) (map[string]streak.Counts, error) {
	ids := make([]string, len(habits))
	for i, h := range habits {
		ids[i] = h.ID
	}

	var rows []struct {
		HabitID    string
		LoggedDate string
		N          int
	}
	if err := db.Model(&models.HabitLog{}).
		Select("habit_id, logged_date, COUNT(*) AS n").
		Where("habit_id IN ?", ids).
		Group("habit_id, logged_date").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load log counts: %w", err)
	}

	out := make(map[string]streak.Counts, len(habits))
	for _, r := range rows {
		day, err := streak.ParseDay(r.LoggedDate)
		if err != nil {
			return nil, fmt.Errorf("habit %s has malformed log date %q: %w", r.HabitID, r.LoggedDate, err)
		}
		if out[r.HabitID] == nil {
			out[r.HabitID] = streak.Counts{}
		}
		out[r.HabitID][day] += r.N
	}
	return out, nil
}

func (p HabitPatch) apply(h *models.Habit) {
	if p.Name != nil {
		h.Name = utils.Sanitize(*p.Name)
	}
	if p.Emoji != nil {
		h.Emoji = *p.Emoji
	}
	if p.Color != nil {
		h.Color = *p.Color
	}
	if p.Category != nil {
		h.Category = utils.Sanitize(*p.Category)
	}
	if p.Description != nil {
		h.Description = utils.Sanitize(*p.Description)
	}
	if p.HabitType != nil {
		h.HabitType = *p.HabitType
	}
	if p.FrequencyType != nil {
		h.FrequencyType = *p.FrequencyType
	}
	if p.TargetCount != nil {
		h.TargetCount = *p.TargetCount
	}
	if p.PeriodDays != nil {
		h.PeriodDays = p.PeriodDays
	}
	if p.IsActive != nil {
		h.IsActive = *p.IsActive
	}
	if p.Order != nil {
		h.Order = *p.Order
	}
}

func validateHabit(h *models.Habit) error {
	switch {
	case h.Name == "":
		return invalid("name", "name is required")
	case utf8.RuneCountInString(h.Name) > maxHabitNameLen:
		return invalid("name", fmt.Sprintf("name must be at most %d characters", maxHabitNameLen))
	case !h.HabitType.Valid():
		return invalid("habit_type", fmt.Sprintf("unknown habit type %q", h.HabitType))
	case !h.FrequencyType.Valid():
		return invalid("frequency_type", fmt.Sprintf("unknown frequency %q", h.FrequencyType))
	case h.TargetCount < 1:
		return invalid("target_count", "target_count must be at least 1")
	case h.PeriodDays != nil && *h.PeriodDays < 1:
		return invalid("period_days", "period_days must be at least 1")
	case h.FrequencyType == streak.Custom && h.PeriodDays == nil:
		return invalid("period_days", "custom frequency requires period_days")
	case !colorPattern.MatchString(h.Color):
		return invalid("color", "color must look like #rrggbb")
	case utf8.RuneCountInString(h.Emoji) > 8:
		return invalid("emoji", "emoji is too long")
	}
	return nil
}
