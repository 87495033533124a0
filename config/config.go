package config

import (
	"errors"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: DBDriver is one of mysql, postgres, sqlite.
	// DatabaseURI wins over the discrete fields; for sqlite DBName is the file path.
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis backs the per-user lock and the summary cache when enabled
	RedisEnabled  bool
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Habits
	Timezone         string
	HabitBaseXP      int
	BadgeBonusXP     int
	ChallengeBonusXP int
	CacheTTLSeconds  int
}

// envKeys maps config keys onto their environment variable names.
var envKeys = map[string]string{
	"AppPort":            "APP_PORT",
	"JWTSecret":          "JWT_SECRET",
	"RateLimitPerMinute": "RATE_LIMIT_PER_MINUTE",
	"AllowedOrigins":     "CORS_ALLOWED_ORIGINS",
	"GinMode":            "GIN_MODE",
	"GinPath":            "GIN_PATH",
	"DBDriver":           "DB_DRIVER",
	"DatabaseURI":        "DATABASE_URI",
	"DBHost":             "DB_HOST",
	"DBPort":             "DB_PORT",
	"DBUser":             "DB_USER",
	"DBPassword":         "DB_PASSWORD",
	"DBName":             "DB_NAME",
	"RedisEnabled":       "REDIS_ENABLED",
	"RedisHost":          "REDIS_HOST",
	"RedisPort":          "REDIS_PORT",
	"RedisDB":            "REDIS_DB",
	"RedisPassword":      "REDIS_PASSWORD",
	"LogLevel":           "LOG_LEVEL",
	"LogPath":            "LOG_PATH",
	"LogMaxSizeMB":       "LOG_MAX_SIZE_MB",
	"LogMaxBackups":      "LOG_MAX_BACKUPS",
	"LogMaxAgeDays":      "LOG_MAX_AGE_DAYS",
	"LogCompress":        "LOG_COMPRESS",
	"Timezone":           "APP_TIMEZONE",
	"HabitBaseXP":        "HABIT_BASE_XP",
	"BadgeBonusXP":       "BADGE_BONUS_XP",
	"ChallengeBonusXP":   "CHALLENGE_BONUS_XP",
	"CacheTTLSeconds":    "CACHE_TTL_SECONDS",
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	c, err := read(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the cached configuration; used by tools and tests that build one by hand.
func Set(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

func read(path string) (AppConfig, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigFile(path)
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return AppConfig{}, err
		}
	}

	// a missing file is fine, broken JSON is not
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, err
		}
	}

	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return AppConfig{}, err
	}
	c.AllowedOrigins = splitAndTrim(c.AllowedOrigins)
	applyDefaults(&c)
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("AppPort", "8080")
	v.SetDefault("GinMode", "release")
	v.SetDefault("GinPath", "logs/go_gin.log")
	v.SetDefault("RateLimitPerMinute", 60)
	v.SetDefault("AllowedOrigins", []string{"*"})
	v.SetDefault("DBDriver", "mysql")
	v.SetDefault("DBHost", "127.0.0.1")
	v.SetDefault("DBPort", "3306")
	v.SetDefault("DBUser", "root")
	v.SetDefault("DBName", "homedash")
	v.SetDefault("RedisHost", "127.0.0.1")
	v.SetDefault("RedisPort", 6379)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogMaxSizeMB", 100)
	v.SetDefault("LogMaxBackups", 3)
	v.SetDefault("LogMaxAgeDays", 7)
	v.SetDefault("Timezone", "Local")
	v.SetDefault("HabitBaseXP", 10)
	v.SetDefault("BadgeBonusXP", 50)
	v.SetDefault("ChallengeBonusXP", 100)
	v.SetDefault("CacheTTLSeconds", 60)
}

// applyDefaults sets sane defaults for zero-value fields that viper could not fill,
// e.g. when the config was assembled by hand.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.HabitBaseXP == 0 {
		c.HabitBaseXP = 10
	}
	if c.BadgeBonusXP == 0 {
		c.BadgeBonusXP = 50
	}
	if c.ChallengeBonusXP == 0 {
		c.ChallengeBonusXP = 100
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 60
	}
}

func splitAndTrim(raw []string) []string {
	var res []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				res = append(res, p)
			}
		}
	}
	return res
}

// Location resolves the configured timezone used to decide "today".
func (c AppConfig) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("unknown timezone %q, falling back to local: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}
