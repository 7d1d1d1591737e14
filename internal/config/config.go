package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/hotelhub/loyalty-engine/internal/model"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Log     LogConfig
	Loyalty LoyaltyConfig
	Expiry  ExpiryConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"loyalty_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// LoyaltyConfig holds the program parameters: earn rate, point validity,
// lock-retry policy, and the tier threshold table.
type LoyaltyConfig struct {
	EarnRate            float64 `envconfig:"LOYALTY_EARN_RATE" default:"10"` // points per currency unit spent
	PointValidityMonths int     `envconfig:"LOYALTY_POINT_VALIDITY_MONTHS" default:"24"`
	CouponConfirmHours  int     `envconfig:"LOYALTY_COUPON_CONFIRM_HOURS" default:"72"`
	LockRetries         int     `envconfig:"LOYALTY_LOCK_RETRIES" default:"3"`
	LockBackoffMs       int     `envconfig:"LOYALTY_LOCK_BACKOFF_MS" default:"50"`
	LockTimeoutMs       int     `envconfig:"LOYALTY_LOCK_TIMEOUT_MS" default:"3000"`

	SilverMinPoints   int64   `envconfig:"TIER_SILVER_MIN_POINTS" default:"10000"`
	SilverMinNights   int     `envconfig:"TIER_SILVER_MIN_NIGHTS" default:"10"`
	SilverMinSpend    float64 `envconfig:"TIER_SILVER_MIN_SPEND" default:"1000"`
	GoldMinPoints     int64   `envconfig:"TIER_GOLD_MIN_POINTS" default:"30000"`
	GoldMinNights     int     `envconfig:"TIER_GOLD_MIN_NIGHTS" default:"25"`
	GoldMinSpend      float64 `envconfig:"TIER_GOLD_MIN_SPEND" default:"3000"`
	PlatinumMinPoints int64   `envconfig:"TIER_PLATINUM_MIN_POINTS" default:"75000"`
	PlatinumMinNights int     `envconfig:"TIER_PLATINUM_MIN_NIGHTS" default:"50"`
	PlatinumMinSpend  float64 `envconfig:"TIER_PLATINUM_MIN_SPEND" default:"7500"`
}

// PointValidity returns the earned-point lifetime as a duration.
// Months are approximated at 30 days; expiry precision at that horizon
// does not need calendar arithmetic.
func (c LoyaltyConfig) PointValidity() time.Duration {
	return time.Duration(c.PointValidityMonths) * 30 * 24 * time.Hour
}

// CouponConfirmWindow returns how long a pending coupon stays confirmable.
func (c LoyaltyConfig) CouponConfirmWindow() time.Duration {
	return time.Duration(c.CouponConfirmHours) * time.Hour
}

// LockBackoff returns the base backoff between lock-retry attempts.
func (c LoyaltyConfig) LockBackoff() time.Duration {
	return time.Duration(c.LockBackoffMs) * time.Millisecond
}

// LockTimeout returns how long a transaction may wait on a row lock
// before the attempt fails as busy.
func (c LoyaltyConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// TierTable builds the ordered tier threshold table. Bronze is the floor
// with zero thresholds; every account qualifies for it.
func (c LoyaltyConfig) TierTable() []model.TierLevel {
	return []model.TierLevel{
		{
			Tier:            model.TierBronze,
			PointMultiplier: decimal.NewFromInt(1),
			Benefits:        []string{"member rates"},
		},
		{
			Tier:            model.TierSilver,
			MinPoints:       c.SilverMinPoints,
			MinNights:       c.SilverMinNights,
			MinSpend:        decimal.NewFromFloat(c.SilverMinSpend),
			PointMultiplier: decimal.NewFromFloat(1.1),
			Benefits:        []string{"member rates", "late checkout"},
		},
		{
			Tier:            model.TierGold,
			MinPoints:       c.GoldMinPoints,
			MinNights:       c.GoldMinNights,
			MinSpend:        decimal.NewFromFloat(c.GoldMinSpend),
			PointMultiplier: decimal.NewFromFloat(1.25),
			Benefits:        []string{"member rates", "late checkout", "room upgrades"},
		},
		{
			Tier:            model.TierPlatinum,
			MinPoints:       c.PlatinumMinPoints,
			MinNights:       c.PlatinumMinNights,
			MinSpend:        decimal.NewFromFloat(c.PlatinumMinSpend),
			PointMultiplier: decimal.NewFromFloat(1.5),
			Benefits:        []string{"member rates", "late checkout", "room upgrades", "lounge access"},
		},
	}
}

// ExpiryConfig holds the point-expiry sweep parameters.
type ExpiryConfig struct {
	IntervalMinutes int `envconfig:"EXPIRY_INTERVAL_MINUTES" default:"60"`
	BatchSize       int `envconfig:"EXPIRY_BATCH_SIZE" default:"500"`
}

// Interval returns the sweep interval as a duration.
func (c ExpiryConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
