package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the attendance service
type Config struct {
	Environment string
	Port        string
	LogLevel    slog.Level

	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnLifetime time.Duration
	DBAutoMigrate  bool
	DBLogSlowQuery time.Duration

	// Redis (optional)
	RedisURL string

	JWT     JWTConfig
	Casdoor CasdoorConfig
	Kafka   KafkaConfig
	Geo     GeoConfig
	Face    FaceConfig
	CheckIn CheckInConfig

	// Scheduler
	AbsenceJobInterval time.Duration
	Timezone           string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// CasdoorConfig holds SSO settings; SSO login is disabled when Endpoint is empty
type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

func (c CasdoorConfig) Enabled() bool {
	return c.Endpoint != "" && c.ClientID != ""
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

type GeoConfig struct {
	MaxAccuracyMeters     float64
	OutlierDistanceMeters float64
	MaxSamples            int
}

type FaceConfig struct {
	MatchThreshold        float64
	MaxDescriptorsPerUser int
	CacheTTL              time.Duration
}

type CheckInConfig struct {
	DefaultOpenMinutes int
	DefaultLateMinutes int
	GuardTTL           time.Duration
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		DatabaseURL:    getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=smartpresence port=5432 sslmode=disable TimeZone=UTC"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnLifetime: getEnvDuration("DB_CONN_LIFETIME", 30*time.Minute),
		DBAutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", false),
		DBLogSlowQuery: getEnvDuration("DB_SLOW_QUERY", 200*time.Millisecond),

		RedisURL: getEnv("REDIS_URL", ""),

		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getEnvDuration("JWT_TTL", 24*time.Hour),
			Issuer: getEnv("JWT_ISSUER", "smartpresence"),
		},
		Casdoor: CasdoorConfig{
			Endpoint:     getEnv("CASDOOR_ENDPOINT", ""),
			ClientID:     getEnv("CASDOOR_CLIENT_ID", ""),
			ClientSecret: getEnv("CASDOOR_CLIENT_SECRET", ""),
			Cert:         getEnv("CASDOOR_CERT", ""),
			Organization: getEnv("CASDOOR_ORGANIZATION", ""),
			Application:  getEnv("CASDOOR_APPLICATION", ""),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(getEnv("KAFKA_BROKERS", "")),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "smartpresence."),
		},
		Geo: GeoConfig{
			MaxAccuracyMeters:     getEnvFloat("GPS_MAX_ACCURACY_METERS", 100),
			OutlierDistanceMeters: getEnvFloat("GPS_OUTLIER_DISTANCE_METERS", 50),
			MaxSamples:            getEnvInt("GPS_MAX_SAMPLES", 20),
		},
		Face: FaceConfig{
			MatchThreshold:        getEnvFloat("FACE_MATCH_THRESHOLD", 0.6),
			MaxDescriptorsPerUser: getEnvInt("FACE_MAX_DESCRIPTORS", 5),
			CacheTTL:              getEnvDuration("FACE_CACHE_TTL", 10*time.Minute),
		},
		CheckIn: CheckInConfig{
			DefaultOpenMinutes: getEnvInt("CHECKIN_OPEN_MINUTES", 15),
			DefaultLateMinutes: getEnvInt("CHECKIN_LATE_MINUTES", 15),
			GuardTTL:           getEnvDuration("CHECKIN_GUARD_TTL", 24*time.Hour),
		},

		AbsenceJobInterval: getEnvDuration("ABSENCE_JOB_INTERVAL", 5*time.Minute),
		Timezone:           getEnv("APP_TIMEZONE", "UTC"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that have no safe default
func (c *Config) Validate() error {
	var problems []string

	if c.JWT.Secret == "" {
		if c.Environment == "production" {
			problems = append(problems, "JWT_SECRET is required in production")
		} else {
			c.JWT.Secret = "dev-secret"
		}
	}
	if c.Face.MatchThreshold <= 0 || c.Face.MatchThreshold > 2 {
		problems = append(problems, "FACE_MATCH_THRESHOLD must be in (0, 2]")
	}
	if c.Geo.MaxSamples < 1 {
		problems = append(problems, "GPS_MAX_SAMPLES must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("APP_TIMEZONE is invalid: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the configured timezone; sessions are scheduled in it
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return def
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
