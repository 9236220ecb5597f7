package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Governance    GovernanceConfig
	Eligibility   EligibilityConfig
	Sweeper       SweeperConfig
	Notifications NotificationsConfig
	Dossiers      DossiersConfig
	Cache         CacheConfig
	Telemetry     TelemetryConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GovernanceConfig carries the promotion and challenge product rules.
type GovernanceConfig struct {
	VotingWindow         time.Duration
	DefaultVotesRequired int
	ResponseWindow       time.Duration
	PerformanceWindow    time.Duration
	ProjectWindow        time.Duration
	PeerVoteWindow       time.Duration
	MasterVoteShare      float64
	ChallengerVoteShare  float64
	VoteRetryAttempts    int
	VoteRetryBackoff     time.Duration
}

// EligibilityConfig holds the promotion gate thresholds.
type EligibilityConfig struct {
	MinFitScore      float64
	MinWeeksInRole   int
	MaxRoleRanking   int
	MinOnTimeRate    float64
	MinFeedbackCount int
	MinValidatedObvs int
}

// SweeperConfig tunes the deadline sweeper loop.
type SweeperConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// NotificationsConfig controls webhook fan-out on terminal transitions.
type NotificationsConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
	Workers    int
	MaxRetries int
}

// DossiersConfig configures asynchronous decision-record exports.
type DossiersConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// CacheConfig governs read caching for live scores and voting progress.
type CacheConfig struct {
	Enabled  bool
	ScoreTTL time.Duration
}

// TelemetryConfig points at the upstream service that serves candidate
// performance numbers and voter rosters.
type TelemetryConfig struct {
	BaseURL string
	Timeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Governance = GovernanceConfig{
		VotingWindow:         parseDuration(v.GetString("GOV_VOTING_WINDOW"), 168*time.Hour),
		DefaultVotesRequired: v.GetInt("GOV_DEFAULT_VOTES_REQUIRED"),
		ResponseWindow:       parseDuration(v.GetString("GOV_RESPONSE_WINDOW"), 72*time.Hour),
		PerformanceWindow:    parseDuration(v.GetString("GOV_PERFORMANCE_WINDOW"), 336*time.Hour),
		ProjectWindow:        parseDuration(v.GetString("GOV_PROJECT_WINDOW"), 504*time.Hour),
		PeerVoteWindow:       parseDuration(v.GetString("GOV_PEER_VOTE_WINDOW"), 168*time.Hour),
		MasterVoteShare:      v.GetFloat64("GOV_MASTER_VOTE_SHARE"),
		ChallengerVoteShare:  v.GetFloat64("GOV_CHALLENGER_VOTE_SHARE"),
		VoteRetryAttempts:    v.GetInt("GOV_VOTE_RETRY_ATTEMPTS"),
		VoteRetryBackoff:     parseDuration(v.GetString("GOV_VOTE_RETRY_BACKOFF"), 25*time.Millisecond),
	}

	cfg.Eligibility = EligibilityConfig{
		MinFitScore:      v.GetFloat64("ELIGIBILITY_MIN_FIT_SCORE"),
		MinWeeksInRole:   v.GetInt("ELIGIBILITY_MIN_WEEKS_IN_ROLE"),
		MaxRoleRanking:   v.GetInt("ELIGIBILITY_MAX_ROLE_RANKING"),
		MinOnTimeRate:    v.GetFloat64("ELIGIBILITY_MIN_ON_TIME_RATE"),
		MinFeedbackCount: v.GetInt("ELIGIBILITY_MIN_FEEDBACK_COUNT"),
		MinValidatedObvs: v.GetInt("ELIGIBILITY_MIN_VALIDATED_OBVS"),
	}

	cfg.Sweeper = SweeperConfig{
		Enabled:   v.GetBool("SWEEPER_ENABLED"),
		Interval:  parseDuration(v.GetString("SWEEPER_INTERVAL"), time.Minute),
		BatchSize: v.GetInt("SWEEPER_BATCH_SIZE"),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:    v.GetBool("NOTIFICATIONS_ENABLED"),
		WebhookURL: v.GetString("NOTIFICATIONS_WEBHOOK_URL"),
		Timeout:    parseDuration(v.GetString("NOTIFICATIONS_TIMEOUT"), 5*time.Second),
		Workers:    v.GetInt("NOTIFICATIONS_WORKERS"),
		MaxRetries: v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
	}

	cfg.Dossiers = DossiersConfig{
		Enabled:           v.GetBool("ENABLE_DOSSIERS"),
		StorageDir:        v.GetString("DOSSIERS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("DOSSIERS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("DOSSIERS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("DOSSIERS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("DOSSIERS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("DOSSIERS_WORKER_RETRIES"),
	}

	cfg.Cache = CacheConfig{
		Enabled:  v.GetBool("ENABLE_CACHE"),
		ScoreTTL: parseDuration(v.GetString("CACHE_SCORE_TTL"), 15*time.Second),
	}

	cfg.Telemetry = TelemetryConfig{
		BaseURL: v.GetString("TELEMETRY_BASE_URL"),
		Timeout: parseDuration(v.GetString("TELEMETRY_TIMEOUT"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "teamops_governance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "teamops-governance")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GOV_VOTING_WINDOW", "168h")
	v.SetDefault("GOV_DEFAULT_VOTES_REQUIRED", 8)
	v.SetDefault("GOV_RESPONSE_WINDOW", "72h")
	v.SetDefault("GOV_PERFORMANCE_WINDOW", "336h")
	v.SetDefault("GOV_PROJECT_WINDOW", "504h")
	v.SetDefault("GOV_PEER_VOTE_WINDOW", "168h")
	v.SetDefault("GOV_MASTER_VOTE_SHARE", 0.51)
	v.SetDefault("GOV_CHALLENGER_VOTE_SHARE", 0.60)
	v.SetDefault("GOV_VOTE_RETRY_ATTEMPTS", 3)
	v.SetDefault("GOV_VOTE_RETRY_BACKOFF", "25ms")

	v.SetDefault("ELIGIBILITY_MIN_FIT_SCORE", 4.2)
	v.SetDefault("ELIGIBILITY_MIN_WEEKS_IN_ROLE", 4)
	v.SetDefault("ELIGIBILITY_MAX_ROLE_RANKING", 3)
	v.SetDefault("ELIGIBILITY_MIN_ON_TIME_RATE", 0.80)
	v.SetDefault("ELIGIBILITY_MIN_FEEDBACK_COUNT", 3)
	v.SetDefault("ELIGIBILITY_MIN_VALIDATED_OBVS", 2)

	v.SetDefault("SWEEPER_ENABLED", true)
	v.SetDefault("SWEEPER_INTERVAL", "1m")
	v.SetDefault("SWEEPER_BATCH_SIZE", 100)

	v.SetDefault("NOTIFICATIONS_ENABLED", false)
	v.SetDefault("NOTIFICATIONS_WEBHOOK_URL", "")
	v.SetDefault("NOTIFICATIONS_TIMEOUT", "5s")
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)

	v.SetDefault("ENABLE_DOSSIERS", false)
	v.SetDefault("DOSSIERS_STORAGE_DIR", "./dossiers")
	v.SetDefault("DOSSIERS_SIGNED_URL_SECRET", "dev_dossiers_secret")
	v.SetDefault("DOSSIERS_SIGNED_URL_TTL", "24h")
	v.SetDefault("DOSSIERS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("DOSSIERS_WORKER_CONCURRENCY", 1)
	v.SetDefault("DOSSIERS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_SCORE_TTL", "15s")

	v.SetDefault("TELEMETRY_BASE_URL", "http://localhost:9000")
	v.SetDefault("TELEMETRY_TIMEOUT", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
