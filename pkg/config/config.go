package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug       bool
	Port        string
	DatabaseURL string

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleProjectID    string
	GooglePubSubTopic  string
	GoogleCredentials  string

	FirebaseCredentials string

	ML             MLConfig
	SorterLabel    string
	DownloadFormat string

	SchedulerInterval time.Duration
	SyncWorkers       int
}

// MLConfig holds the classifier hyperparameters and the recommendation cutoff.
type MLConfig struct {
	NEstimators         int
	MaxFeatures         int
	RandomState         int64
	Bootstrap           bool
	IncludeDeleted      bool
	RecommendationRatio float64
	Workers             int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DEBUG", false)
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "sqlite://email.db")
	v.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	v.SetDefault("JWT_ACCESS_EXPIRY", 15*time.Minute)
	v.SetDefault("JWT_REFRESH_EXPIRY", 168*time.Hour) // 7 days
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/auth/google/callback")
	v.SetDefault("GOOGLE_PROJECT_ID", "")
	v.SetDefault("GOOGLE_PUBSUB_TOPIC", "")
	v.SetDefault("GOOGLE_CREDENTIALS", "")
	v.SetDefault("FIREBASE_CREDENTIALS", "")
	v.SetDefault("ML_N_ESTIMATORS", 100)
	v.SetDefault("ML_MAX_FEATURES", 400)
	v.SetDefault("ML_RANDOM_STATE", 42)
	v.SetDefault("ML_BOOTSTRAP", true)
	v.SetDefault("ML_INCLUDE_DELETED", false)
	v.SetDefault("ML_RECOMMENDATION_RATIO", 0.9)
	v.SetDefault("ML_WORKERS", runtime.NumCPU())
	v.SetDefault("SORTER_LABEL", "mailsortinbox")
	v.SetDefault("EMAIL_DOWNLOAD_FORMAT", "full")
	v.SetDefault("SCHEDULER_INTERVAL", 15*time.Minute)
	v.SetDefault("SYNC_WORKERS", 2)
}

// Load reads .env, then the optional YAML file at path, then the environment.
// Later sources win. An empty path looks for gmailsorter.yaml in the working
// directory and silently skips it when absent.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gmailsorter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Debug:               v.GetBool("DEBUG"),
		Port:                v.GetString("PORT"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		JWTAccessExpiry:     v.GetDuration("JWT_ACCESS_EXPIRY"),
		JWTRefreshExpiry:    v.GetDuration("JWT_REFRESH_EXPIRY"),
		GoogleClientID:      v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:   v.GetString("GOOGLE_REDIRECT_URI"),
		GoogleProjectID:     v.GetString("GOOGLE_PROJECT_ID"),
		GooglePubSubTopic:   v.GetString("GOOGLE_PUBSUB_TOPIC"),
		GoogleCredentials:   v.GetString("GOOGLE_CREDENTIALS"),
		FirebaseCredentials: v.GetString("FIREBASE_CREDENTIALS"),
		ML: MLConfig{
			NEstimators:         v.GetInt("ML_N_ESTIMATORS"),
			MaxFeatures:         v.GetInt("ML_MAX_FEATURES"),
			RandomState:         v.GetInt64("ML_RANDOM_STATE"),
			Bootstrap:           v.GetBool("ML_BOOTSTRAP"),
			IncludeDeleted:      v.GetBool("ML_INCLUDE_DELETED"),
			RecommendationRatio: v.GetFloat64("ML_RECOMMENDATION_RATIO"),
			Workers:             v.GetInt("ML_WORKERS"),
		},
		SorterLabel:       v.GetString("SORTER_LABEL"),
		DownloadFormat:    v.GetString("EMAIL_DOWNLOAD_FORMAT"),
		SchedulerInterval: v.GetDuration("SCHEDULER_INTERVAL"),
		SyncWorkers:       v.GetInt("SYNC_WORKERS"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the sorter cannot run with.
func (c *Config) Validate() error {
	if c.ML.RecommendationRatio <= 0 || c.ML.RecommendationRatio >= 1 {
		return fmt.Errorf("ML_RECOMMENDATION_RATIO must be in (0,1), got %v", c.ML.RecommendationRatio)
	}
	if c.ML.NEstimators <= 0 {
		return fmt.Errorf("ML_N_ESTIMATORS must be positive, got %d", c.ML.NEstimators)
	}
	if c.ML.Workers <= 0 {
		c.ML.Workers = 1
	}
	if c.SyncWorkers <= 0 {
		c.SyncWorkers = 1
	}
	switch c.DownloadFormat {
	case "full", "metadata", "raw":
	default:
		return fmt.Errorf("EMAIL_DOWNLOAD_FORMAT must be full, metadata or raw, got %q", c.DownloadFormat)
	}
	return nil
}
