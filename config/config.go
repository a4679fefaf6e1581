package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting, populated from environment variables.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	// Shared secret for admin endpoints (approve/reject). Empty disables the check.
	AdminAPIKey string `envconfig:"ADMIN_API_KEY"`

	GitHubBaseURL       string `envconfig:"GITHUB_BASE_URL" default:"https://api.github.com"`
	GitHubToken         string `envconfig:"GITHUB_TOKEN" required:"true"`
	GitHubWebhookSecret string `envconfig:"GITHUB_WEBHOOK_SECRET" required:"true"`
	DefaultBranch       string `envconfig:"DEFAULT_BRANCH" default:"main"`

	S3Key    string `envconfig:"S3_KEY" required:"true"`
	S3Secret string `envconfig:"S3_SECRET" required:"true"`
	S3URL    string `envconfig:"S3_URL" required:"true"`
	S3Region string `envconfig:"S3_REGION" required:"true"`
	S3Bucket string `envconfig:"S3_BUCKET" required:"true"`

	// Local bolt file backing the draft markdown cache.
	DraftCachePath string `envconfig:"DRAFT_CACHE_PATH" default:"drafts.db"`

	CleanupSchedule string `envconfig:"CLEANUP_SCHEDULE" default:"0 3 * * *"`

	SearchPageLimit int `envconfig:"SEARCH_PAGE_LIMIT" default:"20"`
}

// DSN returns the Data Source Name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// PublicImageURL builds the public URL an uploaded object is served from.
func (c *Config) PublicImageURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", c.S3URL, c.S3Bucket, key)
}

// Load reads the configuration from the environment, consulting .env first.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
