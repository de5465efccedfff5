package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store, broker, limiter and email drivers.
const (
	DriverMemory   = "memory"
	DriverDynamo   = "dynamo"
	DriverPostgres = "postgres"
	DriverNATS     = "nats"
	DriverRedis    = "redis"

	EmailSMTP = "smtp"
	EmailHTTP = "http"
	EmailLog  = "log"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string   `env:"APP_PORT" envDefault:"3000"`
	AppEnv         string   `env:"APP_ENV" envDefault:"development"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","` // CORS allowed origins
	DashboardURL   string   `env:"DASHBOARD_URL" envDefault:"http://localhost:5173"`

	StoreDriver  string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL  string `env:"DATABASE_URL"`
	AWS          AWS
	DynamoTables DynamoTables

	Broker    Broker
	RateLimit RateLimit
	Email     Email
	Scoring   Scoring

	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./private_key.pem"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`
	JWTExpiry         time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	NotificationRetention time.Duration `env:"NOTIFICATION_RETENTION" envDefault:"720h"`
	SweepInterval         time.Duration `env:"SWEEP_INTERVAL" envDefault:"24h"`
}

// AWS holds credentials and endpoint overrides. AWSEndpointURL is empty in prod
// and set to the LocalStack URL in dev.
type AWS struct {
	Region      string `env:"AWS_REGION" envDefault:"us-east-1"`
	EndpointURL string `env:"AWS_ENDPOINT_URL"`
	AccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Notifications string `env:"DYNAMO_TABLE_NOTIFICATIONS" envDefault:"notifications"`
	Requests      string `env:"DYNAMO_TABLE_REQUESTS" envDefault:"service_requests"`
}

type Broker struct {
	Driver         string        `env:"BROKER_DRIVER" envDefault:"memory"`
	NATSURL        string        `env:"NATS_URL"`
	Stream         string        `env:"NATS_STREAM" envDefault:"NOTIFICATIONS"`
	SubjectPrefix  string        `env:"NATS_SUBJECT_PREFIX" envDefault:"agency.notifications"`
	PublishBuffer  int           `env:"PUBLISH_BUFFER" envDefault:"1024"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"3s"`
	QueueCapacity  int           `env:"QUEUE_CAPACITY" envDefault:"1024"`
}

type RateLimit struct {
	Driver        string        `env:"RATE_LIMIT_DRIVER" envDefault:"memory"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	MaxRequests   int64         `env:"RATE_LIMIT_MAX" envDefault:"15"`
	Window        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"120s"`
	StoreTimeout  time.Duration `env:"RATE_LIMIT_STORE_TIMEOUT" envDefault:"500ms"`
}

type Email struct {
	Transport    string        `env:"EMAIL_TRANSPORT" envDefault:"log"`
	From         string        `env:"EMAIL_FROM" envDefault:"noreply@example.com"`
	Timeout      time.Duration `env:"EMAIL_TIMEOUT" envDefault:"10s"`
	APIURL       string        `env:"EMAIL_API_URL"`
	APIKey       string        `env:"EMAIL_API_KEY"`
	SMTPHost     string        `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     string        `env:"SMTP_PORT" envDefault:"1025"`
	SMTPUsername string        `env:"SMTP_USERNAME"`
	SMTPPassword string        `env:"SMTP_PASSWORD"`
}

type Scoring struct {
	URL     string        `env:"SCORING_URL"`
	APIKey  string        `env:"SCORING_API_KEY"`
	Timeout time.Duration `env:"SCORING_TIMEOUT" envDefault:"20s"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and missing connection settings for the selected ones.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverDynamo:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.Broker.Driver {
	case DriverMemory:
	case DriverNATS:
		if c.Broker.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when BROKER_DRIVER=nats")
		}
	default:
		return fmt.Errorf("unknown BROKER_DRIVER %q", c.Broker.Driver)
	}

	switch c.RateLimit.Driver {
	case DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("unknown RATE_LIMIT_DRIVER %q", c.RateLimit.Driver)
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if c.NotificationRetention <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("NOTIFICATION_RETENTION and SWEEP_INTERVAL must be positive")
	}

	switch c.Email.Transport {
	case EmailSMTP, EmailLog:
	case EmailHTTP:
		if c.Email.APIURL == "" {
			return fmt.Errorf("EMAIL_API_URL is required when EMAIL_TRANSPORT=http")
		}
	default:
		return fmt.Errorf("unknown EMAIL_TRANSPORT %q", c.Email.Transport)
	}
	return nil
}
