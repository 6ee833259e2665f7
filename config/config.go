package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	MpesaSandbox    = "sandbox"
	MpesaProduction = "production"

	mpesaSandboxURL    = "https://sandbox.safaricom.co.ke"
	mpesaProductionURL = "https://api.safaricom.co.ke"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig   `envPrefix:"DATABASE_"`
	JWT        JWTConfig        `envPrefix:"JWT_"`
	Mpesa      MpesaConfig      `envPrefix:"MPESA_"`
	Cloudinary CloudinaryConfig `envPrefix:"CLOUDINARY_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
	SMTP       SMTPConfig       `envPrefix:"SMTP_"`
	Firebase   FirebaseConfig   `envPrefix:"FIREBASE_"`
	Upload     UploadConfig     `envPrefix:"UPLOAD_"`
	Admin      AdminConfig      `envPrefix:"ADMIN_"`
	RateLimit  RateLimitConfig  `envPrefix:"RATE_LIMIT_"`
}

type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:"5000"`
	Env          string        `env:"APP_ENV" envDefault:"development"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	DSN             string        `env:"DSN,required,notEmpty"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
}

type JWTConfig struct {
	AccessSecret  string        `env:"ACCESS_SECRET,required,notEmpty"`
	RefreshSecret string        `env:"REFRESH_SECRET,required,notEmpty"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"168h"`
	Issuer        string        `env:"ISSUER" envDefault:"pastpapers"`
}

// MpesaConfig holds Daraja credentials. The credential fields have no defaults:
// a missing value fails Load and the server does not start.
type MpesaConfig struct {
	ConsumerKey       string        `env:"CONSUMER_KEY,required,notEmpty"`
	ConsumerSecret    string        `env:"CONSUMER_SECRET,required,notEmpty"`
	BusinessShortCode string        `env:"BUSINESS_SHORT_CODE,required,notEmpty"`
	Passkey           string        `env:"PASSKEY,required,notEmpty"`
	Environment       string        `env:"ENVIRONMENT,required,notEmpty"`
	CallbackURL       string        `env:"CALLBACK_URL,required,notEmpty"`
	BaseURL           string        `env:"BASE_URL"`
	AccountReference  string        `env:"ACCOUNT_REFERENCE" envDefault:"PastPapers"`
	TransactionDesc   string        `env:"TRANSACTION_DESC" envDefault:"Past papers purchase"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"10s"`
	PollMaxAttempts   int           `env:"POLL_MAX_ATTEMPTS" envDefault:"30"`
}

type CloudinaryConfig struct {
	CloudName string `env:"CLOUD_NAME"`
	APIKey    string `env:"API_KEY"`
	APISecret string `env:"API_SECRET"`
	Folder    string `env:"FOLDER" envDefault:"past-papers"`
}

func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type RedisConfig struct {
	URL        string        `env:"URL"`
	CatalogTTL time.Duration `env:"CATALOG_TTL" envDefault:"5m"`
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASS"`
	From     string `env:"FROM"`
}

type FirebaseConfig struct {
	ServiceAccountPath string `env:"SERVICE_ACCOUNT_PATH"`
}

type UploadConfig struct {
	Dir      string `env:"DIR" envDefault:"uploads"`
	MaxBytes int64  `env:"MAX_BYTES" envDefault:"10485760"`
}

type AdminConfig struct {
	Username string `env:"USERNAME" envDefault:"admin"`
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `env:"REQUESTS_PER_MINUTE" envDefault:"100"`
	PaymentsPerMinute int `env:"PAYMENTS_PER_MINUTE" envDefault:"5"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Mpesa.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *MpesaConfig) resolve() error {
	m.Environment = strings.ToLower(strings.TrimSpace(m.Environment))
	switch m.Environment {
	case MpesaSandbox:
		if m.BaseURL == "" {
			m.BaseURL = mpesaSandboxURL
		}
	case MpesaProduction:
		if m.BaseURL == "" {
			m.BaseURL = mpesaProductionURL
		}
	default:
		return fmt.Errorf("MPESA_ENVIRONMENT must be %q or %q, got %q", MpesaSandbox, MpesaProduction, m.Environment)
	}
	if m.PollInterval <= 0 {
		return fmt.Errorf("MPESA_POLL_INTERVAL must be positive")
	}
	if m.PollMaxAttempts < 1 {
		return fmt.Errorf("MPESA_POLL_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}
