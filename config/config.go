package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Admin      AdminConfig
	Cloudinary CloudinaryConfig
	Firebase   FirebaseConfig
	AMQP       AMQPConfig
	Mpesa      MpesaConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RateLimit is requests per minute per client IP.
	RateLimit int
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// AdminConfig seeds the first admin account on startup when both fields are set.
type AdminConfig struct {
	Email    string
	Password string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

// MpesaConfig holds Daraja credentials for STK push. Env is "sandbox", "production" or "stub".
type MpesaConfig struct {
	ConsumerKey     string
	ConsumerSecret  string
	Passkey         string
	Shortcode       string
	Env             string
	CallbackBaseURL string // e.g. https://shop.example.com; callback is CallbackBaseURL + /api/v1/webhooks/mpesa
	HTTPTimeout     time.Duration
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// CallbackURL is the public URL the gateway posts STK results to.
func (m MpesaConfig) CallbackURL() string {
	base := strings.TrimRight(m.CallbackBaseURL, "/")
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http") {
		base = "https://" + base
	}
	return base + "/api/v1/webhooks/mpesa"
}

func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_PORT", "8099")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_RATE_LIMIT", 100)
	v.SetDefault("DATABASE_DSN", "salonshop:salonshop@tcp(localhost:3306)/salonshop?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("JWT_ACCESS_SECRET", "change-me-in-production")
	v.SetDefault("JWT_REFRESH_SECRET", "change-me-refresh")
	v.SetDefault("JWT_ISSUER", "salonshop")
	v.SetDefault("AMQP_EXCHANGE", "salonshop.events")
	v.SetDefault("MPESA_SHORTCODE", "174379")
	v.SetDefault("MPESA_ENV", "sandbox")
	v.SetDefault("MPESA_HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("LOG_LEVEL", "info")

	return &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Env:          v.GetString("APP_ENV"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			RateLimit:    v.GetInt("SERVER_RATE_LIMIT"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("DATABASE_DSN"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  v.GetString("JWT_ACCESS_SECRET"),
			RefreshSecret: v.GetString("JWT_REFRESH_SECRET"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        v.GetString("JWT_ISSUER"),
		},
		Admin: AdminConfig{
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
			APIKey:    v.GetString("CLOUDINARY_API_KEY"),
			APISecret: v.GetString("CLOUDINARY_API_SECRET"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: v.GetString("FIREBASE_SERVICE_ACCOUNT_PATH"),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString("AMQP_URL"),
			Exchange: v.GetString("AMQP_EXCHANGE"),
		},
		Mpesa: MpesaConfig{
			ConsumerKey:     v.GetString("MPESA_CONSUMER_KEY"),
			ConsumerSecret:  v.GetString("MPESA_CONSUMER_SECRET"),
			Passkey:         v.GetString("MPESA_PASSKEY"),
			Shortcode:       v.GetString("MPESA_SHORTCODE"),
			Env:             v.GetString("MPESA_ENV"),
			CallbackBaseURL: v.GetString("MPESA_CALLBACK_BASE_URL"),
			HTTPTimeout:     v.GetDuration("MPESA_HTTP_TIMEOUT"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetString("APP_ENV") != "production",
		},
	}
}
