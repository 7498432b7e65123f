package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	CRDBDSN        string
	MongoURI       string
	MongoDatabase  string
	RedisAddr      string
	RabbitURL      string
	JWTSecret      string
	QRSigningKey   string
	HoldTTL        time.Duration
	ExpiryInterval time.Duration
	OutboxInterval time.Duration
	HTTPAddr       string
	OTLPEndpoint   string
	S3             S3Config
	SMTP           SMTPConfig
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
}

// Enabled reports whether image uploads are configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

type SMTPConfig struct {
	Addr     string
	Username string
	Password string
	From     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CRDBDSN:        os.Getenv("CRDB_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDatabase:  envOr("MONGO_DB", "ticketing"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		QRSigningKey:   os.Getenv("QR_SIGNING_KEY"),
		HoldTTL:        durationOr("HOLD_TTL", 5*time.Minute),
		ExpiryInterval: durationOr("EXPIRY_INTERVAL", 30*time.Second),
		OutboxInterval: durationOr("OUTBOX_INTERVAL", 5*time.Second),
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          envOr("S3_REGION", "auto"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicURL:       os.Getenv("S3_PUBLIC_URL"),
		},
		SMTP: SMTPConfig{
			Addr:     os.Getenv("SMTP_ADDR"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envOr("MAIL_FROM", "tickets@localhost"),
		},
	}
	if cfg.QRSigningKey == "" {
		cfg.QRSigningKey = cfg.JWTSecret
	}

	if cfg.CRDBDSN == "" {
		return nil, errors.New("CRDB_DSN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d <= 0 {
		return def
	}
	return d
}
