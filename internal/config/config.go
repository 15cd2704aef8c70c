package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Modos de sincronización con el servicio externo
const (
	SyncModeOutbox = "outbox"
	SyncModeInline = "inline"
)

// Config contiene la configuración de la aplicación leída del entorno
type Config struct {
	ServerPort  string `env:"SERVER_PORT,default=8080"`
	CORSOrigins string `env:"CORS_ORIGINS,default=http://localhost:3000"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	DBHost     string `env:"DB_HOST,default=localhost"`
	DBPort     string `env:"DB_PORT,default=5432"`
	DBUser     string `env:"DB_USER,default=postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME,default=agenda"`
	DBSSLMode  string `env:"DB_SSLMODE,default=disable"`

	Sync   SyncConfig
	Outbox OutboxConfig

	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       string `env:"SMTP_PORT,default=587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`
	SMTPFromName   string `env:"SMTP_FROM_NAME,default=Agenda"`
	SMTPFromEmail  string `env:"SMTP_FROM_EMAIL"`
	SyncAlertEmail string `env:"SYNC_ALERT_EMAIL"`

	S3BucketName string `env:"S3_BUCKET_NAME"`
	AWSRegion    string `env:"AWS_REGION,default=us-east-1"`

	RabbitMQURL      string `env:"RABBITMQ_URL"`
	RabbitMQExchange string `env:"RABBITMQ_EXCHANGE,default=agenda.personas"`
}

// SyncConfig configura la sincronización con la API FastAPI
type SyncConfig struct {
	FastAPIURL string        `env:"FASTAPI_URL,default=http://localhost:8000"`
	Mode       string        `env:"SYNC_MODE,default=outbox"`
	Updates    bool          `env:"SYNC_UPDATES,default=false"`
	Timeout    time.Duration `env:"SYNC_TIMEOUT,default=10s"`
	RatePerSec float64       `env:"SYNC_RATE_PER_SEC,default=5"`
	RateBurst  int           `env:"SYNC_RATE_BURST,default=5"`
}

// OutboxConfig configura el worker que entrega los eventos pendientes
type OutboxConfig struct {
	Schedule    string        `env:"OUTBOX_SCHEDULE,default=@every 15s"`
	BatchSize   int           `env:"OUTBOX_BATCH_SIZE,default=20"`
	MaxIntentos int           `env:"OUTBOX_MAX_INTENTOS,default=5"`
	BackoffBase time.Duration `env:"OUTBOX_BACKOFF_BASE,default=5s"`
	BackoffMax  time.Duration `env:"OUTBOX_BACKOFF_MAX,default=10m"`
	Lease       time.Duration `env:"OUTBOX_LEASE,default=1m"`
}

// LoadConfig carga .env (si existe) y decodifica las variables de entorno
func LoadConfig() (*Config, error) {
	// .env es opcional: en producción las variables vienen del entorno
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("error al leer configuración: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate comprueba los valores que no pueden expresarse con defaults
func (c *Config) Validate() error {
	switch c.Sync.Mode {
	case SyncModeOutbox, SyncModeInline:
	default:
		return fmt.Errorf("SYNC_MODE inválido: %q (use %q o %q)", c.Sync.Mode, SyncModeOutbox, SyncModeInline)
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE debe ser mayor a 0")
	}
	if c.Outbox.MaxIntentos <= 0 {
		return fmt.Errorf("OUTBOX_MAX_INTENTOS debe ser mayor a 0")
	}
	return nil
}

// GetDBConnString arma el DSN para lib/pq
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// EmailEnabled indica si hay datos suficientes para enviar alertas por correo
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.SyncAlertEmail != ""
}
