package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingSecret = errors.New("JWT_SECRET is required")

type Config struct {
	Server        Server        `yaml:"server"`
	DB            *Postgres     `yaml:"database"`
	RMQ           *RabbitMQ     `yaml:"rabbitmq"`
	Kafka         *Kafka        `yaml:"kafka"`
	Auth          Auth          `yaml:"auth"`
	Orders        Orders        `yaml:"orders"`
	Notifications Notifications `yaml:"notifications"`
	Telemetry     Telemetry     `yaml:"telemetry"`
	Log           Log           `yaml:"log"`
}

type Server struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Postgres struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	MaxConns int32  `yaml:"max_conns"`
	// LockTimeout bounds how long a transaction waits on a row lock.
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

type RabbitMQ struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	VHost    string `yaml:"vhost"`
	Exchange string `yaml:"exchange"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Orders struct {
	MaxItems       int           `yaml:"max_items"`
	MaxTotal       string        `yaml:"max_total"`
	Retries        int           `yaml:"retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	PublicQuota    int           `yaml:"public_quota"`
	PublicWindow   time.Duration `yaml:"public_window"`
	DefaultPageLen int           `yaml:"default_page_len"`
}

type Notifications struct {
	// Transport is one of local, rabbitmq, kafka.
	Transport       string        `yaml:"transport"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	AdmissionQuota  int           `yaml:"admission_quota"`
	AdmissionWindow time.Duration `yaml:"admission_window"`
	SendBuffer      int           `yaml:"send_buffer"`
	BroadcastWait   time.Duration `yaml:"broadcast_timeout"`
}

type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when neither file nor env set a key.
func Default() *Config {
	return &Config{
		Server: Server{Port: 3000, ShutdownTimeout: 10 * time.Second},
		DB: &Postgres{
			Host:        "localhost",
			Port:        "5432",
			User:        "restaurant",
			Password:    "restaurant",
			Database:    "restaurant_db",
			MaxConns:    20,
			LockTimeout: 5 * time.Second,
		},
		RMQ: &RabbitMQ{
			User:     "guest",
			Password: "guest",
			Host:     "localhost",
			Port:     "5672",
			VHost:    "/",
			Exchange: "notifications_fanout",
		},
		Kafka: &Kafka{
			Brokers: []string{"localhost:9092"},
			Topic:   "order-notifications",
		},
		Orders: Orders{
			MaxItems:       100,
			MaxTotal:       "10000",
			Retries:        3,
			RetryBackoff:   50 * time.Millisecond,
			PublicQuota:    10,
			PublicWindow:   15 * time.Minute,
			DefaultPageLen: 50,
		},
		Notifications: Notifications{
			Transport:       "local",
			SweepInterval:   time.Minute,
			AdmissionQuota:  10,
			AdmissionWindow: 15 * time.Minute,
			SendBuffer:      16,
			BroadcastWait:   5 * time.Second,
		},
		Log: Log{Level: "info"},
	}
}

// LoadConfig reads the yaml file at configPath (optional), then applies
// environment overrides. A .env file in the working directory is honoured.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configPath, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env only
		default:
			return nil, err
		}
	}

	applyEnv(cfg)

	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	return cfg, nil
}

// DSN renders a postgres connection URL.
func (p *Postgres) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Database,
	)
}

// URL renders an amqp connection URL.
func (r *RabbitMQ) URL() string {
	vhost := r.VHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s", r.User, r.Password, r.Host, r.Port, vhost)
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)

	cfg.DB.Host = getEnv("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnv("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = getEnv("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Password = getEnv("POSTGRES_PASSWORD", cfg.DB.Password)
	cfg.DB.Database = getEnv("POSTGRES_DBNAME", cfg.DB.Database)

	cfg.RMQ.Host = getEnv("RABBITMQ_HOST", cfg.RMQ.Host)
	cfg.RMQ.Port = getEnv("RABBITMQ_PORT", cfg.RMQ.Port)
	cfg.RMQ.User = getEnv("RABBITMQ_USER", cfg.RMQ.User)
	cfg.RMQ.Password = getEnv("RABBITMQ_PASSWORD", cfg.RMQ.Password)
	cfg.RMQ.VHost = getEnv("RABBITMQ_VHOST", cfg.RMQ.VHost)

	if broker := os.Getenv("KAFKA_BROKER"); broker != "" {
		cfg.Kafka.Brokers = []string{broker}
	}

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Notifications.Transport = getEnv("NOTIFICATIONS_TRANSPORT", cfg.Notifications.Transport)
	cfg.Telemetry.OTLPEndpoint = getEnv("OTEL_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
