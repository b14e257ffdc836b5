package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Auth       AuthConfig
	Simulation SimulationConfig
	Client     ClientConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	AllowOrigins []string
	// Debug switches gin to debug mode.
	Debug bool
}

type AuthConfig struct {
	Username string
	// PasswordHash is a bcrypt hash. When empty, Password is hashed at startup.
	PasswordHash string
	Password     string
	JWTSecret    string
	TokenTTL     time.Duration
}

// SimulationConfig controls the simulated provisioning workflow.
type SimulationConfig struct {
	StepDuration time.Duration
	// Retention is how long finished deployments stay queryable. Zero keeps
	// them forever.
	Retention time.Duration
}

type ClientConfig struct {
	BaseURL        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	// TokenStore is "keyring" or "file".
	TokenStore string
	TokenFile  string
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// LoadEnv loads the named env files, or ./.env when none are given. Only a
// missing default ./.env is tolerated.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		if len(files) == 0 && os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}

func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnvAsString("SERVER_HOST", "127.0.0.1"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 30),
			AllowOrigins: getEnvAsSlice("ALLOW_ORIGINS", []string{"http://localhost:3000"}),
			Debug:        getEnvAsBool("SERVER_DEBUG", false),
		},
		Auth: AuthConfig{
			Username:     getEnvAsString("AUTH_USERNAME", "admin"),
			PasswordHash: getEnvAsString("AUTH_PASSWORD_HASH", ""),
			Password:     getEnvAsString("AUTH_PASSWORD", "admin123"),
			JWTSecret:    getEnvAsString("AUTH_JWT_SECRET", "cloud-deploy-secret-change-me"),
			TokenTTL:     getEnvAsDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		},
		Simulation: SimulationConfig{
			StepDuration: getEnvAsDuration("SIMULATION_STEP_DURATION", 3*time.Second),
			Retention:    getEnvAsDuration("SIMULATION_RETENTION", time.Hour),
		},
		Client: ClientConfig{
			BaseURL:        getEnvAsString("DEPLOY_API_URL", "http://127.0.0.1:8080"),
			PollInterval:   getEnvAsDuration("DEPLOY_POLL_INTERVAL", 5*time.Second),
			RequestTimeout: getEnvAsDuration("DEPLOY_REQUEST_TIMEOUT", 30*time.Second),
			TokenStore:     getEnvAsString("DEPLOY_TOKEN_STORE", "keyring"),
			TokenFile:      getEnvAsString("DEPLOY_TOKEN_FILE", defaultTokenFile()),
		},
		Logging: LoggingConfig{
			Level:  getEnvAsString("LOG_LEVEL", "info"),
			Format: getEnvAsString("LOG_FORMAT", "text"),
			File:   getEnvAsString("LOG_FILE", ""),
		},
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "credentials.yaml"
	}
	return filepath.Join(dir, "cloud-deploy", "credentials.yaml")
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
