package config

import (
	"fmt"
	"os"
)

// Secrets holds credentials supplied through the environment, typically via a
// .env file loaded at startup.
type Secrets struct {
	BotToken      string
	EmailPassword string
	Postgres      PostgresEnv
}

// PostgresEnv mirrors the discrete POSTGRES_* environment variables.
type PostgresEnv struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// DSN renders the connection string for the Postgres driver.
func (p PostgresEnv) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.Database)
}

// LoadSecretsFromEnv reads the required secrets and fails on missing values.
func LoadSecretsFromEnv() (*Secrets, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	pg := PostgresEnv{
		Host:     envOrDefault("POSTGRES_HOST", "localhost"),
		Port:     envOrDefault("POSTGRES_PORT", "5432"),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: os.Getenv("POSTGRES_DB"),
	}
	if pg.User == "" || pg.Database == "" {
		return nil, fmt.Errorf("POSTGRES_USER and POSTGRES_DB environment variables must be set")
	}

	return &Secrets{
		BotToken:      token,
		EmailPassword: os.Getenv("EMAIL_PASSWORD"),
		Postgres:      pg,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
