// Package config loads application configuration from environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds to an
// environment variable. Secrets and identifiers are strings, durations and
// counts are ints. The SMTP block may be left empty, in which case outbound
// email is logged instead of delivered.
type Config struct {
	Env               string // application environment (e.g. "dev", "prod")
	Port              string // HTTP port to listen on
	AppURL            string // public base URL, used to build verification links
	DBUser            string // database username
	DBPass            string // database password (optional)
	DBHost            string // database host address
	DBPort            string // database port number
	DBName            string // database name
	JWTSecret         string // secret used to sign bearer tokens
	JWTEphemeral      bool   // true when the secret was generated for this process only
	TokenTTLDays      int    // bearer token time-to-live in days
	ActivationTTLHrs  int    // activation token time-to-live in hours
	CleanupIntervalHr int    // hours between cleanup sweep cycles
	CleanupCutoffDays int    // days a deactivated account survives before deletion
	UploadDir         string // directory for stored homework/message/material files
	AMQPURL           string // broker URL for the outbound email queue (optional)
	SMTPHost          string // SMTP relay host (optional)
	SMTPPort          string // SMTP relay port
	SMTPUser          string // SMTP username
	SMTPPass          string // SMTP password
	SMTPSender        string // From address for all outbound mail
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values cause
// the program to exit with a fatal log message.
//
// JWT_SECRET is required everywhere except APP_ENV=dev: in dev a random key is
// generated for the process lifetime, which means every issued token dies with
// the process. That mode is logged loudly and never silently accepted outside
// dev.
func Load() Config {
	cfg := Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		AppURL:            envStr("APP_URL", "http://localhost:"+os.Getenv("APP_PORT")),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		TokenTTLDays:      envInt("TOKEN_TTL_DAYS", 7),
		ActivationTTLHrs:  envInt("ACTIVATION_TTL_HOURS", 24),
		CleanupIntervalHr: envInt("CLEANUP_INTERVAL_HOURS", 24),
		CleanupCutoffDays: envInt("CLEANUP_CUTOFF_DAYS", 14),
		UploadDir:         envStr("UPLOAD_DIR", "uploads"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          envStr("SMTP_PORT", "587"),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPass:          os.Getenv("SMTP_PASS"),
		SMTPSender:        envStr("SMTP_SENDER", "noreply@tutorhub.local"),
	}
	if cfg.JWTSecret == "" {
		if cfg.Env != "dev" {
			log.Fatalf("JWT_SECRET must be set when APP_ENV=%s", cfg.Env)
		}
		buf := make([]byte, 64)
		if _, err := rand.Read(buf); err != nil {
			log.Fatalf("generate ephemeral signing key: %v", err)
		}
		cfg.JWTSecret = hex.EncodeToString(buf)
		cfg.JWTEphemeral = true
		log.Printf("WARNING: JWT_SECRET not set; using an ephemeral dev-only key, sessions will not survive a restart")
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
