// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file,
// a .env file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`

	// Config is the path to the Config file.
	Config string `json:"-"`

	// EnvFile is the path to an optional .env file.
	EnvFile string `json:"-"`

	// AuthSecret is the operator secret. It seeds the master key derivation
	// and signs bearer tokens.
	AuthSecret string `json:"-"`

	// ContentDir is the root of the course content tree.
	ContentDir string `json:"content_dir"`

	// WatchContent reloads the course catalog when ContentDir changes.
	WatchContent bool `json:"watch_content"`

	// RedisAddr enables the Redis-backed per-user lock when set.
	RedisAddr string `json:"redis_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// ChatRetention is how long an untouched step chat is kept.
	ChatRetention time.Duration `json:"-"`

	OpenAIBaseURL    string `json:"openai_base_url"`
	AnthropicBaseURL string `json:"anthropic_base_url"`
	OllamaBaseURL    string `json:"ollama_base_url"`
}

// options holds the current configuration values.
var options = Defaults()

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Port, "a", options.Port, "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.Config, "config", options.Config, "path to config file")
	flag.StringVar(&options.Config, "c", options.Config, "path to config file (shorthand)")
	flag.StringVar(&options.EnvFile, "env", options.EnvFile, "path to .env file")
	flag.StringVar(&options.ContentDir, "content", options.ContentDir, "course content directory")
	flag.BoolVar(&options.WatchContent, "watch", false, "reload content on change")
	flag.DurationVar(&options.ChatRetention, "chat-retention", options.ChatRetention, "drop chats idle for longer than this")
}

// Defaults returns Options populated with default values.
func Defaults() *Options {
	return &Options{
		Port:          "localhost:8080",
		Config:        "config.json",
		EnvFile:       ".env",
		ContentDir:    "content",
		LogLevel:      "info",
		ChatRetention: 90 * 24 * time.Hour,
	}
}

// Parse parses the command-line flags, the config file and environment
// variables to set configuration values. It returns a pointer to the
// Options struct containing the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	if err := Load(options); err != nil {
		log.Fatalf("error while loading config: %v", err)
	}
	return options
}

// Load applies the .env file, the JSON config file and environment
// variables on top of o, in that order. Variables already present in the
// process environment win over the .env file.
func Load(o *Options) error {
	if envPath := os.Getenv("ENV_FILE"); envPath != "" {
		o.EnvFile = envPath
	}
	if o.EnvFile != "" {
		if _, err := os.Stat(o.EnvFile); err == nil {
			if err := godotenv.Load(o.EnvFile); err != nil {
				return fmt.Errorf("read env file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat env file: %w", err)
		}
	}

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		o.Config = configPath
	}

	if o.Config != "" {
		if _, err := os.Stat(o.Config); err == nil {
			data, err := os.ReadFile(o.Config)
			if err != nil {
				return fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, o); err != nil {
				return fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	setString(&o.Port, "SERVER_ADDRESS")
	setString(&o.DatabaseDSN, "DATABASE_DSN")
	setString(&o.AuthSecret, "AUTH_SECRET")
	setString(&o.ContentDir, "CONTENT_DIR")
	setString(&o.RedisAddr, "REDIS_ADDR")
	setString(&o.LogLevel, "LOG_LEVEL")
	setString(&o.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&o.AnthropicBaseURL, "ANTHROPIC_BASE_URL")
	setString(&o.OllamaBaseURL, "OLLAMA_BASE_URL")

	if v := os.Getenv("WATCH_CONTENT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WATCH_CONTENT: %w", err)
		}
		o.WatchContent = b
	}
	if v := os.Getenv("CHAT_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CHAT_RETENTION: %w", err)
		}
		o.ChatRetention = d
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
