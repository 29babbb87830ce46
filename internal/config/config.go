// Package config loads the client and relay settings.
//
// Precedence order (highest wins):
//  1. command-line flags
//  2. environment variables
//  3. a .env file in the working directory, when present
//  4. defaults declared in the struct tags
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

var validate = validator.New()

// Client holds the settings of the chat client.
type Client struct {
	Endpoint     string        `env:"CHAT_ENDPOINT,default=ws://localhost:8000" validate:"required,url"`
	RoomID       string        `env:"CHAT_ROOM_ID" validate:"required"`
	Nickname     string        `env:"CHAT_NICKNAME"`
	Codec        string        `env:"CHAT_CODEC,default=json" validate:"oneof=json proto"`
	DialTimeout  time.Duration `env:"CHAT_DIAL_TIMEOUT,default=10s" validate:"gt=0"`
	WriteTimeout time.Duration `env:"CHAT_WRITE_TIMEOUT,default=5s" validate:"gte=0"`
	EventBuffer  int           `env:"CHAT_EVENT_BUFFER,default=64" validate:"min=1"`
	LogLevel     string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// Relay holds the settings of the development relay.
type Relay struct {
	Address        string `env:"RELAY_ADDR,default=:8000" validate:"required"`
	Codec          string `env:"RELAY_CODEC,default=json" validate:"oneof=json proto"`
	OutgoingBuffer int    `env:"RELAY_OUTGOING_BUFFER,default=16" validate:"min=1"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// ErrHelp is returned when -h or --help was requested.
var ErrHelp = flag.ErrHelp

// LoadClient builds the client configuration from the environment and args
// (without the program name).
func LoadClient(args []string) (Client, error) {
	var cfg Client
	if err := loadEnv(&cfg); err != nil {
		return Client{}, err
	}

	flags := flag.NewFlagSet("chat", flag.ContinueOnError)
	flags.StringVarP(&cfg.Endpoint, "endpoint", "e", cfg.Endpoint, "Chat server base URL (ws:// or wss://)")
	flags.StringVarP(&cfg.RoomID, "room", "r", cfg.RoomID, "Room to join")
	flags.StringVarP(&cfg.Nickname, "nickname", "n", cfg.Nickname, "Nickname (prompted when empty)")
	flags.StringVar(&cfg.Codec, "codec", cfg.Codec, "Wire codec: json or proto")
	flags.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "Connection timeout")
	flags.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Per-message write timeout (0 disables)")
	flags.IntVar(&cfg.EventBuffer, "event-buffer", cfg.EventBuffer, "Inbound event queue size")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: DEBUG, INFO, WARN or ERROR")
	if err := flags.Parse(args); err != nil {
		return Client{}, err
	}

	cfg.Codec = strings.ToLower(cfg.Codec)
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	if err := validate.Struct(cfg); err != nil {
		return Client{}, fmt.Errorf("invalid client config: %w", err)
	}
	return cfg, nil
}

// LoadRelay builds the relay configuration from the environment and args.
func LoadRelay(args []string) (Relay, error) {
	var cfg Relay
	if err := loadEnv(&cfg); err != nil {
		return Relay{}, err
	}

	flags := flag.NewFlagSet("relay", flag.ContinueOnError)
	flags.StringVarP(&cfg.Address, "addr", "a", cfg.Address, "Address to listen on (e.g. :8000)")
	flags.StringVar(&cfg.Codec, "codec", cfg.Codec, "Wire codec: json or proto")
	flags.IntVar(&cfg.OutgoingBuffer, "outgoing-buffer", cfg.OutgoingBuffer, "Per-member outgoing queue size")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: DEBUG, INFO, WARN or ERROR")
	if err := flags.Parse(args); err != nil {
		return Relay{}, err
	}

	cfg.Codec = strings.ToLower(cfg.Codec)
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	if err := validate.Struct(cfg); err != nil {
		return Relay{}, fmt.Errorf("invalid relay config: %w", err)
	}
	return cfg, nil
}

// loadEnv seeds the process environment from .env, without overriding
// variables that are already set, then unmarshals it into cfg.
func loadEnv(cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}
