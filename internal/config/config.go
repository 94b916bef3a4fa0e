package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Messages are the user-facing texts sent for each decision outcome.
// "{ticket}" and "{user}" are substituted at send time.
type Messages struct {
	UserAccepted  string
	UserDenied    string
	InCooldown    string
	NoRecord      string
	InvalidTicket string
	ExpiredTicket string
	JoinFailed    string
}

// WithTicket substitutes the issued ticket into an accept message.
func (m Messages) WithTicket(text, ticket string) string {
	return strings.ReplaceAll(text, "{ticket}", ticket)
}

// WithUser substitutes the applicant identity into a moderator notification.
func (m Messages) WithUser(text, user string) string {
	return strings.ReplaceAll(text, "{user}", user)
}

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/gatekeeper.db"

	// Logging
	LogLevel  slog.Level
	LogFormat string // "json" | "text"

	// Gatekeeper instance
	Identifier          string // scopes records and command permissions; empty = single-tenant
	Platform            string // chat platform name, e.g. "onebot"
	StagingSpaceID      string // where moderators review and issue tickets
	DestinationSpaceID  string // the gated space applicants are joining
	ValidFor            time.Duration
	DenyCooldown        time.Duration
	RemoveAfterAccepted bool

	// Command surface auth (HS256 shared secret for moderator tokens)
	CommandAuthSecret string

	// Platform gateway
	GatewayBaseURL string
	GatewayToken   string

	// Retention of invalidated records (0 = keep forever)
	RetentionDays      int
	PruneIntervalHours int

	Messages Messages
}

func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr: getenvDefault("GATEKEEPER_HTTP_ADDR", ":8080"),
		DBPath:   getenvDefault("GATEKEEPER_DB_PATH", "./data/gatekeeper.db"),

		Identifier:         os.Getenv("GATEKEEPER_IDENTIFIER"),
		Platform:           getenvDefault("GATEKEEPER_PLATFORM", "onebot"),
		StagingSpaceID:     os.Getenv("GATEKEEPER_STAGING_SPACE"),
		DestinationSpaceID: os.Getenv("GATEKEEPER_DESTINATION_SPACE"),

		CommandAuthSecret: os.Getenv("GATEKEEPER_COMMAND_AUTH_SECRET"),

		GatewayBaseURL: os.Getenv("GATEKEEPER_GATEWAY_URL"),
		GatewayToken:   os.Getenv("GATEKEEPER_GATEWAY_TOKEN"),

		RetentionDays:      getenvInt("GATEKEEPER_RETENTION_DAYS", 0),
		PruneIntervalHours: getenvInt("GATEKEEPER_PRUNE_INTERVAL_HOURS", 6),
	}

	env := strings.ToLower(getenvDefault("GATEKEEPER_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}
	cfg.Env = env

	level, err := parseLogLevel(getenvDefault("GATEKEEPER_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("GATEKEEPER_LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	cfg.LogFormat = getenvDefault("GATEKEEPER_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return Config{}, fmt.Errorf("GATEKEEPER_LOG_FORMAT: unknown format %q", cfg.LogFormat)
	}

	// Ticket validity defaults to 48h; deny cooldown to roughly a year.
	cfg.ValidFor = time.Duration(getenvInt("GATEKEEPER_VALID_FOR_SECONDS", 172800)) * time.Second
	cfg.DenyCooldown = time.Duration(getenvInt("GATEKEEPER_DENY_COOLDOWN_SECONDS", 1314000)) * time.Second

	cfg.RemoveAfterAccepted = strings.EqualFold(os.Getenv("GATEKEEPER_REMOVE_AFTER_ACCEPTED"), "true") ||
		os.Getenv("GATEKEEPER_REMOVE_AFTER_ACCEPTED") == "1"

	cfg.Messages = Messages{
		UserAccepted:  getenvDefault("GATEKEEPER_MSG_ACCEPTED", "Your application has been approved. Ticket: {ticket}"),
		UserDenied:    getenvDefault("GATEKEEPER_MSG_DENIED", "Your application was not approved."),
		InCooldown:    getenvDefault("GATEKEEPER_MSG_IN_COOLDOWN", "Please wait out the cooldown period before applying again."),
		NoRecord:      getenvDefault("GATEKEEPER_MSG_NO_RECORD", "Please join the review space before entering the community."),
		InvalidTicket: getenvDefault("GATEKEEPER_MSG_INVALID_TICKET", "Please submit a valid admission ticket."),
		ExpiredTicket: getenvDefault("GATEKEEPER_MSG_EXPIRED_TICKET", "Your ticket has expired; ask a moderator in the review space for a new one."),
		JoinFailed:    getenvDefault("GATEKEEPER_MSG_JOIN_FAILED", "Member {user} did not make it into the space; please check and reissue their ticket."),
	}

	return cfg, nil
}

// SetupLogger builds the process-wide slog logger from the configured
// level and format.
func SetupLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
