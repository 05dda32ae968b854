package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LovationAdmin/horizon-api/apperr"
)

const (
	BackendAppwrite = "appwrite"
	BackendPostgres = "postgres"

	SelectFirst     = "first"
	SelectRequested = "requested"
)

type Config struct {
	Server   ServerConfig
	Identity IdentityConfig
	Plaid    PlaidConfig
	Dwolla   DwollaConfig
	Link     LinkConfig
	Session  SessionConfig

	// DataEncryptionKey derives the keys behind shareable ids.
	DataEncryptionKey string
}

type ServerConfig struct {
	Port               string
	FrontendURL        string
	RateLimitPerMinute int
	HomeCacheTTL       time.Duration
}

type IdentityConfig struct {
	Backend          string
	Endpoint         string
	ProjectID        string
	APIKey           string
	DatabaseID       string
	UserCollectionID string
	BankCollectionID string
	DatabaseURL      string
}

type PlaidConfig struct {
	ClientID     string
	Secret       string
	Env          string
	Products     []string
	CountryCodes []string
	Language     string
}

type DwollaConfig struct {
	Key    string
	Secret string
	Env    string
}

type LinkConfig struct {
	AccountSelection string
	RejectDuplicates bool
	Compensate       bool
}

type SessionConfig struct {
	CookieName   string
	CookieSecure bool
	// MaxAge is the session lifetime the Postgres backend issues. Appwrite
	// sets its own.
	MaxAge       time.Duration
}

// Load reads the process environment. Every missing or malformed value is
// reported as an apperr.Configuration error.
func Load() (*Config, error) {
	var missing []string
	require := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{}

	cfg.Identity.Backend = strings.ToLower(getEnv("IDENTITY_BACKEND", BackendAppwrite))
	switch cfg.Identity.Backend {
	case BackendAppwrite:
		cfg.Identity.Endpoint = strings.TrimRight(require("APPWRITE_ENDPOINT"), "/")
		cfg.Identity.ProjectID = require("APPWRITE_PROJECT")
		cfg.Identity.APIKey = require("APPWRITE_KEY")
	case BackendPostgres:
		cfg.Identity.DatabaseURL = require("DATABASE_URL")
	default:
		return nil, configError("IDENTITY_BACKEND must be %q or %q, got %q", BackendAppwrite, BackendPostgres, cfg.Identity.Backend)
	}
	cfg.Identity.DatabaseID = require("APPWRITE_DATABASE_ID")
	cfg.Identity.UserCollectionID = require("APPWRITE_USER_COLLECTION_ID")
	cfg.Identity.BankCollectionID = require("APPWRITE_BANK_COLLECTION_ID")

	cfg.Plaid = PlaidConfig{
		ClientID:     require("PLAID_CLIENT_ID"),
		Secret:       require("PLAID_SECRET"),
		Env:          strings.ToLower(getEnv("PLAID_ENV", "sandbox")),
		Products:     splitList(getEnv("PLAID_PRODUCTS", "auth")),
		CountryCodes: splitList(getEnv("PLAID_COUNTRY_CODES", "US")),
		Language:     getEnv("PLAID_LANGUAGE", "en"),
	}

	cfg.Dwolla = DwollaConfig{
		Key:    require("DWOLLA_KEY"),
		Secret: require("DWOLLA_SECRET"),
		Env:    strings.ToLower(getEnv("DWOLLA_ENV", "sandbox")),
	}

	cfg.DataEncryptionKey = require("DATA_ENCRYPTION_KEY")

	if len(missing) > 0 {
		return nil, configError("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if len(cfg.DataEncryptionKey) != 32 {
		return nil, configError("DATA_ENCRYPTION_KEY must be exactly 32 characters")
	}
	if cfg.Plaid.Env != "sandbox" && cfg.Plaid.Env != "production" {
		return nil, configError("PLAID_ENV must be sandbox or production, got %q", cfg.Plaid.Env)
	}
	if cfg.Dwolla.Env != "sandbox" && cfg.Dwolla.Env != "production" {
		return nil, configError("DWOLLA_ENV must be sandbox or production, got %q", cfg.Dwolla.Env)
	}
	if len(cfg.Plaid.Products) == 0 || len(cfg.Plaid.CountryCodes) == 0 {
		return nil, configError("PLAID_PRODUCTS and PLAID_COUNTRY_CODES cannot be empty")
	}

	var err error

	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")
	if cfg.Server.RateLimitPerMinute, err = getIntEnv("RATE_LIMIT_PER_MINUTE", 100); err != nil {
		return nil, err
	}
	if cfg.Server.HomeCacheTTL, err = getDurationEnv("HOME_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.Link.AccountSelection = strings.ToLower(getEnv("LINK_ACCOUNT_SELECTION", SelectFirst))
	if cfg.Link.AccountSelection != SelectFirst && cfg.Link.AccountSelection != SelectRequested {
		return nil, configError("LINK_ACCOUNT_SELECTION must be %q or %q, got %q", SelectFirst, SelectRequested, cfg.Link.AccountSelection)
	}
	if cfg.Link.RejectDuplicates, err = getBoolEnv("LINK_REJECT_DUPLICATES", false); err != nil {
		return nil, err
	}
	if cfg.Link.Compensate, err = getBoolEnv("LINK_COMPENSATE", true); err != nil {
		return nil, err
	}

	cfg.Session.CookieName = "appwrite-session"
	if cfg.Session.CookieSecure, err = getBoolEnv("COOKIE_SECURE", true); err != nil {
		return nil, err
	}
	if cfg.Session.MaxAge, err = getDurationEnv("SESSION_MAX_AGE", 7*24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configError(format string, args ...any) error {
	return apperr.Wrap(apperr.Configuration, "config", fmt.Errorf(format, args...))
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, configError("invalid %s: %q", key, raw)
	}
	return v, nil
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, configError("invalid %s: %q", key, raw)
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return 0, configError("invalid %s: %q", key, raw)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
