package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	DefaultUserID string
	LogLevel      string
	LogFormat     string

	ImportChunkSize  int
	ImportYieldEvery int
	ImportTimeoutSec int
	ImportErrorLimit int
	ImportMaxBytes   int64

	FieldAliasesPath   string
	CompanyDomainsPath string
	CompanyFuzzyMin    float64

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string
	GmailQuery        string
	GoogleRPS         float64
	GoogleBurst       int

	CalendarID       string
	CalendarLookback int

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerCalendarSync bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "netcrm.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		DefaultUserID: getEnv("DEFAULT_USER_ID", "local"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),

		ImportChunkSize:  getEnvInt("IMPORT_CHUNK_SIZE", 1000),
		ImportYieldEvery: getEnvInt("IMPORT_YIELD_EVERY", 100),
		ImportTimeoutSec: getEnvInt("IMPORT_TIMEOUT_SEC", 30),
		ImportErrorLimit: getEnvInt("IMPORT_ERROR_LIMIT", 50),
		ImportMaxBytes:   int64(getEnvInt("IMPORT_MAX_BYTES", 10<<20)),

		FieldAliasesPath:   getEnv("FIELD_ALIASES_PATH", ""),
		CompanyDomainsPath: getEnv("COMPANY_DOMAINS_PATH", ""),
		CompanyFuzzyMin:    getEnvFloat("COMPANY_FUZZY_MIN", 0.8),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailQuery:        getEnv("GMAIL_QUERY", ""),
		GoogleRPS:         getEnvFloat("GOOGLE_RPS", 2),
		GoogleBurst:       getEnvInt("GOOGLE_BURST", 5),

		CalendarID:       getEnv("CALENDAR_ID", "primary"),
		CalendarLookback: getEnvInt("CALENDAR_LOOKBACK_DAYS", 30),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerCalendarSync: getEnvBool("MAIL_LISTENER_CALENDAR_SYNC", false),
	}

	return cfg, nil
}

// ImportTimeout is the per-import processing budget.
func (c Config) ImportTimeout() time.Duration {
	if c.ImportTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.ImportTimeoutSec) * time.Second
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(getEnv(key, ""))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
