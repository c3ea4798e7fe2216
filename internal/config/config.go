package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TestSecret is the placeholder secret shipped for tests. It is refused by Validate.
const TestSecret = "test_secret_key_minimum_32_characters_long_for_testing_only"

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultResetTokenTTL   = time.Hour
)

type Config struct {
	ServerAddr  string
	CORSOrigins string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string

	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	ResetTokenTTL      time.Duration
	ResetPurgeInterval time.Duration
	Domain             string
	CookieSecure       bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	MailDriver string
	MailFrom   string
	SMTPHost   string
	SMTPPort   string
	SMTPUser   string
	SMTPPass   string
	SESRegion  string

	errs []string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "authserver"),
		DBPath:     getEnv("DB_PATH", "authserver.db"),

		AccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),

		Domain: getEnv("DOMAIN", "localhost:3000"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MailDriver: strings.ToLower(getEnv("MAIL_DRIVER", "log")),
		MailFrom:   getEnv("MAIL_FROM", "no-reply@localhost"),
		SMTPHost:   os.Getenv("SMTP_HOST"),
		SMTPPort:   getEnv("SMTP_PORT", "587"),
		SMTPUser:   os.Getenv("SMTP_USER"),
		SMTPPass:   os.Getenv("SMTP_PASS"),
		SESRegion:  getEnv("SES_REGION", "us-east-1"),
	}

	cfg.AccessTokenTTL = cfg.getDuration("ACCESS_TOKEN_TTL", DefaultAccessTokenTTL)
	cfg.RefreshTokenTTL = cfg.getDuration("REFRESH_TOKEN_TTL", DefaultRefreshTokenTTL)
	cfg.ResetTokenTTL = cfg.getDuration("RESET_TOKEN_TTL", DefaultResetTokenTTL)
	cfg.ResetPurgeInterval = cfg.getDuration("RESET_PURGE_INTERVAL", 0)
	cfg.CacheTTL = cfg.getDuration("CACHE_TTL", 10*time.Minute)
	cfg.CookieSecure = cfg.getBool("COOKIE_SECURE", true)
	cfg.RedisDB = cfg.getInt("REDIS_DB", 0)
	cfg.BcryptCost = cfg.getInt("BCRYPT_COST", 10)

	log.Println("✅ Config loaded")
	return cfg
}

// Validate reports every configuration problem found at load time plus
// the signing secret rules.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.errs...)

	problems = append(problems, checkSecret("JWT_ACCESS_SECRET", c.AccessSecret)...)
	problems = append(problems, checkSecret("JWT_REFRESH_SECRET", c.RefreshSecret)...)
	if c.AccessSecret != "" && c.AccessSecret == c.RefreshSecret {
		problems = append(problems, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unsupported DB_DRIVER %q", c.DBDriver))
	}

	switch c.MailDriver {
	case "log", "ses":
	case "smtp":
		if c.SMTPHost == "" {
			problems = append(problems, "SMTP_HOST is required when MAIL_DRIVER=smtp")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported MAIL_DRIVER %q", c.MailDriver))
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		problems = append(problems, "token lifetimes must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		problems = append(problems, "ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		problems = append(problems, fmt.Sprintf("BCRYPT_COST must be between 4 and 31 (current: %d)", c.BcryptCost))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func checkSecret(key, secret string) []string {
	switch {
	case secret == "":
		return []string{key + " environment variable is required"}
	case len(secret) < 32:
		return []string{fmt.Sprintf("%s must be at least 32 characters long (current: %d)", key, len(secret))}
	case secret == TestSecret:
		return []string{"cannot use default test secret for " + key}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.errs = append(c.errs, fmt.Sprintf("%s: %v", key, err))
		return fallback
	}
	return d
}

func (c *Config) getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.errs = append(c.errs, fmt.Sprintf("%s: %v", key, err))
		return fallback
	}
	return b
}

func (c *Config) getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.errs = append(c.errs, fmt.Sprintf("%s: %v", key, err))
		return fallback
	}
	return n
}
