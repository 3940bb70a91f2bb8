package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rxdesk/rxdesk/internal/platform/rxdoc"
)

// minSessionSecret is the shortest HS256 key accepted outside development.
const minSessionSecret = 32

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	LoginRateLimitRPS   float64       `mapstructure:"LOGIN_RATE_LIMIT_RPS"`
	LoginRateLimitBurst int           `mapstructure:"LOGIN_RATE_LIMIT_BURST"`
	BodyLimit           string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	TLSEnabled          bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile         string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile          string        `mapstructure:"TLS_KEY_FILE"`

	AuthUsername     string        `mapstructure:"AUTH_USERNAME"`
	AuthPassword     string        `mapstructure:"AUTH_PASSWORD"`
	AuthPasswordHash string        `mapstructure:"AUTH_PASSWORD_HASH"`
	SessionSecret    string        `mapstructure:"SESSION_SECRET"`
	SessionTTL       time.Duration `mapstructure:"SESSION_TTL"`
	CookieSecure     bool          `mapstructure:"COOKIE_SECURE"`

	PractitionerName       string `mapstructure:"PRACTITIONER_NAME"`
	PractitionerCredential string `mapstructure:"PRACTITIONER_CREDENTIAL"`
	PractitionerRegNo      string `mapstructure:"PRACTITIONER_REG_NO"`
	ClinicName             string `mapstructure:"CLINIC_NAME"`
	ClinicAddress          string `mapstructure:"CLINIC_ADDRESS"`
	ClinicPhone            string `mapstructure:"CLINIC_PHONE"`
	AssetDir               string `mapstructure:"ASSET_DIR"`
	AssetURLPrefix         string `mapstructure:"ASSET_URL_PREFIX"`

	// EphemeralSecret is set when a development run had no SESSION_SECRET
	// and Load generated one; sessions do not survive a restart.
	EphemeralSecret bool `mapstructure:"-"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"LOGIN_RATE_LIMIT_RPS", "LOGIN_RATE_LIMIT_BURST", "BODY_LIMIT", "REQUEST_TIMEOUT",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"AUTH_USERNAME", "AUTH_PASSWORD", "AUTH_PASSWORD_HASH",
	"SESSION_SECRET", "SESSION_TTL", "COOKIE_SECURE",
	"PRACTITIONER_NAME", "PRACTITIONER_CREDENTIAL", "PRACTITIONER_REG_NO",
	"CLINIC_NAME", "CLINIC_ADDRESS", "CLINIC_PHONE",
	"ASSET_DIR", "ASSET_URL_PREFIX",
}

// Load reads configuration from the environment and an optional .env file.
// It does not validate; serve and migrate call Validate or RequireDatabase
// for the settings they need.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	lh := rxdoc.DefaultLetterhead()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("LOGIN_RATE_LIMIT_RPS", 0.2)
	v.SetDefault("LOGIN_RATE_LIMIT_BURST", 5)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("PRACTITIONER_NAME", lh.PractitionerName)
	v.SetDefault("PRACTITIONER_CREDENTIAL", lh.PractitionerCredential)
	v.SetDefault("PRACTITIONER_REG_NO", lh.RegistrationNumber)
	v.SetDefault("CLINIC_NAME", lh.ClinicName)
	v.SetDefault("CLINIC_ADDRESS", strings.Join(lh.ClinicAddress, ","))
	v.SetDefault("CLINIC_PHONE", lh.ClinicPhone)
	v.SetDefault("ASSET_URL_PREFIX", "/assets/")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if !v.IsSet("COOKIE_SECURE") {
		cfg.CookieSecure = !cfg.IsDev()
	}

	if cfg.SessionSecret == "" && cfg.IsDev() {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SessionSecret = secret
		cfg.EphemeralSecret = true
	}

	return cfg, nil
}

func randomSecret() (string, error) {
	b := make([]byte, minSessionSecret)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RequireDatabase reports a missing DATABASE_URL.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Validate checks that the configuration is safe to serve with: a database,
// a login credential, a long enough session secret outside development,
// and complete TLS settings when TLS is on.
func (c *Config) Validate() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}

	if c.AuthUsername == "" {
		return fmt.Errorf("AUTH_USERNAME is required")
	}
	if c.AuthPassword == "" && c.AuthPasswordHash == "" {
		return fmt.Errorf("one of AUTH_PASSWORD or AUTH_PASSWORD_HASH is required")
	}
	if c.IsProduction() && c.AuthPasswordHash == "" {
		return fmt.Errorf("AUTH_PASSWORD_HASH is required in production; plain AUTH_PASSWORD is for development only")
	}

	if !c.IsDev() && len(c.SessionSecret) < minSessionSecret {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes, got %d", minSessionSecret, len(c.SessionSecret))
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.LoginRateLimitRPS <= 0 || c.LoginRateLimitBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_RPS and LOGIN_RATE_LIMIT_BURST must be positive")
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}

// Letterhead builds the document letterhead. CLINIC_ADDRESS is split on
// commas into lines.
func (c *Config) Letterhead() rxdoc.Letterhead {
	var lines []string
	for _, l := range strings.Split(c.ClinicAddress, ",") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return rxdoc.Letterhead{
		PractitionerName:       c.PractitionerName,
		PractitionerCredential: c.PractitionerCredential,
		RegistrationNumber:     c.PractitionerRegNo,
		ClinicName:             c.ClinicName,
		ClinicAddress:          lines,
		ClinicPhone:            c.ClinicPhone,
	}
}

// Assets returns ASSET_DIR when set and the embedded images otherwise.
func (c *Config) Assets() fs.FS {
	if c.AssetDir != "" {
		return rxdoc.DirAssets(c.AssetDir)
	}
	return rxdoc.DefaultAssets()
}
