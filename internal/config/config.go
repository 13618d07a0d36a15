package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zaptalk/sheetsbridge/internal/tokenstore"
)

// Token store backends.
const (
	StoreMemory   = tokenstore.BackendMemory
	StorePostgres = tokenstore.BackendPostgres
	StoreValkey   = tokenstore.BackendValkey
)

// Config is the complete service configuration. It is built once at start-up
// and handed to each component constructor.
//
// Every leaf field carries an env tag (environment variable and viper key),
// a flag tag (command-line flag) and a usage string; Load and RegisterFlags
// are driven by these tags.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" flag:"http-addr" usage:"HTTP listen address" validate:"required"`
	BaseURL  string `env:"BASE_URL" flag:"base-url" usage:"Public base URL of this service (auto-detected for localhost when empty)" validate:"omitempty,url"`
	BasePath string `env:"BASE_PATH" flag:"base-path" usage:"Path prefix all routes are served under"`

	Google   GoogleConfig   `env:",squash"`
	Supabase SupabaseConfig `env:",squash"`
	Store    StoreConfig    `env:",squash"`
	State    StateConfig    `env:",squash"`
	Timeouts TimeoutConfig  `env:",squash"`
	Log      LogConfig      `env:",squash"`
	Metrics  MetricsConfig  `env:",squash"`

	dotenv map[string]string
}

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID" flag:"google-client-id" usage:"Google OAuth client ID" validate:"required"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET" flag:"google-client-secret" usage:"Google OAuth client secret" validate:"required"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL" flag:"google-redirect-url" usage:"OAuth redirect URL (default: base URL + base path + /callback)" validate:"omitempty,url"`
}

// SupabaseConfig points at the backend auth service used to resolve bearer tokens.
type SupabaseConfig struct {
	URL     string `env:"SUPABASE_URL" flag:"supabase-url" usage:"Backend project URL used for bearer token verification" validate:"required,url"`
	AnonKey string `env:"SUPABASE_ANON_KEY" flag:"supabase-anon-key" usage:"Backend anon (public) API key" validate:"required"`
}

// StoreConfig selects and configures the token store backend.
type StoreConfig struct {
	// Backend is one of memory, postgres, valkey.
	Backend string `env:"TOKEN_STORE" flag:"token-store" usage:"Token store backend: memory, postgres or valkey" validate:"oneof=memory postgres valkey"`

	DatabaseURL string `env:"DATABASE_URL" flag:"database-url" usage:"Postgres connection string (token-store=postgres)" validate:"required_if=Backend postgres"`
	AutoMigrate bool   `env:"DATABASE_AUTO_MIGRATE" flag:"database-auto-migrate" usage:"Apply embedded migrations on start-up"`

	ValkeyURL       string `env:"VALKEY_URL" flag:"valkey-url" usage:"Valkey server address, e.g. valkey.svc:6379 (token-store=valkey)" validate:"required_if=Backend valkey"`
	ValkeyPassword  string `env:"VALKEY_PASSWORD" flag:"valkey-password" usage:"Valkey authentication password"`
	ValkeyDB        int    `env:"VALKEY_DB" flag:"valkey-db" usage:"Valkey database number" validate:"gte=0"`
	ValkeyTLS       bool   `env:"VALKEY_TLS_ENABLED" flag:"valkey-tls" usage:"Enable TLS for Valkey connections"`
	ValkeyKeyPrefix string `env:"VALKEY_KEY_PREFIX" flag:"valkey-key-prefix" usage:"Prefix for all Valkey keys"`

	// EncryptionKey is a base64 encoded 32 byte AES key. Empty stores tokens in plaintext.
	EncryptionKey string `env:"TOKEN_ENCRYPTION_KEY" flag:"token-encryption-key" usage:"Base64 AES-256 key for token encryption at rest (generate with: sheetsbridge keygen)" validate:"omitempty,aeskey"`
}

// StateConfig controls the OAuth state parameter.
type StateConfig struct {
	// SigningKey enables signed, expiring state tokens when set.
	SigningKey string        `env:"STATE_SIGNING_KEY" flag:"state-signing-key" usage:"HMAC key for signed OAuth state (empty: unsigned base64 state)" validate:"omitempty,min=32"`
	TTL        time.Duration `env:"STATE_TTL" flag:"state-ttl" usage:"Validity of signed OAuth state" validate:"gt=0"`
}

// TimeoutConfig bounds every outbound call.
type TimeoutConfig struct {
	Identity    time.Duration `env:"IDENTITY_TIMEOUT" flag:"identity-timeout" usage:"Timeout for bearer token verification" validate:"gt=0"`
	GoogleToken time.Duration `env:"GOOGLE_TOKEN_TIMEOUT" flag:"google-token-timeout" usage:"Timeout for Google token endpoint calls" validate:"gt=0"`
	GoogleAPI   time.Duration `env:"GOOGLE_API_TIMEOUT" flag:"google-api-timeout" usage:"Timeout for Drive and Sheets API calls" validate:"gt=0"`
	Store       time.Duration `env:"STORE_TIMEOUT" flag:"store-timeout" usage:"Timeout for token store operations" validate:"gt=0"`
}

// LogConfig configures the process-wide slog handler.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" flag:"log-level" usage:"Log level: debug, info, warn, error" validate:"oneof=debug info warn error"`
	Format string `env:"LOG_FORMAT" flag:"log-format" usage:"Log format: text or json" validate:"oneof=text json"`
}

// MetricsConfig holds configuration for the metrics server.
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server
	Enabled bool `env:"METRICS_ENABLED" flag:"metrics-enabled" usage:"Serve Prometheus metrics on a dedicated port"`

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string `env:"METRICS_ADDR" flag:"metrics-addr" usage:"Metrics server address"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		HTTPAddr: ":8080",
		BasePath: "/google-sheets",
		Store: StoreConfig{
			Backend:         StorePostgres,
			AutoMigrate:     true,
			ValkeyKeyPrefix: "sheetsbridge:",
		},
		State: StateConfig{TTL: 10 * time.Minute},
		Timeouts: TimeoutConfig{
			Identity:    10 * time.Second,
			GoogleToken: 10 * time.Second,
			GoogleAPI:   15 * time.Second,
			Store:       5 * time.Second,
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
	}
}

// field is one tagged leaf of Config.
type field struct {
	env, flag, usage string
	ptr              any
}

func (c *Config) fields() []field {
	var out []field
	var walk func(v reflect.Value)
	walk = func(v reflect.Value) {
		t := v.Type()
		for i := range t.NumField() {
			sf, fv := t.Field(i), v.Field(i)
			if sf.Type.Kind() == reflect.Struct {
				walk(fv)
				continue
			}
			if env := sf.Tag.Get("env"); env != "" {
				out = append(out, field{
					env:   env,
					flag:  sf.Tag.Get("flag"),
					usage: sf.Tag.Get("usage"),
					ptr:   fv.Addr().Interface(),
				})
			}
		}
	}
	walk(reflect.ValueOf(c).Elem())
	return out
}

// Load resolves every setting. Explicitly set flags on fs win over the
// process environment, which wins over a .env file in dir; anything unset
// keeps its current value. fs may be nil.
func (c *Config) Load(dir string, fs *pflag.FlagSet) error {
	dotenv, err := readDotEnv(dir)
	if err != nil {
		return err
	}

	v := viper.New()
	v.AutomaticEnv()
	for _, f := range c.fields() {
		v.SetDefault(f.env, reflect.ValueOf(f.ptr).Elem().Interface())
		if fs == nil {
			continue
		}
		if fl := fs.Lookup(f.flag); fl != nil {
			if err := v.BindPFlag(f.env, fl); err != nil {
				return fmt.Errorf("failed to bind --%s: %w", f.flag, err)
			}
		}
	}

	fromFile := make(map[string]any, len(dotenv))
	for key, value := range dotenv {
		if value != "" {
			fromFile[key] = value
		}
	}
	if err := v.MergeConfigMap(fromFile); err != nil {
		return fmt.Errorf("failed to merge .env: %w", err)
	}

	if err := v.Unmarshal(c, func(dc *mapstructure.DecoderConfig) { dc.TagName = "env" }); err != nil {
		return fmt.Errorf("invalid configuration value: %w", err)
	}
	c.dotenv = dotenv
	return nil
}

// Getenv looks key up in the process environment, falling back to the .env
// file read by Load.
func (c *Config) Getenv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return c.dotenv[key]
}

func readDotEnv(dir string) (map[string]string, error) {
	values, err := godotenv.Read(filepath.Join(dir, ".env"))
	switch {
	case err == nil:
		return values, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	default:
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
}

// RegisterFlags defines one flag per setting on fs, using the current values as defaults.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	for _, f := range c.fields() {
		usage := fmt.Sprintf("%s. Can also use %s env var.", f.usage, f.env)
		switch p := f.ptr.(type) {
		case *string:
			fs.String(f.flag, *p, usage)
		case *bool:
			fs.Bool(f.flag, *p, usage)
		case *int:
			fs.Int(f.flag, *p, usage)
		case *time.Duration:
			fs.Duration(f.flag, *p, usage)
		}
	}
}

// Finalize derives defaults that depend on other settings. Call it after all
// sources have been applied and before Validate.
func (c *Config) Finalize() {
	c.BasePath = normalizeBasePath(c.BasePath)

	if c.BaseURL == "" {
		c.BaseURL = "http://" + c.HTTPAddr
		if strings.HasPrefix(c.HTTPAddr, ":") {
			c.BaseURL = "http://localhost" + c.HTTPAddr
		}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.Google.RedirectURL == "" {
		c.Google.RedirectURL = c.BaseURL + c.BasePath + "/callback"
	}
}

func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// Validate checks every setting and reports all problems at once, naming
// the environment variable to fix.
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

// EncryptionKeyBytes decodes Store.EncryptionKey. Nil means encryption is disabled.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	if c.Store.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.Store.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 key: %w", err)
	}
	return key, nil
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(useEnvTagNames)
	_ = validate.RegisterValidation("aeskey", validateAESKey)
	return validate
}

func useEnvTagNames(fld reflect.StructField) string {
	if env, _, _ := strings.Cut(fld.Tag.Get("env"), ","); env != "" {
		return env
	}
	return fld.Name
}

func validateAESKey(fl validator.FieldLevel) bool {
	key, err := base64.StdEncoding.DecodeString(fl.Field().String())
	return err == nil && len(key) == 32
}

func describe(fe validator.FieldError) error {
	name := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", name)
	case "url":
		return fmt.Errorf("%s must be an absolute URL", name)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt", "gte":
		return fmt.Errorf("%s must be positive", name)
	case "min":
		return fmt.Errorf("%s must be at least %s characters", name, fe.Param())
	case "aeskey":
		return fmt.Errorf("%s must be a base64 encoded 32 byte key", name)
	default:
		return fmt.Errorf("%s is invalid (%s)", name, fe.Tag())
	}
}
