// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"appliance-fieldops/authcore/internal/role"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN for the durable store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis address for the short-TTL OTP store (e.g. localhost:6379).
	// Empty disables Redis; the Postgres OTP store is used instead.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB is the Redis logical database number.
	RedisDB int `mapstructure:"REDIS_DB"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "fieldops-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "fieldops-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// SessionTTL is the session lifetime; expires_at is fixed at creation time plus this.
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// SingleDeviceRoles is a comma-separated list of roles under single-active-device
	// policy (default "technician,transporter").
	SingleDeviceRoles string `mapstructure:"SINGLE_DEVICE_ROLES"`
	// DeviceConflictMode is "takeover" (new device wins, old sessions revoked) or
	// "reject" (new login refused). Default takeover.
	DeviceConflictMode string `mapstructure:"DEVICE_CONFLICT_MODE"`
	// LoginHoursStart and LoginHoursEnd bound the expected local login band (hour of
	// day, 0–23). Logins outside the band raise an odd-hour anomaly event.
	LoginHoursStart int `mapstructure:"LOGIN_HOURS_START"`
	LoginHoursEnd   int `mapstructure:"LOGIN_HOURS_END"`
	// LoginHoursTZ is the IANA timezone the login band is expressed in
	// (e.g. "Europe/Berlin"). Default UTC.
	LoginHoursTZ string `mapstructure:"LOGIN_HOURS_TZ"`
	// AnomalyIPWindow is the trailing window in which a source IP counts as "seen"
	// for a user (e.g. "720h" for 30 days).
	AnomalyIPWindow string `mapstructure:"ANOMALY_IP_WINDOW"`
	// OTPTTL is the lifetime of a one-time login code (e.g. "5m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// SMSLocalAPIKey enables OTP delivery through the SMS Local gateway.
	// Empty disables delivery; issued codes are handed back to the caller.
	SMSLocalAPIKey string `mapstructure:"SMSLOCAL_API_KEY"`
	// SMSSenderID is the optional sender name attached to outgoing SMS.
	SMSSenderID string `mapstructure:"SMS_SENDER_ID"`
	// AlertPollInterval is how often the alert worker evaluates rules (e.g. "1m").
	AlertPollInterval string `mapstructure:"ALERT_POLL_INTERVAL"`
	// KafkaBrokers is a comma-separated broker list for the security-event stream.
	// Empty disables streaming.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaTopic is the topic security events are published to.
	KafkaTopic string `mapstructure:"KAFKA_TOPIC"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint for worker telemetry; empty
	// disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ISSUER", "fieldops-auth")
	v.SetDefault("JWT_AUDIENCE", "fieldops-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("SESSION_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SINGLE_DEVICE_ROLES", "technician,transporter")
	v.SetDefault("DEVICE_CONFLICT_MODE", "takeover")
	v.SetDefault("LOGIN_HOURS_START", 6)
	v.SetDefault("LOGIN_HOURS_END", 23)
	v.SetDefault("LOGIN_HOURS_TZ", "UTC")
	v.SetDefault("ANOMALY_IP_WINDOW", "720h") // 30d
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("SMSLOCAL_API_KEY", "")
	v.SetDefault("SMS_SENDER_ID", "")
	v.SetDefault("ALERT_POLL_INTERVAL", "1m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "fieldops-security-events")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	switch cfg.DeviceConflictMode {
	case "takeover", "reject":
	default:
		return nil, errors.New("config: DEVICE_CONFLICT_MODE must be takeover or reject")
	}

	if cfg.LoginHoursStart < 0 || cfg.LoginHoursStart > 23 ||
		cfg.LoginHoursEnd < 0 || cfg.LoginHoursEnd > 23 {
		return nil, errors.New("config: LOGIN_HOURS_START and LOGIN_HOURS_END must be between 0 and 23")
	}

	if _, err := cfg.SingleDeviceRoleSet(); err != nil {
		return nil, err
	}
	if _, err := cfg.HoursLocation(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// SessionLifetime parses SessionTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	return parseDuration(c.SessionTTL, 168*time.Hour)
}

// IPWindow parses AnomalyIPWindow as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) IPWindow() time.Duration {
	return parseDuration(c.AnomalyIPWindow, 720*time.Hour)
}

// OTPLifetime parses OTPTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) OTPLifetime() time.Duration {
	return parseDuration(c.OTPTTL, 5*time.Minute)
}

// PollInterval parses AlertPollInterval as a time.Duration. Returns 1m if unset or invalid.
func (c *Config) PollInterval() time.Duration {
	return parseDuration(c.AlertPollInterval, time.Minute)
}

// HoursLocation resolves LoginHoursTZ to a time.Location. Empty means UTC;
// an unknown zone name is rejected rather than silently defaulted.
func (c *Config) HoursLocation() (*time.Location, error) {
	if c.LoginHoursTZ == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.LoginHoursTZ)
	if err != nil {
		return nil, errors.New("config: LOGIN_HOURS_TZ: " + err.Error())
	}
	return loc, nil
}

// SingleDeviceRoleSet parses SingleDeviceRoles into a role set. Unknown role names are
// rejected rather than ignored.
func (c *Config) SingleDeviceRoleSet() (map[role.Role]bool, error) {
	out := make(map[role.Role]bool)
	for _, part := range strings.Split(c.SingleDeviceRoles, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := role.Parse(part)
		if err != nil {
			return nil, errors.New("config: SINGLE_DEVICE_ROLES: " + err.Error())
		}
		out[r] = true
	}
	return out, nil
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
// Used to decide if streaming is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
