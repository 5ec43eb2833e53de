package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env         string
	Port        int
	APIPrefix   string
	Timezone    string
	AutoMigrate bool

	AuthDatabase DatabaseConfig
	ErpDatabase  DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Settings     SettingsConfig
	DropRepair   DropRepairConfig
	Academic     AcademicConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SettingsConfig tunes the settings snapshot cache.
type SettingsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// DropRepairConfig sizes the queue that retries enrollment deletes left behind by a half-finished drop.
type DropRepairConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// AcademicConfig carries administrative bounds for sections.
type AcademicConfig struct {
	MinSectionYear    int
	MaxSectionYear    int
	MinPasswordLength int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")
	cfg.AutoMigrate = v.GetBool("AUTO_MIGRATE")

	cfg.AuthDatabase = databaseConfig(v, "AUTH_DB")
	cfg.ErpDatabase = databaseConfig(v, "ERP_DB")

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Settings = SettingsConfig{
		CacheEnabled: v.GetBool("SETTINGS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("SETTINGS_CACHE_TTL"), 30*time.Second),
	}

	cfg.DropRepair = DropRepairConfig{
		Workers:    v.GetInt("DROP_REPAIR_WORKERS"),
		MaxRetries: v.GetInt("DROP_REPAIR_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("DROP_REPAIR_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Academic = AcademicConfig{
		MinSectionYear:    v.GetInt("MIN_SECTION_YEAR"),
		MaxSectionYear:    v.GetInt("MAX_SECTION_YEAR"),
		MinPasswordLength: v.GetInt("MIN_PASSWORD_LENGTH"),
	}
	if cfg.Academic.MaxSectionYear < cfg.Academic.MinSectionYear {
		return nil, errors.New("MAX_SECTION_YEAR must not be before MIN_SECTION_YEAR")
	}

	return cfg, nil
}

// Location resolves the configured timezone used for deadline comparisons.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func databaseConfig(v *viper.Viper, prefix string) DatabaseConfig {
	return DatabaseConfig{
		Host:         v.GetString(prefix + "_HOST"),
		Port:         v.GetInt(prefix + "_PORT"),
		User:         v.GetString(prefix + "_USER"),
		Password:     v.GetString(prefix + "_PASSWORD"),
		Name:         v.GetString(prefix + "_NAME"),
		SSLMode:      v.GetString(prefix + "_SSL_MODE"),
		MaxOpenConns: v.GetInt(prefix + "_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt(prefix + "_MAX_IDLE_CONNS"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("AUTO_MIGRATE", false)

	for prefix, name := range map[string]string{"AUTH_DB": "univ_auth", "ERP_DB": "univ_erp"} {
		v.SetDefault(prefix+"_HOST", "localhost")
		v.SetDefault(prefix+"_PORT", 5432)
		v.SetDefault(prefix+"_USER", "postgres")
		v.SetDefault(prefix+"_PASSWORD", "postgres")
		v.SetDefault(prefix+"_NAME", name)
		v.SetDefault(prefix+"_SSL_MODE", "disable")
		v.SetDefault(prefix+"_MAX_OPEN_CONNS", 10)
		v.SetDefault(prefix+"_MAX_IDLE_CONNS", 5)
	}

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SETTINGS_CACHE_ENABLED", true)
	v.SetDefault("SETTINGS_CACHE_TTL", "30s")

	v.SetDefault("DROP_REPAIR_WORKERS", 1)
	v.SetDefault("DROP_REPAIR_MAX_RETRIES", 5)
	v.SetDefault("DROP_REPAIR_RETRY_DELAY", "5s")

	v.SetDefault("MIN_SECTION_YEAR", 2025)
	v.SetDefault("MAX_SECTION_YEAR", 2026)
	v.SetDefault("MIN_PASSWORD_LENGTH", 6)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
