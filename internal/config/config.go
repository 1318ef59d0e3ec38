package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Argon2     Argon2Config
	CORS       CORSConfig
	Monitoring MonitoringConfig
	Log        LogConfig
	Engine     EngineConfig
}

type ServerConfig struct {
	Port            string
	Env             string
	SeedAdminSecret string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	DSN      string
}

// RedisConfig is optional. An empty Host disables the distribution cache.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type CORSConfig struct {
	Origins []string
}

type MonitoringConfig struct {
	PrometheusEnabled bool
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig tunes the grading service.
type EngineConfig struct {
	BatchConcurrency    int
	DefaultAcademicYear string
	CacheTTL            time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	driver := strings.ToLower(v.GetString("DB_DRIVER"))
	if driver != DriverPostgres && driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	dbPort := v.GetString("DB_PORT")
	if dbPort == "" {
		dbPort = defaultPort(driver)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("PORT"),
			Env:             v.GetString("ENV"),
			SeedAdminSecret: v.GetString("SEED_ADMIN_SECRET"),
		},
		Database: DatabaseConfig{
			Driver:   driver,
			Host:     v.GetString("DB_HOST"),
			Port:     dbPort,
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSL_MODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			AccessExpiry:  parseDuration(v.GetString("JWT_ACCESS_EXPIRY"), 15*time.Minute),
			RefreshExpiry: parseDuration(v.GetString("JWT_REFRESH_EXPIRY"), 168*time.Hour),
		},
		Argon2: Argon2Config{
			Memory:      uint32(v.GetInt("ARGON2_MEMORY")),
			Iterations:  uint32(v.GetInt("ARGON2_ITERATIONS")),
			Parallelism: uint8(v.GetInt("ARGON2_PARALLELISM")),
			SaltLength:  uint32(v.GetInt("ARGON2_SALT_LENGTH")),
			KeyLength:   uint32(v.GetInt("ARGON2_KEY_LENGTH")),
		},
		CORS: CORSConfig{
			Origins: splitAndTrim(v.GetString("CORS_ORIGINS")),
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled: v.GetBool("PROMETHEUS_ENABLED"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Engine: EngineConfig{
			BatchConcurrency:    v.GetInt("GRADING_BATCH_CONCURRENCY"),
			DefaultAcademicYear: v.GetString("GRADING_DEFAULT_ACADEMIC_YEAR"),
			CacheTTL:            parseDuration(v.GetString("DISTRIBUTION_CACHE_TTL"), 10*time.Minute),
		},
	}

	cfg.Database.DSN = v.GetString("DATABASE_URL")
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = buildDSN(cfg.Database)
	}

	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "grade_engine")
	v.SetDefault("DB_SSL_MODE", "disable")

	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ARGON2_MEMORY", 65536)
	v.SetDefault("ARGON2_ITERATIONS", 3)
	v.SetDefault("ARGON2_PARALLELISM", 2)
	v.SetDefault("ARGON2_SALT_LENGTH", 16)
	v.SetDefault("ARGON2_KEY_LENGTH", 32)

	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("PROMETHEUS_ENABLED", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRADING_BATCH_CONCURRENCY", 0)
	v.SetDefault("GRADING_DEFAULT_ACADEMIC_YEAR", "")
}

func buildDSN(db DatabaseConfig) string {
	if db.Driver == DriverMySQL {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			db.User, db.Password, db.Host, db.Port, db.Name)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.User, db.Password, db.Name, db.SSLMode)
}

func defaultPort(driver string) string {
	if driver == DriverMySQL {
		return "3306"
	}
	return "5432"
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
