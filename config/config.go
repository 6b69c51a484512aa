package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// AuthSecret signs session tokens. Read-only after startup.
	AuthSecret string
	TokenTTL   time.Duration

	// BlobBackend selects where song assets live: "minio" or "local".
	BlobBackend    string
	BlobDir        string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Redis配置, empty host disables the genre cache
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	GenreCacheTTL time.Duration

	FFmpegPath    string
	ArtworkMaxDim int
	// ProbeAudio rejects uploads whose codec does not match the declared type.
	ProbeAudio bool

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool

	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

const minSecretLength = 32

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         getEnv("DB_USER", "root"),
		DBPassword:     os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:         getEnv("DB_NAME", "titilda_music"),
		AuthSecret:     os.Getenv("AUTH_SECRET"),
		TokenTTL:       getEnvDuration("TOKEN_TTL", 30*24*time.Hour),
		BlobBackend:    getEnv("BLOB_BACKEND", "local"),
		BlobDir:        getEnv("BLOB_DIR", "uploads"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "titilda-music"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		RedisHost:      os.Getenv("REDIS_HOST"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		GenreCacheTTL:  getEnvDuration("GENRE_CACHE_TTL", 10*time.Minute),
		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		ArtworkMaxDim:  getEnvInt("ARTWORK_MAX_DIM", 512),
		ProbeAudio:     getEnvBool("PROBE_AUDIO", false),
		SecureCookies:  getEnvBool("SECURE_COOKIES", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		LogMaxSize:     getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups:  getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:      getEnvInt("LOG_MAX_AGE", 28),
		LogCompress:    getEnvBool("LOG_COMPRESS", true),
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if len(c.AuthSecret) < minSecretLength {
		return errors.New("AUTH_SECRET must be set to at least 32 characters")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	switch c.BlobBackend {
	case "local", "minio":
	default:
		return errors.New("BLOB_BACKEND must be either \"local\" or \"minio\"")
	}
	if c.ArtworkMaxDim <= 0 {
		return errors.New("ARTWORK_MAX_DIM must be positive")
	}
	return nil
}
