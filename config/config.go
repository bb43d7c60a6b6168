package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Deployment modes.
const (
	EnvDesktop = "desktop"
	EnvWeb     = "web"
	EnvDev     = "dev"
)

// Config stores the application configuration.
// It is loaded once at startup and shared read-only.
type Config struct {
	Env  string // desktop, web or dev
	Port int

	// 存储目录
	DataDir         string
	TempDir         string // per-request transcode artifacts
	SongStoragePath string // local song files, device_<id>/song_<id>.mp3
	LogDir          string
	LogLevel        string

	// 转码
	FFmpegPath       string
	YtdlpPath        string
	AudioBitrate     string
	TranscodeTimeout time.Duration

	// 搜索
	YouTubeAPIKey        string
	YouTubeBulkAPIKey    string
	YouTubeAPIURL        string
	SearchRetries        int
	SearchMaxResults     int
	SearchAttemptTimeout time.Duration
	MaxQueryLength       int
	BulkMaxQueries       int
	BulkConcurrency      int
	DurationConcurrency  int
	BulkScraperFallback  bool // when false, bulk searches never fall back to the scraper

	// HTTP
	StreamRatePerMinute int
	LANOwnerPort        int

	// 数据库配置
	DBDriver   string // sqlite or mysql
	DBPath     string // sqlite file
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	AccessCode    string // static access code, used when redis is not configured
	AccessCodeTTL time.Duration

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
}

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

// defaultDataDir mirrors where a desktop install keeps its files.
func defaultDataDir(env string) string {
	if env == EnvDesktop {
		if dir, err := os.UserConfigDir(); err == nil {
			return filepath.Join(dir, "SeekBeat")
		}
	}
	return "."
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	env := strings.ToLower(getEnv("SEEKBEAT_ENV", EnvDesktop))
	dataDir := getEnv("SEEKBEAT_DATA_DIR", defaultDataDir(env))

	dbDriver := "sqlite"
	if env == EnvWeb {
		dbDriver = "mysql"
	}

	apiKey := getEnv("YOUTUBE_API_KEY", "")

	cfg := &Config{
		Env:  env,
		Port: getEnvInt("PORT", 8010),

		DataDir:         dataDir,
		TempDir:         getEnv("TEMP_DIR", filepath.Join(dataDir, "tmp")),
		SongStoragePath: getEnv("SONG_STORAGE_PATH", filepath.Join(dataDir, "songs")),
		LogDir:          getEnv("LOG_DIR", filepath.Join(dataDir, "logs")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		YtdlpPath:        getEnv("YTDLP_PATH", "yt-dlp"),
		AudioBitrate:     getEnv("AUDIO_BITRATE", "192k"),
		TranscodeTimeout: getEnvDuration("TRANSCODE_TIMEOUT", 30*time.Minute),

		YouTubeAPIKey:        apiKey,
		YouTubeBulkAPIKey:    getEnv("YOUTUBE_BULK_API_KEY", apiKey),
		YouTubeAPIURL:        getEnv("YOUTUBE_API_URL", "https://www.googleapis.com/youtube/v3"),
		SearchRetries:        getEnvInt("SEARCH_RETRIES", 5),
		SearchMaxResults:     getEnvInt("SEARCH_MAX_RESULTS", 10),
		SearchAttemptTimeout: getEnvDuration("SEARCH_ATTEMPT_TIMEOUT", 20*time.Second),
		MaxQueryLength:       getEnvInt("MAX_QUERY_LENGTH", 500),
		BulkMaxQueries:       getEnvInt("BULK_MAX_QUERIES", 5),
		BulkConcurrency:      getEnvInt("BULK_CONCURRENCY", 2),
		DurationConcurrency:  getEnvInt("DURATION_CONCURRENCY", 8),

		StreamRatePerMinute: getEnvInt("STREAM_RATE_PER_MINUTE", 30),
		LANOwnerPort:        getEnvInt("LAN_OWNER_PORT", 8010),

		DBDriver:   getEnv("DB_DRIVER", dbDriver),
		DBPath:     getEnv("DB_PATH", filepath.Join(dataDir, "seekbeat.db")),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "seekbeat"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		AccessCode:    os.Getenv("ACCESS_CODE"),
		AccessCodeTTL: getEnvDuration("ACCESS_CODE_TTL", 12*time.Hour),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "seekbeat"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", ""),
	}
	// 托管部署默认不回退到 yt-dlp
	cfg.BulkScraperFallback = getEnvBool("BULK_SCRAPER_FALLBACK", cfg.IsDesktop())
	return cfg
}

// IsDesktop reports whether the process runs as a single-node desktop host.
func (c *Config) IsDesktop() bool {
	return c.Env == EnvDesktop || c.Env == EnvDev
}

// RedisEnabled reports whether a redis host was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// MinioEnabled reports whether song files live in a MinIO bucket.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != ""
}
