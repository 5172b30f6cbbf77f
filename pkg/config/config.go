package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	StorageBucket           string
	PostgresUrl             string
	MongoURI                string
	MongoDatabase           string
	JWTSecret               string
	WebhookSecret           string
	GeminiAPIKey            string
	GeminiModel             string

	ViewDelay          time.Duration
	ViewTrackingOn     bool
	CommentMaxDepth    int
	CommentOrphans     string
	CacheSize          int
	MaxUploadBytes     int64
	SummaryMaxAttempts int
}

// Load reads the process environment, seeded from a .env file when one exists.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		StorageBucket:           getEnv("FIREBASE_STORAGE_BUCKET", ""),
		PostgresUrl:             getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "quill"),
		JWTSecret:               getEnv("JWT_SECRET", "supersecretjwtkey"),
		WebhookSecret:           getEnv("IDENTITY_WEBHOOK_SECRET", ""),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		ViewDelay:          getDuration("VIEW_DWELL", time.Second),
		ViewTrackingOn:     getBool("VIEW_TRACKING", true),
		CommentMaxDepth:    getInt("COMMENT_MAX_DEPTH", 3),
		CommentOrphans:     getEnv("COMMENT_ORPHAN_POLICY", "promote"),
		CacheSize:          getInt("CACHE_SIZE", 512),
		MaxUploadBytes:     int64(getInt("MAX_UPLOAD_BYTES", 5<<20)),
		SummaryMaxAttempts: getInt("SUMMARY_MAX_ATTEMPTS", 3),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s (%q), using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid boolean for %s (%q), using default %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s (%q), using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
