package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	AppEnv      string
	MongoURI    string
	MongoDB     string
	JWTSecret   string
	JWTExpire   int
	FrontendURL string
	LogLevel    string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	FirebaseServiceAccountPath string
	PushEnabled                bool

	MatchTTL             time.Duration
	MatchExtension       time.Duration
	ExtensionCostPoints  int
	FreeDailyMatchLimit  int
	SecretChatMaxMinutes int
	ExpirySweepInterval  time.Duration

	ReportBanThreshold int
	ReportBanWindow    time.Duration
	ReportBanDuration  time.Duration
	ReportRateLimit    int
	ReportRateWindow   time.Duration
	ModerationToken    string

	WSWriteTimeout    time.Duration
	WSPongTimeout     time.Duration
	WSMaxMessageBytes int64
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "blindmatch"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		JWTExpire:   getEnvInt("JWT_EXPIRE_HOURS", 24),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CloudinaryCloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:       getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "blindmatch"),

		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		PushEnabled:                getEnvBool("PUSH_ENABLED", false),

		MatchTTL:             getEnvDuration("MATCH_TTL", 48*time.Hour),
		MatchExtension:       getEnvDuration("MATCH_EXTENSION", 24*time.Hour),
		ExtensionCostPoints:  getEnvInt("EXTENSION_COST_POINTS", 50),
		FreeDailyMatchLimit:  getEnvInt("FREE_DAILY_MATCH_LIMIT", 3),
		SecretChatMaxMinutes: getEnvInt("SECRET_CHAT_MAX_MINUTES", 60),
		ExpirySweepInterval:  getEnvDuration("EXPIRY_SWEEP_INTERVAL", time.Minute),

		ReportBanThreshold: getEnvInt("REPORT_BAN_THRESHOLD", 3),
		ReportBanWindow:    getEnvDuration("REPORT_BAN_WINDOW", 7*24*time.Hour),
		ReportBanDuration:  getEnvDuration("REPORT_BAN_DURATION", 72*time.Hour),
		ReportRateLimit:    getEnvInt("REPORT_RATE_LIMIT", 10),
		ReportRateWindow:   getEnvDuration("REPORT_RATE_WINDOW", time.Hour),
		ModerationToken:    getEnv("MODERATION_TOKEN", ""),

		WSWriteTimeout:    getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		WSPongTimeout:     getEnvDuration("WS_PONG_TIMEOUT", 60*time.Second),
		WSMaxMessageBytes: int64(getEnvInt("WS_MAX_MESSAGE_BYTES", 8192)),
	}
}

// IsProduction reports whether dev-only routes must stay disabled
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
