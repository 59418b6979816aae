package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	PostgresURI         string
	RedisURI            string
	MongoURI            string
	JWTSecret           string
	Port                string
	FrontendURL         string
	AllowedOrigins      []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	Environment         string   // ENV: production, development, etc.
	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	// Identity & session settings. Defaults are documented behavior, not
	// hidden constants: OTPs live 10 minutes and allow 5 attempts, access
	// tokens live 15 minutes, refresh tokens 30 days.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	OTPTTL          time.Duration
	OTPMaxAttempts  int
	OTPResendWait   time.Duration

	// SMTP settings for email OTP delivery
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	AppName      string
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	// CORS: allow multiple origins so the web and mobile dev frontends both work
	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	return &Config{
		PostgresURI:         getEnv("POSTGRES_URI", "postgres://localhost:5432/mtaa?sslmode=disable"),
		RedisURI:            getEnv("REDIS_URI", "redis://localhost:6379/0"),
		MongoURI:            getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/mtaa")),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),
		AllowedOrigins:      allowedOrigins,
		Environment:         env,
		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),

		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL_MINUTES", 15) * time.Minute,
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL_DAYS", 30) * 24 * time.Hour,
		OTPTTL:          getEnvDuration("OTP_TTL_MINUTES", 10) * time.Minute,
		OTPMaxAttempts:  getEnvInt("OTP_MAX_ATTEMPTS", 5),
		OTPResendWait:   getEnvDuration("OTP_RESEND_WAIT_SECONDS", 60) * time.Second,

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		AppName:      getEnv("APP_NAME", "Mtaa"),
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue))
}
