package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Provider settings live in their own structs
// (PaymobConfig, ZegoConfig, NotifyConfig) loaded alongside.
type Config struct {
	Env            string // application environment (e.g. "development", "production")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	AutoMigrate    bool   // run embedded migrations on startup
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	RollbarToken   string // rollbar access token (optional, reporting disabled when empty)

	Points PointsConfig
	Paymob PaymobConfig
	Zego   ZegoConfig
	Notify NotifyConfig
}

// PointsConfig holds the reward amounts applied on lesson events.
type PointsConfig struct {
	Complete int // awarded to the student when a lesson is completed
	Cancel   int // deducted from the student when a lesson is canceled
	Review   int // awarded to the student for reviewing a lesson
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		RollbarToken:   os.Getenv("ROLLBAR_TOKEN"),
		Points:         LoadPointsConfig(),
		Paymob:         LoadPaymobConfig(),
		Zego:           LoadZegoConfig(),
		Notify:         LoadNotifyConfig(),
	}
}

// LoadPointsConfig reads reward amounts, defaulting to 20/15/10.
func LoadPointsConfig() PointsConfig {
	return PointsConfig{
		Complete: envInt("POINTS_COMPLETE", 20),
		Cancel:   envInt("POINTS_CANCEL", 15),
		Review:   envInt("POINTS_REVIEW", 10),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
