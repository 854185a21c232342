package config

import (
	"os"
	"strconv"
)

// Environment variables read by the evervoid binaries.
const (
	EnvDatabaseURL       = "EVERVOID_DATABASE_URL"
	EnvFirebaseProjectID = "EVERVOID_FIREBASE_PROJECT_ID"
	EnvFirebaseAPIKey    = "EVERVOID_FIREBASE_API_KEY"
	EnvLogLevel          = "EVERVOID_LOG_LEVEL"
	EnvGameData          = "EVERVOID_GAME_DATA"
)

// Getenv returns the value of the environment variable or def when unset.
func Getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// GetenvInt is like Getenv for integers. Unparseable values yield def.
func GetenvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
