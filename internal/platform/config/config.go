package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisAddr     string
	KafkaBrokers  []string
	JWTSigningKey string
	// VerifyBaseURL is the public base URL encoded into certificate QR
	// artifacts, e.g. https://registry.example.gov/verify.
	VerifyBaseURL string
}

// VerifyCacheTTL bounds how long public verification responses may be served
// from cache after a certificate changes state.
var VerifyCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CIVREG_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	verifyBase := os.Getenv("CIVREG_VERIFY_BASE_URL")
	if verifyBase == "" {
		verifyBase = "http://localhost:8080/verify"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		KafkaBrokers:  brokers,
		JWTSigningKey: jwtSigningKey,
		VerifyBaseURL: verifyBase,
	}
}
