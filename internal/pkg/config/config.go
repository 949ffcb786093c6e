package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServiceName string
	Env         string

	HTTPPort    int
	OwnerHeader string

	// CheckoutWindow bounds a single checkout attempt; expiry aborts it
	// through the compensation path.
	CheckoutWindow time.Duration

	// PriceFanout caps concurrent catalog reads during checkout
	// validation.
	PriceFanout int
}

func Load() Config {
	return Config{
		ServiceName:    getEnv("SERVICE_NAME", "bookshop"),
		Env:            getEnv("ENV", "dev"),
		HTTPPort:       getEnvInt("HTTP_PORT", 8080),
		OwnerHeader:    getEnv("OWNER_HEADER", "X-Owner-ID"),
		CheckoutWindow: getEnvDuration("CHECKOUT_WINDOW", 5*time.Second),
		PriceFanout:    getEnvInt("PRICE_FANOUT", 8),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
