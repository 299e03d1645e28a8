// Package config loads the server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	EloK        int
	BaseRating  int
	RatingFloor int

	// DisconnectForfeit decides what happens to a seat when its holder
	// disconnects mid-game: false reserves the seat for the same user
	// identity, true finishes the game as a win for the opponent.
	DisconnectForfeit bool

	SnapshotTTL  time.Duration
	OutboxSize   int
	WriteTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:   ":8080",
		EloK:         32,
		BaseRating:   1200,
		RatingFloor:  100,
		SnapshotTTL:  24 * time.Hour,
		OutboxSize:   32,
		WriteTimeout: 5 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("ELO_K")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EloK = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("BASE_RATING")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BaseRating = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RATING_FLOOR")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RatingFloor = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DISCONNECT_FORFEIT")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DisconnectForfeit = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SnapshotTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("OUTBOX_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OutboxSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WRITE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.WriteTimeout = d
		}
	}

	return cfg, nil
}
