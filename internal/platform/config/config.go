package config

import (
	"os"
	"strings"
	"time"
)

// Config captures the external collaborators the revision stores and sinks
// talk to. Everything is optional: an empty value means that collaborator
// is not configured.
type Config struct {
	Addr           string
	PostgresDSN    string
	Redis          RedisConfig
	KafkaBrokers   []string
	RevisionStream string
	RevisionTopic  string
}

// RedisConfig carries connection tuning for the Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so wiring code stays
// lean.
func FromEnv() Config {
	stream := os.Getenv("CHRONICLE_REVISION_STREAM")
	if stream == "" {
		stream = "chronicle.revisions"
	}
	topic := os.Getenv("CHRONICLE_REVISION_TOPIC")
	if topic == "" {
		topic = "chronicle.revisions"
	}

	var brokers []string
	if raw := os.Getenv("CHRONICLE_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	addr := os.Getenv("CHRONICLE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return Config{
		Addr:        addr,
		PostgresDSN: os.Getenv("CHRONICLE_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("CHRONICLE_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:   brokers,
		RevisionStream: stream,
		RevisionTopic:  topic,
	}
}
