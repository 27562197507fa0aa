package main

import (
	"context"
	"log/slog"
	"os"

	"chronicle/internal/platform/config"
	platformredis "chronicle/internal/platform/redis"
	"chronicle/pkg/revision"
	"chronicle/pkg/revision/publish"
)

// wireSinks builds the async revision publisher from whichever streaming
// collaborators are configured. Returns nil when none are, so callers can
// skip the subscription entirely.
func wireSinks(ctx context.Context, cfg config.Config, registry *revision.Registry, log *slog.Logger) *publish.Publisher {
	var sinks []publish.Sink

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		sinks = append(sinks, publish.NewRedisSink(redisClient.Client, cfg.RevisionStream, registry))
		log.Info("redis revision stream enabled", "stream", cfg.RevisionStream)
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := publish.NewKafkaSink(cfg.KafkaBrokers, cfg.RevisionTopic, registry)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		if err := kafka.EnsureTopic(ctx, 1, 1); err != nil {
			log.Warn("ensure revision topic", "topic", cfg.RevisionTopic, "error", err)
		}
		sinks = append(sinks, kafka)
		log.Info("kafka revision topic enabled", "topic", cfg.RevisionTopic)
	}

	if len(sinks) == 0 {
		return nil
	}
	return publish.NewPublisher(publish.NewMultiSink(sinks...),
		publish.WithAsyncBuffer(256), publish.WithLogger(log))
}
