package main

import cli "github.com/urfave/cli/v3"

const (
	defaultPort        = 9091
	defaultOllamaModel = "llama3.2"
)

func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Persistence URL (memory://, file://<dir>, postgres://...)",
			Value:   "file://./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the engine YAML configuration",
			Value:   "",
			Sources: cli.EnvVars("TRIPWIRE_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

func engineFlags() []cli.Flag {
	return append(storageFlags(),
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL shared by the rate limiter and dedup store",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "ollama-url",
			Usage:   "Base URL of a local Ollama server used for AI actions",
			Sources: cli.EnvVars("OLLAMA_URL"),
		},
		&cli.StringFlag{
			Name:    "ollama-model",
			Usage:   "Model name passed to Ollama",
			Value:   defaultOllamaModel,
			Sources: cli.EnvVars("OLLAMA_MODEL"),
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "Overrides the configured trigger poll interval",
			Sources: cli.EnvVars("POLL_INTERVAL"),
		},
		&cli.BoolFlag{
			Name:    "chat-polling",
			Usage:   "Overrides whether chat triggers poll a chat source",
			Sources: cli.EnvVars("CHAT_POLLING_ENABLED"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export spans over OTLP/HTTP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	)
}

func runFlags() []cli.Flag {
	return append(engineFlags(),
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "geofences",
			Usage:   "Register geofence triggers with the in-process region monitor",
			Value:   true,
			Sources: cli.EnvVars("GEOFENCES_ENABLED"),
		},
	)
}
