package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/tripwire/pkg/cmd"
	"github.com/dukex/tripwire/pkg/config"
	"github.com/dukex/tripwire/pkg/eventbus"
	"github.com/dukex/tripwire/pkg/geofence"
	"github.com/dukex/tripwire/pkg/metrics"
	"github.com/dukex/tripwire/pkg/otelhelper"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/providers/region"
	"github.com/dukex/tripwire/pkg/registry"
	"github.com/dukex/tripwire/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	cli "github.com/urfave/cli/v3"
)

// engine is everything one process needs to evaluate triggers and run pipelines.
type engine struct {
	config      config.Engine
	persistence persistence.Persistence
	registry    *registry.Registry
	repository  *workflow.Repository
	manager     *workflow.Manager
	geofences   *geofence.Adapter
	metrics     *metrics.Registry
	shutdown    []func(context.Context) error
}

func newEngine(ctx context.Context, command *cli.Command, bus eventbus.EventPublisher, logger *slog.Logger) (*engine, error) {
	cfg, err := loadConfig(command)
	if err != nil {
		return nil, err
	}

	p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, err
	}

	e := &engine{config: cfg, shutdown: []func(context.Context) error{p.Close}}

	redisURL := command.String("redis-url")

	p, err = cmd.WithRedisDedup(p, redisURL, cfg.EffectiveDedupRetention(), logger)
	if err != nil {
		return nil, errors.Join(err, e.close(ctx))
	}

	e.persistence = p

	limiter, err := cmd.NewLimiter(redisURL, cfg.RateLimitInterval)
	if err != nil {
		return nil, errors.Join(err, e.close(ctx))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	e.metrics = metrics.NewRegistry(reg)

	tracer := otelhelper.NoopTracer()

	if command.Bool("tracing") {
		exporting, shutdown, err := otelhelper.NewTracer(ctx, "tripwire")
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to start tracing: %w", err), e.close(ctx))
		}

		tracer = exporting
		e.shutdown = append(e.shutdown, shutdown)
	}

	providers := cmd.Providers{
		Inference: cmd.NewInference(command.String("ollama-url"), command.String("ollama-model"), logger),
	}

	e.registry = cmd.NewRegistry(cfg, p, limiter, providers, e.metrics, logger)
	e.repository = workflow.NewRepository(p, e.registry)

	executor := workflow.NewExecutor(e.registry, logger,
		workflow.WithExecutorTracer(tracer),
		workflow.WithExecutorMetrics(e.metrics),
	)

	e.manager = workflow.NewManager(p, e.registry, executor, cfg, logger,
		workflow.WithEventBus(bus),
		workflow.WithMetrics(e.metrics),
		workflow.WithTracer(tracer),
	)

	e.geofences = geofence.NewAdapter(p, region.NewMonitor(logger), region.Ready(), e.manager, logger,
		geofence.WithEventBus(bus),
		geofence.WithMetrics(e.metrics),
	)

	return e, nil
}

// close releases resources in reverse order of acquisition.
func (e *engine) close(ctx context.Context) error {
	var errs []error

	for i := len(e.shutdown) - 1; i >= 0; i-- {
		if err := e.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// loadConfig reads the engine file and applies the flags that were set explicitly.
func loadConfig(command *cli.Command) (config.Engine, error) {
	cfg, err := config.LoadEngineOrDefault(command.String("config"))
	if err != nil {
		return config.Engine{}, err
	}

	if command.IsSet("poll-interval") {
		cfg.PollInterval = command.Duration("poll-interval")
	}

	if command.IsSet("chat-polling") {
		cfg.ChatPollingEnabled = command.Bool("chat-polling")
	}

	if err := cfg.Validate(); err != nil {
		return config.Engine{}, fmt.Errorf("invalid engine config: %w", err)
	}

	return cfg, nil
}
