// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"time"

	"github.com/dukex/tripwire/pkg/actions/ai"
	"github.com/dukex/tripwire/pkg/actions/channel"
	"github.com/dukex/tripwire/pkg/actions/logaction"
	"github.com/dukex/tripwire/pkg/actions/notify"
	"github.com/dukex/tripwire/pkg/actions/smartforward"
	"github.com/dukex/tripwire/pkg/config"
	"github.com/dukex/tripwire/pkg/metrics"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/persistence/redisstore"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/providers/lognotify"
	"github.com/dukex/tripwire/pkg/providers/ollama"
	"github.com/dukex/tripwire/pkg/providers/unavailable"
	"github.com/dukex/tripwire/pkg/ratelimit"
	"github.com/dukex/tripwire/pkg/registry"
	"github.com/dukex/tripwire/pkg/summarize"
	"github.com/dukex/tripwire/pkg/triggers"
	"github.com/dukex/tripwire/pkg/triggers/chat"
	"github.com/dukex/tripwire/pkg/triggers/email"
	"github.com/dukex/tripwire/pkg/triggers/manual"
	"github.com/dukex/tripwire/pkg/triggers/schedule"
)

// Providers are the external collaborators behind triggers and actions. Nil
// fields fall back to sources that report themselves unavailable.
type Providers struct {
	Email     protocol.EmailProvider
	EmailOut  protocol.EmailSender
	Chat      protocol.ChatProvider
	ChatOut   protocol.ChatSender
	Notifier  protocol.Notifier
	Inference protocol.InferenceBackend
}

func (p Providers) withDefaults(logger *slog.Logger) Providers {
	if p.Email == nil {
		p.Email = unavailable.Email{}
	}

	if p.EmailOut == nil {
		p.EmailOut = unavailable.Email{}
	}

	if p.Chat == nil {
		p.Chat = unavailable.Chat{}
	}

	if p.ChatOut == nil {
		p.ChatOut = unavailable.Chat{}
	}

	if p.Notifier == nil {
		p.Notifier = lognotify.New(logger)
	}

	return p
}

// NewInference returns an Ollama client for baseURL, or nil when it is empty.
func NewInference(baseURL, model string, logger *slog.Logger) protocol.InferenceBackend {
	if baseURL == "" {
		return nil
	}

	return ollama.NewClient(baseURL, model, logger)
}

// NewLimiter returns a Redis limiter when redisURL is set and an in-process one otherwise.
func NewLimiter(redisURL string, interval time.Duration) (ratelimit.Limiter, error) {
	if redisURL == "" {
		return ratelimit.NewMemoryLimiter(interval), nil
	}

	client, err := redisstore.NewClient(redisURL)
	if err != nil {
		return nil, err
	}

	return ratelimit.NewRedisLimiter(client, interval), nil
}

// NewRegistry registers every native evaluator and executor.
func NewRegistry(
	cfg config.Engine,
	p persistence.Persistence,
	limiter ratelimit.Limiter,
	providers Providers,
	m *metrics.Registry,
	log *slog.Logger,
) *registry.Registry {
	reg := registry.NewRegistry(log)
	providers = providers.withDefaults(log)

	registerNativeTriggers(reg, cfg, p, limiter, providers, log)
	registerNativeActions(reg, cfg, providers, m, log)

	return reg
}

func registerNativeTriggers(
	reg *registry.Registry,
	cfg config.Engine,
	p persistence.Persistence,
	limiter ratelimit.Limiter,
	providers Providers,
	log *slog.Logger,
) {
	reg.RegisterEvaluator(manual.Evaluator{})
	reg.RegisterEvaluator(schedule.NewEvaluator(p.ExecutionHistoryRepository(), cfg.DefaultScheduleInterval, log))
	reg.RegisterEvaluator(email.NewEvaluator(
		providers.Email,
		p.DedupRepository(),
		limiter,
		log,
		email.WithPageSize(cfg.EmailPageSize),
		email.WithWriteRetries(cfg.DedupWriteRetries, triggers.DefaultRetryDelay),
	))

	if cfg.ChatPollingEnabled {
		reg.RegisterEvaluator(chat.NewEvaluator(providers.Chat, p.DedupRepository(), limiter, cfg.DedupWriteRetries, log))
	} else {
		reg.RegisterEvaluator(chat.Disabled{})
	}
}

func registerNativeActions(reg *registry.Registry, cfg config.Engine, providers Providers, m *metrics.Registry, log *slog.Logger) {
	var (
		strategy  *summarize.AIStrategy
		generator ai.Generator
	)

	if providers.Inference != nil {
		strategy = summarize.NewAIStrategy(providers.Inference, cfg.AIProbeTimeout, log)
		generator = strategy
	}

	chain := summarize.NewDefaultChain(strategy, log).OnResult(m.SummaryProduced)

	deliverer := channel.Deliverer{
		Chat:     providers.ChatOut,
		Email:    providers.EmailOut,
		Notifier: providers.Notifier,
	}

	reg.RegisterExecutor(channel.NewExecutor(deliverer, chain, cfg.SummaryMaxWords))
	reg.RegisterExecutor(smartforward.NewExecutor(deliverer, chain, cfg.SummaryMaxWords))
	reg.RegisterExecutor(ai.NewExecutor(generator, chain, cfg.SummaryMaxWords))
	reg.RegisterExecutor(notify.NewAction(providers.Notifier))
	reg.RegisterExecutor(logaction.NewLogAction())
}
