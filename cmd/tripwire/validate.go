package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dukex/tripwire/pkg/cmd"
	"github.com/dukex/tripwire/pkg/config"
	"github.com/dukex/tripwire/pkg/log"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/ratelimit"
	"github.com/dukex/tripwire/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

var ErrInvalidWorkflows = errors.New("invalid workflows found")

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate stored workflows, their triggers and their actions",
		Flags:   storageFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("tripwire").With("action", "validate")

			cfg, err := config.LoadEngineOrDefault(command.String("config"))
			if err != nil {
				return err
			}

			p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := p.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			return validateWorkflows(ctx, command.Root().Writer, cfg, p)
		},
	}
}

func validateWorkflows(ctx context.Context, out io.Writer, cfg config.Engine, p persistence.Persistence) error {
	logger := log.Discard()
	reg := cmd.NewRegistry(cfg, p, ratelimit.NewMemoryLimiter(cfg.RateLimitInterval), cmd.Providers{}, nil, logger)
	repository := workflow.NewRepository(p, reg)

	workflows, err := repository.FetchAll(ctx)
	if err != nil {
		return err
	}

	invalid := 0

	for _, wf := range workflows {
		if err := repository.Check(wf); err != nil {
			invalid++

			fmt.Fprintf(out, "✗ %s (%s): %v\n", wf.ID, wf.Name, err)

			continue
		}

		fmt.Fprintf(out, "✓ %s (%s): %d trigger(s), %d action(s)\n", wf.ID, wf.Name, len(wf.Triggers), len(wf.Actions))
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", ErrInvalidWorkflows, invalid, len(workflows))
	}

	fmt.Fprintf(out, "%d workflow(s) valid\n", len(workflows))

	return nil
}
