package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dukex/tripwire/pkg/eventbus"
	"github.com/dukex/tripwire/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:    "check",
		Aliases: []string{"c"},
		Usage:   "Run one trigger check cycle, wait for the pipelines and print the results",
		Flags:   engineFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			return checkOnce(ctx, command)
		},
	}
}

func checkOnce(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("tripwire")

	e, err := newEngine(ctx, command, eventbus.Nop{}, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := e.close(ctx); err != nil {
			logger.Error("Failed to release engine resources", "error", err)
		}
	}()

	results, err := e.manager.CheckTriggers(ctx)
	if err != nil {
		return err
	}

	e.manager.Wait()

	w := tabwriter.NewWriter(command.Root().Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKFLOW\tTRIGGER\tKIND\tFIRED\tEXECUTION\tMESSAGE")

	fired := 0

	for _, result := range results {
		if result.Triggered {
			fired++
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
			result.WorkflowID, result.TriggerID, result.TriggerKind, result.Triggered, result.ExecutionID, result.Message)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(command.Root().Writer, "\n%d trigger(s) checked, %d fired\n", len(results), fired)

	return nil
}
