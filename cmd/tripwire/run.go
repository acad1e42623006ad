package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukex/tripwire/pkg/cmd"
	"github.com/dukex/tripwire/pkg/geofence"
	"github.com/dukex/tripwire/pkg/log"
	"github.com/gofiber/fiber/v3"
	cli "github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Poll triggers, serve the API and run pipelines until interrupted",
		Flags:   runFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			return runEngine(ctx, command)
		},
	}
}

func runEngine(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("tripwire")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	if err := registerEventLogging(bus, logger); err != nil {
		return err
	}

	if err := bus.Subscribe(ctx); err != nil {
		return err
	}

	e, err := newEngine(ctx, command, bus, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := e.close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Failed to release engine resources", "error", err)
		}
	}()

	adapter := e.geofences
	if command.Bool("geofences") {
		if _, err := adapter.RegisterAllActiveGeofences(ctx); err != nil && !errors.Is(err, geofence.ErrPreflightFailed) {
			return err
		}
	} else {
		adapter = nil
	}

	app := NewAPI(e, adapter)

	listenErr := make(chan error, 1)

	go func() {
		listenErr <- app.Listen(":"+strconv.Itoa(int(command.Int("port"))), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	logger.Info("Tripwire started", "port", command.Int("port"), "poll_interval", e.config.PollInterval)

	managerErr := make(chan error, 1)

	go func() {
		managerErr <- e.manager.Start(ctx)
	}()

	select {
	case err = <-listenErr:
		stop()
		<-managerErr
	case err = <-managerErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if shutdownErr := app.ShutdownWithContext(shutdownCtx); shutdownErr != nil {
		logger.Error("Failed to stop API", "error", shutdownErr)
	}

	logger.Info("Tripwire stopped")

	return err
}
