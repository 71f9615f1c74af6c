package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/forecast-digest/internal/api/http"
	"github.com/i474232898/forecast-digest/internal/config"
	"github.com/i474232898/forecast-digest/internal/forecast"
	"github.com/i474232898/forecast-digest/internal/scheduler"
)

const runTimeout = 5 * time.Minute

// newRootCmd creates the root command.
func newRootCmd() *cobra.Command {
	var (
		replay  bool
		dataDir string
	)

	rootCmd := &cobra.Command{
		Use:          "forecast-digest",
		Short:        "Summarize new forecast discussions and post them to Telegram",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&replay, "replay", false, "Replay cached documents from the data directory instead of fetching")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for markers and the replay cache (overrides DATA_DIR)")

	// loadConfig applies flag overrides on top of the environment.
	loadConfig := func(cmd *cobra.Command) (*config.AppConfig, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed("replay") {
			cfg.ReplayMode = replay
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		return cfg, nil
	}

	rootCmd.AddCommand(newRunCmd(loadConfig))
	rootCmd.AddCommand(newServeCmd(loadConfig))
	rootCmd.AddCommand(newMarkerCmd(loadConfig))

	return rootCmd
}

type configLoader func(cmd *cobra.Command) (*config.AppConfig, error)

// newRunCmd runs the pipeline once. A failed run exits non-zero so an external
// scheduler can see it.
func newRunCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(ctx, runTimeout)
			defer cancel()

			out := a.pipeline.Run(ctx)
			switch out.State {
			case forecast.StateDoneWithError:
				return fmt.Errorf("run %s failed at %s: %w", out.RunID, out.FailedAt, out.Err)
			case forecast.StateDoneNoChange:
				fmt.Fprintf(cmd.OutOrStdout(), "No new %s since %s\n", out.Primary.Label, out.StoredMarker)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %s issued %s (message %d)\n", out.Primary.Label, out.Primary.Marker, out.Receipt.MessageID)
			}
			return nil
		},
	}
}

// newServeCmd runs the scheduler and the HTTP API until interrupted.
func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule and expose the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			// Wait for termination signal
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			// Scheduler that periodically runs the pipeline.
			sched := scheduler.New(a.pipeline, cfg.FetchInterval, cfg.ScheduleCron, a.logger)
			if err := sched.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer sched.Stop()

			server := newFiberApp()
			httpapi.RegisterRoutes(server, a.pipeline, a.history, runTimeout)

			listenErr := make(chan error, 1)
			go func() {
				listenErr <- server.Listen(":" + cfg.Port)
			}()

			select {
			case <-ctx.Done():
			case err := <-listenErr:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.ShutdownWithContext(shutdownCtx); err != nil {
				a.logger.Error("error during shutdown", "error", err)
			}
			return nil
		},
	}
}

func newFiberApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "forecast-digest",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Manual runs call the summarizer synchronously.
		WriteTimeout: runTimeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "forecast-digest",
		})
	})
	return app
}

// newMarkerCmd inspects or clears the stored marker.
func newMarkerCmd(load configLoader) *cobra.Command {
	var source string

	markerCmd := &cobra.Command{
		Use:   "marker",
		Short: "Inspect or reset the stored issuance marker",
	}
	markerCmd.PersistentFlags().StringVar(&source, "source", string(forecast.SourceAFD), "Source id whose marker to use")

	open := func(cmd *cobra.Command) (*app, error) {
		cfg, err := load(cmd)
		if err != nil {
			return nil, err
		}
		a := &app{cfg: cfg, logger: newLogger(cfg)}
		if err := openMarkers(cmd.Context(), a); err != nil {
			return nil, err
		}
		return a, nil
	}

	markerCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			marker, err := forecast.NewTracker(a.markers).Stored(cmd.Context(), forecast.SourceID(source))
			if err != nil {
				return err
			}
			if marker == "" {
				marker = "(none)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", source, marker)
			return nil
		},
	})

	markerCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the stored marker so the next run posts again",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := forecast.NewTracker(a.markers).Reset(cmd.Context(), forecast.SourceID(source)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s marker cleared\n", source)
			return nil
		},
	})

	return markerCmd
}
