package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radiusdt/adsight/internal/config"
	"github.com/radiusdt/adsight/internal/httpserver"
	"github.com/radiusdt/adsight/internal/insight"
	"github.com/radiusdt/adsight/internal/middleware"
	"github.com/radiusdt/adsight/internal/models"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "adsight",
		Short:         "Ask plain-English questions about video ad performance.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var dataFile string
	rootCmd.PersistentFlags().StringVar(&dataFile, "data", "", "JSON records file; selects the in-memory source")

	rootCmd.AddCommand(newServeCmd(&dataFile), newAskCmd(&dataFile))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(dataFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataFile != "" {
		cfg.Source.Backend = config.BackendMemory
		cfg.Source.DataFile = dataFile
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	logger, err := middleware.NewLogger(cfg.Log, cfg.IsDevelopment())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func newServeCmd(dataFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*dataFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("starting adsight",
				zap.String("env", cfg.Server.Env),
				zap.String("addr", cfg.Server.Addr),
				zap.String("source", cfg.Source.Backend),
				zap.String("period", cfg.Source.Period),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			handler := httpserver.NewServer(&httpserver.Dependencies{
				Pipeline: a.pipeline,
				Checks:   a.checks,
				DB:       a.db,
				Config:   cfg,
				Logger:   logger,
				Metrics:  a.metrics,
			})

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      handler,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			logger.Info("shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server forced to shutdown", zap.Error(err))
			}

			logger.Info("server stopped")
			return nil
		},
	}
}

func newAskCmd(dataFile *string) *cobra.Command {
	var (
		historyFile string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*dataFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			history, err := readHistory(historyFile)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout)
			defer cancel()

			res := a.pipeline.Ask(ctx, insight.AskRequest{
				Question: strings.Join(args, " "),
				History:  history,
			})
			return printResult(cmd.OutOrStdout(), res, asJSON)
		},
	}

	cmd.Flags().StringVar(&historyFile, "history", "", "JSON file with earlier turns ([{role, content, goal}])")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func readHistory(path string) ([]models.HistoryMessage, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var history []models.HistoryMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", path, err)
	}
	return history, nil
}

func printResult(w io.Writer, res *models.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(w, res.Answer)
	if res.SQL != nil {
		fmt.Fprintf(w, "\nSQL: %s\n", *res.SQL)
	}
	fmt.Fprintf(w, "Goal: %s\n", res.Goal)
	if !res.Success {
		return fmt.Errorf("question failed (request %s)", res.RequestID)
	}
	return nil
}
