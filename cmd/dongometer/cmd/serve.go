package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/donghouse/dongometer/internal/core/api"
	"github.com/donghouse/dongometer/internal/core/config"
	"github.com/donghouse/dongometer/internal/core/db"
	"github.com/donghouse/dongometer/internal/core/server"
	"github.com/donghouse/dongometer/internal/history"
	"github.com/donghouse/dongometer/internal/score"
	"github.com/donghouse/dongometer/internal/store"
	"github.com/donghouse/dongometer/internal/types"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chaos-metrics HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "HTTP server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "HTTP server port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	log, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Server.Port = port
	}
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}

	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	var migrationID string
	checkQuery := `SELECT migration_id FROM migrations WHERE migration_id = '001_events.sql'`
	if err := database.Get(&migrationID, database.Rebind(checkQuery)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("migration 001_events not applied - run 'dongometer migrate' first")
		}
		return fmt.Errorf("failed to check migrations (run 'dongometer migrate' first?): %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	eventStore := store.New(queries)
	params := scoreParams(cfg)
	calc := score.NewCalculator(eventStore, params, cfg.Score.CacheTTL)
	hist := history.New(eventStore, params)

	service, err := api.NewService(eventStore, calc, hist, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	httpServer, err := server.NewHTTPServer(cfg, service, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info().
		Str("version", Version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("starting dongometer")

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		log.Info().Msg("shutting down gracefully")
		return httpServer.Shutdown(ctx)
	}
}

// scoreParams converts the string-keyed config weights into score.Params.
// Keys were already validated against the closed set by config.Validate.
func scoreParams(cfg *config.Config) score.Params {
	weights := make(map[types.EventType]float64, len(cfg.Score.Weights))
	for name, w := range cfg.Score.Weights {
		weights[types.EventType(name)] = w
	}
	return score.Params{
		Window:     cfg.Score.Window,
		Weights:    weights,
		Saturation: cfg.Score.Saturation,
	}
}
