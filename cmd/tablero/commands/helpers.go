package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plantasur/tablero/internal/config"
	"github.com/plantasur/tablero/internal/engine"
	"github.com/plantasur/tablero/internal/printer"
	"github.com/plantasur/tablero/internal/report"
	"github.com/plantasur/tablero/pkg/board"
)

// loadConfig resolves the effective configuration: the --config file when
// given, ./tablero.yml when present, built-in defaults otherwise. The
// --redis and --board flags override whatever was loaded.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	switch {
	case configPath != "":
		cfg, err = config.Load(configPath)
	default:
		if _, statErr := os.Stat(config.DefaultPath); statErr == nil {
			cfg, err = config.Load(config.DefaultPath)
		} else {
			cfg = config.Default()
		}
	}
	if err != nil {
		return nil, err
	}

	if redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if boardID != "" {
		cfg.Board = boardID
	}
	return cfg, nil
}

// connect builds a board client from the configuration and verifies Redis
// connectivity before handing it back.
func connect(ctx context.Context, cfg *config.Config) (*board.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client, err := board.NewClient(redisOpts, cfg.Board)
	if err != nil {
		return nil, fmt.Errorf("failed to create board client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.Error(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s: %v", cfg.Redis.URL, err),
			[]string{"Check that Redis is running and the redis.url in tablero.yml is correct"},
		)
	}
	return client, nil
}

// newEngine wires a workflow engine with the configured reporter (if any).
func newEngine(cfg *config.Config, client *board.Client) *engine.Engine {
	var reporter engine.Reporter
	if cfg.Report != nil {
		reporter = report.NewEmitter(cfg.Board, cfg.Report.Endpoint, time.Duration(cfg.Report.TimeoutSeconds)*time.Second)
	}
	return engine.New(client, reporter, actorUID())
}

// actorUID identifies the CLI session on audit entries.
func actorUID() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli:" + u
	}
	return "anon"
}

// notInitializedError renders the standard call-to-action when the board
// document is absent.
func notInitializedError(cfg *config.Config) error {
	return printer.Error(
		"board is not initialized",
		fmt.Sprintf("No board document exists yet for '%s'.", cfg.Board),
		[]string{"Create it first:\n  tablero init"},
	)
}

// formatMs renders a millisecond timestamp for operator output.
func formatMs(ms int64) string {
	return time.UnixMilli(ms).Local().Format("02/01/06 15:04:05")
}
