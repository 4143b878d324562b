package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/plantasur/tablero/internal/printer"
	"github.com/plantasur/tablero/pkg/board"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the board document",
	Long: `Create the board document with the initial state and cycle 1.

Idempotent: if the board already exists it is left untouched.

Examples:
  # Initialize the configured board
  tablero init

  # Initialize a specific board on a specific Redis
  tablero init --board llenadora --redis redis://prod:6379`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	created, err := newEngine(cfg, client).InitBoard(ctx)
	if err != nil {
		return err
	}

	if created {
		printer.Success("Board '%s' created (estado: %s, ciclo 1)\n", cfg.Board, board.StateLabel(board.StateInitial))
	} else {
		printer.Info("Board '%s' already exists; nothing to do\n", cfg.Board)
	}
	return nil
}
