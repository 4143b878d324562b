package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plantasur/tablero/internal/printer"
	"github.com/plantasur/tablero/pkg/board"
)

var statusRole string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the board's current state",
	Long: `Show the board's current state, cycle number, and the workflow stepper.

With --role, also lists the actions that sector may take from the current
state (viewing requires no PIN; applying a transition does).

Examples:
  # Show the board
  tablero status

  # Show the board plus the actions available to operations
  tablero status --role operacion`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusRole, "role", "", "Sector to list available actions for (operacion, elaboracion, materias)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	b, err := client.GetBoard(ctx)
	if err != nil {
		if board.IsNotInitialized(err) {
			return notInitializedError(cfg)
		}
		return err
	}

	printer.Printf("Tablero '%s' · ciclo %d\n", cfg.Board, b.Cycle)
	printer.Printf("Estado: %s\n", board.StateLabel(b.Current))
	if b.UpdatedAtMs > 0 {
		printer.Printf("Actualizado: %s\n", formatMs(b.UpdatedAtMs))
	}
	printer.Println()

	// Stepper: done / active / pending
	curIdx := board.StateIndex(b.Current)
	for i, s := range board.States {
		marker := "  "
		switch {
		case i < curIdx:
			marker = "✓ "
		case i == curIdx:
			marker = "► "
		}
		printer.Printf("%s%d. %s\n", marker, i+1, s.Label)
	}

	if statusRole != "" {
		role := board.Role(statusRole)
		if err := role.Validate(); err != nil {
			return err
		}

		printer.Println()
		actions := board.ActionsFor(role, b.Current)
		if len(actions) == 0 {
			printer.Printf("Sin acciones disponibles para %s en este estado.\n", board.RoleLabel(role))
			return nil
		}
		printer.Printf("Acciones disponibles para %s:\n", board.RoleLabel(role))
		for _, t := range actions {
			printer.Printf("  %s\n", fmt.Sprintf("%-30s tablero apply --role %s --to %s", t.Action, role, t.To))
		}
	}
	return nil
}
