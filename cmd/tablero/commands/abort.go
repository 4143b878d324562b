package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/plantasur/tablero/internal/engine"
	"github.com/plantasur/tablero/internal/printer"
	"github.com/plantasur/tablero/pkg/board"
)

var (
	abortRole   string
	abortPIN    string
	abortReason string
)

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Abort the current cycle and return to the initial state",
	Long: `Abandon the current cycle: the board returns to the initial state and
the cycle counter advances. The abandoned cycle's summary is computed with
the aborted flag set.

Restricted to the operations sector, and only meaningful when the board is
not already at the initial state.

Examples:
  tablero abort --role operacion --pin 1234 --reason "falla de bomba CIP"`,
	RunE: runAbort,
}

func init() {
	abortCmd.Flags().StringVar(&abortRole, "role", "", "Sector performing the abort (must be operacion)")
	abortCmd.Flags().StringVar(&abortPIN, "pin", "", "Sector PIN (required)")
	abortCmd.Flags().StringVar(&abortReason, "reason", "", "Optional free-text reason")
	abortCmd.MarkFlagRequired("role")
	abortCmd.MarkFlagRequired("pin")
	rootCmd.AddCommand(abortCmd)
}

func runAbort(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	role, err := cfg.Authenticate(abortRole, abortPIN)
	if err != nil {
		return err
	}

	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	eng := newEngine(cfg, client)
	b, entry, err := eng.AbortCycle(ctx, role, abortReason)
	if err != nil {
		switch {
		case board.IsNotInitialized(err):
			return notInitializedError(cfg)
		case errors.Is(err, engine.ErrRoleNotAllowed):
			return printer.Error(
				"abort not allowed",
				"Only the operations sector may abort a cycle.",
				nil,
			)
		case errors.Is(err, engine.ErrNothingToAbort), board.IsStateChanged(err):
			return printer.Error(
				"nothing to abort",
				"The board is already at the initial state.",
				[]string{"Check the board:\n  tablero status"},
			)
		}
		return err
	}

	eng.Wait()

	printer.Warning("Ciclo %d abortado; tablero en %s (ciclo %d)\n", entry.Cycle, board.StateLabel(b.Current), b.Cycle)
	return nil
}
