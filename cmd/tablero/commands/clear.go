package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/plantasur/tablero/internal/engine"
	"github.com/plantasur/tablero/internal/printer"
)

var (
	clearRole  string
	clearPIN   string
	clearCycle int
	clearAll   bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete audit history (maintenance)",
	Long: `Delete audit entries and cycle summaries. Restricted to the operations
sector.

With --cycle, one cycle's entries and summary are removed. With --all,
everything is removed and the board resets to the initial state with
cycle 1. Deletion proceeds in bounded batches and is best-effort: an
interruption may leave partial results.

Examples:
  tablero clear --role operacion --pin 1234 --cycle 3
  tablero clear --role operacion --pin 1234 --all`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().StringVar(&clearRole, "role", "", "Sector performing the clear (must be operacion)")
	clearCmd.Flags().StringVar(&clearPIN, "pin", "", "Sector PIN (required)")
	clearCmd.Flags().IntVar(&clearCycle, "cycle", 0, "Cycle number to clear")
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "Clear all history and reset the board")
	clearCmd.MarkFlagRequired("role")
	clearCmd.MarkFlagRequired("pin")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if clearAll == (clearCycle > 0) {
		return printer.Error(
			"invalid arguments",
			"Specify exactly one of --cycle N or --all.",
			nil,
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	role, err := cfg.Authenticate(clearRole, clearPIN)
	if err != nil {
		return err
	}

	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	eng := newEngine(cfg, client)

	var deleted int
	if clearAll {
		deleted, err = eng.ClearAllHistory(ctx, role)
	} else {
		deleted, err = eng.ClearCycleHistory(ctx, role, clearCycle)
	}
	if err != nil {
		if errors.Is(err, engine.ErrRoleNotAllowed) {
			return printer.Error(
				"clear not allowed",
				"Only the operations sector may clear history.",
				nil,
			)
		}
		return err
	}

	if clearAll {
		printer.Success("Historial completo borrado (%d claves); tablero reiniciado a ciclo 1\n", deleted)
	} else {
		printer.Success("Ciclo %d borrado (%d movimientos)\n", clearCycle, deleted)
	}
	return nil
}
