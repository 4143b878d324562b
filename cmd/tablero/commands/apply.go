package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plantasur/tablero/internal/engine"
	"github.com/plantasur/tablero/internal/printer"
	"github.com/plantasur/tablero/pkg/board"
)

var (
	applyRole string
	applyPIN  string
	applyTo   string
	applyNote string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a workflow transition",
	Long: `Apply one allowed transition on behalf of a sector.

The transition is validated twice: locally against the transition table
(an unauthorized role/state combination is rejected before any write) and
authoritatively inside the store transaction against the freshest state.
If another actor moved the board first, the command fails with a
"state changed" message and nothing is written.

Examples:
  # Operations requests a CIP
  tablero apply --role operacion --pin 1234 --to cip_solicitado

  # QA approves the swab, with a note
  tablero apply --role materias --pin 5678 --to hisopado_ok --note "placa 3 OK"`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyRole, "role", "", "Sector performing the action (required)")
	applyCmd.Flags().StringVar(&applyPIN, "pin", "", "Sector PIN (required)")
	applyCmd.Flags().StringVar(&applyTo, "to", "", "Target state key (required)")
	applyCmd.Flags().StringVar(&applyNote, "note", "", "Optional free-text note for the audit log")
	applyCmd.MarkFlagRequired("role")
	applyCmd.MarkFlagRequired("pin")
	applyCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	role, err := cfg.Authenticate(applyRole, applyPIN)
	if err != nil {
		return err
	}

	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	eng := newEngine(cfg, client)
	b, entry, err := eng.ApplyTransition(ctx, role, board.StateKey(applyTo), applyNote)
	if err != nil {
		switch {
		case board.IsNotInitialized(err):
			return notInitializedError(cfg)
		case board.IsStateChanged(err):
			return printer.Error(
				"board state changed",
				"Another sector moved the board first; nothing was written.",
				[]string{"Refresh and retry:\n  tablero status"},
			)
		case engine.IsTransitionNotAllowed(err):
			return printer.Error(
				"transition not allowed",
				err.Error(),
				[]string{fmt.Sprintf("See what %s can do right now:\n  tablero status --role %s", applyRole, applyRole)},
			)
		}
		return err
	}

	// Flush any cycle-close follow-up before the process exits.
	eng.Wait()

	printer.Success("%s · estado: %s (ciclo %d)\n", entry.Action, board.StateLabel(b.Current), b.Cycle)
	return nil
}
