package commands

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/plantasur/tablero/internal/printer"
	"github.com/plantasur/tablero/pkg/board"
)

var (
	historyCycle int
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the audit log",
	Long: `Show the audit log of committed transitions, newest first.

The store returns entries unordered (the schema is index-free), so entries
are re-sorted by timestamp client-side.

Examples:
  # Last 20 movements across all cycles
  tablero history --limit 20

  # Everything recorded for cycle 3
  tablero history --cycle 3`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyCycle, "cycle", 0, "Limit to one cycle number (0 = all cycles)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 200, "Maximum number of entries to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	var entries []*board.AuditEntry
	if historyCycle > 0 {
		entries, err = client.ListCycleEntries(ctx, historyCycle)
	} else {
		entries, err = client.ListEntries(ctx)
	}
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		printer.Info("Sin movimientos aún.\n")
		return nil
	}

	// Newest first for display
	sort.Slice(entries, func(i, j int) bool { return entries[i].TsMs > entries[j].TsMs })
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[:historyLimit]
	}

	printer.Printf("%-18s %-6s %-16s %-30s %s\n", "FECHA", "CICLO", "SECTOR", "ACCIÓN", "ESTADO")
	for _, e := range entries {
		printer.Printf("%-18s %-6d %-16s %-30s %s\n",
			formatMs(e.TsMs), e.Cycle, board.RoleLabel(e.Role), e.Action, board.StateLabel(e.To))
		if e.Note != "" {
			printer.Printf("%-18s Nota: %s\n", "", e.Note)
		}
	}
	printer.Printf("\n%d movimientos\n", len(entries))
	return nil
}
