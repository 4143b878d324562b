package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/plantasur/tablero/internal/printer"
	"github.com/plantasur/tablero/pkg/board"
)

var summaryCycle int

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show a cycle's duration summary",
	Long: `Show the per-pair duration totals and timeline segments of a closed or
aborted cycle.

Examples:
  # Latest closed cycle
  tablero summary

  # A specific cycle
  tablero summary --cycle 3`,
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().IntVar(&summaryCycle, "cycle", 0, "Cycle number (0 = latest)")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
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

	var s *board.CycleSummary
	if summaryCycle > 0 {
		s, err = client.GetCycleSummary(ctx, summaryCycle)
	} else {
		s, err = client.LatestCycleSummary(ctx)
	}
	if err != nil {
		if board.IsNotFound(err) {
			printer.Info("Sin resúmenes de ciclo todavía.\n")
			return nil
		}
		return err
	}

	header := "cerrado"
	if s.Aborted {
		header = "ABORTADO"
	}
	printer.Printf("Ciclo %d (%s) · %s → %s · total %.2f min\n",
		s.Cycle, header, formatMs(s.StartedAtMs), formatMs(s.FinishedAtMs), s.TotalMin)
	if s.Aborted && s.AbortReason != "" {
		printer.Printf("Motivo: %s\n", s.AbortReason)
	}
	printer.Println()

	printer.Printf("%-26s %10s\n", "TRAMO", "MIN")
	for _, p := range s.Pairs {
		printer.Printf("%-26s %10.2f\n", p.Label, p.Min)
	}

	if len(s.Segments) > 0 {
		printer.Println()
		printer.Printf("%-26s %10s %10s\n", "SEGMENTO", "INICIO", "FIN")
		for _, seg := range s.Segments {
			printer.Printf("%-26s %10.2f %10.2f\n", seg.Label, seg.StartMin, seg.EndMin)
		}
	}
	return nil
}
