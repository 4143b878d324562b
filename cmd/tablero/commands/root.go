package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// Global flags shared by every subcommand
var (
	configPath string
	redisURL   string
	boardID    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tablero",
	Short: "Tablero - shared CIP/swab status board for a filler line",
	Long: `Tablero is the shared operational status board for a production line's
sanitation (CIP) and swab-test workflow.

It tracks a single shared workflow instance through a fixed sequence of
states, restricts which sector may advance it from which state, records an
audit log of every transition, and computes per-cycle duration summaries.
All state lives in Redis; every board mutation commits atomically with its
audit entry.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to tablero.yml (default: ./tablero.yml when present)")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis URL override (e.g. redis://localhost:6379)")
	rootCmd.PersistentFlags().StringVar(&boardID, "board", "", "Board id override (e.g. llenadora)")
}
