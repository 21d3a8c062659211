package main

import (
	"fmt"
	"os"

	"github.com/koscakluka/sonicursor/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logDir     string

	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "sonicursor",
	Short: "Audio feedback for editor navigation and typing",
	Long: `sonicursor turns cursor movement and typing into sound: a pitch that
follows the cursor while you move fast, spoken lines where you stop and
short earcons for every keystroke.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeDiagnostics()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./sonicursor.yaml)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "directory for the diagnostics log")
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	dir, err := resolveLogDir(logDir, cfg.Diagnostics.Dir)
	if err == nil {
		err = openDiagnostics(dir)
	}
	if err != nil {
		// Feedback still runs without a diagnostics log.
		fmt.Fprintf(os.Stderr, "diagnostics log disabled: %v\n", err)
	}

	diag.Info().
		Str("command", cmd.Name()).
		Str("audio", cfg.Audio.Backend).
		Str("speech", cfg.Speech.Backend).
		Msg("starting")
	return nil
}
